package store

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "loan_sync_store_operations_total",
	Help: "Remote store operations by driver, table, operation and outcome.",
}, []string{"driver", "table", "op", "outcome"})

type instrumented struct {
	next   Store
	driver string
}

// Instrument counts every operation of s in the store metrics.
func Instrument(s Store, driver string) Store {
	return &instrumented{next: s, driver: driver}
}

func (i *instrumented) Unwrap() Store { return i.next }

func (i *instrumented) Select(ctx context.Context, table Table, q Query) ([]Record, error) {
	records, err := i.next.Select(ctx, table, q)
	i.observe(table, OpSelect, err)
	return records, err
}

func (i *instrumented) Upsert(ctx context.Context, table Table, records ...Record) error {
	err := i.next.Upsert(ctx, table, records...)
	i.observe(table, OpUpsert, err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, table Table, id string) error {
	err := i.next.Delete(ctx, table, id)
	i.observe(table, OpDelete, err)
	return err
}

func (i *instrumented) Close() error { return i.next.Close() }

func (i *instrumented) observe(table Table, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeOperations.WithLabelValues(i.driver, table.Name, op, outcome).Inc()
}
