package services

import (
	"context"

	"loan-sync/store"
)

// BatchError reports the record that stopped a batch. Records before Index
// are committed; records after it were never sent.
type BatchError struct {
	Table string
	Index int
	Err   error
}

// Error is the underlying store message, unchanged.
func (e *BatchError) Error() string { return e.Err.Error() }
func (e *BatchError) Unwrap() error { return e.Err }

// applyBatch writes items one at a time, in order. There is no transaction:
// the first failure aborts the batch and nothing is rolled back.
func applyBatch[T any](ctx context.Context, st store.Store, table store.Table, items []T, toRecord func(T) (store.Record, error)) error {
	for i, item := range items {
		rec, err := toRecord(item)
		if err == nil {
			err = st.Upsert(ctx, table, rec)
		}
		if err != nil {
			batchErr := &BatchError{Table: table.Name, Index: i, Err: err}
			logBatchFailure(table.Name, batchErr, len(items))
			return batchErr
		}
	}
	return nil
}
