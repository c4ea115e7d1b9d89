// Package store is the gateway's view of the remote database: select,
// upsert and delete against a named table, with one implementation per
// backend (PostgREST, SQL, MongoDB, in-memory).
package store

import (
	"context"
	"errors"
	"fmt"
)

// Record is a row in storage shape: snake_case column name to value.
type Record map[string]any

// Table names a remote table and its primary key column.
type Table struct {
	Name string
	Key  string
}

var (
	Users         = Table{Name: "users", Key: "id"}
	Loans         = Table{Name: "loans", Key: "id"}
	Notifications = Table{Name: "notifications", Key: "id"}
	SystemConfig  = Table{Name: "system_config", Key: "key"}
)

// Query narrows a Select. Zero values mean all columns, no filter, no limit.
type Query struct {
	Columns []string
	Filter  map[string]any // column = value, ANDed
	Limit   int
}

// Store is the remote store capability shared by every driver.
// Operations fail fast: nothing is retried.
type Store interface {
	Select(ctx context.Context, table Table, q Query) ([]Record, error)
	// Upsert inserts or updates each record by the table key. Columns absent
	// from a record keep their stored value on update.
	Upsert(ctx context.Context, table Table, records ...Record) error
	// Delete removes the row with the given key. A missing row is not an error.
	Delete(ctx context.Context, table Table, id string) error
	Close() error
}

const (
	OpSelect = "select"
	OpUpsert = "upsert"
	OpDelete = "delete"
)

var (
	ErrNotConfigured = errors.New("store not configured")
	ErrInvalidConfig = errors.New("store configuration invalid")
	ErrMissingKey    = errors.New("record has no key")
)

// ConfigError explains why no store handle could be built. Message is the
// user-facing text returned to the client.
type ConfigError struct {
	Err     error
	Message string
}

func (e *ConfigError) Error() string { return e.Message }
func (e *ConfigError) Unwrap() error { return e.Err }

// OpError is a failed store operation. Error returns the backend message
// unchanged so clients see what the database said.
type OpError struct {
	Op      string
	Table   string
	Code    string
	Message string
	Err     error
}

func (e *OpError) Error() string { return e.Message }
func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, table Table, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, Table: table.Name, Message: err.Error(), Err: err}
}

// keyOf returns the record's primary key as a string.
func keyOf(table Table, rec Record) (string, error) {
	value, ok := rec[table.Key]
	if !ok || value == nil {
		return "", fmt.Errorf("%s: %w %q", table.Name, ErrMissingKey, table.Key)
	}
	id := fmt.Sprint(value)
	if id == "" {
		return "", fmt.Errorf("%s: %w %q", table.Name, ErrMissingKey, table.Key)
	}
	return id, nil
}

// Migrator is implemented by drivers that can create their own schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Migrate runs the schema migration if the store (or the store it wraps)
// supports one. It reports whether a migration ran.
func Migrate(ctx context.Context, s Store) (bool, error) {
	for s != nil {
		if m, ok := s.(Migrator); ok {
			return true, m.Migrate(ctx)
		}
		w, ok := s.(interface{ Unwrap() Store })
		if !ok {
			break
		}
		s = w.Unwrap()
	}
	return false, nil
}
