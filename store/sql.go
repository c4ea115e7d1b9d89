package store

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLStore serves the postgres and sqlite3 drivers through sqlx.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Select(ctx context.Context, table Table, q Query) ([]Record, error) {
	tableName, err := quoteIdent(table.Name)
	if err != nil {
		return nil, opError(OpSelect, table, err)
	}

	columns := "*"
	if len(q.Columns) > 0 {
		quoted, err := quoteIdents(q.Columns)
		if err != nil {
			return nil, opError(OpSelect, table, err)
		}
		columns = strings.Join(quoted, ", ")
	}

	var (
		sb   strings.Builder
		args []any
	)
	fmt.Fprintf(&sb, "SELECT %s FROM %s", columns, tableName)

	if len(q.Filter) > 0 {
		keys := sortedKeys(q.Filter)
		quoted, err := quoteIdents(keys)
		if err != nil {
			return nil, opError(OpSelect, table, err)
		}
		conds := make([]string, len(keys))
		for i, k := range keys {
			conds[i] = quoted[i] + " = ?"
			args = append(args, q.Filter[k])
		}
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(sb.String()), args...)
	if err != nil {
		return nil, opError(OpSelect, table, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, opError(OpSelect, table, err)
		}
		records = append(records, normalizeSQL(row))
	}
	if err := rows.Err(); err != nil {
		return nil, opError(OpSelect, table, err)
	}
	return records, nil
}

func (s *SQLStore) Upsert(ctx context.Context, table Table, records ...Record) error {
	for _, rec := range records {
		query, args, err := upsertStatement(table, rec)
		if err != nil {
			return opError(OpUpsert, table, err)
		}
		if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
			return opError(OpUpsert, table, err)
		}
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, table Table, id string) error {
	tableName, err := quoteIdent(table.Name)
	if err != nil {
		return opError(OpDelete, table, err)
	}
	keyName, err := quoteIdent(table.Key)
	if err != nil {
		return opError(OpDelete, table, err)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", tableName, keyName)
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), id); err != nil {
		return opError(OpDelete, table, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// upsertStatement builds INSERT ... ON CONFLICT (key) DO UPDATE, which both
// PostgreSQL and SQLite understand.
func upsertStatement(table Table, rec Record) (string, []any, error) {
	if _, err := keyOf(table, rec); err != nil {
		return "", nil, err
	}

	tableName, err := quoteIdent(table.Name)
	if err != nil {
		return "", nil, err
	}
	keyName, err := quoteIdent(table.Key)
	if err != nil {
		return "", nil, err
	}

	columns := sortedKeys(rec)
	quoted, err := quoteIdents(columns)
	if err != nil {
		return "", nil, err
	}

	args := make([]any, len(columns))
	placeholders := make([]string, len(columns))
	var updates []string
	for i, col := range columns {
		args[i] = rec[col]
		placeholders[i] = "?"
		if col != table.Key {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", quoted[i], quoted[i]))
		}
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		tableName, strings.Join(quoted, ", "), strings.Join(placeholders, ", "), keyName, conflict)
	return query, args, nil
}

func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

func quoteIdents(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		q, err := quoteIdent(name)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeSQL turns driver byte slices (NUMERIC, TEXT on some drivers)
// into strings so the record decodes the same way for every driver.
func normalizeSQL(row map[string]any) Record {
	rec := make(Record, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
			continue
		}
		rec[k] = v
	}
	return rec
}
