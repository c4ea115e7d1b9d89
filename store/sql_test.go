package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func openTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "loan-sync.db") + "?_foreign_keys=1"
	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s := NewSQLStore(db)
	t.Cleanup(func() { _ = s.Close() })

	ran, err := Migrate(context.Background(), s)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !ran {
		t.Fatalf("expected SQL store to migrate")
	}
	return s
}

func TestSQLUpsertMergesColumns(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	if err := s.Upsert(ctx, Users, Record{"id": "u-1", "full_name": "Nguyen Van A", "balance": 1000.0, "bank_name": "VCB"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Upsert(ctx, Users, Record{"id": "u-1", "balance": 2500.0, "updated_at": int64(1717000000000)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	records, err := s.Select(ctx, Users, Query{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 row, got %d", len(records))
	}
	rec := records[0]
	if rec["full_name"] != "Nguyen Van A" || rec["bank_name"] != "VCB" {
		t.Fatalf("omitted columns were overwritten: %v", rec)
	}
	if fmt.Sprint(rec["balance"]) != "2500" {
		t.Fatalf("expected balance 2500, got %v", rec["balance"])
	}
	if fmt.Sprint(rec["updated_at"]) != "1717000000000" {
		t.Fatalf("expected updated_at to be stored, got %v", rec["updated_at"])
	}
}

func TestSQLSelectFilterColumnsLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	if err := s.Upsert(ctx, Users, Record{"id": "u-1"}, Record{"id": "u-2"}); err != nil {
		t.Fatalf("insert users: %v", err)
	}
	for i := 1; i <= 3; i++ {
		owner := "u-1"
		if i == 3 {
			owner = "u-2"
		}
		if err := s.Upsert(ctx, Loans, Record{"id": fmt.Sprintf("l-%d", i), "user_id": owner, "status": "PENDING"}); err != nil {
			t.Fatalf("insert loan %d: %v", i, err)
		}
	}

	records, err := s.Select(ctx, Loans, Query{Columns: []string{"id"}, Filter: map[string]any{"user_id": "u-1"}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 loans for u-1, got %d", len(records))
	}
	if _, ok := records[0]["status"]; ok {
		t.Fatalf("expected projection to id only, got %v", records[0])
	}

	limited, err := s.Select(ctx, Loans, Query{Limit: 1})
	if err != nil {
		t.Fatalf("select limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 row with limit, got %d", len(limited))
	}
}

func TestSQLDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	if err := s.Upsert(ctx, Users, Record{"id": "u-1"}); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := s.Upsert(ctx, Loans, Record{"id": "l-1", "user_id": "u-1"}); err != nil {
		t.Fatalf("insert loan: %v", err)
	}
	if err := s.Upsert(ctx, Notifications, Record{"id": "n-1", "user_id": "u-1", "title": "Xin chào"}); err != nil {
		t.Fatalf("insert notification: %v", err)
	}

	if err := s.Delete(ctx, Users, "u-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, table := range []Table{Users, Loans, Notifications} {
		records, err := s.Select(ctx, table, Query{})
		if err != nil {
			t.Fatalf("select %s: %v", table.Name, err)
		}
		if len(records) != 0 {
			t.Fatalf("expected %s to be empty after cascade, got %v", table.Name, records)
		}
	}

	if err := s.Delete(ctx, Users, "missing"); err != nil {
		t.Fatalf("deleting a missing row should succeed, got %v", err)
	}
}

func TestSQLForeignKeyViolation(t *testing.T) {
	s := openTestSQLite(t)

	err := s.Upsert(context.Background(), Loans, Record{"id": "l-1", "user_id": "ghost"})
	if err == nil {
		t.Fatalf("expected foreign key error")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "foreign key") {
		t.Fatalf("expected driver message to surface, got %q", err.Error())
	}
}

func TestSQLSystemConfig(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	for _, v := range []float64{30000000, 45000000} {
		if err := s.Upsert(ctx, SystemConfig, Record{"key": "budget", "value": v}); err != nil {
			t.Fatalf("upsert budget: %v", err)
		}
	}
	records, err := s.Select(ctx, SystemConfig, Query{Filter: map[string]any{"key": "budget"}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(records) != 1 || fmt.Sprint(records[0]["value"]) != "45000000" {
		t.Fatalf("unexpected config rows %v", records)
	}
}

func TestUpsertStatement(t *testing.T) {
	query, args, err := upsertStatement(SystemConfig, Record{"key": "budget", "value": 1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := `INSERT INTO "system_config" ("key", "value") VALUES (?, ?) ON CONFLICT ("key") DO UPDATE SET "value" = excluded."value"`
	if query != want {
		t.Fatalf("unexpected statement\n got %s\nwant %s", query, want)
	}
	if len(args) != 2 || args[0] != "budget" {
		t.Fatalf("unexpected args %v", args)
	}

	query, _, err = upsertStatement(Users, Record{"id": "u-1"})
	if err != nil {
		t.Fatalf("build key-only: %v", err)
	}
	if !strings.HasSuffix(query, "DO NOTHING") {
		t.Fatalf("expected DO NOTHING for key-only record, got %s", query)
	}

	if _, _, err := upsertStatement(Users, Record{"id": "u-1", "full_name; DROP TABLE users": "x"}); err == nil {
		t.Fatalf("expected invalid identifier to be rejected")
	}
}
