package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"loan-sync/config"
	"loan-sync/models"
	"loan-sync/store"
)

func init() {
	config.Log.SetOutput(io.Discard)
}

// faultyStore wraps a store and fails chosen operations.
type faultyStore struct {
	store.Store
	failSelect map[string]error
	failUpsert func(table store.Table, rec store.Record) error
	upserts    int
}

func (f *faultyStore) Select(ctx context.Context, table store.Table, q store.Query) ([]store.Record, error) {
	if err := f.failSelect[table.Name]; err != nil {
		return nil, err
	}
	return f.Store.Select(ctx, table, q)
}

func (f *faultyStore) Upsert(ctx context.Context, table store.Table, records ...store.Record) error {
	for _, rec := range records {
		f.upserts++
		if f.failUpsert != nil {
			if err := f.failUpsert(table, rec); err != nil {
				return err
			}
		}
	}
	return f.Store.Upsert(ctx, table, records...)
}

func newTestService(st store.Store) *SyncService {
	s := NewSyncService(store.StaticResolver(st), nil)
	s.now = func() time.Time { return time.UnixMilli(1717000000000) }
	return s
}

func unconfiguredService() *SyncService {
	return NewSyncService(store.NewResolver(store.Options{Driver: store.DriverSupabase}, config.Log), nil)
}

func TestSnapshotDefaults(t *testing.T) {
	snap, err := newTestService(store.NewMemoryStore()).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Budget != 30000000 || snap.RankProfit != 0 {
		t.Fatalf("expected default budget/rankProfit, got %v/%v", snap.Budget, snap.RankProfit)
	}
	if snap.Users == nil || snap.Loans == nil || snap.Notifications == nil {
		t.Fatalf("expected empty non-nil collections, got %+v", snap)
	}
}

func TestSnapshotMapsRows(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	_ = mem.Upsert(ctx, store.Users, store.Record{"id": "u-1", "full_name": "Nguyen Van A", "updated_at": "1717000000000"})
	_ = mem.Upsert(ctx, store.Loans, store.Record{"id": "l-1", "user_id": "u-1", "amount": 5000000, "status": "PENDING"})
	_ = mem.Upsert(ctx, store.Notifications, store.Record{"id": "n-1", "user_id": "u-1", "read": true})
	_ = mem.Upsert(ctx, store.SystemConfig, store.Record{"key": "budget", "value": "45000000"})

	snap, err := newTestService(mem).Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Users) != 1 || snap.Users[0].FullName != "Nguyen Van A" || snap.Users[0].UpdatedAt != 1717000000000 {
		t.Fatalf("unexpected users %+v", snap.Users)
	}
	if len(snap.Loans) != 1 || snap.Loans[0].UserID != "u-1" || snap.Loans[0].Amount != 5000000 {
		t.Fatalf("unexpected loans %+v", snap.Loans)
	}
	if len(snap.Notifications) != 1 || !snap.Notifications[0].Read {
		t.Fatalf("unexpected notifications %+v", snap.Notifications)
	}
	if snap.Budget != 45000000 || snap.RankProfit != 0 {
		t.Fatalf("unexpected config %v/%v", snap.Budget, snap.RankProfit)
	}
}

func TestSnapshotFailsWhenAnyTableFails(t *testing.T) {
	st := &faultyStore{
		Store:      store.NewMemoryStore(),
		failSelect: map[string]error{"loans": errors.New(`relation "loans" does not exist`)},
	}
	snap, err := newTestService(st).Snapshot(context.Background())
	if err == nil || err.Error() != `relation "loans" does not exist` {
		t.Fatalf("expected loans error, got %v", err)
	}
	if snap != nil {
		t.Fatalf("expected no partial snapshot, got %+v", snap)
	}
}

func TestSnapshotUnconfigured(t *testing.T) {
	_, err := unconfiguredService().Snapshot(context.Background())
	if !errors.Is(err, store.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSaveUsersStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	st := &faultyStore{
		Store: mem,
		failUpsert: func(_ store.Table, rec store.Record) error {
			if rec["id"] == "u-2" {
				return errors.New("duplicate key value violates unique constraint")
			}
			return nil
		},
	}

	users := []models.User{{ID: "u-1"}, {ID: "u-2"}, {ID: "u-3"}}
	err := newTestService(st).SaveUsers(ctx, users)

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if batchErr.Index != 1 || batchErr.Table != "users" {
		t.Fatalf("unexpected batch error %+v", batchErr)
	}
	if err.Error() != "duplicate key value violates unique constraint" {
		t.Fatalf("expected store message verbatim, got %q", err.Error())
	}
	if st.upserts != 2 {
		t.Fatalf("expected the third record never to be attempted, got %d upserts", st.upserts)
	}

	rows, _ := mem.Select(ctx, store.Users, store.Query{})
	if len(rows) != 1 || rows[0]["id"] != "u-1" {
		t.Fatalf("expected only u-1 committed, got %v", rows)
	}
}

func TestSaveUsersEmptyBatch(t *testing.T) {
	st := &faultyStore{Store: store.NewMemoryStore()}
	if err := newTestService(st).SaveUsers(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if st.upserts != 0 {
		t.Fatalf("expected no writes, got %d", st.upserts)
	}
}

func TestSaveStampsMissingUpdatedAt(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	svc := newTestService(mem)

	if err := svc.SaveLoans(ctx, []models.Loan{{ID: "l-1"}, {ID: "l-2", UpdatedAt: 42}}); err != nil {
		t.Fatalf("save loans: %v", err)
	}
	rows, _ := mem.Select(ctx, store.Loans, store.Query{})
	if len(rows) != 2 {
		t.Fatalf("expected 2 loans, got %d", len(rows))
	}
	if rows[0]["updated_at"] != int64(1717000000000) {
		t.Fatalf("expected stamped updated_at, got %#v", rows[0]["updated_at"])
	}
	if rows[1]["updated_at"] != int64(42) {
		t.Fatalf("expected client updated_at kept, got %#v", rows[1]["updated_at"])
	}
}

func TestSaveNullClearsStoredValue(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	svc := newTestService(mem)

	var first []models.User
	if err := json.Unmarshal([]byte(`[{"id":"u-1","fullName":"A","pendingUpgradeRank":"GOLD","rankUpgradeBill":"bill.png","bankName":"VCB"}]`), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := svc.SaveUsers(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	var cleared []models.User
	if err := json.Unmarshal([]byte(`[{"id":"u-1","fullName":"A","pendingUpgradeRank":null,"rankUpgradeBill":null,"bankName":"VCB"}]`), &cleared); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := svc.SaveUsers(ctx, cleared); err != nil {
		t.Fatalf("save cleared: %v", err)
	}

	reason := "bad docs"
	if err := svc.SaveLoans(ctx, []models.Loan{{ID: "l-1", UserID: "u-1", Status: "REJECTED", RejectionReason: &reason}}); err != nil {
		t.Fatalf("save loan: %v", err)
	}
	if err := svc.SaveLoans(ctx, []models.Loan{{ID: "l-1", UserID: "u-1", Status: "APPROVED", RejectionReason: nil}}); err != nil {
		t.Fatalf("re-approve loan: %v", err)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	u := snap.Users[0]
	if u.PendingUpgradeRank != nil || u.RankUpgradeBill != nil {
		t.Fatalf("expected cleared rank upgrade fields, got %v %v", u.PendingUpgradeRank, u.RankUpgradeBill)
	}
	if u.BankName == nil || *u.BankName != "VCB" {
		t.Fatalf("expected bank name kept, got %v", u.BankName)
	}
	l := snap.Loans[0]
	if l.Status != "APPROVED" || l.RejectionReason != nil {
		t.Fatalf("expected rejection reason cleared, got status=%s reason=%v", l.Status, l.RejectionReason)
	}
}

func TestSaveNotifications(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	n := models.Notification{ID: "n-1", UserID: "u-1", Title: "Khoản vay đã duyệt", Read: false, Type: "loan"}
	if err := newTestService(mem).SaveNotifications(ctx, []models.Notification{n}); err != nil {
		t.Fatalf("save: %v", err)
	}
	rows, _ := mem.Select(ctx, store.Notifications, store.Query{})
	if len(rows) != 1 || rows[0]["user_id"] != "u-1" || rows[0]["title"] != n.Title {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestSetBudgetAndRankProfit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewMemoryStore())

	if err := svc.SetBudget(ctx, 50000000); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if err := svc.SetBudget(ctx, 60000000); err != nil {
		t.Fatalf("overwrite budget: %v", err)
	}
	if err := svc.SetRankProfit(ctx, 1250000); err != nil {
		t.Fatalf("set rankProfit: %v", err)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Budget != 60000000 || snap.RankProfit != 1250000 {
		t.Fatalf("unexpected config %v/%v", snap.Budget, snap.RankProfit)
	}
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	_ = mem.Upsert(ctx, store.Users, store.Record{"id": "u-1"})
	svc := newTestService(mem)

	if err := svc.DeleteUser(ctx, "u-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteUser(ctx, "does-not-exist"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	rows, _ := mem.Select(ctx, store.Users, store.Query{})
	if len(rows) != 0 {
		t.Fatalf("expected no users, got %v", rows)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	status := newTestService(store.NewMemoryStore()).Status(ctx)
	if !status.Connected || status.Error != nil {
		t.Fatalf("expected connected, got %+v", status)
	}

	status = unconfiguredService().Status(ctx)
	if status.Connected || status.Error == nil {
		t.Fatalf("expected disconnected, got %+v", status)
	}
	if *status.Error != "Thiếu biến môi trường SUPABASE_URL hoặc SUPABASE_SERVICE_ROLE_KEY. Vui lòng cấu hình biến môi trường." {
		t.Fatalf("unexpected message %q", *status.Error)
	}

	invalid := NewSyncService(store.NewResolver(store.Options{SupabaseURL: "abc", SupabaseKey: "k"}, config.Log), nil)
	status = invalid.Status(ctx)
	if status.Connected || status.Error == nil || *status.Error != "URL Supabase không hợp lệ (phải bắt đầu bằng https://)" {
		t.Fatalf("unexpected status for invalid URL %+v", status)
	}

	probeErr := &faultyStore{
		Store:      store.NewMemoryStore(),
		failSelect: map[string]error{"system_config": errors.New(`relation "system_config" does not exist`)},
	}
	status = newTestService(probeErr).Status(ctx)
	if status.Connected || *status.Error != `relation "system_config" does not exist` {
		t.Fatalf("unexpected probe status %+v", status)
	}
}

type fakeOffloader struct {
	calls []string
}

func (f *fakeOffloader) Offload(_ context.Context, table, id, field string, value *string) (*string, error) {
	f.calls = append(f.calls, table+"/"+id+"/"+field)
	hosted := "https://cdn.example.com/" + field
	return &hosted, nil
}

func TestSaveLoansOffloadsMedia(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	media := &fakeOffloader{}
	svc := NewSyncService(store.StaticResolver(mem), media)

	bill := "data:image/png;base64,iVBORw0KGgo="
	if err := svc.SaveLoans(ctx, []models.Loan{{ID: "l-1", BillImage: &bill}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(media.calls) != 1 || media.calls[0] != "loans/l-1/bill_image" {
		t.Fatalf("unexpected offload calls %v", media.calls)
	}
	rows, _ := mem.Select(ctx, store.Loans, store.Query{})
	if rows[0]["bill_image"] != "https://cdn.example.com/bill_image" {
		t.Fatalf("expected hosted URL stored, got %v", rows[0]["bill_image"])
	}
}
