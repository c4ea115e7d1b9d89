package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"loan-sync/config"
	"loan-sync/models"
	"loan-sync/store"
)

const msgConnectionFailed = "Lỗi kết nối cơ sở dữ liệu"

// MediaOffloader replaces inline image payloads with a hosted URL before a
// record is written. Values it does not handle come back unchanged.
type MediaOffloader interface {
	Offload(ctx context.Context, table, id, field string, value *string) (*string, error)
}

// SyncService moves client state to and from the remote store.
type SyncService struct {
	stores *store.Resolver
	media  MediaOffloader
	now    func() time.Time
}

// NewSyncService wires the service. media may be nil.
func NewSyncService(stores *store.Resolver, media MediaOffloader) *SyncService {
	return &SyncService{stores: stores, media: media, now: time.Now}
}

// Snapshot reads the four tables and maps them to the client shape. Any
// failed read fails the whole snapshot.
func (s *SyncService) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	st, err := s.stores.Get(ctx)
	if err != nil {
		return nil, err
	}

	var userRecs, loanRecs, notifRecs, configRecs []store.Record

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(table store.Table, dst *[]store.Record) {
		g.Go(func() error {
			recs, err := st.Select(gctx, table, store.Query{})
			if err != nil {
				return err
			}
			*dst = recs
			return nil
		})
	}
	fetch(store.Users, &userRecs)
	fetch(store.Loans, &loanRecs)
	fetch(store.Notifications, &notifRecs)
	fetch(store.SystemConfig, &configRecs)
	if err := g.Wait(); err != nil {
		config.Log.WithError(err).Error("snapshot fetch failed")
		return nil, err
	}

	snap := &models.Snapshot{
		Users:         make([]models.User, 0, len(userRecs)),
		Loans:         make([]models.Loan, 0, len(loanRecs)),
		Notifications: make([]models.Notification, 0, len(notifRecs)),
	}

	for _, rec := range userRecs {
		row, err := models.DecodeUserRow(rec)
		if err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		snap.Users = append(snap.Users, models.UserFromRow(row))
	}
	for _, rec := range loanRecs {
		row, err := models.DecodeLoanRow(rec)
		if err != nil {
			return nil, fmt.Errorf("decode loan: %w", err)
		}
		snap.Loans = append(snap.Loans, models.LoanFromRow(row))
	}
	for _, rec := range notifRecs {
		row, err := models.DecodeNotificationRow(rec)
		if err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		snap.Notifications = append(snap.Notifications, models.NotificationFromRow(row))
	}

	configRows := make([]models.ConfigRow, 0, len(configRecs))
	for _, rec := range configRecs {
		row, err := models.DecodeConfigRow(rec)
		if err != nil {
			return nil, fmt.Errorf("decode system config: %w", err)
		}
		configRows = append(configRows, row)
	}
	snap.Budget = models.ConfigValue(configRows, models.ConfigKeyBudget, models.DefaultBudget)
	snap.RankProfit = models.ConfigValue(configRows, models.ConfigKeyRankProfit, models.DefaultRankProfit)

	return snap, nil
}

// SaveUsers upserts users one at a time. See applyBatch for failure behavior.
func (s *SyncService) SaveUsers(ctx context.Context, users []models.User) error {
	return s.withStore(ctx, func(st store.Store) error {
		return applyBatch(ctx, st, store.Users, users, func(u models.User) (store.Record, error) {
			if u.UpdatedAt == 0 {
				u.UpdatedAt = models.NowMillis(s.now())
			}
			row := models.UserToRow(u)
			var err error
			if row.RankUpgradeBill, err = s.offload(ctx, store.Users.Name, row.ID, "rank_upgrade_bill", row.RankUpgradeBill); err != nil {
				return nil, err
			}
			if row.IDFront, err = s.offload(ctx, store.Users.Name, row.ID, "id_front", row.IDFront); err != nil {
				return nil, err
			}
			if row.IDBack, err = s.offload(ctx, store.Users.Name, row.ID, "id_back", row.IDBack); err != nil {
				return nil, err
			}
			return row.Record(), nil
		})
	})
}

func (s *SyncService) SaveLoans(ctx context.Context, loans []models.Loan) error {
	return s.withStore(ctx, func(st store.Store) error {
		return applyBatch(ctx, st, store.Loans, loans, func(l models.Loan) (store.Record, error) {
			if l.UpdatedAt == 0 {
				l.UpdatedAt = models.NowMillis(s.now())
			}
			row := models.LoanToRow(l)
			var err error
			if row.BillImage, err = s.offload(ctx, store.Loans.Name, row.ID, "bill_image", row.BillImage); err != nil {
				return nil, err
			}
			if row.Signature, err = s.offload(ctx, store.Loans.Name, row.ID, "signature", row.Signature); err != nil {
				return nil, err
			}
			return row.Record(), nil
		})
	})
}

func (s *SyncService) SaveNotifications(ctx context.Context, notifications []models.Notification) error {
	return s.withStore(ctx, func(st store.Store) error {
		return applyBatch(ctx, st, store.Notifications, notifications, func(n models.Notification) (store.Record, error) {
			return models.NotificationToRow(n).Record(), nil
		})
	})
}

func (s *SyncService) SetBudget(ctx context.Context, budget float64) error {
	return s.setConfig(ctx, models.ConfigKeyBudget, budget)
}

func (s *SyncService) SetRankProfit(ctx context.Context, rankProfit float64) error {
	return s.setConfig(ctx, models.ConfigKeyRankProfit, rankProfit)
}

func (s *SyncService) setConfig(ctx context.Context, key string, value float64) error {
	return s.withStore(ctx, func(st store.Store) error {
		row := models.ConfigRow{Key: key, Value: value}
		if err := st.Upsert(ctx, store.SystemConfig, row.Record()); err != nil {
			config.Log.WithError(err).WithField("key", key).Error("failed to save system config")
			return err
		}
		return nil
	})
}

// DeleteUser removes the user row. Dependent loans and notifications are
// removed by the store's foreign keys, not here.
func (s *SyncService) DeleteUser(ctx context.Context, id string) error {
	return s.withStore(ctx, func(st store.Store) error {
		if err := st.Delete(ctx, store.Users, id); err != nil {
			config.Log.WithError(err).WithField("user_id", id).Error("failed to delete user")
			return err
		}
		return nil
	})
}

// Status probes the store with a one-row read of system_config.
func (s *SyncService) Status(ctx context.Context) models.ConnectionStatus {
	st, err := s.stores.Get(ctx)
	if err != nil {
		return disconnected(err.Error())
	}

	if _, err := st.Select(ctx, store.SystemConfig, store.Query{Columns: []string{"key"}, Limit: 1}); err != nil {
		config.Log.WithError(err).WithField("driver", s.stores.Driver()).Error("store connection check failed")
		msg := err.Error()
		if msg == "" {
			msg = msgConnectionFailed
		}
		return disconnected(msg)
	}
	return models.ConnectionStatus{Connected: true}
}

func disconnected(msg string) models.ConnectionStatus {
	return models.ConnectionStatus{Connected: false, Error: &msg}
}

func (s *SyncService) withStore(ctx context.Context, fn func(store.Store) error) error {
	st, err := s.stores.Get(ctx)
	if err != nil {
		return err
	}
	return fn(st)
}

func (s *SyncService) offload(ctx context.Context, table, id, field string, value *string) (*string, error) {
	if s.media == nil || value == nil {
		return value, nil
	}
	return s.media.Offload(ctx, table, id, field, value)
}

func logBatchFailure(table string, batchErr *BatchError, total int) {
	config.Log.WithError(batchErr.Err).WithFields(logrus.Fields{
		"table":     table,
		"committed": batchErr.Index,
		"skipped":   total - batchErr.Index - 1,
	}).Error("batch upsert aborted")
}
