package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// User-facing messages for configuration problems.
const (
	msgMissingSupabase    = "Thiếu biến môi trường SUPABASE_URL hoặc SUPABASE_SERVICE_ROLE_KEY. Vui lòng cấu hình biến môi trường."
	msgInvalidSupabaseURL = "URL Supabase không hợp lệ (phải bắt đầu bằng https://)"
	msgMissingDatabaseURL = "Thiếu biến môi trường DATABASE_URL."
	msgInvalidDatabaseURL = "DATABASE_URL không hợp lệ: %v"
	msgMissingMongoURI    = "Thiếu biến môi trường MONGO_URI."
	msgInvalidMongoURI    = "MONGO_URI không hợp lệ (phải bắt đầu bằng mongodb:// hoặc mongodb+srv://)"
	msgUnknownDriver      = "STORE_DRIVER không được hỗ trợ: %s"
)

// Options carries the secrets and settings a driver needs.
type Options struct {
	Driver        string
	SupabaseURL   string
	SupabaseKey   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	Timeout       time.Duration
}

// Resolver hands out the process-wide store handle. A handle that was built
// successfully is kept; while none exists every call tries again, so a
// request made after the secrets are fixed succeeds without a restart.
type Resolver struct {
	opts Options
	log  logrus.FieldLogger
	open func(context.Context, Options) (Store, error)

	mu     sync.Mutex
	handle Store
}

func NewResolver(opts Options, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{opts: opts, log: log, open: Open}
}

// StaticResolver always returns s. Used for the memory driver in tests and
// for callers that build their own handle.
func StaticResolver(s Store) *Resolver {
	return &Resolver{log: logrus.StandardLogger(), handle: s, open: Open}
}

// Driver returns the configured driver name.
func (r *Resolver) Driver() string {
	if r.opts.Driver == "" {
		return DriverSupabase
	}
	return r.opts.Driver
}

// Get returns the store handle, building it if none exists yet. The error is
// a *ConfigError when the handle cannot be built.
func (r *Resolver) Get(ctx context.Context) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handle != nil {
		return r.handle, nil
	}

	s, err := r.open(ctx, r.opts)
	if err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			r.log.WithError(err).WithField("driver", r.Driver()).Error("invalid store configuration")
		}
		return nil, err
	}

	r.handle = s
	r.log.WithField("driver", r.Driver()).Info("✅ Store handle created")
	return s, nil
}

// Close releases the handle, if any.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handle == nil {
		return nil
	}
	err := r.handle.Close()
	r.handle = nil
	return err
}

// Open builds a store for opts.Driver. It performs no queries: the first
// network round trip happens on the first operation.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSupabase
	}

	var (
		s   Store
		err error
	)
	switch driver {
	case DriverSupabase:
		s, err = openSupabase(opts)
	case DriverPostgres, DriverSQLite:
		s, err = openSQL(driver, opts)
	case DriverMongo:
		s, err = openMongo(ctx, opts)
	case DriverMemory:
		s = NewMemoryStore()
	default:
		err = &ConfigError{Err: ErrInvalidConfig, Message: fmt.Sprintf(msgUnknownDriver, driver)}
	}
	if err != nil {
		return nil, err
	}
	return Instrument(s, driver), nil
}

func openSupabase(opts Options) (Store, error) {
	if opts.SupabaseURL == "" || opts.SupabaseKey == "" {
		return nil, &ConfigError{Err: ErrNotConfigured, Message: msgMissingSupabase}
	}
	if !validURL(opts.SupabaseURL, "http", "https") {
		return nil, &ConfigError{Err: ErrInvalidConfig, Message: msgInvalidSupabaseURL}
	}
	client := &http.Client{Timeout: opts.Timeout}
	return NewPostgRESTStore(opts.SupabaseURL, opts.SupabaseKey, client), nil
}

func openSQL(driver string, opts Options) (Store, error) {
	if opts.DatabaseURL == "" {
		return nil, &ConfigError{Err: ErrNotConfigured, Message: msgMissingDatabaseURL}
	}
	dsn := opts.DatabaseURL
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err), Message: fmt.Sprintf(msgInvalidDatabaseURL, err)}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)

	return NewSQLStore(db), nil
}

func openMongo(ctx context.Context, opts Options) (Store, error) {
	if opts.MongoURI == "" {
		return nil, &ConfigError{Err: ErrNotConfigured, Message: msgMissingMongoURI}
	}
	if !validURL(opts.MongoURI, "mongodb", "mongodb+srv") {
		return nil, &ConfigError{Err: ErrInvalidConfig, Message: msgInvalidMongoURI}
	}

	clientOpts := options.Client().ApplyURI(opts.MongoURI)
	if opts.Timeout > 0 {
		clientOpts.SetTimeout(opts.Timeout)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err), Message: msgInvalidMongoURI}
	}
	return NewMongoStore(client, opts.MongoDatabase), nil
}

// sqliteDSN turns on foreign key enforcement, which SQLite leaves off per
// connection unless asked. The schema's ON DELETE CASCADE depends on it.
func sqliteDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.Contains(lower, "_foreign_keys=") || strings.Contains(lower, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1"
}

// validURL reports whether raw is an absolute URL with a host and one of
// the given schemes.
func validURL(raw string, schemes ...string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	for _, scheme := range schemes {
		if strings.EqualFold(u.Scheme, scheme) {
			return true
		}
	}
	return false
}
