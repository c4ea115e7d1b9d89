package config

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"loan-sync/store"
)

// Config holds every setting the gateway reads at startup.
type Config struct {
	Port        string `mapstructure:"PORT"`
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogFile     string `mapstructure:"LOG_FILE"`

	StoreDriver            string        `mapstructure:"STORE_DRIVER"`
	SupabaseURL            string        `mapstructure:"SUPABASE_URL"`
	SupabaseServiceRoleKey string        `mapstructure:"SUPABASE_SERVICE_ROLE_KEY"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	DBMigrate              bool          `mapstructure:"DB_MIGRATE"`
	MongoURI               string        `mapstructure:"MONGO_URI"`
	MongoDatabase          string        `mapstructure:"MONGO_DATABASE"`
	StoreTimeout           time.Duration `mapstructure:"STORE_TIMEOUT"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	BodyLimitMB int64    `mapstructure:"BODY_LIMIT_MB"`
	StaticDir   string   `mapstructure:"STATIC_DIR"`

	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSBucketName      string `mapstructure:"AWS_BUCKET_NAME"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
}

// defaults doubles as the list of keys viper binds from the environment;
// Unmarshal only sees env vars for keys it already knows about.
var defaults = map[string]any{
	"PORT":                      "3000",
	"ENVIRONMENT":               "development",
	"LOG_LEVEL":                 "info",
	"LOG_FILE":                  "",
	"STORE_DRIVER":              store.DriverSupabase,
	"SUPABASE_URL":              "",
	"SUPABASE_SERVICE_ROLE_KEY": "",
	"DATABASE_URL":              "",
	"DB_MIGRATE":                false,
	"MONGO_URI":                 "",
	"MONGO_DATABASE":            "loan_sync",
	"STORE_TIMEOUT":             "15s",
	"CORS_ORIGINS":              "",
	"BODY_LIMIT_MB":             50,
	"STATIC_DIR":                "dist",
	"AWS_REGION":                "ap-southeast-1",
	"AWS_BUCKET_NAME":           "",
	"AWS_ACCESS_KEY_ID":         "",
	"AWS_SECRET_ACCESS_KEY":     "",
}

// LoadConfig loads configuration from .env or config.yaml using Viper.
// Environment variables always win. A missing file is fine: the secrets
// may come from the environment alone.
func LoadConfig(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env", "config.yaml"}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	for _, file := range files {
		v.SetConfigFile(file)
		err := v.ReadInConfig()
		if err == nil {
			log.Printf("✅ Configuration loaded from %s", file)
			break
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.CORSOrigins = compact(cfg.CORSOrigins)

	return &cfg, nil
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// StoreOptions selects the remote store settings out of the config.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:        c.StoreDriver,
		SupabaseURL:   c.SupabaseURL,
		SupabaseKey:   c.SupabaseServiceRoleKey,
		DatabaseURL:   c.DatabaseURL,
		MongoURI:      c.MongoURI,
		MongoDatabase: c.MongoDatabase,
		Timeout:       c.StoreTimeout,
	}
}

// MediaEnabled reports whether inline images are offloaded to S3.
func (c *Config) MediaEnabled() bool {
	return c.AWSBucketName != ""
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
