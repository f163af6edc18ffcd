package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is every setting the service reads at startup. Values come from the
// environment (optionally seeded by a .env file) with the defaults below.
type Config struct {
	Port           string
	Env            string
	GatewayToken   string
	AllowedOrigins []string

	Database DatabaseConfig
	Cleanup  CleanupConfig
	Window   WindowConfig
	Redis    RedisConfig
	R2       R2Config
	Sync     SyncConfig
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string
	URL    string
}

type CleanupConfig struct {
	Enabled  bool
	Schedule string
	Location *time.Location
}

// WindowConfig is the wall-clock submission window [StartHour, EndHour).
type WindowConfig struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Prefix          string
	Endpoint        string
}

type SyncConfig struct {
	ServiceURL   string
	Endpoint     string
	ServiceToken string
	Interval     time.Duration
}

// Enabled reports whether the participant sync worker should run.
func (s SyncConfig) Enabled() bool { return s.ServiceURL != "" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5200")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("CLEANUP_ENABLED", true)
	v.SetDefault("CLEANUP_CRON", "59 23 * * *")
	v.SetDefault("CLEANUP_TZ", "UTC")
	v.SetDefault("SUBMISSION_WINDOW_START", 7)
	v.SetDefault("SUBMISSION_WINDOW_END", 24)
	v.SetDefault("SUBMISSION_TZ", "Local")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("R2_PREFIX", "cleanup-runs")
	v.SetDefault("SYNC_ENDPOINT", "/api/v1/public/profiles")
	v.SetDefault("SYNC_INTERVAL", "30s")
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// a missing .env is fine; the process environment still applies
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{
		Port:           v.GetString("PORT"),
		Env:            v.GetString("APP_ENV"),
		GatewayToken:   v.GetString("GATEWAY_TOKEN"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
			URL:    v.GetString("DATABASE_URL"),
		},
		Cleanup: CleanupConfig{
			Enabled:  v.GetBool("CLEANUP_ENABLED"),
			Schedule: v.GetString("CLEANUP_CRON"),
		},
		Window: WindowConfig{
			StartHour: v.GetInt("SUBMISSION_WINDOW_START"),
			EndHour:   v.GetInt("SUBMISSION_WINDOW_END"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		R2: R2Config{
			AccountID:       v.GetString("R2_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
			Bucket:          v.GetString("R2_BUCKET_NAME"),
			Prefix:          v.GetString("R2_PREFIX"),
			Endpoint:        v.GetString("R2_ENDPOINT"),
		},
		Sync: SyncConfig{
			ServiceURL:   v.GetString("SYNC_SERVICE_URL"),
			Endpoint:     v.GetString("SYNC_ENDPOINT"),
			ServiceToken: v.GetString("SERVICE_TOKEN"),
			Interval:     v.GetDuration("SYNC_INTERVAL"),
		},
	}

	var err error
	if cfg.Cleanup.Location, err = time.LoadLocation(v.GetString("CLEANUP_TZ")); err != nil {
		return nil, fmt.Errorf("CLEANUP_TZ: %w", err)
	}
	if cfg.Window.Location, err = time.LoadLocation(v.GetString("SUBMISSION_TZ")); err != nil {
		return nil, fmt.Errorf("SUBMISSION_TZ: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.GatewayToken == "" {
		return fmt.Errorf("GATEWAY_TOKEN is not set; service cannot authenticate the gateway")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
	case "sqlite":
		if c.Database.URL == "" {
			c.Database.URL = "streak.db"
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	w := c.Window
	if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("invalid submission window %d-%d", w.StartHour, w.EndHour)
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = 30 * time.Second
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
