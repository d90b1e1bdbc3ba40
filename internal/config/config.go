package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverMySQL  = "mysql"
	DriverGCS    = "gcs"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	KeyPrefix   string `env:"KEY_PREFIX" envDefault:"mealmitra_"`

	BadgerPath string `env:"BADGER_PATH" envDefault:"./data/badger"`

	DBUser                 string `env:"DB_USER"`
	DBPassword             string `env:"DB_PASSWORD"`
	DBHost                 string `env:"DB_HOST"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	StorageBucket     string `env:"STORAGE_BUCKET"`
	StateObjectPrefix string `env:"STATE_OBJECT_PREFIX" envDefault:"state/"`
	CredentialsFile   string `env:"GOOGLE_CREDENTIALS_FILE"`

	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`

	EstimateDelayMS        int   `env:"ESTIMATE_DELAY_MS" envDefault:"1500"`
	LocationTimeoutSeconds int   `env:"LOCATION_TIMEOUT_SECONDS" envDefault:"12"`
	HeroThreshold          int   `env:"HERO_THRESHOLD" envDefault:"10"`
	EnforceRoles           bool  `env:"ENFORCE_ROLES" envDefault:"false"`
	RandSeed               int64 `env:"RAND_SEED" envDefault:"0"`

	ShutdownTimeoutSeconds int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"10"`
	GitSHA                 string `env:"GIT_SHA" envDefault:"dev"`
	BuildTime              string `env:"BUILD_TIME"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings each store driver needs.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverBadger:
		if c.BadgerPath == "" {
			return errors.New("BADGER_PATH is required for the badger driver")
		}
	case DriverMySQL:
		var missing []string
		if c.DBUser == "" {
			missing = append(missing, "DB_USER")
		}
		if c.DBPassword == "" {
			missing = append(missing, "DB_PASSWORD")
		}
		if c.DBHost == "" && c.InstanceConnectionName == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
		if len(missing) > 0 {
			return fmt.Errorf("mysql driver requires %v", missing)
		}
	case DriverGCS:
		if c.StorageBucket == "" {
			return errors.New("STORAGE_BUCKET is required for the gcs driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.HeroThreshold < 1 {
		return errors.New("HERO_THRESHOLD must be at least 1")
	}
	return nil
}

func (c *Config) EstimateDelay() time.Duration {
	return time.Duration(c.EstimateDelayMS) * time.Millisecond
}

func (c *Config) LocationTimeout() time.Duration {
	return time.Duration(c.LocationTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
