package db

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mealmitra/mealmitra-backend/internal/config"
	"github.com/mealmitra/mealmitra-backend/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func BuildDSN(cfg *config.Config) string {
	var addr string

	// Prefer Cloud SQL unix socket when INSTANCE_CONNECTION_NAME is provided.
	switch {
	case cfg.InstanceConnectionName != "":
		addr = fmt.Sprintf("unix(/cloudsql/%s)", cfg.InstanceConnectionName)
	case strings.HasPrefix(cfg.DBHost, "tcp("), strings.HasPrefix(cfg.DBHost, "unix("):
		addr = cfg.DBHost
	case strings.HasPrefix(cfg.DBHost, "/"):
		addr = fmt.Sprintf("unix(%s)", cfg.DBHost)
	default:
		addr = fmt.Sprintf("tcp(%s:%s)", cfg.DBHost, cfg.DBPort)
	}

	return fmt.Sprintf("%s:%s@%s/%s?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DBUser, cfg.DBPassword, addr, cfg.DBName)
}

// Connect opens the pool and waits until the server answers a ping,
// retrying with a fixed backoff until ctx is done.
func Connect(ctx context.Context, cfg *config.Config, retryEvery time.Duration) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Warn),
	}
	db, err := gorm.Open(mysql.Open(BuildDSN(cfg)), gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)

	for attempt := 1; ; attempt++ {
		err := sqlDB.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		log.Printf("[db] ping attempt=%d err=%v", attempt, err)
		select {
		case <-ctx.Done():
			_ = sqlDB.Close()
			return nil, fmt.Errorf("db not reachable: %w", err)
		case <-time.After(retryEvery):
		}
	}
}

// Migrate creates the snapshot table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Blob{})
}
