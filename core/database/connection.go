package database

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-admin/core/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Migrator is implemented by every repository that owns tables.
type Migrator interface {
	InitSchema(ctx context.Context) error
}

// NewDatabase initializes a database connection based on the provided configuration.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Database.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Database.Host,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
			cfg.Database.Port,
		)
		dialector = postgres.Open(dsn)
	case "sqlite", "": // Default to SQLite
		dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", cfg.Database.Name)
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	logLevel := logger.Warn
	if cfg.App.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database (%s): %w", cfg.Database.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	if cfg.Database.Driver == "sqlite" || cfg.Database.Driver == "" {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// NewInMemory opens a private in-memory SQLite database.
func NewInMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	// One connection keeps every statement on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates the tables owned by each repository.
func Migrate(ctx context.Context, repos ...Migrator) error {
	for _, r := range repos {
		if err := r.InitSchema(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
