package database

import (
	"fmt"
	"log/slog"
	"time"

	"pos-backend/internal/config"
	"pos-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table owned by the service, parents first.
func Models() []any {
	return []any{
		&models.Product{},
		&models.Barcode{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.AuditLog{},
	}
}

// Open connects to the configured store and brings the schema up to date.
// The caller owns the returned handle.
func Open(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.DBDebug {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	switch cfg.DBDriver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(SQLiteDSN(cfg.DatabaseDSN)), gormCfg)
	default:
		dsn := NormalizeDSN(cfg.DatabaseDSN)
		for attempt := 1; attempt <= 5; attempt++ {
			db, err = gorm.Open(postgres.Open(dsn), gormCfg)
			if err == nil {
				break
			}
			slog.Warn("database not reachable, retrying", "attempt", attempt, "error", err)
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := Ping(db); err != nil {
		return nil, err
	}

	if cfg.Migrations {
		if err := RunMigrations(NormalizeDSN(cfg.DatabaseDSN)); err != nil {
			return nil, fmt.Errorf("sql migrations: %w", err)
		}
	} else if err := Migrate(db); err != nil {
		return nil, err
	}

	slog.Info("database ready", "driver", cfg.DBDriver, "dsn", MaskDSN(cfg.DatabaseDSN), "sql_migrations", cfg.Migrations)
	return db, nil
}

// Migrate runs gorm AutoMigrate for all service tables.
func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
