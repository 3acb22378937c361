package database

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/thereayou/whisper/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSQLitePath = "whisper.db"

// Open connects to postgres for regular DSNs and to sqlite for empty,
// "sqlite://" or "file:" DSNs.
func Open(dsn string) (*Database, error) {
	dialector, isSQLite := dialectorFor(dsn)

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if isSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		// sqlite serializes writers; one connection keeps transactions from
		// failing with "database is locked" and keeps in-memory dbs alive.
		sqlDB.SetMaxOpenConns(1)
	}

	return &Database{db: db}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool) {
	switch {
	case dsn == "":
		return sqlite.Open(defaultSQLitePath), true
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), true
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(dsn), true
	default:
		return postgres.Open(dsn), false
	}
}

func (d *Database) Migrate() error {
	slog.Info("running database migrations")

	err := d.db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatMember{},
		&models.Media{},
		&models.Message{},
		&models.ChatRequest{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
