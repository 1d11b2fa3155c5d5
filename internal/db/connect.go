// Package db opens GORM connections for the Bedel backend.
package db

import (
	"fmt"

	"github.com/ovalle/bedel/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN from database settings.
func DSN(user, host string, port int, database string) string {
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4", user, host, port, database)
}

// Connect opens a GORM connection according to the configured driver.
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.Driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.Path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", cfg.Path, err)
		}
		return db, nil
	case "mysql":
		dsn := DSN(cfg.User, cfg.Host, cfg.Port, cfg.Database)
		db, err := gorm.Open(mysql.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}
