package datastore

import (
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"

	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
)

// MySQLDSN normalizes dsn so timestamps round trip as time.Time in the
// local zone, the same zone the CSV store writes.
func MySQLDSN(dsn string) (*mysqldriver.Config, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid mysql dsn: %w", err)).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	// The driver already defaults to utf8mb4 and keeps any charset given
	// in dsn.
	cfg.ParseTime = true
	cfg.Loc = time.Local
	return cfg, nil
}

// OpenMySQLMirror connects to the MySQL database described by dsn.
func OpenMySQLMirror(dsn string) (*SQLMirror, error) {
	cfg, err := MySQLDSN(dsn)
	if err != nil {
		return nil, err
	}

	m, err := openMirror(mysql.Open(cfg.FormatDSN()), "mysql", map[string]any{"addr": cfg.Addr, "database": cfg.DBName})
	if err != nil {
		return nil, err
	}
	GetLogger().Info("mysql mirror opened",
		logger.String("addr", cfg.Addr),
		logger.String("database", cfg.DBName))
	return m, nil
}
