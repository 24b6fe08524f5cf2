package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/xo/dburl"

	"github.com/iliyamo/conference-cms/internal/config"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 25
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

// DSN builds the go-sql-driver DSN from either cfg.DatabaseURL or the
// discrete DB_* settings.  parseTime maps DATETIME to time.Time, loc=UTC
// keeps times consistent and clientFoundRows makes RowsAffected count
// matched rows so an UPDATE with unchanged values is not mistaken for a
// missing row.
func DSN(cfg config.Config) (string, error) {
	var mc *mysql.Config
	if cfg.DatabaseURL != "" {
		u, err := dburl.Parse(cfg.DatabaseURL)
		if err != nil {
			return "", fmt.Errorf("parse DATABASE_URL: %w", err)
		}
		if u.Driver != "mysql" {
			return "", fmt.Errorf("unsupported database driver %q", u.Driver)
		}
		mc, err = mysql.ParseDSN(u.DSN)
		if err != nil {
			return "", fmt.Errorf("parse DATABASE_URL: %w", err)
		}
	} else {
		mc = mysql.NewConfig()
		mc.User = cfg.DBUser
		mc.Passwd = cfg.DBPass
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
		mc.DBName = cfg.DBName
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	mc.Params["charset"] = "utf8mb4"
	return mc.FormatDSN(), nil
}

// Open connects to MySQL and verifies the connection.
func Open(cfg config.Config) (*sql.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings; excess requests queue for a free connection.
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
