package main

import (
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type db struct {
	cfg DBConfig
}

func NewDB(cfg *DBConfig) *db {
	return &db{cfg: *cfg}
}

// DSN returns data source name for the configured driver. An explicit DSN in
// config takes precedence; for MySQL it is parsed and gets clientFoundRows
// set like a built one.
func (d *db) DSN() (string, error) {
	if d.cfg.DSN != "" {
		if d.cfg.Driver != "mysql" {
			return d.cfg.DSN, nil
		}
		c, err := mysql.ParseDSN(d.cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("error with mysql.ParseDSN in db.DSN: %w", err)
		}
		c.ClientFoundRows = true
		return c.FormatDSN(), nil
	}
	switch d.cfg.Driver {
	case "mysql":
		c := mysql.NewConfig()
		c.User = d.cfg.User
		c.Passwd = d.cfg.Password
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(d.cfg.Host, d.cfg.Port)
		c.DBName = d.cfg.Name
		// UPDATE has to report matched rows, not changed ones, or an update
		// writing the same values would look like a missing row
		c.ClientFoundRows = true
		c.Params = map[string]string{"charset": "utf8mb4"}
		return c.FormatDSN(), nil
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", d.cfg.Host, d.cfg.Port, d.cfg.User, d.cfg.Password, d.cfg.Name, d.cfg.SSLMode), nil
	case "sqlite3":
		return "file:" + d.cfg.Name + "?_foreign_keys=on&_busy_timeout=5000", nil
	}
	return "", fmt.Errorf("unsupported driver: %s", d.cfg.Driver)
}

func (d *db) GetConn() (*sql.DB, error) {
	dsn, err := d.DSN()
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(d.cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error with sql.Open in db.GetConn: %w", err)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(d.cfg.ConnMaxLifetimeSec) * time.Second)
	sqlDB.SetMaxOpenConns(d.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(d.cfg.MaxIdleConns)

	err = sqlDB.Ping()
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error with sqlDB.Ping in db.GetConn: %w", err)
	}

	return sqlDB, nil
}
