package persist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DB wraps a database/sql handle over SQLite or a pgx pool.
type DB struct {
	SQL    *sql.DB
	Driver string

	pool *pgxpool.Pool // nil for SQLite
	log  *zap.Logger
}

// Open connects to the journal database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, log *zap.Logger) (*DB, error) {
	db := &DB{Driver: driver, log: log}

	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create journal directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		conn.SetMaxOpenConns(1)
		db.SQL = conn

	case DriverPostgres:
		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to db: %w", err)
		}
		db.pool = pool
		db.SQL = stdlib.OpenDBFromPool(pool)

	default:
		return nil, fmt.Errorf("unknown journal driver %q", driver)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.SQL.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return db, nil
}

func (db *DB) Close() {
	_ = db.SQL.Close()
	if db.pool != nil {
		db.pool.Close()
	}
}

// arg returns the n-th (1-based) bind placeholder for the driver.
func (db *DB) arg(n int) string {
	if db.Driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
