// Package database opens the GORM connection for the configured driver:
// sqlite for development and tests, postgres, mysql or sqlserver in
// production.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/foodie/config"
)

// DB is the connection opened by Connect.
var DB *gorm.DB

var ErrNotConnected = errors.New("database: not connected")

// Pool sizes the connection pool of server databases. sqlite always gets
// a single connection: it serialises writers anyway, and ":memory:" lives
// only as long as its connection.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

func PoolFromConfig() Pool {
	return Pool{
		MaxOpen:     config.GetInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdle:     config.GetInt("DB_MAX_IDLE_CONNS", 10),
		MaxLifetime: config.GetDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		MaxIdleTime: config.GetDuration("DB_CONN_MAX_IDLE_TIME", 2*time.Minute),
	}
}

func Connect() error {
	db, err := OpenWith(config.DatabaseDriver(), config.DatabaseDSN(), PoolFromConfig())
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects with the default pool without touching DB.
func Open(driver, dsn string) (*gorm.DB, error) {
	return OpenWith(driver, dsn, PoolFromConfig())
}

func OpenWith(driver, dsn string, pool Pool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
		// one connection that never expires, or :memory: databases vanish
		pool = Pool{MaxOpen: 1, MaxIdle: 1}
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlserver":
		dialector = sqlserver.Open(dsn)
	default:
		return nil, fmt.Errorf("database: unsupported DB_DRIVER %q (want sqlite, postgres, mysql or sqlserver)", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newQueryLogger(slowQueryThreshold())})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database: ping %s: %w", driver, err)
	}
	return db, nil
}

// Ping is the readiness probe of the health endpoints.
func Ping(ctx context.Context) error {
	if DB == nil {
		return ErrNotConnected
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func slowQueryThreshold() time.Duration {
	return time.Duration(config.GetInt("DB_SLOW_QUERY_MS", 200)) * time.Millisecond
}
