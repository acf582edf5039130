package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"braintree-checkout-api/logger"
)

const (
	queryTimeout = 10 * time.Second
	pingTimeout  = 5 * time.Second
	pingAttempts = 3
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	DBName   string
}

// DSN builds the go-sql-driver data source name.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.DBName)
}

type Connection struct {
	db *sql.DB
}

func NewConnection(config DatabaseConfig) (*Connection, error) {
	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	conn := &Connection{db: db}

	if err := conn.ensureConnection(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return conn, nil
}

// NewConnectionFromDB wraps an already opened pool.
func NewConnectionFromDB(db *sql.DB) *Connection {
	return &Connection{db: db}
}

func (c *Connection) ensureConnection(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = c.db.PingContext(pingCtx)
		cancel()

		if err == nil {
			return nil
		}

		logger.Warn(ctx, "Database ping failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", pingAttempts),
			zap.Error(err))

		if attempt < pingAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("failed to establish database connection after %d attempts: %w", pingAttempts, err)
}

func (c *Connection) Close() error {
	return c.db.Close()
}

// Ping checks the pool once; used by the health endpoint.
func (c *Connection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.db.PingContext(pingCtx)
}

func (c *Connection) GetDB() *sql.DB {
	return c.db
}

func (c *Connection) BeginTransaction(ctx context.Context) (*Transaction, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx}, nil
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func (c *Connection) withTx(ctx context.Context, fn func(tx *Transaction) error) error {
	tx, err := c.BeginTransaction(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error(ctx, "Failed to rollback transaction", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
