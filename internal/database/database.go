// Package database is the transactional store for the journal core. Every
// entity gets Params-struct query methods in the style of the rest of the
// codebase; mutating managers run their whole operation inside WithTx so that
// any failure rolls back all partial writes.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is the subset of pgx shared by a pool and a transaction, letting the
// same query methods run inside or outside a unit of work.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Database struct {
	Pool *pgxpool.Pool
	conn Conn
}

func NewDatabase() Database {
	return Database{}
}

func (db *Database) Connect(ctx context.Context, connString string) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("database: unable to parse configuration: %w", err)
	}

	db.Pool, err = pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return fmt.Errorf("database: unable to create pool: %w", err)
	}
	db.conn = db.Pool

	return nil
}

func (db *Database) Close() {
	db.Pool.Close()
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// WithTx runs fn against a transaction-bound copy of the database. fn
// returning nil commits; any error rolls everything back and is returned
// unchanged so callers can still discriminate the error kind.
func (db *Database) WithTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database: begin transaction: %w", err)
	}

	txDB := &Database{Pool: db.Pool, conn: tx}
	if err := fn(txDB); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("database: rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("database: commit transaction: %w", err)
	}
	return nil
}

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrUserGroupNotFound   = errors.New("user group membership not found")
	ErrProjectNotFound     = errors.New("project not found")
	ErrProjectItemNotFound = errors.New("project item not found")
	ErrContentNotFound     = errors.New("content not found")
	ErrRevisionNotFound    = errors.New("revision not found")
	ErrItemShareNotFound   = errors.New("item share not found")
	ErrPublicLinkNotFound  = errors.New("public link not found")
)
