// Package repository is the SQL-backed persistence boundary the
// collaboration core's components are built against. BaseRepository wraps
// the common NamedExec/Get/Select/Transaction operations every concrete
// repository composes.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/logx"
)

// ErrNotFound is returned by GetContext-style lookups on sql.ErrNoRows so
// callers can map it to the NotFound error kind without depending on
// database/sql directly.
var ErrNotFound = errors.New("repository: record not found")

// BaseRepository provides the common, reusable database operations every
// concrete repository composes.
type BaseRepository struct {
	DB *sqlx.DB
}

func NewBaseRepository(db *sqlx.DB) *BaseRepository {
	return &BaseRepository{DB: db}
}

// Get retrieves a single row into dest, translating sql.ErrNoRows to
// ErrNotFound.
func (r *BaseRepository) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := r.DB.GetContext(ctx, dest, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		logx.WithContext(ctx).Errorf("repository: get failed: %v", err)
		return fmt.Errorf("repository: get: %w", err)
	}
	return nil
}

// Select retrieves multiple rows into dest.
func (r *BaseRepository) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := r.DB.SelectContext(ctx, dest, query, args...); err != nil {
		logx.WithContext(ctx).Errorf("repository: select failed: %v", err)
		return fmt.Errorf("repository: select: %w", err)
	}
	return nil
}

// NamedExec runs an INSERT/UPDATE against a struct or map of named params,
// outside of any caller-managed transaction.
func (r *BaseRepository) NamedExec(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	res, err := r.DB.NamedExecContext(ctx, query, arg)
	if err != nil {
		logx.WithContext(ctx).Errorf("repository: named exec failed: %v", err)
		return nil, fmt.Errorf("repository: exec: %w", err)
	}
	return res, nil
}

// Exec runs a positional-parameter statement (typically DELETE).
func (r *BaseRepository) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		logx.WithContext(ctx).Errorf("repository: exec failed: %v", err)
		return nil, fmt.Errorf("repository: exec: %w", err)
	}
	return res, nil
}

// Transaction runs fn inside a SQL transaction, with any deadline applied
// by the caller's context. On panic or non-nil error the transaction is
// rolled back; otherwise it is committed. This is the substrate
// internal/coordinator builds commit-before-publish on top of.
func (r *BaseRepository) Transaction(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logx.WithContext(ctx).Errorf("repository: rollback failed: %v", rbErr)
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
