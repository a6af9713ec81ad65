package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"tripcore/internal/repository"
)

// NewRepositories returns repositories that run each call on its own connection.
func NewRepositories(db *sql.DB) repository.Repositories {
	return repository.Repositories{
		Trips:   NewTripRepository(db),
		Drivers: NewDriverRepository(db),
		Outbox:  NewOutboxRepository(db),
	}
}

func newTxRepositories(tx *sql.Tx) repository.Repositories {
	return repository.Repositories{
		Trips:   NewTripRepositoryWithTx(tx),
		Drivers: NewDriverRepositoryWithTx(tx),
		Outbox:  NewOutboxRepositoryWithTx(tx),
	}
}

// Transactor implements repository.Transactor over a *sql.DB.
type Transactor struct {
	db *sql.DB
}

// NewTransactor creates a new Transactor.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

var _ repository.Transactor = (*Transactor)(nil)

// WithinTx runs fn in a transaction, committing on success.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, newTxRepositories(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
