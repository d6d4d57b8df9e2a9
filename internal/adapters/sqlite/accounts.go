package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"

	"github.com/shopspring/decimal"
)

// CreateAccount saves a new account record.
func (r *Repository) CreateAccount(ctx context.Context, acc *domain.Account) error {
	const query = `
	INSERT INTO accounts (id, username, balance, currency, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query, acc.ID, acc.Username, acc.Balance.String(), acc.Currency, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("account %s: %w", acc.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("%w: failed to insert account %s: %w", ports.ErrQueryFailed, acc.ID, err)
	}
	r.logger.Info(ctx, "Account created", map[string]interface{}{"accountID": acc.ID, "balance": acc.Balance.String()})
	return nil
}

// FindAccount retrieves an account by ID. Returns nil, nil if not found.
func (r *Repository) FindAccount(ctx context.Context, id string) (*domain.Account, error) {
	const query = `SELECT id, username, balance, currency, created_at, updated_at FROM accounts WHERE id = ?`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query account %s: %w", ports.ErrQueryFailed, id, err)
	}
	return acc, nil
}

// AdjustBalance adds delta to the balance inside a transaction and returns the new balance.
func (r *Repository) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to begin balance transaction: %w", ports.ErrUpdateFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("account %s: %w", id, ports.ErrNotFound)
		}
		return decimal.Zero, fmt.Errorf("%w: failed to read balance of %s: %w", ports.ErrQueryFailed, id, err)
	}
	current, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: stored balance %q of %s is not a decimal: %w", ports.ErrQueryFailed, raw, id, err)
	}

	updated := current.Add(delta)
	_, err = tx.ExecContext(ctx, `UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`, updated.String(), time.Now().UTC(), id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to write balance of %s: %w", ports.ErrUpdateFailed, id, err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to commit balance of %s: %w", ports.ErrUpdateFailed, id, err)
	}

	r.logger.Debug(ctx, "Balance adjusted", map[string]interface{}{"accountID": id, "delta": delta.String(), "balance": updated.String()})
	return updated, nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	acc := &domain.Account{}
	var balance string
	if err := s.Scan(&acc.ID, &acc.Username, &balance, &acc.Currency, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return nil, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("stored balance %q is not a decimal: %w", balance, err)
	}
	acc.Balance = b
	return acc, nil
}
