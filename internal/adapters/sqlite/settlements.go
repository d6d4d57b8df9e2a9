package sqlite

import (
	"context"
	"fmt"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
)

// SavePendingSettlement records (or replaces) the due-time of a position's settlement.
func (r *Repository) SavePendingSettlement(ctx context.Context, s *domain.PendingSettlement) error {
	const query = `
	INSERT INTO pending_settlements (position_id, user_id, due_at, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(position_id) DO UPDATE SET due_at = excluded.due_at`

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, query, s.PositionID, s.UserID, s.DueAt.UTC(), s.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to save pending settlement for %s: %w", ports.ErrQueryFailed, s.PositionID, err)
	}
	return nil
}

// DeletePendingSettlement removes the record for positionID. Missing records are not an error.
func (r *Repository) DeletePendingSettlement(ctx context.Context, positionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_settlements WHERE position_id = ?`, positionID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete pending settlement for %s: %w", ports.ErrDeleteFailed, positionID, err)
	}
	return nil
}

// ListPendingSettlements returns every pending record, earliest due first.
func (r *Repository) ListPendingSettlements(ctx context.Context) ([]*domain.PendingSettlement, error) {
	const query = `SELECT position_id, user_id, due_at, created_at FROM pending_settlements ORDER BY due_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query pending settlements: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	pending := make([]*domain.PendingSettlement, 0)
	for rows.Next() {
		s := &domain.PendingSettlement{}
		if err := rows.Scan(&s.PositionID, &s.UserID, &s.DueAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan pending settlement: %w", ports.ErrQueryFailed, err)
		}
		pending = append(pending, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating pending settlements: %w", ports.ErrQueryFailed, err)
	}
	return pending, nil
}
