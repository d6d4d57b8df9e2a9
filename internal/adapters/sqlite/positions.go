package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"

	"github.com/google/uuid"
)

const positionColumns = `
	id, user_id, pair, side, type, amount, price, total, leverage, stop_price,
	time_in_force, position_side, order_id, status, is_open, opened_at, closed_at,
	duration, profit, created_at, updated_at`

// Create saves a new position, assigning a uuid when pos.ID is empty.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) error {
	query := `INSERT INTO positions (` + positionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if pos.CreatedAt.IsZero() {
		pos.CreatedAt = now
	}
	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx, query, positionArgs(pos)...)
	if err != nil {
		return fmt.Errorf("%w: failed to insert position for user %s: %w", ports.ErrQueryFailed, pos.UserID, err)
	}
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": pos.ID, "userID": pos.UserID, "pair": pos.Pair})
	return nil
}

// Update modifies an existing position based on its ID.
func (r *Repository) Update(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET user_id = ?, pair = ?, side = ?, type = ?, amount = ?, price = ?, total = ?,
	    leverage = ?, stop_price = ?, time_in_force = ?, position_side = ?, order_id = ?,
	    status = ?, is_open = ?, opened_at = ?, closed_at = ?, duration = ?, profit = ?,
	    created_at = ?, updated_at = ?
	WHERE id = ?`

	args := positionArgs(pos)
	args = append(args[1:], pos.ID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to update position ID %s: %w", ports.ErrUpdateFailed, pos.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected for update position ID %s: %w", ports.ErrUpdateFailed, pos.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position ID %s not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"positionID": pos.ID, "status": pos.Status})
	return nil
}

// FindByID retrieves a position by its unique ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = ?`

	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Position not found by ID", map[string]interface{}{"positionID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to query position by ID %s: %w", ports.ErrQueryFailed, id, err)
	}
	return pos, nil
}

// FindByUser retrieves all positions of a user, newest first.
func (r *Repository) FindByUser(ctx context.Context, userID string) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions
	WHERE user_id = ?
	ORDER BY opened_at DESC, rowid DESC`
	return r.queryPositions(ctx, query, userID)
}

// FindOpenByUser retrieves the open positions of a user, newest first.
func (r *Repository) FindOpenByUser(ctx context.Context, userID string) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions
	WHERE user_id = ? AND is_open = 1 AND status IN (?, ?, ?)
	ORDER BY opened_at DESC, rowid DESC`
	return r.queryPositions(ctx, query, openArgs(userID)...)
}

// CountOpenByUser counts the open positions of a user.
func (r *Repository) CountOpenByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM positions WHERE user_id = ? AND is_open = 1 AND status IN (?, ?, ?)`
	var count int
	if err := r.db.QueryRowContext(ctx, query, openArgs(userID)...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count open positions for user %s: %w", ports.ErrQueryFailed, userID, err)
	}
	return count, nil
}

func (r *Repository) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query positions: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan position: %w", ports.ErrQueryFailed, err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating position rows: %w", ports.ErrQueryFailed, err)
	}
	return positions, nil
}

func openArgs(userID string) []interface{} {
	args := []interface{}{userID}
	for _, s := range domain.OpenStatuses {
		args = append(args, string(s))
	}
	return args
}

// positionArgs returns the column values in positionColumns order.
func positionArgs(pos *domain.Position) []interface{} {
	var closedAt sql.NullTime
	if pos.ClosedAt != nil {
		closedAt = sql.NullTime{Time: pos.ClosedAt.UTC(), Valid: true}
	}
	var duration sql.NullInt64
	if pos.Duration != nil {
		duration = sql.NullInt64{Int64: *pos.Duration, Valid: true}
	}
	return []interface{}{
		pos.ID, pos.UserID, pos.Pair, string(pos.Side), string(pos.Type), pos.Amount,
		nullFloat(pos.Price), nullFloat(pos.Total), nullFloat(pos.Leverage), nullFloat(pos.StopPrice),
		string(pos.TimeInForce), string(pos.PositionSide), pos.OrderID, string(pos.Status), pos.IsOpen,
		pos.OpenedAt.UTC(), closedAt, duration, nullFloat(pos.Profit),
		pos.CreatedAt.UTC(), pos.UpdatedAt.UTC(),
	}
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var (
		side, typ, tif, posSide, status     string
		price, total, leverage, stop, profit sql.NullFloat64
		closedAt                             sql.NullTime
		duration                             sql.NullInt64
	)
	err := s.Scan(
		&p.ID, &p.UserID, &p.Pair, &side, &typ, &p.Amount, &price, &total, &leverage, &stop,
		&tif, &posSide, &p.OrderID, &status, &p.IsOpen, &p.OpenedAt, &closedAt,
		&duration, &profit, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Side = domain.OrderSide(side)
	p.Type = domain.OrderType(typ)
	p.TimeInForce = domain.TimeInForce(tif)
	p.PositionSide = domain.PositionSide(posSide)
	p.Status = domain.OrderStatus(status)
	p.Price = floatPtr(price)
	p.Total = floatPtr(total)
	p.Leverage = floatPtr(leverage)
	p.StopPrice = floatPtr(stop)
	p.Profit = floatPtr(profit)
	if closedAt.Valid {
		t := closedAt.Time
		p.ClosedAt = &t
	}
	if duration.Valid {
		d := duration.Int64
		p.Duration = &d
	}
	return p, nil
}
