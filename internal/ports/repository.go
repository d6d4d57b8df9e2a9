package ports

import (
	"context"

	"forexBot/internal/domain"

	"github.com/shopspring/decimal"
)

// PositionLedger defines the interface for storing and retrieving positions.
type PositionLedger interface {
	// Create saves a new position, assigning its ID when empty.
	Create(ctx context.Context, pos *domain.Position) error
	// Update modifies an existing position.
	Update(ctx context.Context, pos *domain.Position) error
	// FindByID retrieves a position by its unique ID.
	// Returns nil, nil if not found.
	FindByID(ctx context.Context, id string) (*domain.Position, error)
	// FindByUser retrieves every position of a user, newest first.
	FindByUser(ctx context.Context, userID string) ([]*domain.Position, error)
	// FindOpenByUser retrieves the open positions of a user, newest first.
	FindOpenByUser(ctx context.Context, userID string) ([]*domain.Position, error)
	// CountOpenByUser counts the open positions of a user.
	CountOpenByUser(ctx context.Context, userID string) (int, error)
}

// AccountStore defines the interface for user balance records.
type AccountStore interface {
	// CreateAccount saves a new account. Returns ErrDuplicateEntry-wrapped errors on conflicts.
	CreateAccount(ctx context.Context, acc *domain.Account) error
	// FindAccount retrieves an account by ID.
	// Returns nil, nil if not found.
	FindAccount(ctx context.Context, id string) (*domain.Account, error)
	// AdjustBalance adds delta (possibly negative) to the stored balance and returns the new balance.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
}

// SettlementStore persists settlement due-times so they survive a restart.
type SettlementStore interface {
	SavePendingSettlement(ctx context.Context, s *domain.PendingSettlement) error
	DeletePendingSettlement(ctx context.Context, positionID string) error
	ListPendingSettlements(ctx context.Context) ([]*domain.PendingSettlement, error)
}
