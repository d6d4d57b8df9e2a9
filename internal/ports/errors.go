package ports

import (
	"errors"

	"forexBot/internal/domain"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrValidation         = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("missing or invalid credentials")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Bot Control Errors
	ErrAlreadyRunning = errors.New("bot is already running")
	ErrNotRunning     = errors.New("bot is not running")

	// Trading Errors
	ErrInsufficientBalance = errors.New("trade amount is not positive")
	ErrPositionClosed      = domain.ErrAlreadyClosed

	// Provider Errors
	ErrNetwork           = errors.New("market data provider unreachable")
	ErrDataFormat        = errors.New("unexpected market data format")
	ErrRateLimited       = errors.New("API rate limit exceeded")
	ErrPredictionService = errors.New("prediction service failed")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
	ErrDeleteFailed   = errors.New("database delete failed")
)
