package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forexBot/internal/domain"
	"forexBot/internal/ports"
)

// AccountConfig holds parameters of the position surface.
type AccountConfig struct {
	Symbol              string
	HistorySize         int
	MinPredictionPoints int
}

// OpenPositionRequest carries the fields of a manual position.
type OpenPositionRequest struct {
	Pair         string
	Side         domain.OrderSide
	Type         domain.OrderType
	Amount       float64
	Price        *float64
	Leverage     *float64
	StopPrice    *float64
	TimeInForce  domain.TimeInForce
	PositionSide domain.PositionSide
	OrderID      string
}

// AccountService serves balance, position and market queries for a user.
type AccountService struct {
	cfg       AccountConfig
	logger    ports.Logger
	ledger    ports.PositionLedger
	accounts  ports.AccountStore
	market    ports.MarketDataClient
	predictor ports.PredictionClient
	locks     *UserLocks
	now       func() time.Time
}

// NewAccountService creates the position surface service.
func NewAccountService(
	cfg AccountConfig,
	logger ports.Logger,
	ledger ports.PositionLedger,
	accounts ports.AccountStore,
	market ports.MarketDataClient,
	predictor ports.PredictionClient,
	locks *UserLocks,
) (*AccountService, error) {
	if logger == nil || ledger == nil || accounts == nil || market == nil || predictor == nil || locks == nil {
		return nil, fmt.Errorf("missing required dependencies for AccountService")
	}
	return &AccountService{
		cfg:       cfg,
		logger:    logger,
		ledger:    ledger,
		accounts:  accounts,
		market:    market,
		predictor: predictor,
		locks:     locks,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// GetBalance returns the account of userID.
func (s *AccountService) GetBalance(ctx context.Context, userID string) (*domain.Account, error) {
	acc, err := s.accounts.FindAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("account %s: %w", userID, ports.ErrNotFound)
	}
	return acc, nil
}

// ListActivities returns every position of userID, newest first.
func (s *AccountService) ListActivities(ctx context.Context, userID string) ([]*domain.Position, error) {
	return s.ledger.FindByUser(ctx, userID)
}

// ListOpenPositions returns the open positions of userID, newest first.
func (s *AccountService) ListOpenPositions(ctx context.Context, userID string) ([]*domain.Position, error) {
	return s.ledger.FindOpenByUser(ctx, userID)
}

// OpenPosition records a manual position. The balance is not touched.
func (s *AccountService) OpenPosition(ctx context.Context, userID string, req OpenPositionRequest) (*domain.Position, error) {
	if err := validateOpenRequest(&req); err != nil {
		return nil, err
	}

	now := s.now()
	pos := &domain.Position{
		UserID:       userID,
		Pair:         req.Pair,
		Side:         req.Side,
		Type:         req.Type,
		Amount:       req.Amount,
		Price:        req.Price,
		Leverage:     req.Leverage,
		StopPrice:    req.StopPrice,
		TimeInForce:  req.TimeInForce,
		PositionSide: req.PositionSide,
		OrderID:      req.OrderID,
		Status:       domain.StatusNew,
		IsOpen:       true,
		OpenedAt:     now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Price != nil {
		total := *req.Price * req.Amount
		pos.Total = &total
	}

	if err := s.ledger.Create(ctx, pos); err != nil {
		return nil, fmt.Errorf("opening position: %w", err)
	}
	s.logger.Info(ctx, "Manual position opened", map[string]interface{}{
		"userID": userID, "positionID": pos.ID, "pair": pos.Pair, "side": pos.Side, "amount": pos.Amount,
	})
	return pos, nil
}

func validateOpenRequest(req *OpenPositionRequest) error {
	var problems []string
	req.Pair = strings.TrimSpace(req.Pair)
	if req.Pair == "" {
		problems = append(problems, "pair is required")
	}
	if !req.Side.Valid() {
		problems = append(problems, fmt.Sprintf("side must be BUY or SELL, got %q", req.Side))
	}
	if !req.Type.Valid() {
		problems = append(problems, fmt.Sprintf("type must be MARKET, LIMIT, STOP or STOP_LIMIT, got %q", req.Type))
	}
	if req.Amount <= 0 {
		problems = append(problems, "amount must be positive")
	}
	if req.TimeInForce == "" {
		req.TimeInForce = domain.GoodTillCancel
	} else if !req.TimeInForce.Valid() {
		problems = append(problems, fmt.Sprintf("timeInForce must be GTC, IOC or FOK, got %q", req.TimeInForce))
	}
	if req.PositionSide == "" {
		req.PositionSide = domain.PositionBoth
	} else if !req.PositionSide.Valid() {
		problems = append(problems, fmt.Sprintf("positionSide must be LONG, SHORT or BOTH, got %q", req.PositionSide))
	}
	if req.Price != nil && *req.Price <= 0 {
		problems = append(problems, "price must be positive")
	}
	if req.Leverage != nil && *req.Leverage <= 0 {
		problems = append(problems, "leverage must be positive")
	}
	if req.StopPrice != nil && *req.StopPrice <= 0 {
		problems = append(problems, "stopPrice must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// ClosePosition closes an open position owned by userID. No profit is booked.
func (s *AccountService) ClosePosition(ctx context.Context, userID, positionID string) (*domain.Position, error) {
	if strings.TrimSpace(positionID) == "" {
		return nil, fmt.Errorf("%w: positionId is required", ports.ErrValidation)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	pos, err := s.ledger.FindByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if pos == nil || pos.UserID != userID || !pos.IsOpen {
		return nil, fmt.Errorf("open position %s: %w", positionID, ports.ErrNotFound)
	}

	if err := pos.Close(domain.StatusCanceled, s.now()); err != nil {
		return nil, fmt.Errorf("closing position %s: %w", positionID, err)
	}
	if err := s.ledger.Update(ctx, pos); err != nil {
		return nil, fmt.Errorf("saving position %s: %w", positionID, err)
	}
	s.logger.Info(ctx, "Manual position closed", map[string]interface{}{"userID": userID, "positionID": positionID})
	return pos, nil
}

// Predict forwards prices to the prediction service once enough points are supplied.
func (s *AccountService) Predict(ctx context.Context, prices []float64) (*domain.Prediction, error) {
	if len(prices) < s.cfg.MinPredictionPoints {
		return nil, fmt.Errorf("%w: at least %d prices are required, got %d", ports.ErrValidation, s.cfg.MinPredictionPoints, len(prices))
	}
	return s.predictor.Predict(ctx, prices)
}

// MarketSeries returns chart data for the configured symbol.
func (s *AccountService) MarketSeries(ctx context.Context) (*domain.PriceSeries, error) {
	return s.market.FetchSeries(ctx, s.cfg.Symbol, s.cfg.HistorySize)
}
