// Package server exposes the bot control and account surfaces over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"forexBot/internal/app"
	"forexBot/internal/domain"
	"forexBot/internal/ports"
)

// BotController starts, stops and reports a user's bot.
type BotController interface {
	Start(ctx context.Context, userID string) (app.BotStatus, error)
	Stop(ctx context.Context, userID string) error
	Status(userID string) app.BotStatus
}

// AccountAPI serves the balance, position and market queries of a user.
type AccountAPI interface {
	GetBalance(ctx context.Context, userID string) (*domain.Account, error)
	ListActivities(ctx context.Context, userID string) ([]*domain.Position, error)
	ListOpenPositions(ctx context.Context, userID string) ([]*domain.Position, error)
	OpenPosition(ctx context.Context, userID string, req app.OpenPositionRequest) (*domain.Position, error)
	ClosePosition(ctx context.Context, userID, positionID string) (*domain.Position, error)
	Predict(ctx context.Context, prices []float64) (*domain.Prediction, error)
	MarketSeries(ctx context.Context) (*domain.PriceSeries, error)
}

// Config holds the HTTP server configuration.
type Config struct {
	Addr string
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     ports.Logger
}

// New creates a Server with every route registered.
func New(cfg Config, bots BotController, accounts AccountAPI, verifier ports.TokenVerifier, logger ports.Logger) (*Server, error) {
	if bots == nil || accounts == nil || verifier == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Server")
	}

	h := &handlers{bots: bots, accounts: accounts, logger: logger}
	authed := requireUser(verifier, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.health)

	mux.Handle("POST /bot/start", authed(http.HandlerFunc(h.startBot)))
	mux.Handle("POST /bot/stop", authed(http.HandlerFunc(h.stopBot)))
	mux.Handle("GET /bot/status", authed(http.HandlerFunc(h.botStatus)))

	mux.Handle("GET /account/balance", authed(http.HandlerFunc(h.balance)))
	mux.Handle("GET /account/activities", authed(http.HandlerFunc(h.activities)))
	mux.Handle("GET /account/open-positions", authed(http.HandlerFunc(h.openPositions)))
	mux.Handle("POST /account/open-position", authed(http.HandlerFunc(h.openPosition)))
	mux.Handle("POST /account/close-position", authed(http.HandlerFunc(h.closePosition)))
	mux.Handle("POST /account/predict", authed(http.HandlerFunc(h.predict)))
	mux.Handle("GET /account/market-data", authed(http.HandlerFunc(h.marketData)))

	var handler http.Handler = mux
	handler = requestLogging(logger)(handler)
	handler = cors(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		handler: handler,
		logger:  logger,
	}, nil
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "HTTP server starting", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "HTTP server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
