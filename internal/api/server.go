// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/reward-service/internal/logging"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/types"
)

// Service interfaces for dependency injection and testing

// RewardServiceInterface defines the interface for reward claim operations
type RewardServiceInterface interface {
	GrantReward(ctx context.Context, rawAccountID string, rewardID types.RewardID) (*models.RewardReceipt, error)
}

// StatusServiceInterface defines the interface for reward status listings
type StatusServiceInterface interface {
	ListRewardStatus(ctx context.Context, rawAccountID string) ([]*models.RewardStatus, error)
}

// Pinger checks reachability of a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	rewardService RewardServiceInterface
	statusService StatusServiceInterface
	claimLimiter  *ClaimRateLimiter
	ledger        Pinger
	config        *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	ClaimsPerMinute int
	ClaimBurst      int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	rewardService RewardServiceInterface,
	statusService StatusServiceInterface,
	ledger Pinger,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		rewardService: rewardService,
		statusService: statusService,
		claimLimiter:  NewClaimRateLimiter(config.ClaimsPerMinute, config.ClaimBurst),
		ledger:        ledger,
		config:        config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API v1 routes
	api := s.router.PathPrefix("/api").Subrouter()

	// Reward endpoints
	api.HandleFunc("/rewards/claim", s.handleClaimReward).Methods("POST")
	api.HandleFunc("/accounts/{accountId}/rewards", s.handleListRewards).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	if s.ledger != nil {
		if err := s.ledger.Ping(r.Context()); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, httpStatus, map[string]string{
		"status":  status,
		"service": "reward-service",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
