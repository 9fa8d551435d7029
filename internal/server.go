package internal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cmdb-api/internal/auth"
	"cmdb-api/internal/config"
	"cmdb-api/internal/handlers"
	"cmdb-api/internal/models"
	"cmdb-api/internal/reconcile"
)

// Core is the reconciliation core the HTTP layer presents.
type Core interface {
	handlers.Stager
	IngestReport(ctx context.Context, payload []byte) (*reconcile.IngestResult, error)
	SubmitUpdateReport(ctx context.Context, assetID int64, payload []byte) (bool, error)
	ListPendingApprovals(ctx context.Context, limit, offset int) ([]models.QuarantineListItem, int, error)
	Approve(ctx context.Context, quarantineID, approver int64) (*models.Asset, error)
	ApproveMany(ctx context.Context, ids []int64, approver int64) []reconcile.ApprovalResult
	GetAsset(ctx context.Context, id int64) (*models.AssetGraph, error)
	ListEvents(ctx context.Context, f models.EventFilter) ([]models.EventLog, int, error)
	ListManufacturers(ctx context.Context) ([]models.Manufacturer, error)
}

type Server struct {
	Router     *chi.Mux
	Core       Core
	JWTManager *auth.JWTManager
	Metrics    *Metrics

	guard          *auth.Guard
	logger         *zap.Logger
	maxReportBytes int64
	imports        *handlers.ImportsHandler
}

// NewServer wires the routes. metrics may be nil when metrics are disabled.
func NewServer(core Core, cfg *config.Config, logger *zap.Logger, metrics *Metrics) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("JWT configuration validation failed: %w", err)
	}

	s := &Server{
		Router:         chi.NewRouter(),
		Core:           core,
		JWTManager:     jwtManager,
		Metrics:        metrics,
		logger:         logger.Named("http"),
		maxReportBytes: cfg.MaxReportBytes,
		imports:        handlers.NewImportsHandler(core, cfg.ImportMapping, logger),
	}

	s.guard = auth.NewGuard(jwtManager, s.writeError)
	s.Router.Use(RequestIDMiddleware, s.accessLog)

	// Mount metrics before any route so the middleware sees every route
	if cfg.EnableMetrics && s.Metrics != nil {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	s.Router.Group(func(r chi.Router) {
		r.Use(s.guard.Middleware)
		s.mountProtectedRoutes(r)
	})

	return s, nil
}

// mountProtectedRoutes mounts all routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	// Agent intake
	r.Group(func(r chi.Router) {
		r.Use(s.guard.Require(auth.RoleAgent))
		r.Post("/reports", s.ingestReport)
		r.Post("/assets/{id}/reports", s.submitUpdateReport)
	})

	// Operator review
	r.Group(func(r chi.Router) {
		r.Use(s.guard.Require(auth.RoleOperator))
		r.Get("/approvals", s.listApprovals)
		r.Post("/approvals/approve", s.approveMany)
		r.Post("/approvals/{id}/approve", s.approve)
		r.Post("/imports/excel", s.imports.UploadExcel)
	})

	// Read-only, any authenticated role
	r.Get("/assets/{id}", s.getAsset)
	r.Get("/events", s.listEvents)
	r.Get("/manufacturers", s.listManufacturers)
}
