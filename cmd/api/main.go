package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cmdb-api/internal"
	"cmdb-api/internal/config"
	"cmdb-api/internal/logger"
	"cmdb-api/internal/reconcile"
	"cmdb-api/internal/store"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	zl, err := logger.New(cfg.Logger())
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer zl.Sync()

	if cfg.DatabaseDSN == "" {
		zl.Fatal("DB_DSN environment variable is required")
	}
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		zl.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		zl.Fatal("failed to reach database", zap.Error(err))
	}

	metrics := internal.NewMetrics()
	engine := reconcile.New(store.NewPostgres(db, zl),
		reconcile.WithLogger(zl),
		reconcile.WithMetrics(reconcile.NewMetrics(metrics.Registry())),
	)

	srv, err := internal.NewServer(engine, cfg, zl, metrics)
	if err != nil {
		zl.Fatal("failed to build server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("starting cmdb api",
			zap.String("addr", cfg.ListenAddr),
			zap.String("environment", cfg.Environment),
			zap.String("jwt_issuer", cfg.JWTIssuer),
			zap.String("jwt_audience", cfg.JWTAudience),
			zap.Duration("jwt_expiry", cfg.JWTExpiry),
			zap.Bool("metrics", cfg.EnableMetrics),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zl.Error("forced shutdown", zap.Error(err))
	}
}
