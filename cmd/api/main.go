package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naruebet/tmwatch/internal/api"
	"github.com/naruebet/tmwatch/internal/auth"
	"github.com/naruebet/tmwatch/internal/config"
	"github.com/naruebet/tmwatch/internal/db"
	"github.com/naruebet/tmwatch/internal/logger"
	"github.com/naruebet/tmwatch/internal/metrics"
	"github.com/naruebet/tmwatch/internal/middleware"
	"github.com/naruebet/tmwatch/internal/services"
	"github.com/naruebet/tmwatch/internal/store"
	"github.com/naruebet/tmwatch/internal/webhook"
	"github.com/naruebet/tmwatch/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	eph := store.NewEphemeral(cfg.EphemeralCap)

	var (
		dial     store.DialFunc
		users    store.Users    = store.NewMemoryUsers()
		settings store.Settings = store.NewMemorySettings()
		audit    store.AuditLogs
	)

	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(cfg.DatabaseURL)
		if err != nil {
			log.Error("db config", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if cfg.Migrate {
			mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := db.RunMigrations(mctx, pool); err != nil {
				log.Warn("migrations skipped", "err", err)
			}
			cancel()
		}

		users = store.NewPgUsers(pool)
		settings = store.NewPgSettings(pool)
		audit = store.NewPgAuditLogs(pool)
		dial = func(ctx context.Context) (store.Durable, error) {
			pg := store.NewPostgres(pool)
			if err := pg.Ping(ctx); err != nil {
				return nil, err
			}
			return pg, nil
		}
	} else {
		log.Warn("no DATABASE_URL set, transactions are held in the ephemeral buffer only")
	}

	sel := store.NewSelector(dial, eph, log)
	sel.StartProbe(ctx, cfg.ProbeInterval)

	wp := worker.NewPool(4)
	defer wp.Stop()

	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTRefresh, 15*time.Minute, 7*24*time.Hour)
	userSvc := services.NewUserService(users, tm)

	actx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := userSvc.EnsureAdmin(actx, cfg.AdminPassword); err != nil {
		log.Warn("seed admin", "err", err)
	}
	cancel()

	txnSvc := services.NewTransactionService(webhook.NewDecoder(log), sel, audit, wp, log)

	r := api.NewRouter(cfg, txnSvc, userSvc, settings, middleware.NewAuthMiddleware(tm))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "mode", sel.Mode())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}
