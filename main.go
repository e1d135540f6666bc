package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billbatista/acasinha-pots/app"
	"github.com/billbatista/acasinha-pots/config"
	"github.com/billbatista/acasinha-pots/eventlogger"
	"github.com/billbatista/acasinha-pots/httpapi"
	"github.com/billbatista/acasinha-pots/ledger"
	"github.com/billbatista/acasinha-pots/membership"
	"github.com/billbatista/acasinha-pots/middleware"
	"github.com/billbatista/acasinha-pots/pot"
	"github.com/billbatista/acasinha-pots/session"
	"github.com/billbatista/acasinha-pots/sqldb"
	"github.com/billbatista/acasinha-pots/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		printErrorAndExit("loading config", err)
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	db, err := openDB(cfg)
	if err != nil {
		printErrorAndExit("database connection", err)
	}
	defer db.Close()

	sinks := []eventlogger.Sink{eventlogger.NewSqlEventLogger(db)}
	if cfg.KafkaEnabled() {
		kafkaSink := eventlogger.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	worker := eventlogger.NewWorker(cfg.EventBuffer, sinks...)
	worker.Start()
	defer worker.Shutdown()

	logger := slog.Default()
	registry := pot.NewRegistry(
		pot.NewRepository(db),
		pot.WithMaxCodeAttempts(cfg.ShareCodeAttempts),
		pot.WithLogger(logger),
	)
	members := membership.NewService(membership.NewRepository(db), registry, logger)
	ledgerSvc := ledger.NewService(ledger.NewRepository(db), registry, members, logger)
	userRepo := user.NewRepository(db)
	sessionRepo := session.NewRepository(db, session.WithTTL(cfg.SessionTTL))

	svc := app.New(registry, members, ledgerSvc, userRepo, worker, logger)

	opts := []httpapi.Option{
		httpapi.WithEvents(worker),
		httpapi.WithSecureCookies(cfg.CookieSecure),
	}
	if cfg.BearerEnabled() {
		tokens, err := middleware.NewTokens([]byte(cfg.JWTSecret), cfg.JWTIssuer)
		if err != nil {
			printErrorAndExit("bearer tokens", err)
		}
		opts = append(opts, httpapi.WithTokens(tokens))
	}
	server := httpapi.NewServer(svc, userRepo, sessionRepo, opts...)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down server", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Addr, "db_driver", cfg.DBDriver, "kafka", cfg.KafkaEnabled())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
	}
}

func openDB(cfg config.Config) (*sqldb.DB, error) {
	if cfg.DBDriver == config.DriverPostgres {
		return sqldb.OpenPostgres(cfg.DatabaseURL)
	}
	return sqldb.OpenSQLite(cfg.SQLitePath)
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}
