package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trustpledge/pledged/internal/api"
	"github.com/trustpledge/pledged/internal/app/workflow"
	"github.com/trustpledge/pledged/internal/infra/notify"
	"github.com/trustpledge/pledged/internal/infra/sqlite"
)

// Run starts the pledged server and blocks until SIGINT/SIGTERM.
func Run(cfg Config) error {
	logger := newLogger(cfg.Log.Level)

	policy, err := workflow.ParsePolicy(cfg.Workflow.MembershipPolicy)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	mailer := notify.NewMailer(cfg.Mail.SendGridKey, cfg.Mail.FromEmail, cfg.Mail.SiteURL, logger)
	wf := workflow.New(db, mailer, policy, logger)

	srv := api.NewServer(db, wf, logger)
	srv.SetAdminSecret(cfg.Admin.Secret)
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	httpSrv := &http.Server{
		Addr:              cfg.API.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pledged listening",
			"addr", cfg.API.Addr(), "policy", string(policy), "metrics", cfg.Metrics.Enabled)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
