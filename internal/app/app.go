package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"EmailAutomation/internal/api"
	"EmailAutomation/internal/config"
	"EmailAutomation/internal/domain"
	"EmailAutomation/internal/infrastructure/googlechat"
	"EmailAutomation/internal/infrastructure/imapmail"
	"EmailAutomation/internal/infrastructure/llm"
	"EmailAutomation/internal/infrastructure/smtpmail"
	"EmailAutomation/internal/infrastructure/storage"
	"EmailAutomation/internal/usecase"
)

// Application wires configuration to adapters and owns their lifecycle.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	processor *usecase.Processor
	server    *api.Server
	repo      *storage.SQLiteRepository
}

func New(cfg config.Config, logger *slog.Logger) (*Application, error) {
	repo, err := storage.NewSQLiteRepository(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	fetcher := imapmail.NewFetcher(cfg.IMAP, repo, logger.With("component", "fetcher"))
	responder := smtpmail.NewSender(cfg.SMTP, logger.With("component", "responder"))
	ai := llm.NewClient(cfg.OpenAI, cfg.SMTP.Email)
	notifier := googlechat.NewNotifier(cfg.GoogleChat.WebhookURL)

	processor := usecase.NewProcessor(usecase.Options{
		UrgencyThreshold: domain.Urgency(cfg.Approval.UrgencyThreshold),
		ApprovalTimeout:  cfg.Approval.Timeout(),
		PollInterval:     cfg.IMAP.CheckInterval(),
		SweepInterval:    cfg.Approval.SweepInterval(),
		MaxPending:       cfg.Approval.MaxPending,
		Policy: usecase.PolicyConfig{
			RequireForExternal: cfg.Approval.RequireForExternal,
			AllowedDomains:     cfg.Approval.AllowedSenders,
			BlockedDomains:     cfg.Approval.BlockedSenders,
		},
	}, usecase.ProcessorDeps{
		Fetcher:    fetcher,
		Classifier: ai,
		Generator:  ai,
		Notifier:   notifier,
		Responder:  responder,
		Repository: repo,
		Logger:     logger.With("component", "processor"),
	})

	handler := api.NewHandler(processor, logger.With("component", "api"))
	server := api.NewServer(cfg.HTTP.Addr, handler.Routes(), logger.With("component", "http"))

	return &Application{
		cfg:       cfg,
		logger:    logger,
		processor: processor,
		server:    server,
		repo:      repo,
	}, nil
}

// Run starts the processor and the operator API, then blocks until the
// context is cancelled or the HTTP listener fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.processor.Start(ctx); err != nil {
		return fmt.Errorf("start processor: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}

	a.processor.Stop()

	if err := a.repo.Close(); err != nil {
		a.logger.Warn("closing repository", "error", err)
	}

	a.logger.Info("shutdown complete")
	return runErr
}
