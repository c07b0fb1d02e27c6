// cmd/edge/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"jobpilot-edge/config"
	"jobpilot-edge/internal/bot"
	"jobpilot-edge/internal/credits"
	"jobpilot-edge/internal/db"
	"jobpilot-edge/internal/handler"
	"jobpilot-edge/internal/identity"
	"jobpilot-edge/internal/middleware"
	"jobpilot-edge/internal/payment"
	"jobpilot-edge/internal/relay"
	"jobpilot-edge/internal/server"
	"jobpilot-edge/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	l := logger.WithLevel(cfg.Log.Level)
	if cfg.Log.Development {
		l = logger.NewDevelopment()
	}
	defer func() { _ = l.Sync() }()

	l.Info("Starting JobPilot edge service...")

	if err := cfg.Validate(); err != nil {
		l.Fatal("Invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DB, 5, func(attempt int, err error) {
		l.Error("Failed to connect to database, retrying...", "attempt", attempt, "error", err)
	})
	if err != nil {
		l.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close()

	resolver := identity.NewResolver(database)
	charger := credits.NewCharger(resolver, database, l.Named("credits"))

	routes := relayRoutes(cfg.Webhooks)
	for _, k := range relay.Kinds() {
		if routes[k] == "" {
			l.Warn("Webhook URL not configured, relay requests will fail", "webhook_type", k, "env", k.EnvVar())
		}
	}
	forwarder := relay.New(routes, &http.Client{Timeout: cfg.Webhooks.Timeout}, cfg.Webhooks.Source, l.Named("relay"))

	deps := server.Deps{
		Catalog: credits.DefaultCatalog(),
		Charger: charger,
		Relay:   forwarder,
		DB:      database,
	}

	var stripeClient *payment.StripeClient
	if cfg.StripeEnabled() {
		stripeClient, err = payment.NewStripeClient(cfg.Stripe)
		if err != nil {
			l.Fatal("Invalid Stripe configuration", "error", err)
		}
		deps.Billing = handler.NewBillingHandler(stripeClient, database, database, l.Named("billing"))
	} else {
		l.Warn("Stripe is not configured, credit purchases are disabled")
	}

	if cfg.Auth.JWTSecret != "" {
		deps.Auth, err = middleware.NewBearerAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			l.Fatal("Invalid JWT configuration", "error", err)
		}
	} else {
		l.Warn("JWT_SECRET is not set, /relay is unauthenticated")
	}

	var telegramBot *bot.TelegramBot
	if cfg.Telegram.Token != "" {
		botDeps := bot.Deps{Resolver: resolver, Balances: database}
		if stripeClient != nil {
			botDeps.Checkout = stripeClient
		}
		telegramBot, err = bot.NewTelegramBot(cfg.Telegram.Token, botDeps, l.Named("bot"))
		if err != nil {
			l.Fatal("Failed to create Telegram bot", "error", err)
		}
		if err := telegramBot.Start(ctx); err != nil {
			l.Fatal("Failed to start Telegram bot", "error", err)
		}
		charger.WithNotifier(telegramBot)
		l.Info("Telegram bot started successfully")
	} else {
		l.Warn("TELEGRAM_TOKEN is not set, Telegram notifications are disabled")
	}

	httpServer := server.NewServer(server.Config{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, server.NewRouter(deps, l.Named("http")), l)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			l.Error("HTTP server failed", "error", err)
		}
	case <-ctx.Done():
		l.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		l.Error("Error during HTTP server shutdown", "error", err)
	}
	if telegramBot != nil {
		if err := telegramBot.Stop(shutdownCtx); err != nil {
			l.Error("Error during bot shutdown", "error", err)
		}
	}

	l.Info("Edge service stopped")
}

func relayRoutes(w config.WebhooksConfig) relay.Routes {
	return relay.Routes{
		relay.KindJobAnalysis:     w.JobAnalysis,
		relay.KindCoverLetter:     w.CoverLetter,
		relay.KindLinkedInPost:    w.LinkedIn,
		relay.KindCompanyAnalysis: w.Company,
		relay.KindInterviewPrep:   w.InterviewPrep,
		relay.KindResume:          w.Resume,
	}
}
