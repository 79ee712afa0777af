// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"checkout-bridge/internal/config"
	"checkout-bridge/internal/domain/ports/adapter"
	"checkout-bridge/internal/domain/ports/repository"
	"checkout-bridge/internal/infra/adapters/order"
	"checkout-bridge/internal/infra/adapters/payment"
	"checkout-bridge/internal/infra/api"
	"checkout-bridge/internal/infra/logging"
	"checkout-bridge/internal/infra/memory"
	"checkout-bridge/internal/infra/metrics"
	red "checkout-bridge/internal/infra/redis"
	"checkout-bridge/internal/infra/sched"
	"checkout-bridge/internal/infra/security"
	"checkout-bridge/internal/infra/worker"
	"checkout-bridge/internal/usecase"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (optional)")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateways, unredacted logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("checkout bridge stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Session store + webhook dedup ----
	var (
		store     repository.SessionStore
		dedup     repository.WebhookDeduper
		sweepers  []sched.Sweeper
		storeName = "memory"
	)
	if cfg.Redis.URL != "" {
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		store = red.NewSessionStore(client, cfg.Session.TTL, cfg.Session.ExpiredGrace)
		dedup = red.NewWebhookDeduper(client)
		storeName = "redis"
	} else {
		mem := memory.NewSessionStore(cfg.Session.TTL)
		memDedup := memory.NewWebhookDeduper()
		store, dedup = mem, memDedup
		sweepers = append(sweepers, memDedup)
		logger.Warn().Msg("REDIS_URL not set; checkout sessions are kept in process memory")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(cfg.Runtime.Version, storeName)

	// ---- Payment platform ----
	var gateway adapter.PaymentGateway
	w := cfg.Payment.Whop
	if w.APIKey == "" && cfg.Runtime.Dev {
		gateway = payment.NewNoopPaymentGateway()
		logger.Warn().Msg("WHOP_API_KEY not set; using noop payment gateway")
	} else {
		g, err := payment.NewWhopGateway(w.APIKey, w.CompanyID, w.BaseURL, w.Timeout)
		if err != nil {
			return fmt.Errorf("whop gateway: %w", err)
		}
		gateway = g
	}

	// ---- Order platform ----
	var orders adapter.OrderPlatform
	if cfg.OrderPlatformEnabled() {
		gc := cfg.Order.GetCourse
		c, err := order.NewGetCourseClient(gc.Account, gc.APIKey, gc.BaseURL, gc.Timeout)
		if err != nil {
			return fmt.Errorf("getcourse client: %w", err)
		}
		orders = c
	} else {
		orders = order.NewNoopOrderClient(logger)
		logger.Warn().Msg("GetCourse credentials not set; paid orders will only be logged")
	}

	// ---- Use cases ----
	plans, err := usecase.NewPlanSelector(cfg.Plans.Bands(), cfg.Plans.DefaultPlan())
	if err != nil {
		return fmt.Errorf("plan selector: %w", err)
	}
	checkoutUC := usecase.NewCheckoutUseCase(store, plans, gateway, usecase.CheckoutOptions{
		RequireAmount:   cfg.RequiresAmount(),
		DefaultCurrency: cfg.Checkout.DefaultCurrency,
		SuccessURL:      cfg.Checkout.SuccessURL,
		CancelURL:       cfg.Checkout.CancelURL,
		Source:          cfg.Checkout.Source,
		DevMode:         cfg.Runtime.Dev,
	}, logger)
	statusUC := usecase.NewStatusUseCase(store, logger)
	settlementUC := usecase.NewSettlementUseCase(orders, logger)

	verifier := security.NewWebhookVerifier(security.VerifierOptions{
		Secret:          cfg.Webhook.Secret,
		AllowUnverified: cfg.Webhook.AllowUnverified,
		Tolerance:       cfg.Webhook.Tolerance,
	}, logger)
	if !verifier.Configured() {
		logger.Error().Msg("WHOP_WEBHOOK_SECRET not set; payment webhooks will be rejected")
	}

	// ---- Background work ----
	// queued relays finish after the signal; Stop drains them
	pool := worker.NewPool(cfg.Worker.Workers, logger)
	pool.Start(context.WithoutCancel(ctx))
	defer pool.Stop()

	sweeper := sched.NewSessionSweeper(cfg.Session.SweepInterval, store, logger, sweepers...)

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Checkout:   checkoutUC,
		Status:     statusUC,
		Settlement: settlementUC,
		Verifier:   verifier,
		Dedup:      dedup,
		Dispatcher: pool,
	}, api.Options{
		Version:        cfg.Runtime.Version,
		Environment:    environment(cfg),
		Store:          storeName,
		Checklist:      checklist(cfg),
		DedupTTL:       cfg.Webhook.DedupTTL,
		AsyncRelay:     cfg.Worker.AsyncRelay,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("store", storeName).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func environment(cfg *config.Config) string {
	if cfg.Runtime.Dev {
		return "development"
	}
	return "production"
}

func checklist(cfg *config.Config) api.Checklist {
	var c api.Checklist
	c.GetCourseAPIKey = cfg.Order.GetCourse.APIKey != ""
	c.GetCourseAccount = cfg.Order.GetCourse.Account != ""
	c.WhopAPIKey = cfg.Payment.Whop.APIKey != ""
	c.WhopCompanyID = cfg.Payment.Whop.CompanyID != ""
	c.WhopWebhookSecret = cfg.Webhook.Secret != ""
	c.RedirectURLs.Success = cfg.Checkout.SuccessURL != ""
	c.RedirectURLs.Cancel = cfg.Checkout.CancelURL != ""
	return c
}
