package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"meditrap/auth"
	"meditrap/card"
	"meditrap/config"
	"meditrap/db"
	"meditrap/httpapi"
	"meditrap/kv"
	"meditrap/notify"
	"meditrap/onboarding"
	"meditrap/purchaser"
	"meditrap/stockist"
	"meditrap/verify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("bootstrap logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	var blacklist kv.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("bootstrap redis", zap.Error(err))
		}
		defer client.Close()
		blacklist = kv.NewRedisStore(client, "meditrap")
	} else {
		logger.Warn("no redis configured, token blacklist is process-local")
		blacklist = kv.NewMemoryStore()
	}

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
	broadcaster := notify.NewBroadcaster(mailer, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authSvc := auth.NewService(auth.NewRepository(pool), blacklist, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	resetSvc := auth.NewResetService(auth.NewRepository(pool), mailer, logger, cfg.Auth.ResetTTL, cfg.Links.FrontendBaseURL)
	stockistSvc := stockist.NewService(stockist.NewRepository(pool))
	purchaserSvc := purchaser.NewService(purchaser.NewRepository(pool), logger)
	onboardingSvc := onboarding.NewService(onboarding.NewRepository(pool), mailer, logger)

	granter := card.GranterFunc(func(ctx context.Context, requesterID string, payload card.Payload) error {
		_, err := purchaserSvc.Grant(ctx, purchaser.CreateParams{
			FullName:    payload.FullName,
			Address:     payload.Address,
			ContactNo:   payload.ContactNo,
			Email:       payload.Email,
			AadharImage: payload.AadharImage,
			Photo:       payload.Photo,
			CreatedBy:   requesterID,
		})
		return err
	})
	cardSvc := card.NewService(
		card.NewRepository(pool),
		stockistSvc,
		granter,
		broadcaster,
		logger,
		card.NewMetrics(registry),
		cfg.Links.FrontendBaseURL+"/card/approve/",
	)

	var verifier *verify.Service
	if cfg.OCR.Endpoint != "" {
		verifier = verify.NewService(verify.NewHTTPExtractor(cfg.OCR.Endpoint, cfg.OCR.APIKey), nil, logger)
	} else {
		logger.Warn("ocr endpoint not configured, document verification disabled")
	}

	server := httpapi.NewServer(httpapi.Deps{
		Auth:       authSvc,
		Reset:      resetSvc,
		Stockists:  stockistSvc,
		Purchasers: purchaserSvc,
		Cards:      cardSvc,
		Onboarding: onboardingSvc,
		Verifier:   verifier,
		Logger:     logger,
		Registry:   registry,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("api stopped")
}
