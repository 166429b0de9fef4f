package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/punchamoorthee/mockbank/internal/api"
	"github.com/punchamoorthee/mockbank/internal/config"
	"github.com/punchamoorthee/mockbank/internal/events"
	"github.com/punchamoorthee/mockbank/internal/logging"
	"github.com/punchamoorthee/mockbank/internal/seed"
	"github.com/punchamoorthee/mockbank/internal/service"
	"github.com/punchamoorthee/mockbank/internal/store"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogConfig())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.Close()
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	if cfg.SeedDemo {
		res, err := seed.Demo(ctx, st, cfg.DefaultCurrency, time.Now().UTC())
		if err != nil {
			logger.Fatal("seed demo data", zap.Error(err))
		}
		logger.Info("demo data seeded",
			zap.Int("users", res.Users),
			zap.Int("accounts", res.Accounts),
			zap.Int("transactions", res.Transactions),
		)
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			logger.Fatal("connect to rabbitmq", zap.Error(err))
		}
		pub = rp
		logger.Info("publishing events", zap.String("exchange", cfg.EventsExchange))
	}
	defer pub.Close()

	auth := service.NewAuthService(st, pub, logger, service.AuthConfig{Currency: cfg.DefaultCurrency})
	ledger := service.NewLedgerService(st)
	transfers := service.NewTransferService(st, pub, logger, service.TransferConfig{
		OTPTTL:         cfg.OTPTTL,
		OTPMaxAttempts: cfg.OTPMaxAttempts,
	})
	handler := api.NewHandler(auth, ledger, transfers, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver != config.DriverPostgres {
		return store.NewMemoryStore(), nil
	}

	pg, err := store.NewPostgresStore(ctx, cfg.DBSource)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
