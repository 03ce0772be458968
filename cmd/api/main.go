package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/cart"
	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/config"
	"github.com/ariefcatur/go-storefront.git/internal/httpx"
	"github.com/ariefcatur/go-storefront.git/internal/identity"
	kafkax "github.com/ariefcatur/go-storefront.git/internal/kafka"
	"github.com/ariefcatur/go-storefront.git/internal/logger"
	"github.com/ariefcatur/go-storefront.git/internal/metrics"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
	"github.com/ariefcatur/go-storefront.git/internal/profile"
	"github.com/ariefcatur/go-storefront.git/internal/outbox"
	"github.com/ariefcatur/go-storefront.git/internal/postgres"
	"github.com/ariefcatur/go-storefront.git/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Must(cfg.ServiceName)
	defer func() { _ = log.Sync() }()
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, fed only by the outbox relay
	prod := kafkax.NewProducer(cfg.KafkaBrokers)
	defer prod.Close()

	products := &catalog.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}

	engine := orders.NewEngine(products, orderRepo, log.Named("engine"), cfg.ServiceName)
	engine.CommitTimeout = cfg.CommitTimeout

	relay := &outbox.Relay{
		Source:    &outbox.Repo{DB: db},
		Publisher: prod,
		Interval:  cfg.OutboxInterval,
		Batch:     cfg.OutboxBatch,
		Log:       log.Named("outbox"),
	}
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(ctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg, "api")

	router := httpx.NewRouter(m)
	h := &httpx.Handler{
		Catalog:         products,
		Cart:            cart.NewService(&cart.Repo{DB: db}, products, log.Named("cart")),
		Engine:          engine,
		Orders:          orders.NewService(orderRepo, log.Named("orders"), cfg.ServiceName),
		Profiles:        profile.NewService(&profile.Repo{DB: db}, log.Named("profile")),
		Cache:           &redisx.Cache{R: rdb},
		Verifier:        identity.NewVerifier(cfg.JWTSecret),
		Metrics:         m,
		Log:             log,
		CheckoutTimeout: cfg.CheckoutTimeout,
	}
	h.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2) // in-flight checkouts finish their commit first
	cancel()               // stop relay loop
	<-relayDone
}
