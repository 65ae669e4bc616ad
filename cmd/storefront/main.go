package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tvdermeer/3dprint-website/internal/api"
	"github.com/tvdermeer/3dprint-website/internal/cart"
	"github.com/tvdermeer/3dprint-website/internal/catalog"
	"github.com/tvdermeer/3dprint-website/internal/checkout"
	"github.com/tvdermeer/3dprint-website/internal/config"
	"github.com/tvdermeer/3dprint-website/internal/events"
	"github.com/tvdermeer/3dprint-website/internal/guard"
	h "github.com/tvdermeer/3dprint-website/internal/http"
	"github.com/tvdermeer/3dprint-website/internal/metrics"
	"github.com/tvdermeer/3dprint-website/internal/session"
	"github.com/tvdermeer/3dprint-website/internal/store"
	"github.com/tvdermeer/3dprint-website/internal/theme"
	"github.com/tvdermeer/3dprint-website/pkg/circuitbreaker"
	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TraceStdout {
		shutdown, err := setupTracing()
		if err != nil {
			log.Fatal("failed to set up tracing", "error", err)
		}
		defer shutdown()
	}

	st, err := store.Open(ctx, store.Options{
		Driver:        cfg.StoreDriver,
		SQLitePath:    cfg.SQLitePath,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisTTL:      cfg.RedisTTL,
		MongoURI:      cfg.MongoURI,
		MongoDB:       cfg.MongoDBName,
	})
	if err != nil {
		log.Fatal("failed to open store", "driver", cfg.StoreDriver, "error", err)
	}
	defer st.Close()
	log.Info("store opened", "driver", cfg.StoreDriver)

	m := metrics.New()
	bus := events.NewBus()

	// the forwarder outlives ctx so events emitted during shutdown are still shipped
	fwdCtx, stopForwarder := context.WithCancel(context.Background())
	fwdDone := make(chan struct{})
	var forwarder *events.KafkaForwarder
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		forwarder = events.NewKafkaForwarder(log, cfg.KafkaTopic, brokers...)
		forwarder.Attach(bus)
		go func() {
			defer close(fwdDone)
			forwarder.Run(fwdCtx)
		}()
		log.Info("forwarding events to kafka", "topic", cfg.KafkaTopic, "brokers", brokers)
	} else {
		close(fwdDone)
	}

	apiCfg := api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Logger:  log,
		Metrics: m,
	}
	if cfg.BreakerEnabled {
		apiCfg.Breaker = circuitbreaker.New(circuitbreaker.DefaultConfig("storefront-api"))
	}
	client := api.New(apiCfg)

	c := cart.New(ctx, st, cart.WithLogger(log), cart.WithBus(bus), cart.WithMetrics(m))
	sess := session.NewManager(ctx, client, st, session.WithLogger(log), session.WithBus(bus), session.WithMetrics(m))
	orch := checkout.New(c, sess, client,
		checkout.WithClearDelay(cfg.ClearDelay),
		checkout.WithPaymentFields(cfg.RequirePaymentFields),
		checkout.WithCurrency(cfg.Currency),
		checkout.WithLogger(log),
		checkout.WithBus(bus),
		checkout.WithMetrics(m),
	)

	router := h.NewRouter(h.Deps{
		Cart:     c,
		Session:  sess,
		Checkout: orch,
		Guard:    guard.New(sess, guard.WithLogger(log)),
		Catalog:  catalog.New(client, log),
		Theme:    theme.Load(ctx, st, log),
		Health:   client,
		Metrics:  m,
		Logger:   log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", "port", cfg.HTTPPort, "api", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	orch.Close(shutdownCtx)
	sess.Close()
	stopForwarder()
	<-fwdDone
	if forwarder != nil {
		if err := forwarder.Close(); err != nil {
			log.Warn("failed to close kafka writer", "error", err)
		}
	}

	log.Info("server exited")
}

func setupTracing() (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}
