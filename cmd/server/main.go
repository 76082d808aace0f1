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

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"citepay/internal/audit"
	"citepay/internal/audit/stream"
	"citepay/internal/catalog"
	cataloghandler "citepay/internal/catalog/handler"
	citationhandler "citepay/internal/citation/handler"
	citationstore "citepay/internal/citation/store"
	"citepay/internal/lifecycle"
	paymenthandler "citepay/internal/payment/handler"
	paymentstore "citepay/internal/payment/store"
	"citepay/internal/platform/config"
	"citepay/internal/platform/httpserver"
	"citepay/internal/platform/logger"
	"citepay/internal/platform/metrics"
	"citepay/internal/platform/postgres"
	"citepay/internal/platform/redis"
	"citepay/internal/receipt"
	receipthandler "citepay/internal/receipt/handler"
	httptransport "citepay/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}

	m := metrics.New()

	citationStore := citationstore.NewPostgres(db)
	paymentStore := paymentstore.NewPostgres(db)
	trail := audit.NewTrail(audit.NewPostgres(db))

	cat, err := catalog.New(ctx, catalog.NewPostgres(db), catalog.WithLogger(log))
	if err != nil {
		return err
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	engineOpts := []lifecycle.Option{
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(m),
		lifecycle.WithTracer(otel.Tracer("citepay/lifecycle")),
	}
	receiptOpts := []receipt.Option{
		receipt.WithLogger(log),
		receipt.WithMetrics(m),
	}
	if redisClient != nil {
		cache := receipt.NewRedisCache(redisClient, cfg.Redis.ReceiptTTL)
		engineOpts = append(engineOpts, lifecycle.WithReceiptCacheInvalidator(cache))
		receiptOpts = append(receiptOpts, receipt.WithCache(cache))
	}

	engine := lifecycle.New(citationStore, paymentStore, trail, cat,
		newPostgresTx(db, cfg.TxTimeout), engineOpts...)
	receiptService := receipt.New(paymentStore, citationStore, receiptOpts...)

	router := httptransport.NewRouter(
		citationhandler.New(engine, log),
		paymenthandler.New(engine, log),
		receipthandler.New(receiptService, log),
		cataloghandler.New(cat, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting citepay", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := stream.NewKafkaPublisher(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		defer publisher.Close()

		worker := stream.NewWorker(audit.NewPostgres(db), stream.NewPostgresCursorStore(db),
			publisher, log, cfg.Kafka.PollInterval, cfg.Kafka.BatchSize)
		g.Go(func() error {
			log.Info("starting audit stream worker", "topic", cfg.Kafka.Topic)
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
