// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/unclebandit/fundraiser-backend/internal/config"
	"github.com/unclebandit/fundraiser-backend/internal/controller"
	"github.com/unclebandit/fundraiser-backend/internal/db"
	"github.com/unclebandit/fundraiser-backend/internal/event"
	"github.com/unclebandit/fundraiser-backend/internal/handler"
	"github.com/unclebandit/fundraiser-backend/internal/logger"
	"github.com/unclebandit/fundraiser-backend/internal/metrics"
	"github.com/unclebandit/fundraiser-backend/internal/queue"
	"github.com/unclebandit/fundraiser-backend/internal/registry"
	"github.com/unclebandit/fundraiser-backend/internal/repository"
	"github.com/unclebandit/fundraiser-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.New(cfg.IsDevelopment())
	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Warn().Err(err).Msg("failed to set GOMAXPROCS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// stores picks Postgres when a database is configured, memory otherwise.
func stores(ctx context.Context, cfg *config.Config) (repository.FundraiserRepositoryInterface, repository.ReceiptRepositoryInterface, *sql.DB, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		log.Warn().Msg("no database configured, using in-memory store")
		return repository.NewMemoryRepository(), repository.NewMemoryReceiptRepository(), nil, nil
	}

	conn, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, nil, err
	}
	return &repository.FundraiserRepository{DB: conn}, &repository.ReceiptRepository{DB: conn}, conn, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	fundraiserRepo, receiptRepo, conn, err := stores(ctx, cfg)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)

	q := queue.NewInMemoryQueue(cfg.QueueMaxRetries)
	q.OnFailure = func(topic string, _ any, _ error) { m.QueueFailure(topic) }

	if cfg.AMQPURL != "" {
		broker, err := queue.DialAMQP(ctx, cfg.AMQPURL, cfg.QueueMaxRetries)
		if err != nil {
			return err
		}
		defer broker.Close()
		// Receipts are written by cmd/worker on the broker side.
		q.Subscribe(cfg.EventsTopic, func(payload any) error {
			return broker.Publish(cfg.EventsTopic, payload)
		})
	} else {
		receipts := service.NewReceiptWorker(fundraiserRepo, receiptRepo, nil)
		q.Subscribe(cfg.EventsTopic, func(payload any) error {
			e, ok := payload.(event.Event)
			if !ok {
				return nil
			}
			return receipts.Handle(context.Background(), e)
		})
	}

	recorder := event.NewBoundedRecorder(cfg.EventLogSize)
	sink := event.Fanout{recorder, m, queue.NewForwarder(q, cfg.EventsTopic)}

	reg := registry.New(fundraiserRepo, sink)
	if err := reg.Load(ctx); err != nil {
		return err
	}

	fundraiserController := &controller.FundraiserController{
		FundraiserService: &service.FundraiserService{Registry: reg, Receipts: receiptRepo},
		Errors:            m,
	}
	opsHandler := &handler.OpsHandler{Events: recorder, Gatherer: promRegistry}
	if conn != nil {
		opsHandler.Ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return conn.PingContext(pingCtx)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	fundraiserController.Routes(r)
	opsHandler.Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	q.Wait()
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := zerolog.DebugLevel
		if ww.Status() >= http.StatusInternalServerError {
			level = zerolog.ErrorLevel
		}
		log.WithLevel(level).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
