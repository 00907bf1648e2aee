package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/unclebandit/fundraiser-backend/internal/config"
	"github.com/unclebandit/fundraiser-backend/internal/db"
	"github.com/unclebandit/fundraiser-backend/internal/event"
	"github.com/unclebandit/fundraiser-backend/internal/logger"
	"github.com/unclebandit/fundraiser-backend/internal/queue"
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
		log.Fatal().Err(err).Msg("worker stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required")
	}
	dsn := cfg.DSN()
	if dsn == "" {
		return fmt.Errorf("no database configured: set DATABASE_URL or DB_NAME")
	}

	conn, err := db.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	broker, err := queue.DialAMQP(ctx, cfg.AMQPURL, cfg.QueueMaxRetries)
	if err != nil {
		return err
	}
	defer broker.Close()

	worker := service.NewReceiptWorker(
		&repository.FundraiserRepository{DB: conn},
		&repository.ReceiptRepository{DB: conn},
		nil,
	)
	if err := broker.Subscribe(cfg.EventsTopic, deliveryHandler(ctx, worker)); err != nil {
		return err
	}

	log.Info().Str("topic", cfg.EventsTopic).Msg("worker running, waiting for messages")
	<-ctx.Done()
	return nil
}

// deliveryHandler decodes a broker message body into an event and stores its
// receipt. Undecodable bodies are dropped rather than retried.
func deliveryHandler(ctx context.Context, worker *service.ReceiptWorker) func(payload any) error {
	return func(payload any) error {
		body, ok := payload.([]byte)
		if !ok {
			log.Warn().Msg("invalid payload type, expected []byte")
			return nil
		}

		var e event.Event
		if err := json.Unmarshal(body, &e); err != nil {
			log.Warn().Err(err).Msg("invalid event")
			return nil
		}
		return worker.Handle(ctx, e)
	}
}
