// cmd/seeder/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/unclebandit/fundraiser-backend/internal/config"
	"github.com/unclebandit/fundraiser-backend/internal/db"
	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
	"github.com/unclebandit/fundraiser-backend/internal/logger"
	"github.com/unclebandit/fundraiser-backend/internal/model"
	"github.com/unclebandit/fundraiser-backend/internal/registry"
	"github.com/unclebandit/fundraiser-backend/internal/repository"
)

const programName = "seeder"

func main() {
	root := &cobra.Command{
		Use:   programName,
		Short: "Database setup and demo data for the fundraiser backend",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			logger.New(cfg.IsDevelopment())
			if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
				log.Warn().Err(err).Msg("failed to set GOMAXPROCS")
			}
		},
	}
	root.AddCommand(migrateCommand(), fundraisersCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB(ctx context.Context) (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("no database configured: set DATABASE_URL or DB_NAME")
	}
	return db.Open(ctx, dsn)
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			return db.Migrate(cmd.Context(), conn)
		},
	}
}

func fundraisersCommand() *cobra.Command {
	var (
		count       int
		owner       string
		beneficiary string
	)
	cmd := &cobra.Command{
		Use:   "fundraisers",
		Short: "Create demo fundraisers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerAddr, err := model.ParseAddress(owner)
			if err != nil {
				return err
			}
			beneficiaryAddr, err := model.ParseAddress(beneficiary)
			if err != nil {
				return err
			}

			conn, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.Migrate(cmd.Context(), conn); err != nil {
				return err
			}

			reg := registry.New(&repository.FundraiserRepository{DB: conn}, nil)
			if err := Seed(cmd.Context(), reg, count, ownerAddr, beneficiaryAddr); err != nil {
				return err
			}
			log.Info().Int("count", count).Msg("database seeding completed successfully")
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "number of fundraisers to create")
	cmd.Flags().StringVar(&owner, "owner", "0x00000000000000000000000000000000000000c0", "owner address")
	cmd.Flags().StringVar(&beneficiary, "beneficiary", "0x00000000000000000000000000000000000000b0", "beneficiary address")
	return cmd
}

// Seed creates count fundraisers, retrying each on transient store failures.
func Seed(ctx context.Context, reg *registry.Registry, count int, owner, beneficiary model.Address) error {
	for i := 0; i < count; i++ {
		params := registry.CreateParams{
			Name:        fmt.Sprintf("Fundraiser: %d", i),
			URL:         fmt.Sprintf("https://fundraisers.example/%d", i),
			ImageURL:    fmt.Sprintf("https://fundraisers.example/%d.png", i),
			Description: fmt.Sprintf("Demo fundraiser number %d", i),
			Beneficiary: beneficiary,
		}
		err := backoff.Retry(func() error {
			id, err := reg.CreateFundraiser(ctx, owner, params)
			if err != nil {
				if appErrors.IsTransient(err) {
					log.Warn().Err(err).Int("index", i).Msg("create failed, retrying")
					return err
				}
				return backoff.Permanent(err)
			}
			log.Debug().Stringer("fundraiser_id", id).Str("name", params.Name).Msg("seeded")
			return nil
		}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))
		if err != nil {
			return fmt.Errorf("seed fundraiser %d: %w", i, err)
		}
	}
	return nil
}
