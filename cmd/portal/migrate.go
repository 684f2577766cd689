package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/reviewers-portal/backend/internal/config"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/database"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/repository"
	"github.com/emilythestrangee/reviewers-portal/backend/internal/settings"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, constraints and default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := commonRun()
			if err != nil {
				return err
			}

			db, err := database.New(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			return migrate(cmd.Context(), cfg, db)
		},
	}
}

func migrate(ctx context.Context, cfg *config.Config, db database.Service) error {
	if err := database.AutoMigrate(db.GetDB()); err != nil {
		return err
	}

	if cfg.Database.Driver == "postgres" {
		raw, err := database.NewDatabase(cfg)
		if err != nil {
			return err
		}
		defer raw.Close()

		if err := raw.Bootstrap(ctx); err != nil {
			return err
		}
	}

	seed, err := settings.LoadSeed(cfg.App.SeedFile)
	if err != nil {
		return err
	}
	inserted, err := settings.Seed(ctx, repository.NewRepository(db.GetDB()), seed)
	if err != nil {
		return err
	}

	slog.Info("default settings seeded", "inserted", inserted)
	return nil
}
