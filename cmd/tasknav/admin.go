package main

import (
	"fmt"
	"log/slog"
	"os"

	"task-navigator/internal/config"
	"task-navigator/internal/services"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			pool, err := openDatabase(cfg, newLogger(cfg, os.Stderr, slog.LevelWarn))
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired refresh tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr, slog.LevelWarn)
			pool, err := openDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			removed, err := services.NewAuthService(pool.DB, cfg.Auth, logger).CleanupExpiredTokens(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d tokens\n", removed)
			return nil
		},
	}
}
