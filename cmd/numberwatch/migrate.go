package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prudhvinik1/numberwatch/internal/config"
	"github.com/prudhvinik1/numberwatch/internal/database"
	"github.com/prudhvinik1/numberwatch/internal/logger"
)

func migrateCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				fmt.Print(database.Schema())
				return nil
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "numberwatch")
			if err != nil {
				return err
			}
			defer log.Sync()

			pool, err := database.NewPostgresPool(cmd.Context(), cfg.DatabaseURL, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			log.Info("schema applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}
