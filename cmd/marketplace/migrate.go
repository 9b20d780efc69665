package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := app.OpenStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info("schema up to date", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
