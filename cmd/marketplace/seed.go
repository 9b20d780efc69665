package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/app"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sellers and products from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := app.LoadSeedFile(seedFile)
		if err != nil {
			return err
		}
		store, err := app.OpenStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := app.Seed(cmd.Context(), store, seed)
		if err != nil {
			return err
		}
		logger.Info("seed complete", zap.Int("sellers", res.Sellers), zap.Int("products", res.Products))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "configs/seed.yaml", "seed file")
	rootCmd.AddCommand(seedCmd)
}
