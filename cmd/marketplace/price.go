package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/service"
	"github.com/rl1809/marketplace/internal/llm"
)

var (
	priceRegion string
	priceMode   string
	priceAnchor float64
)

var priceCmd = &cobra.Command{
	Use:   "price <product name>",
	Short: "Ask the pricing model once and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := llm.NewProvider(cmd.Context(), llm.Config{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
		})
		if err != nil {
			return err
		}
		svc := service.NewPricingService(provider, storage.NewMemoryCache(), logger, cfg.Pricing.CacheTTL)
		result, err := svc.Price(cmd.Context(), domain.PricingRequest{
			ProductName: args[0],
			Region:      priceRegion,
			Mode:        domain.PricingMode(priceMode),
			AnchorPrice: priceAnchor,
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	priceCmd.Flags().StringVar(&priceRegion, "region", "", "market region (default global)")
	priceCmd.Flags().StringVar(&priceMode, "mode", "analyze", "suggest or analyze")
	priceCmd.Flags().Float64Var(&priceAnchor, "anchor", 0, "anchor price; results are clamped to ±50%")
	rootCmd.AddCommand(priceCmd)
}
