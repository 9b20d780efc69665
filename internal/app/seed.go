package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/core/domain"
)

// SeedFile is the YAML layout accepted by Seed.
type SeedFile struct {
	Sellers  []SeedSeller  `yaml:"sellers"`
	Products []SeedProduct `yaml:"products"`
}

type SeedSeller struct {
	ID            string              `yaml:"id"`
	Name          string              `yaml:"name"`
	Email         string              `yaml:"email"`
	StoreName     string              `yaml:"store_name"`
	Status        domain.SellerStatus `yaml:"status"`
	CommissionBps int                 `yaml:"commission_bps"`
}

type SeedProduct struct {
	ID          string               `yaml:"id"`
	SellerID    string               `yaml:"seller_id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Category    string               `yaml:"category"`
	PriceCents  int64                `yaml:"price_cents"`
	Stock       int                  `yaml:"stock"`
	Status      domain.ProductStatus `yaml:"status"`
}

type SeedResult struct {
	Sellers  int
	Products int
}

func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

func DecodeSeed(r io.Reader) (*SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &seed, nil
}

// Seed inserts sellers and products that do not exist yet. Existing ids are
// left untouched so the command can be rerun.
func Seed(ctx context.Context, store *storage.SQLStore, seed *SeedFile) (SeedResult, error) {
	var res SeedResult
	t := time.Now().UTC()

	for _, s := range seed.Sellers {
		if _, err := store.GetSeller(ctx, s.ID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return res, err
		}
		status := s.Status
		if status == "" {
			status = domain.SellerStatusApproved
		}
		err := store.CreateSeller(ctx, domain.Seller{
			ID:            s.ID,
			Name:          s.Name,
			Email:         s.Email,
			StoreName:     s.StoreName,
			Status:        status,
			CommissionBps: s.CommissionBps,
			CreatedAt:     t,
			UpdatedAt:     t,
		})
		if err != nil {
			return res, fmt.Errorf("seed seller %s: %w", s.ID, err)
		}
		res.Sellers++
	}

	for _, p := range seed.Products {
		if _, err := store.GetProduct(ctx, p.ID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return res, err
		}
		if p.PriceCents <= 0 || p.Stock < 0 {
			return res, fmt.Errorf("%w: product %s needs a positive price and non-negative stock", domain.ErrValidation, p.ID)
		}
		status := p.Status
		if status == "" {
			status = domain.ProductStatusActive
		}
		err := store.CreateProduct(ctx, domain.Product{
			ID:          p.ID,
			SellerID:    p.SellerID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			PriceCents:  p.PriceCents,
			Stock:       p.Stock,
			Status:      status,
			CreatedAt:   t,
			UpdatedAt:   t,
		})
		if err != nil {
			return res, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		res.Products++
	}
	return res, nil
}
