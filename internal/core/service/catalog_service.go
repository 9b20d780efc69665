package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

type CatalogService struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	logger *zap.Logger
}

func NewCatalogService(db port.DatabaseRepository, cache port.CacheRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		db:     db,
		cache:  cache,
		logger: logger.With(zap.String("component", "catalog")),
	}
}

type RegisterSellerInput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	StoreName string `json:"store_name"`
}

// RegisterSeller creates a pending seller. ID defaults to a fresh uuid; the
// gateway usually passes the caller's user id so seller and user line up.
func (s *CatalogService) RegisterSeller(ctx context.Context, in RegisterSellerInput) (*domain.Seller, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.StoreName = strings.TrimSpace(in.StoreName)
	if in.Name == "" || in.StoreName == "" {
		return nil, fmt.Errorf("%w: name and store_name are required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	if in.ID == "" {
		in.ID = newID()
	}

	t := now()
	seller := domain.Seller{
		ID:        in.ID,
		Name:      in.Name,
		Email:     strings.ToLower(in.Email),
		StoreName: in.StoreName,
		Status:    domain.SellerStatusPending,
		CreatedAt: t,
		UpdatedAt: t,
	}
	if err := s.db.CreateSeller(ctx, seller); err != nil {
		return nil, err
	}
	s.logger.Info("seller registered", zap.String("seller_id", seller.ID))
	return &seller, nil
}

func (s *CatalogService) GetSeller(ctx context.Context, id string) (*domain.Seller, error) {
	return s.db.GetSeller(ctx, id)
}

func (s *CatalogService) ListSellers(ctx context.Context, filter domain.SellerFilter) ([]domain.Seller, error) {
	return s.db.ListSellers(ctx, filter)
}

func (s *CatalogService) ApproveSeller(ctx context.Context, actor domain.Actor, id string) (*domain.Seller, error) {
	return s.setSellerStatus(ctx, actor, id, domain.SellerStatusApproved)
}

func (s *CatalogService) SuspendSeller(ctx context.Context, actor domain.Actor, id string) (*domain.Seller, error) {
	return s.setSellerStatus(ctx, actor, id, domain.SellerStatusSuspended)
}

func (s *CatalogService) setSellerStatus(ctx context.Context, actor domain.Actor, id string, to domain.SellerStatus) (*domain.Seller, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	seller, err := s.db.GetSeller(ctx, id)
	if err != nil {
		return nil, err
	}
	if seller.Status == to {
		return seller, nil
	}
	if !seller.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: seller %s -> %s", domain.ErrInvalidTransition, seller.Status, to)
	}
	if err := s.db.UpdateSellerStatus(ctx, id, seller.Status, to, seller.Version); err != nil {
		return nil, err
	}
	s.logger.Info("seller status changed",
		zap.String("seller_id", id),
		zap.String("from", string(seller.Status)),
		zap.String("to", string(to)),
	)
	seller.Status = to
	seller.Version++
	seller.UpdatedAt = now()
	return seller, nil
}

type ProductInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	PriceCents  int64                `json:"price_cents"`
	Stock       int                  `json:"stock"`
	Status      domain.ProductStatus `json:"status"`
	Version     int                  `json:"version"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if in.PriceCents <= 0 {
		return fmt.Errorf("%w: price_cents must be positive", domain.ErrValidation)
	}
	if in.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", domain.ErrValidation)
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, in.Status)
	}
	return nil
}

// CreateProduct lists a product for the calling seller, who must be approved.
func (s *CatalogService) CreateProduct(ctx context.Context, actor domain.Actor, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	seller, err := s.db.GetSeller(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if seller.Status != domain.SellerStatusApproved {
		return nil, fmt.Errorf("%w: seller is %s", domain.ErrForbidden, seller.Status)
	}

	status := in.Status
	if status == "" {
		status = domain.ProductStatusActive
	}
	t := now()
	p := domain.Product{
		ID:          newID(),
		SellerID:    seller.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		PriceCents:  in.PriceCents,
		Stock:       in.Stock,
		Status:      status,
		CreatedAt:   t,
		UpdatedAt:   t,
	}
	if err := s.db.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	if err := s.cache.SetStock(ctx, p.ID, p.Stock); err != nil {
		return nil, fmt.Errorf("cache stock: %w", err)
	}
	return &p, nil
}

func (s *CatalogService) ownedProduct(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	p, err := s.db.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.SellerID != actor.ID && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

// UpdateProduct edits listing fields. in.Version must match the stored
// version; stock is changed through AdjustStock.
func (s *CatalogService) UpdateProduct(ctx context.Context, actor domain.Actor, id string, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.ownedProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	activating := in.Status == domain.ProductStatusActive && p.Status != domain.ProductStatusActive
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Category = strings.ToLower(strings.TrimSpace(in.Category))
	p.PriceCents = in.PriceCents
	if in.Status != "" {
		p.Status = in.Status
	}
	p.Version = in.Version
	p.UpdatedAt = now()
	if err := s.db.UpdateProduct(ctx, *p); err != nil {
		return nil, err
	}
	p.Version++
	if activating {
		if err := s.reseedStock(ctx, id); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// reseedStock overwrites the cached stock with the persisted level. The cache
// may hold no key at all for a product that was not active at SyncStock time.
func (s *CatalogService) reseedStock(ctx context.Context, id string) error {
	stored, err := s.db.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.cache.SetStock(ctx, id, stored.Stock); err != nil {
		return fmt.Errorf("cache stock: %w", err)
	}
	return nil
}

func (s *CatalogService) ArchiveProduct(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	p, err := s.ownedProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.ProductStatusArchived {
		return p, nil
	}
	p.Status = domain.ProductStatusArchived
	p.UpdatedAt = now()
	if err := s.db.UpdateProduct(ctx, *p); err != nil {
		return nil, err
	}
	p.Version++
	return p, nil
}

// AdjustStock restocks (delta > 0) or writes off (delta < 0) inventory and
// mirrors the change into the reservation cache.
func (s *CatalogService) AdjustStock(ctx context.Context, actor domain.Actor, id string, delta int) (*domain.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must be non-zero", domain.ErrValidation)
	}
	p, err := s.ownedProduct(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	stock, err := s.db.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	if err := s.cache.IncrementStock(ctx, id, delta); err != nil {
		s.logger.Error("cache stock adjust failed", zap.String("product_id", id), zap.Error(err))
	}
	p.Stock = stock
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.db.GetProduct(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.db.ListProducts(ctx, filter)
}

// SyncStock copies persisted stock of every active product into the cache.
// Run at startup, before checkout traffic is accepted.
func (s *CatalogService) SyncStock(ctx context.Context) (int, error) {
	synced := 0
	for offset := 0; ; offset += 500 {
		products, err := s.db.ListProducts(ctx, domain.ProductFilter{
			Status: domain.ProductStatusActive,
			Limit:  500,
			Offset: offset,
		})
		if err != nil {
			return synced, err
		}
		for _, p := range products {
			if err := s.cache.SetStock(ctx, p.ID, p.Stock); err != nil {
				return synced, fmt.Errorf("sync stock %s: %w", p.ID, err)
			}
			synced++
		}
		if len(products) < 500 {
			break
		}
	}
	s.logger.Info("stock synced to cache", zap.Int("products", synced))
	return synced, nil
}
