package service

import (
	"context"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// PricedLines is a set of lines priced from the catalogue.
type PricedLines struct {
	Lines    []model.CartLine
	Products map[string]*model.Product
	// Changed holds the lines whose stored unit price was stale.
	Changed []model.CartLine
}

// Subtotal sums unit price times quantity over all lines.
func (p *PricedLines) Subtotal() model.Money {
	return model.Subtotal(p.Lines)
}

// CheckStock verifies every product can cover the quantity requested across all of its lines.
func (p *PricedLines) CheckStock() error {
	wanted := make(map[string]int, len(p.Products))
	for _, l := range p.Lines {
		wanted[l.ProductID] += l.Quantity
	}
	for _, l := range p.Lines {
		qty, ok := wanted[l.ProductID]
		if !ok {
			continue
		}
		delete(wanted, l.ProductID)
		product := p.Products[l.ProductID]
		if product.Stock < qty {
			return model.ErrInsufficientStock.WithMessage(
				fmt.Sprintf("Only %d left in stock for %s", product.Stock, product.Name))
		}
	}
	return nil
}

// productService implements ProductService.
type productService struct {
	productRepo repository.ProductRepository
	logger      zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(productRepo repository.ProductRepository, logger zerolog.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		logger:      logger.With().Str("service", "product").Logger(),
	}
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		s.logger.Warn().Msg("product ID is empty")
		return nil, model.ErrProductNotFound
	}

	product, err := s.productRepo.GetByID(ctx, nil, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if product == nil {
		s.logger.Debug().Str("product_id", id).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	return product, nil
}

// PriceLines reprices lines from the catalogue. A line whose product is gone fails with ErrProductNotFound.
func (s *productService) PriceLines(ctx context.Context, q repository.Querier, lines []model.CartLine) (*PricedLines, error) {
	if len(lines) == 0 {
		return nil, model.ErrCartEmpty
	}

	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	products, err := s.productRepo.GetByIDs(ctx, q, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to get products by IDs")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	priced := &PricedLines{
		Lines:    make([]model.CartLine, len(lines)),
		Products: products,
	}
	for i, l := range lines {
		product, ok := products[l.ProductID]
		if !ok {
			s.logger.Warn().Str("product_id", l.ProductID).Msg("cart references missing product")
			return nil, model.ErrProductNotFound.WithMessage(fmt.Sprintf("Product %s is no longer available", l.ProductID))
		}
		price, ok := product.PriceFor(l.Variant.Value)
		if !ok {
			return nil, model.ErrProductNotFound.WithMessage(fmt.Sprintf("Product %s has no price", l.ProductID))
		}
		if !price.Equal(l.UnitPrice) {
			l.UnitPrice = price
			priced.Changed = append(priced.Changed, l)
		}
		priced.Lines[i] = l
	}

	s.logger.Debug().
		Int("lines", len(lines)).
		Int("repriced", len(priced.Changed)).
		Msg("priced lines")

	return priced, nil
}

// ResolveDirect prices a single ad-hoc line. The client never supplies the price.
func (s *productService) ResolveDirect(ctx context.Context, q repository.Querier, item model.DirectLine) (*PricedLines, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, q, item.ProductID)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", item.ProductID).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	price, ok := product.PriceFor(item.Variant.Value)
	if !ok {
		return nil, model.ErrProductNotFound.WithMessage(fmt.Sprintf("Product %s has no price", item.ProductID))
	}

	dims := item.Dimensions
	if dims == (model.Dimensions{}) && len(product.Dimensions) > 0 {
		dims = product.Dimensions[0]
	}

	return &PricedLines{
		Lines: []model.CartLine{{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  price,
			Variant:    item.Variant,
			Dimensions: dims,
		}},
		Products: map[string]*model.Product{product.ID: product},
	}, nil
}
