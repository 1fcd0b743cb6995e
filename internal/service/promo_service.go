package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// promoService implements PromoService.
type promoService struct {
	promoRepo repository.PromoRepository
	now       func() time.Time
	logger    zerolog.Logger
}

// NewPromoService creates a new promo service.
func NewPromoService(promoRepo repository.PromoRepository, logger zerolog.Logger) PromoService {
	return &promoService{
		promoRepo: promoRepo,
		now:       time.Now,
		logger:    logger.With().Str("service", "promo").Logger(),
	}
}

// List returns promo codes. With activeOnly, expired codes are left out as well.
func (s *promoService) List(ctx context.Context, activeOnly bool) ([]model.PromoCode, error) {
	promos, err := s.promoRepo.List(ctx, activeOnly)
	if err != nil {
		s.logger.Error().Err(err).Bool("active_only", activeOnly).Msg("failed to list promos")
		return nil, fmt.Errorf("failed to list promos: %w", err)
	}

	if !activeOnly {
		if promos == nil {
			promos = []model.PromoCode{}
		}
		return promos, nil
	}

	now := s.now()
	live := make([]model.PromoCode, 0, len(promos))
	for _, p := range promos {
		if !p.Expired(now) {
			live = append(live, p)
		}
	}
	return live, nil
}

func (s *promoService) GetByID(ctx context.Context, id uuid.UUID) (*model.PromoCode, error) {
	p, err := s.promoRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("promo_id", id.String()).Msg("failed to get promo")
		return nil, fmt.Errorf("failed to get promo: %w", err)
	}
	if p == nil {
		return nil, model.ErrPromoNotFound
	}
	return p, nil
}

// Create validates and stores a new definition. Usage always starts at zero.
func (s *promoService) Create(ctx context.Context, p *model.PromoCode) (*model.PromoCode, error) {
	if p == nil {
		return nil, model.ErrInvalidRequest
	}
	p.Code = model.NormalizeCode(p.Code)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	p.ID = uuid.New()
	p.UsedCount = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.promoRepo.Create(ctx, p); err != nil {
		if _, ok := model.AsDomainError(err); ok {
			return nil, err
		}
		s.logger.Error().Err(err).Str("code", p.Code).Msg("failed to create promo")
		return nil, fmt.Errorf("failed to create promo: %w", err)
	}

	s.logger.Info().Str("code", p.Code).Str("mode", string(p.Mode)).Msg("promo created")
	return p, nil
}

// Update replaces the definition of id. The stored usage count is kept.
func (s *promoService) Update(ctx context.Context, id uuid.UUID, p *model.PromoCode) (*model.PromoCode, error) {
	if p == nil {
		return nil, model.ErrInvalidRequest
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.ID = id
	p.Code = model.NormalizeCode(p.Code)
	p.UsedCount = existing.UsedCount
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.promoRepo.Update(ctx, p); err != nil {
		if _, ok := model.AsDomainError(err); ok {
			return nil, err
		}
		s.logger.Error().Err(err).Str("promo_id", id.String()).Msg("failed to update promo")
		return nil, fmt.Errorf("failed to update promo: %w", err)
	}

	s.logger.Info().Str("code", p.Code).Msg("promo updated")
	return p, nil
}

func (s *promoService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.promoRepo.SetActive(ctx, id, active); err != nil {
		if _, ok := model.AsDomainError(err); ok {
			return err
		}
		s.logger.Error().Err(err).Str("promo_id", id.String()).Msg("failed to set promo status")
		return fmt.Errorf("failed to set promo status: %w", err)
	}
	s.logger.Info().Str("promo_id", id.String()).Bool("active", active).Msg("promo status changed")
	return nil
}

func (s *promoService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.promoRepo.Delete(ctx, id); err != nil {
		if _, ok := model.AsDomainError(err); ok {
			return err
		}
		s.logger.Error().Err(err).Str("promo_id", id.String()).Msg("failed to delete promo")
		return fmt.Errorf("failed to delete promo: %w", err)
	}
	s.logger.Info().Str("promo_id", id.String()).Msg("promo deleted")
	return nil
}
