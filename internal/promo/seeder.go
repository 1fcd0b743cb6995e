package promo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Seeder loads promo definition files and upserts them into the store.
type Seeder struct {
	loader Loader
	writer Writer
	logger zerolog.Logger
}

// NewSeeder creates a seeder.
func NewSeeder(loader Loader, writer Writer, logger zerolog.Logger) *Seeder {
	return &Seeder{
		loader: loader,
		writer: writer,
		logger: logger.With().Str("component", "promo-seeder").Logger(),
	}
}

// Seed loads every file concurrently and upserts the merged definitions.
// When a code appears in several files the later file in paths wins.
// Usage counters of existing promos are preserved by the writer.
func (s *Seeder) Seed(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	s.logger.Info().Int("file_count", len(paths)).Msg("seeding promo codes")

	type loadResult struct {
		index  int
		promos []model.PromoCode
		err    error
	}

	resultChan := make(chan loadResult, len(paths))
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()

			promos, err := s.loader.Load(ctx, path)
			resultChan <- loadResult{index: index, promos: promos, err: err}
		}(i, path)
	}

	wg.Wait()
	close(resultChan)

	results := make([]loadResult, len(paths))
	for result := range resultChan {
		results[result.index] = result
	}

	merged := make(map[string]model.PromoCode)
	var order []string
	for i, result := range results {
		if result.err != nil {
			s.logger.Error().Err(result.err).Str("file", paths[i]).Msg("failed to load promo file")
			return 0, fmt.Errorf("failed to load promo file %s: %w", paths[i], result.err)
		}
		for _, p := range result.promos {
			if _, seen := merged[p.Code]; !seen {
				order = append(order, p.Code)
			}
			merged[p.Code] = p
		}
	}

	now := time.Now().UTC()
	for _, code := range order {
		p := merged[code]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		if err := s.writer.Upsert(ctx, &p); err != nil {
			s.logger.Error().Err(err).Str("code", code).Msg("failed to upsert promo")
			return 0, fmt.Errorf("failed to upsert promo %s: %w", code, err)
		}
	}

	s.logger.Info().Int("promos_seeded", len(order)).Msg("promo seeding complete")
	return len(order), nil
}
