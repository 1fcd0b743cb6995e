package promo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	written []model.PromoCode
	err     error
}

func (w *recordingWriter) Upsert(_ context.Context, p *model.PromoCode) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, *p)
	return nil
}

func TestSeeder_Seed_LaterFileWins(t *testing.T) {
	files := map[string][]model.PromoCode{
		"a.gz": {{Code: "SAVE10", Description: "first"}, {Code: "FLAT100"}},
		"b.gz": {{Code: "SAVE10", Description: "second"}},
	}
	loader := &mockLoader{loadFunc: func(_ context.Context, path string) ([]model.PromoCode, error) {
		return files[path], nil
	}}
	writer := &recordingWriter{}

	n, err := NewSeeder(loader, writer, zerolog.Nop()).Seed(context.Background(), []string{"a.gz", "b.gz"})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, writer.written, 2)
	assert.Equal(t, "SAVE10", writer.written[0].Code)
	assert.Equal(t, "second", writer.written[0].Description)
	for _, p := range writer.written {
		assert.NotEqual(t, uuid.Nil, p.ID)
		assert.False(t, p.CreatedAt.IsZero())
		assert.False(t, p.UpdatedAt.IsZero())
	}
}

func TestSeeder_Seed_LoadFailure(t *testing.T) {
	loader := &mockLoader{loadFunc: func(_ context.Context, path string) ([]model.PromoCode, error) {
		if path == "bad.gz" {
			return nil, errors.New("corrupt")
		}
		return []model.PromoCode{{Code: "OK"}}, nil
	}}
	writer := &recordingWriter{}

	_, err := NewSeeder(loader, writer, zerolog.Nop()).Seed(context.Background(), []string{"good.gz", "bad.gz"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.gz")
	assert.Empty(t, writer.written, "nothing is written when any file fails")
}

func TestSeeder_Seed_WriteFailure(t *testing.T) {
	loader := &mockLoader{loadFunc: func(context.Context, string) ([]model.PromoCode, error) {
		return []model.PromoCode{{Code: "OK"}}, nil
	}}

	_, err := NewSeeder(loader, &recordingWriter{err: errors.New("db down")}, zerolog.Nop()).
		Seed(context.Background(), []string{"a.gz"})

	assert.ErrorContains(t, err, "failed to upsert promo OK")
}

func TestSeeder_Seed_NoFiles(t *testing.T) {
	n, err := NewSeeder(&mockLoader{}, &recordingWriter{}, zerolog.Nop()).Seed(context.Background(), nil)

	require.NoError(t, err)
	assert.Zero(t, n)
}
