package promo

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for reading gzipped promo files from disk.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based promo loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "promo-loader").Logger(),
	}
}

// Load reads a gzipped promo file.
// The file is expected to contain one JSON promo definition per line.
func (l *fileLoader) Load(ctx context.Context, filePath string) ([]model.PromoCode, error) {
	l.logger.Info().Str("file", filePath).Msg("loading promo file")

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open promo file")
		return nil, fmt.Errorf("failed to open promo file %s: %w", filePath, err)
	}
	defer file.Close()

	promos, err := decodeGzipLines(ctx, file)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("error reading promo file")
		return nil, fmt.Errorf("error reading promo file %s: %w", filePath, err)
	}

	l.logger.Info().
		Str("file", filePath).
		Int("promos_loaded", len(promos)).
		Msg("promo file loaded successfully")

	return promos, nil
}

// decodeGzipLines parses gzipped JSON lines. Blank lines and lines starting with '#' are skipped.
func decodeGzipLines(ctx context.Context, r io.Reader) ([]model.PromoCode, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var promos []model.PromoCode
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var p model.PromoCode
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		p.Code = model.NormalizeCode(p.Code)
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", lineNo, p.Code, err)
		}
		promos = append(promos, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return promos, nil
}
