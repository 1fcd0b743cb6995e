package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

// generate_sample_promos writes gzipped JSON-lines promo files for PROMO_SEED_FILES.
// File 1: percentage and flat codes
// File 2: a bundle code, a product-scoped code, and an update of WELCOME10
// Seeding both files in order leaves WELCOME10 at 15%. Re-seeding never re-activates
// a code an admin switched off.
func main() {
	dataDir := "data/promos"

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	expiry := time.Now().AddDate(0, 6, 0).UTC().Truncate(24 * time.Hour)

	files := map[string][]model.PromoCode{
		"promos1.jsonl.gz": {
			{
				Code:              "WELCOME10",
				Description:       "10% off your first order, up to 200",
				Mode:              model.PromoModePercent,
				Value:             money(10),
				MaxDiscount:       money(200),
				MinimumOrder:      money(499),
				OneTimeUsePerUser: true,
				Active:            true,
				ExpiryDate:        expiry,
			},
			{
				Code:         "FLAT100",
				Description:  "100 off orders above 999",
				Mode:         model.PromoModeFlat,
				Value:        money(100),
				MinimumOrder: money(999),
				MaxUses:      intPtr(500),
				Active:       true,
				ExpiryDate:   expiry,
			},
		},
		"promos2.jsonl.gz": {
			{
				Code:             "ANY3FOR999",
				Description:      "Any 3 mugs or vases for 999",
				Mode:             model.PromoModeBundle,
				Bundle:           &model.Bundle{MinItems: 3, BundlePrice: decimal.NewFromInt(999)},
				EligibleProducts: []string{"mug-1", "mug-2", "vase-1"},
				Active:           true,
				ExpiryDate:       expiry,
			},
			{
				Code:             "KURTA20",
				Description:      "20% off kurtas",
				Mode:             model.PromoModePercent,
				Value:            money(20),
				EligibleProducts: []string{"kurta-1", "kurta-2"},
				Active:           true,
				ExpiryDate:       expiry,
			},
			{
				Code:              "WELCOME10",
				Description:       "15% off your first order, up to 250",
				Mode:              model.PromoModePercent,
				Value:             money(15),
				MaxDiscount:       money(250),
				MinimumOrder:      money(499),
				OneTimeUsePerUser: true,
				Active:            true,
				ExpiryDate:        expiry,
			},
		},
	}

	for filename, promos := range files {
		filePath := filepath.Join(dataDir, filename)

		if err := createPromoFile(filePath, promos); err != nil {
			log.Fatalf("Failed to create %s: %v", filename, err)
		}

		fmt.Printf("Created %s with %d promos\n", filePath, len(promos))
	}

	fmt.Println("\nSample promo files created successfully!")
	fmt.Printf("\nPROMO_SEED_FILES=%s,%s\n",
		filepath.Join(dataDir, "promos1.jsonl.gz"),
		filepath.Join(dataDir, "promos2.jsonl.gz"))
}

func createPromoFile(filePath string, promos []model.PromoCode) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	if _, err := fmt.Fprintf(gzipWriter, "# generated %s\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	enc := json.NewEncoder(gzipWriter)
	for _, p := range promos {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid promo %s: %w", p.Code, err)
		}
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to write promo: %w", err)
		}
	}

	return nil
}

func money(v int64) *model.Money {
	m := decimal.NewFromInt(v)
	return &m
}

func intPtr(v int) *int { return &v }
