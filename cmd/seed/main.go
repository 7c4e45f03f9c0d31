package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/app"
	"github.com/MrKriegler/go-policyadmin/internal/core"
	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
	"github.com/MrKriegler/go-policyadmin/internal/platform/logging"
)

// Ages a policyholder can be priced at.
const (
	minAge = 18
	maxAge = 100
)

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.Env, cfg.LogLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}
	log.Info("done seeding", "rates_db", cfg.RatesDBType)
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	products, bands := seedProducts(), seedBands()

	// Refuse to write tables that would leave an age unpriceable.
	rt, err := core.NewRateTables(products, bands)
	if err != nil {
		return err
	}
	if gaps := rt.MortalityGaps(minAge, maxAge); len(gaps) > 0 {
		return fmt.Errorf("mortality table has no band for ages %v", gaps)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	for _, p := range products {
		if _, err := a.Rates.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		log.Info("seeded product", "product_id", p.ID, "name", p.Name)
	}

	existing, err := a.Rates.ListBands(ctx, "")
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, b := range existing {
		have[b.ID] = true
	}

	added := 0
	for _, b := range bands {
		if have[b.ID] {
			continue
		}
		if _, err := a.Rates.AddBand(ctx, b); err != nil {
			return fmt.Errorf("seed band %s: %w", b.ID, err)
		}
		added++
	}
	log.Info("seeded rate bands", "added", added, "already_present", len(bands)-added)
	return nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedProducts() []core.Product {
	return []core.Product{
		{
			ID:             "END-20",
			Name:           "Endowment Savings 20",
			PolicyType:     core.PolicyTypeEndowment,
			BaseMultiplier: d("1.00"),
			MinSumAssured:  d("100000"),
			MaxSumAssured:  d("10000000"),
			IncludeADB:     true,
			ADBPercent:     d("5"),
		},
		{
			ID:             "END-10",
			Name:           "Endowment Short Term 10",
			PolicyType:     core.PolicyTypeEndowment,
			BaseMultiplier: d("1.15"),
			MinSumAssured:  d("50000"),
			MaxSumAssured:  d("5000000"),
		},
		{
			ID:             "TERM-30",
			Name:           "Pure Term Protection",
			PolicyType:     core.PolicyTypeTerm,
			BaseMultiplier: d("1.00"),
			MinSumAssured:  d("500000"),
			MaxSumAssured:  d("50000000"),
			IncludeADB:     true,
			ADBPercent:     d("5"),
			IncludePTD:     true,
			PTDPercent:     d("3"),
		},
	}
}

func seedBands() []core.RateBand {
	mortality := []struct {
		min, max int
		rate     string
	}{
		{18, 25, "1.20"},
		{26, 30, "1.45"},
		{31, 35, "1.80"},
		{36, 40, "2.40"},
		{41, 45, "3.30"},
		{46, 50, "4.70"},
		{51, 55, "6.90"},
		{56, 60, "10.20"},
		{61, 65, "15.40"},
		{66, 70, "23.50"},
		{71, 80, "41.00"},
		{81, 90, "88.00"},
		{91, 100, "175.00"},
	}

	var bands []core.RateBand
	for _, m := range mortality {
		bands = append(bands, core.RateBand{
			ID:    fmt.Sprintf("mortality-%d-%d", m.min, m.max),
			Table: core.TableMortality,
			Min:   m.min,
			Max:   m.max,
			Value: d(m.rate),
		})
	}

	bands = append(bands,
		core.RateBand{ID: "duration-endowment-1-10", Table: core.TableDurationFactor, Key: string(core.PolicyTypeEndowment), Min: 1, Max: 10, Value: d("1.25")},
		core.RateBand{ID: "duration-endowment-11-20", Table: core.TableDurationFactor, Key: string(core.PolicyTypeEndowment), Min: 11, Max: 20, Value: d("1.10")},
		core.RateBand{ID: "duration-endowment-21-40", Table: core.TableDurationFactor, Key: string(core.PolicyTypeEndowment), Min: 21, Max: 40, Value: d("1.00")},
		core.RateBand{ID: "duration-term-1-40", Table: core.TableDurationFactor, Key: string(core.PolicyTypeTerm), Min: 1, Max: 40, Value: d("1.00")},

		core.RateBand{ID: "bonus-endowment-1-5", Table: core.TableBonusRate, Key: string(core.PolicyTypeEndowment), Min: 1, Max: 5, Value: d("35")},
		core.RateBand{ID: "bonus-endowment-6-40", Table: core.TableBonusRate, Key: string(core.PolicyTypeEndowment), Min: 6, Max: 40, Value: d("45")},
	)

	for _, p := range []string{"END-20", "END-10"} {
		bands = append(bands,
			core.RateBand{ID: "gsv-" + p + "-2-3", Table: core.TableGSVRate, Key: p, Min: 2, Max: 3, Value: d("30")},
			core.RateBand{ID: "gsv-" + p + "-4-7", Table: core.TableGSVRate, Key: p, Min: 4, Max: 7, Value: d("50")},
			core.RateBand{ID: "gsv-" + p + "-8-40", Table: core.TableGSVRate, Key: p, Min: 8, Max: 40, Value: d("70")},
			core.RateBand{ID: "ssv-" + p + "-3-40", Table: core.TableSSVConfig, Key: p, Min: 3, Max: 40, Value: d("45"), EligibilityYears: 3},
		)
	}
	return bands
}
