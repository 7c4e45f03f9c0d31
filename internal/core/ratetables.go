package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// RateTable names one of the actuarial lookup tables.
type RateTable string

const (
	TableMortality      RateTable = "mortality"       // key: empty, range: age, value: rate per 1000
	TableDurationFactor RateTable = "duration_factor" // key: policy type, range: duration years
	TableBonusRate      RateTable = "bonus_rate"      // key: policy type, range: policy year, value: per 1000
	TableGSVRate        RateTable = "gsv_rate"        // key: product id, range: policy year, value: %
	TableSSVConfig      RateTable = "ssv_config"      // key: product id, range: policy year, value: factor %
)

var rateTables = []RateTable{TableMortality, TableDurationFactor, TableBonusRate, TableGSVRate, TableSSVConfig}

func (t RateTable) Valid() bool {
	for _, known := range rateTables {
		if t == known {
			return true
		}
	}
	return false
}

// RateBand is one row of a rate table: an inclusive [Min, Max] range under a key.
type RateBand struct {
	ID               string          `json:"id"`
	Table            RateTable       `json:"table"`
	Key              string          `json:"key,omitempty"`
	Min              int             `json:"min"`
	Max              int             `json:"max"`
	Value            decimal.Decimal `json:"value"`
	EligibilityYears int             `json:"eligibility_years,omitempty"`
}

func (b RateBand) Validate() error {
	if !b.Table.Valid() {
		return fmt.Errorf("%w: unknown rate table %q", ErrValidation, b.Table)
	}
	if b.Min < 0 || b.Max < b.Min {
		return fmt.Errorf("%w: invalid range %d-%d", ErrValidation, b.Min, b.Max)
	}
	if b.Value.IsNegative() {
		return fmt.Errorf("%w: rate value must be >= 0", ErrValidation)
	}
	switch b.Table {
	case TableMortality:
		if b.Key != "" {
			return fmt.Errorf("%w: mortality bands take no key", ErrValidation)
		}
	case TableDurationFactor, TableBonusRate:
		if !PolicyType(b.Key).Valid() {
			return fmt.Errorf("%w: %s bands must be keyed by policy type", ErrValidation, b.Table)
		}
	case TableGSVRate, TableSSVConfig:
		if b.Key == "" {
			return fmt.Errorf("%w: %s bands must be keyed by product", ErrValidation, b.Table)
		}
	}
	if b.EligibilityYears < 0 || (b.EligibilityYears > 0 && b.Table != TableSSVConfig) {
		return fmt.Errorf("%w: eligibility years only apply to ssv bands", ErrValidation)
	}
	return nil
}

func (b RateBand) Covers(n int) bool {
	return n >= b.Min && n <= b.Max
}

// Overlaps reports whether both bands belong to the same table and key and
// share at least one value.
func (b RateBand) Overlaps(o RateBand) bool {
	return b.Table == o.Table && b.Key == o.Key && b.Min <= o.Max && o.Min <= b.Max
}

// CheckOverlap rejects b if it overlaps any existing band other than itself.
func CheckOverlap(existing []RateBand, b RateBand) error {
	for _, e := range existing {
		if e.ID != "" && e.ID == b.ID {
			continue
		}
		if b.Overlaps(e) {
			return fmt.Errorf("%w: %s band %d-%d overlaps %d-%d", ErrValidation, b.Table, b.Min, b.Max, e.Min, e.Max)
		}
	}
	return nil
}

type bandKey struct {
	table RateTable
	key   string
}

// RateTables is an immutable snapshot of products and rate bands.
type RateTables struct {
	products map[string]Product
	bands    map[bandKey][]RateBand
}

// NewRateTables validates the bands and builds a snapshot. It fails on any
// overlap so that lookups are unambiguous.
func NewRateTables(products []Product, bands []RateBand) (*RateTables, error) {
	rt := &RateTables{
		products: make(map[string]Product, len(products)),
		bands:    make(map[bandKey][]RateBand),
	}
	for _, p := range products {
		rt.products[p.ID] = p
	}
	for _, b := range bands {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("band %s: %w", b.ID, err)
		}
		k := bandKey{b.Table, b.Key}
		if err := CheckOverlap(rt.bands[k], b); err != nil {
			return nil, err
		}
		rt.bands[k] = append(rt.bands[k], b)
	}
	for k := range rt.bands {
		sort.Slice(rt.bands[k], func(i, j int) bool { return rt.bands[k][i].Min < rt.bands[k][j].Min })
	}
	return rt, nil
}

func (rt *RateTables) Product(id string) (Product, bool) {
	p, ok := rt.products[id]
	return p, ok
}

func (rt *RateTables) Products() []Product {
	out := make([]Product, 0, len(rt.products))
	for _, p := range rt.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (rt *RateTables) lookup(table RateTable, key string, n int) (RateBand, bool) {
	for _, b := range rt.bands[bandKey{table, key}] {
		if b.Covers(n) {
			return b, true
		}
	}
	return RateBand{}, false
}

// MortalityRate returns the rate per 1000 sum assured for age.
func (rt *RateTables) MortalityRate(age int) (decimal.Decimal, bool) {
	b, ok := rt.lookup(TableMortality, "", age)
	return b.Value, ok
}

func (rt *RateTables) DurationFactor(pt PolicyType, years int) (decimal.Decimal, bool) {
	b, ok := rt.lookup(TableDurationFactor, string(pt), years)
	return b.Value, ok
}

func (rt *RateTables) BonusPerThousand(pt PolicyType, policyYear int) (decimal.Decimal, bool) {
	b, ok := rt.lookup(TableBonusRate, string(pt), policyYear)
	return b.Value, ok
}

func (rt *RateTables) GSVRate(productID string, policyYear int) (decimal.Decimal, bool) {
	b, ok := rt.lookup(TableGSVRate, productID, policyYear)
	return b.Value, ok
}

// SSVConfig returns the band holding the SSV factor and its eligibility years.
func (rt *RateTables) SSVConfig(productID string, policyYear int) (RateBand, bool) {
	return rt.lookup(TableSSVConfig, productID, policyYear)
}

// MortalityGaps lists the ages in [from, to] with no mortality band.
func (rt *RateTables) MortalityGaps(from, to int) []int {
	var gaps []int
	for age := from; age <= to; age++ {
		if _, ok := rt.MortalityRate(age); !ok {
			gaps = append(gaps, age)
		}
	}
	return gaps
}

// RateTableRepo persists products and rate bands.
type RateTableRepo interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	UpsertProduct(ctx context.Context, p Product) error
	// ListBands returns every band of table, or all bands when table is empty.
	ListBands(ctx context.Context, table RateTable) ([]RateBand, error)
	CreateBand(ctx context.Context, b RateBand) error
	DeleteBand(ctx context.Context, id string) error
}

var ErrRateBandNotFound = fmt.Errorf("%w: rate band not found", ErrNotFound)
