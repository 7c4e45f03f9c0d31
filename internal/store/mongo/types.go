package mongo

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

const (
	ColProducts  = "products"
	ColRateBands = "rate_bands"
)

// Money and rates are stored as Decimal128, never as float.
type ProductDoc struct {
	ID             string               `bson:"_id"`
	Name           string               `bson:"name"`
	PolicyType     string               `bson:"policy_type"`
	BaseMultiplier primitive.Decimal128 `bson:"base_multiplier"`
	MinSumAssured  primitive.Decimal128 `bson:"min_sum_assured"`
	MaxSumAssured  primitive.Decimal128 `bson:"max_sum_assured"`
	IncludeADB     bool                 `bson:"include_adb"`
	ADBPercent     primitive.Decimal128 `bson:"adb_percent"`
	IncludePTD     bool                 `bson:"include_ptd"`
	PTDPercent     primitive.Decimal128 `bson:"ptd_percent"`
}

type RateBandDoc struct {
	ID               string               `bson:"_id"`
	Table            string               `bson:"table"`
	Key              string               `bson:"key"`
	Min              int                  `bson:"min"`
	Max              int                  `bson:"max"`
	Value            primitive.Decimal128 `bson:"value"`
	EligibilityYears int                  `bson:"eligibility_years,omitempty"`
}

// decimalEncoder converts a run of fields and keeps the first failure.
type decimalEncoder struct{ err error }

func (e *decimalEncoder) enc(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("encode decimal128 %s: %w", d.String(), err)
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal128 %s: %w", v.String(), err)
	}
	return d, nil
}

func toProductDoc(p core.Product) (ProductDoc, error) {
	var e decimalEncoder
	doc := ProductDoc{
		ID:             p.ID,
		Name:           p.Name,
		PolicyType:     string(p.PolicyType),
		BaseMultiplier: e.enc(p.BaseMultiplier),
		MinSumAssured:  e.enc(p.MinSumAssured),
		MaxSumAssured:  e.enc(p.MaxSumAssured),
		IncludeADB:     p.IncludeADB,
		ADBPercent:     e.enc(p.ADBPercent),
		IncludePTD:     p.IncludePTD,
		PTDPercent:     e.enc(p.PTDPercent),
	}
	return doc, e.err
}

func fromProductDoc(d ProductDoc) (core.Product, error) {
	p := core.Product{
		ID:         d.ID,
		Name:       d.Name,
		PolicyType: core.PolicyType(d.PolicyType),
		IncludeADB: d.IncludeADB,
		IncludePTD: d.IncludePTD,
	}
	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src primitive.Decimal128
	}{
		{&p.BaseMultiplier, d.BaseMultiplier},
		{&p.MinSumAssured, d.MinSumAssured},
		{&p.MaxSumAssured, d.MaxSumAssured},
		{&p.ADBPercent, d.ADBPercent},
		{&p.PTDPercent, d.PTDPercent},
	} {
		if *f.dst, err = fromDecimal128(f.src); err != nil {
			return core.Product{}, fmt.Errorf("product %s: %w", d.ID, err)
		}
	}
	return p, nil
}

func toRateBandDoc(b core.RateBand) (RateBandDoc, error) {
	var e decimalEncoder
	doc := RateBandDoc{
		ID:               b.ID,
		Table:            string(b.Table),
		Key:              b.Key,
		Min:              b.Min,
		Max:              b.Max,
		Value:            e.enc(b.Value),
		EligibilityYears: b.EligibilityYears,
	}
	return doc, e.err
}

func fromRateBandDoc(d RateBandDoc) (core.RateBand, error) {
	v, err := fromDecimal128(d.Value)
	if err != nil {
		return core.RateBand{}, fmt.Errorf("rate band %s: %w", d.ID, err)
	}
	return core.RateBand{
		ID:               d.ID,
		Table:            core.RateTable(d.Table),
		Key:              d.Key,
		Min:              d.Min,
		Max:              d.Max,
		Value:            v,
		EligibilityYears: d.EligibilityYears,
	}, nil
}
