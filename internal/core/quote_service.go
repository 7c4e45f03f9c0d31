package core

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

func (s *Lifecycle) QuotePremium(ctx context.Context, in QuoteInput) (PremiumQuote, error) {
	if in.ProductID == "" {
		return PremiumQuote{}, fmt.Errorf("%w: missing product_id", ErrValidation)
	}
	rates, err := s.rates.Snapshot(ctx)
	if err != nil {
		return PremiumQuote{}, err
	}
	product, ok := rates.Product(in.ProductID)
	if !ok {
		return PremiumQuote{}, ErrProductNotFound
	}

	today := DateOf(s.clock())
	if err := in.Validate(product, s.terms, today); err != nil {
		return PremiumQuote{}, err
	}

	loading := decimal.Zero
	if in.Risk != nil {
		age := AgeOn(in.DateOfBirth, today)
		loading = AssessRisk(*in.Risk, age, in.SumAssured, product.MaxSumAssured).LoadingPercent
	}

	return CalculatePremium(rates, PremiumInput{
		Product:        product,
		SumAssured:     in.SumAssured,
		DateOfBirth:    in.DateOfBirth,
		DurationYears:  in.DurationYears,
		Interval:       in.PaymentInterval,
		LoadingPercent: loading,
		AsOf:           today,
	})
}
