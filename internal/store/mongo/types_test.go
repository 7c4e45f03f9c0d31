package mongo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

func TestProductDocKeepsExactMoney(t *testing.T) {
	p := core.Product{
		ID:             "END-10",
		Name:           "Endowment 10",
		PolicyType:     core.PolicyTypeEndowment,
		BaseMultiplier: decimal.RequireFromString("1.2"),
		MinSumAssured:  decimal.RequireFromString("10000.00"),
		MaxSumAssured:  decimal.RequireFromString("5000000.01"),
		IncludeADB:     true,
		ADBPercent:     decimal.RequireFromString("0.10"),
		PTDPercent:     decimal.Zero,
	}

	doc, err := toProductDoc(p)
	require.NoError(t, err)
	got, err := fromProductDoc(doc)
	require.NoError(t, err)

	assert.True(t, got.MaxSumAssured.Equal(p.MaxSumAssured), "got %s", got.MaxSumAssured)
	assert.True(t, got.ADBPercent.Equal(p.ADBPercent))
	assert.Equal(t, core.PolicyTypeEndowment, got.PolicyType)
}

func TestRateBandDocRejectsOutOfRangeValues(t *testing.T) {
	huge := decimal.RequireFromString("1234567890123456789012345678901234567891.5")
	_, err := toRateBandDoc(core.RateBand{ID: "b", Table: core.TableMortality, Min: 18, Max: 30, Value: huge})
	require.Error(t, err)
}
