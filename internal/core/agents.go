package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SalesAgent sells policies and earns commission on premiums collected.
type SalesAgent struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	CommissionRate decimal.Decimal `json:"commission_rate"` // % of premium
	Active         bool            `json:"active"`
	ApplicationID  string          `json:"application_id,omitempty"`
}

func (a SalesAgent) Validate() error {
	if a.ID == "" || a.Name == "" {
		return fmt.Errorf("%w: agent id and name are required", ErrValidation)
	}
	if a.CommissionRate.IsNegative() || a.CommissionRate.GreaterThan(hundred) {
		return fmt.Errorf("%w: commission rate must be 0-100", ErrValidation)
	}
	return nil
}

// AgentReport is one agent's daily totals.
type AgentReport struct {
	AgentID          string          `json:"agent_id"`
	Date             time.Time       `json:"date"`
	PoliciesSold     int             `json:"policies_sold"`
	TotalPremium     decimal.Decimal `json:"total_premium"`
	CommissionEarned decimal.Decimal `json:"commission_earned"`
}

// Record adds a collected premium. A policy counts as sold on its first payment.
func (r *AgentReport) Record(premium, commissionRate decimal.Decimal, firstPayment bool) decimal.Decimal {
	commission := RoundMoney(PercentOf(premium, commissionRate))
	r.TotalPremium = r.TotalPremium.Add(premium)
	r.CommissionEarned = r.CommissionEarned.Add(commission)
	if firstPayment {
		r.PoliciesSold++
	}
	return commission
}

type AgentRepo interface {
	Get(ctx context.Context, id string) (SalesAgent, error)
	Upsert(ctx context.Context, a SalesAgent) error
	// GetReport returns the report for the day, or a zero report when none exists yet.
	GetReport(ctx context.Context, agentID string, date time.Time) (AgentReport, error)
	SaveReport(ctx context.Context, r AgentReport) error
	ListReports(ctx context.Context, date time.Time) ([]AgentReport, error)
}

var ErrAgentNotFound = fmt.Errorf("%w: sales agent not found", ErrNotFound)
