package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "Unpaid"
	PaymentPartiallyPaid PaymentStatus = "Partially Paid"
	PaymentPaid          PaymentStatus = "Paid"
	PaymentExpired       PaymentStatus = "Expired"
)

// PaymentStatusFor derives the status from what has been paid. Expired is set
// only by a lapse and is not derived.
func PaymentStatusFor(totalPaid, totalPremium decimal.Decimal) PaymentStatus {
	switch {
	case totalPaid.GreaterThanOrEqual(totalPremium):
		return PaymentPaid
	case totalPaid.IsPositive():
		return PaymentPartiallyPaid
	default:
		return PaymentUnpaid
	}
}

// PremiumPayment is the premium ledger of one policy term.
type PremiumPayment struct {
	ID               string          `json:"id"`
	PolicyHolderID   string          `json:"policy_holder_id"`
	Term             int             `json:"term"`
	Interval         PaymentInterval `json:"payment_interval"`
	AnnualPremium    decimal.Decimal `json:"annual_premium"`
	IntervalPayment  decimal.Decimal `json:"interval_payment"`
	TotalPremium     decimal.Decimal `json:"total_premium"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingPremium decimal.Decimal `json:"remaining_premium"`
	Status           PaymentStatus   `json:"payment_status"`
	NextPaymentDate  *time.Time      `json:"next_payment_date,omitempty"`
	FineDue          decimal.Decimal `json:"fine_due"`     // total fines assessed this term
	FinePaid         decimal.Decimal `json:"fine_paid"`    // total fines paid this term
	FineCarried      decimal.Decimal `json:"fine_carried"` // fines locked in from closed periods
	PaymentsMade     int             `json:"payments_made"`
	GSVValue         decimal.Decimal `json:"gsv_value"`
	SSVValue         decimal.Decimal `json:"ssv_value"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewPremiumPayment opens the ledger for a term priced by q, first due on firstDue.
func NewPremiumPayment(id, holderID string, term int, q PremiumQuote, firstDue, now time.Time) PremiumPayment {
	due := DateOf(firstDue)
	p := PremiumPayment{
		ID:              id,
		PolicyHolderID:  holderID,
		Term:            term,
		NextPaymentDate: &due,
		CreatedAt:       now,
	}
	p.Reprice(q, now)
	return p
}

// Reprice applies a new premium quote, keeping what has already been paid.
func (p *PremiumPayment) Reprice(q PremiumQuote, now time.Time) {
	p.Interval = q.Interval
	p.AnnualPremium = q.AnnualPremium
	p.IntervalPayment = q.IntervalPayment
	p.TotalPremium = q.TotalPremium
	p.refreshBalance()
	p.UpdatedAt = now
}

func (p *PremiumPayment) refreshBalance() {
	p.RemainingPremium = maxZero(p.TotalPremium.Sub(p.TotalPaid))
	if p.Status != PaymentExpired {
		p.Status = PaymentStatusFor(p.TotalPaid, p.TotalPremium)
	}
}

func (p PremiumPayment) FullyPaid() bool {
	return p.TotalPaid.GreaterThanOrEqual(p.TotalPremium)
}

// OutstandingFine is the assessed fine not yet paid.
func (p PremiumPayment) OutstandingFine() decimal.Decimal {
	return maxZero(p.FineDue.Sub(p.FinePaid))
}

// DueAmount is what one period costs: the interval payment, or less on the final period.
func (p PremiumPayment) DueAmount() decimal.Decimal {
	return decimal.Min(p.IntervalPayment, p.RemainingPremium)
}

// IsCurrentPeriodPaid reports whether today falls inside a period already
// covered: previous due date <= today < next due date.
func (p PremiumPayment) IsCurrentPeriodPaid(today time.Time) bool {
	if p.PaymentsMade == 0 || p.NextPaymentDate == nil || p.Interval.Months() == 0 {
		return false
	}
	today = DateOf(today)
	prev := AddMonths(*p.NextPaymentDate, -p.Interval.Months())
	return !today.Before(prev) && today.Before(*p.NextPaymentDate)
}

// CalculateFine returns the late fine for a payment due on nextDue:
// interval * pct/100 * (daysLate - grace) / 30, rounded, zero inside the grace window.
func CalculateFine(nextDue *time.Time, interval decimal.Decimal, today time.Time, t Terms) decimal.Decimal {
	if nextDue == nil {
		return decimal.Zero
	}
	daysLate := DaysBetween(*nextDue, today)
	if daysLate <= t.FineGraceDays {
		return decimal.Zero
	}
	fine := interval.
		Mul(t.FineMonthlyPercent).Div(hundred).
		Mul(decimal.NewFromInt(int64(daysLate - t.FineGraceDays))).
		Div(decimal.NewFromInt(30))
	if t.FineCapPercent.IsPositive() {
		fine = decimal.Min(fine, PercentOf(interval, t.FineCapPercent))
	}
	return maxZero(RoundMoney(fine))
}

// AssessFine brings FineDue up to date for today. Repeated calls on the same
// day do not change it, and it never decreases.
func (p *PremiumPayment) AssessFine(today time.Time, t Terms) decimal.Decimal {
	if p.Status == PaymentExpired || p.FullyPaid() {
		return p.OutstandingFine()
	}
	assessed := p.FineCarried.Add(CalculateFine(p.NextPaymentDate, p.IntervalPayment, today, t))
	p.FineDue = decimal.Max(p.FineDue, assessed)
	return p.OutstandingFine()
}

// PaymentReceipt describes how an accepted amount was applied.
type PaymentReceipt struct {
	Amount          decimal.Decimal `json:"amount"`
	Principal       decimal.Decimal `json:"principal"`
	FinePayment     decimal.Decimal `json:"fine_payment"`
	FineCarried     decimal.Decimal `json:"fine_carried"` // left outstanding into the next period
	FineOnly        bool            `json:"fine_only"`
	PeriodsCovered  int             `json:"periods_covered"`
	FirstPayment    bool            `json:"first_payment"`
	Status          PaymentStatus   `json:"payment_status"`
	NextPaymentDate *time.Time      `json:"next_payment_date,omitempty"`
}

// AddPayment applies amount to the ledger. Checks run in this order:
// surrendered policy, non-positive amount, expired or fully paid ledger,
// current period already paid (only the exact outstanding fine is then taken),
// partial payment, overpayment.
func (p *PremiumPayment) AddPayment(amount decimal.Decimal, holder PolicyStatus, today time.Time, t Terms) (PaymentReceipt, error) {
	today = DateOf(today)

	// 1) Lockouts and obviously bad input
	if holder == PolicyStatusSurrendered {
		return PaymentReceipt{}, ErrPolicySurrendered
	}
	if holder != PolicyStatusActive || p.Status == PaymentExpired {
		return PaymentReceipt{}, fmt.Errorf("%w: policy is not accepting payments (%s)", ErrValidation, holder)
	}
	if !amount.IsPositive() {
		return PaymentReceipt{}, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if p.FullyPaid() {
		return PaymentReceipt{}, fmt.Errorf("%w: premium already fully paid", ErrValidation)
	}

	outstanding := p.AssessFine(today, t)

	// 2) Period already covered: only the fine can be settled
	if p.IsCurrentPeriodPaid(today) {
		if !outstanding.IsPositive() {
			return PaymentReceipt{}, fmt.Errorf("%w: current period already paid, pay again next period", ErrValidation)
		}
		if !amount.Equal(outstanding) {
			return PaymentReceipt{}, fmt.Errorf("%w: current period already paid, only the outstanding fine of %s is accepted",
				ErrValidation, outstanding.StringFixed(2))
		}
		p.FinePaid = p.FinePaid.Add(amount)
		p.UpdatedAt = today
		return PaymentReceipt{
			Amount:          amount,
			Principal:       decimal.Zero,
			FinePayment:     amount,
			FineOnly:        true,
			Status:          p.Status,
			NextPaymentDate: p.NextPaymentDate,
		}, nil
	}

	// 3) Amount bounds
	due := p.DueAmount()
	if amount.LessThan(due) {
		return PaymentReceipt{}, fmt.Errorf("%w: amount %s is less than the required premium %s",
			ErrValidation, amount.StringFixed(2), due.StringFixed(2))
	}
	if ceiling := p.RemainingPremium.Add(outstanding); amount.GreaterThan(ceiling) {
		return PaymentReceipt{}, fmt.Errorf("%w: amount %s exceeds the remaining premium and fines %s",
			ErrValidation, amount.StringFixed(2), ceiling.StringFixed(2))
	}

	// 4) Split into fine and principal; excess over the due amount pays the fine first
	finePayment := decimal.Zero
	if amount.GreaterThan(due) && outstanding.IsPositive() {
		finePayment = decimal.Min(amount.Sub(due), outstanding)
	}
	principal := amount.Sub(finePayment)

	receipt := PaymentReceipt{
		Amount:       amount,
		Principal:    principal,
		FinePayment:  finePayment,
		FineCarried:  outstanding.Sub(finePayment),
		FirstPayment: p.PaymentsMade == 0,
	}

	// 5) Apply
	p.TotalPaid = p.TotalPaid.Add(principal)
	p.FinePaid = p.FinePaid.Add(finePayment)
	p.FineCarried = p.FineDue
	p.refreshBalance()

	// 6) Advance the due date one interval per whole interval covered
	periods := 1
	if p.IntervalPayment.IsPositive() {
		periods = max(1, int(principal.Div(p.IntervalPayment).IntPart()))
	}
	p.PaymentsMade += periods
	switch {
	case p.FullyPaid():
		p.NextPaymentDate = nil
	case p.NextPaymentDate != nil && p.Interval.Months() > 0:
		next := AddMonths(*p.NextPaymentDate, periods*p.Interval.Months())
		p.NextPaymentDate = &next
	}
	p.UpdatedAt = today

	receipt.PeriodsCovered = periods
	receipt.Status = p.Status
	receipt.NextPaymentDate = p.NextPaymentDate
	return receipt, nil
}

// Lapsed reports whether the ledger has gone unpaid for longer than the lapse window.
func (p PremiumPayment) Lapsed(today time.Time, t Terms) bool {
	if p.NextPaymentDate == nil || p.Status == PaymentExpired {
		return false
	}
	return DaysBetween(*p.NextPaymentDate, today) > t.LapseDays
}

// PaidYears is the number of premium-years paid, used for SSV eligibility.
func (p PremiumPayment) PaidYears(durationYears int) int {
	if p.Interval == IntervalSingle {
		if p.PaymentsMade > 0 {
			return durationYears
		}
		return 0
	}
	return p.PaymentsMade / p.Interval.PerYear()
}

type PaymentRepo interface {
	// Current returns the ledger of the holder's latest term.
	Current(ctx context.Context, policyHolderID string) (PremiumPayment, error)
	Create(ctx context.Context, p PremiumPayment) error
	Update(ctx context.Context, p PremiumPayment) error
}

var ErrPaymentNotFound = fmt.Errorf("%w: premium payment not found", ErrNotFound)
