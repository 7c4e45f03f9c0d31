package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

// ---- premium payments ----

type paymentRow struct {
	ID               string          `db:"id"`
	PolicyHolderID   string          `db:"policy_holder_id"`
	Term             int             `db:"term"`
	Interval         string          `db:"payment_interval"`
	AnnualPremium    decimal.Decimal `db:"annual_premium"`
	IntervalPayment  decimal.Decimal `db:"interval_payment"`
	TotalPremium     decimal.Decimal `db:"total_premium"`
	TotalPaid        decimal.Decimal `db:"total_paid"`
	RemainingPremium decimal.Decimal `db:"remaining_premium"`
	Status           string          `db:"status"`
	NextPaymentDate  *time.Time      `db:"next_payment_date"`
	FineDue          decimal.Decimal `db:"fine_due"`
	FinePaid         decimal.Decimal `db:"fine_paid"`
	FineCarried      decimal.Decimal `db:"fine_carried"`
	PaymentsMade     int             `db:"payments_made"`
	GSVValue         decimal.Decimal `db:"gsv_value"`
	SSVValue         decimal.Decimal `db:"ssv_value"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

const paymentColumns = `id, policy_holder_id, term, payment_interval, annual_premium, interval_payment,
	total_premium, total_paid, remaining_premium, status, next_payment_date, fine_due, fine_paid,
	fine_carried, payments_made, gsv_value, ssv_value, created_at, updated_at`

func toPaymentRow(p core.PremiumPayment) paymentRow {
	return paymentRow{
		ID:               p.ID,
		PolicyHolderID:   p.PolicyHolderID,
		Term:             p.Term,
		Interval:         string(p.Interval),
		AnnualPremium:    p.AnnualPremium,
		IntervalPayment:  p.IntervalPayment,
		TotalPremium:     p.TotalPremium,
		TotalPaid:        p.TotalPaid,
		RemainingPremium: p.RemainingPremium,
		Status:           string(p.Status),
		NextPaymentDate:  utcPtr(p.NextPaymentDate),
		FineDue:          p.FineDue,
		FinePaid:         p.FinePaid,
		FineCarried:      p.FineCarried,
		PaymentsMade:     p.PaymentsMade,
		GSVValue:         p.GSVValue,
		SSVValue:         p.SSVValue,
		CreatedAt:        utc(p.CreatedAt),
		UpdatedAt:        utc(p.UpdatedAt),
	}
}

func fromPaymentRow(r paymentRow) core.PremiumPayment {
	return core.PremiumPayment{
		ID:               r.ID,
		PolicyHolderID:   r.PolicyHolderID,
		Term:             r.Term,
		Interval:         core.PaymentInterval(r.Interval),
		AnnualPremium:    r.AnnualPremium,
		IntervalPayment:  r.IntervalPayment,
		TotalPremium:     r.TotalPremium,
		TotalPaid:        r.TotalPaid,
		RemainingPremium: r.RemainingPremium,
		Status:           core.PaymentStatus(r.Status),
		NextPaymentDate:  utcPtr(r.NextPaymentDate),
		FineDue:          r.FineDue,
		FinePaid:         r.FinePaid,
		FineCarried:      r.FineCarried,
		PaymentsMade:     r.PaymentsMade,
		GSVValue:         r.GSVValue,
		SSVValue:         r.SSVValue,
		CreatedAt:        utc(r.CreatedAt),
		UpdatedAt:        utc(r.UpdatedAt),
	}
}

type paymentRepo struct{ q queryer }

func (r paymentRepo) Current(ctx context.Context, holderID string) (core.PremiumPayment, error) {
	var row paymentRow
	err := r.q.GetContext(ctx, &row, `
		SELECT `+paymentColumns+` FROM premium_payments
		WHERE policy_holder_id = $1
		ORDER BY term DESC
		LIMIT 1`, holderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.PremiumPayment{}, core.ErrPaymentNotFound
		}
		return core.PremiumPayment{}, fmt.Errorf("premium_payments.current: %w", err)
	}
	return fromPaymentRow(row), nil
}

func (r paymentRepo) Create(ctx context.Context, p core.PremiumPayment) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO premium_payments (`+paymentColumns+`)
		VALUES (:id, :policy_holder_id, :term, :payment_interval, :annual_premium, :interval_payment,
			:total_premium, :total_paid, :remaining_premium, :status, :next_payment_date, :fine_due,
			:fine_paid, :fine_carried, :payments_made, :gsv_value, :ssv_value, :created_at, :updated_at)`,
		toPaymentRow(p))
	if err != nil {
		return mapWriteErr("premium_payments.insert", err,
			fmt.Errorf("%w: premium payment for term %d exists", core.ErrConflict, p.Term))
	}
	return nil
}

func (r paymentRepo) Update(ctx context.Context, p core.PremiumPayment) error {
	res, err := r.q.NamedExecContext(ctx, `
		UPDATE premium_payments SET
			payment_interval = :payment_interval,
			annual_premium = :annual_premium,
			interval_payment = :interval_payment,
			total_premium = :total_premium,
			total_paid = :total_paid,
			remaining_premium = :remaining_premium,
			status = :status,
			next_payment_date = :next_payment_date,
			fine_due = :fine_due,
			fine_paid = :fine_paid,
			fine_carried = :fine_carried,
			payments_made = :payments_made,
			gsv_value = :gsv_value,
			ssv_value = :ssv_value,
			updated_at = :updated_at
		WHERE id = :id`, toPaymentRow(p))
	if err != nil {
		return fmt.Errorf("premium_payments.update: %w", err)
	}
	return checkAffected("premium_payments.update", res, core.ErrPaymentNotFound)
}

// ---- bonuses ----

type bonusRow struct {
	PolicyHolderID           string          `db:"policy_holder_id"`
	AccruedAmount            decimal.Decimal `db:"accrued_amount"`
	LastAnniversaryProcessed *time.Time      `db:"last_anniversary_processed"`
	UpdatedAt                time.Time       `db:"updated_at"`
}

type bonusRepo struct{ q queryer }

func (r bonusRepo) Get(ctx context.Context, holderID string) (core.Bonus, error) {
	var row bonusRow
	err := r.q.GetContext(ctx, &row, `
		SELECT policy_holder_id, accrued_amount, last_anniversary_processed, updated_at
		FROM bonuses WHERE policy_holder_id = $1`, holderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Bonus{}, core.ErrBonusNotFound
		}
		return core.Bonus{}, fmt.Errorf("bonuses.get: %w", err)
	}
	return core.Bonus{
		PolicyHolderID:           row.PolicyHolderID,
		AccruedAmount:            row.AccruedAmount,
		LastAnniversaryProcessed: utcPtr(row.LastAnniversaryProcessed),
		UpdatedAt:                utc(row.UpdatedAt),
	}, nil
}

func (r bonusRepo) Save(ctx context.Context, b core.Bonus) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO bonuses (policy_holder_id, accrued_amount, last_anniversary_processed, updated_at)
		VALUES (:policy_holder_id, :accrued_amount, :last_anniversary_processed, :updated_at)
		ON CONFLICT (policy_holder_id) DO UPDATE SET
			accrued_amount = EXCLUDED.accrued_amount,
			last_anniversary_processed = EXCLUDED.last_anniversary_processed,
			updated_at = EXCLUDED.updated_at`,
		bonusRow{
			PolicyHolderID:           b.PolicyHolderID,
			AccruedAmount:            b.AccruedAmount,
			LastAnniversaryProcessed: utcPtr(b.LastAnniversaryProcessed),
			UpdatedAt:                utc(b.UpdatedAt),
		})
	if err != nil {
		return fmt.Errorf("bonuses.upsert: %w", err)
	}
	return nil
}

// ---- underwriting ----

type underwritingRow struct {
	PolicyHolderID       string          `db:"policy_holder_id"`
	Score                int             `db:"score"`
	RiskCategory         string          `db:"risk_category"`
	LoadingPercent       decimal.Decimal `db:"loading_percent"`
	Factors              string          `db:"factors"`
	NeedsReview          bool            `db:"needs_review"`
	MedicalExamRequired  bool            `db:"medical_exam_required"`
	MedicalExamCompleted bool            `db:"medical_exam_completed"`
	ManualOverride       bool            `db:"manual_override"`
	Remarks              string          `db:"remarks"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

type underwritingRepo struct{ q queryer }

func (r underwritingRepo) Get(ctx context.Context, holderID string) (core.Underwriting, error) {
	var row underwritingRow
	err := r.q.GetContext(ctx, &row, `
		SELECT policy_holder_id, score, risk_category, loading_percent, factors, needs_review,
			medical_exam_required, medical_exam_completed, manual_override, remarks, updated_at
		FROM underwriting WHERE policy_holder_id = $1`, holderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Underwriting{}, core.ErrUnderwritingNotFound
		}
		return core.Underwriting{}, fmt.Errorf("underwriting.get: %w", err)
	}
	var factors map[string]int
	if row.Factors != "" {
		if err := json.Unmarshal([]byte(row.Factors), &factors); err != nil {
			return core.Underwriting{}, fmt.Errorf("decode risk factors of %s: %w", holderID, err)
		}
	}
	return core.Underwriting{
		PolicyHolderID:       row.PolicyHolderID,
		Score:                row.Score,
		RiskCategory:         core.RiskCategory(row.RiskCategory),
		LoadingPercent:       row.LoadingPercent,
		Factors:              factors,
		NeedsReview:          row.NeedsReview,
		MedicalExamRequired:  row.MedicalExamRequired,
		MedicalExamCompleted: row.MedicalExamCompleted,
		ManualOverride:       row.ManualOverride,
		Remarks:              row.Remarks,
		UpdatedAt:            utc(row.UpdatedAt),
	}, nil
}

func (r underwritingRepo) Save(ctx context.Context, u core.Underwriting) error {
	factors := u.Factors
	if factors == nil {
		factors = map[string]int{}
	}
	raw, err := json.Marshal(factors)
	if err != nil {
		return fmt.Errorf("encode risk factors: %w", err)
	}
	_, err = r.q.NamedExecContext(ctx, `
		INSERT INTO underwriting (policy_holder_id, score, risk_category, loading_percent, factors,
			needs_review, medical_exam_required, medical_exam_completed, manual_override, remarks, updated_at)
		VALUES (:policy_holder_id, :score, :risk_category, :loading_percent, :factors,
			:needs_review, :medical_exam_required, :medical_exam_completed, :manual_override, :remarks, :updated_at)
		ON CONFLICT (policy_holder_id) DO UPDATE SET
			score = EXCLUDED.score,
			risk_category = EXCLUDED.risk_category,
			loading_percent = EXCLUDED.loading_percent,
			factors = EXCLUDED.factors,
			needs_review = EXCLUDED.needs_review,
			medical_exam_required = EXCLUDED.medical_exam_required,
			medical_exam_completed = EXCLUDED.medical_exam_completed,
			manual_override = EXCLUDED.manual_override,
			remarks = EXCLUDED.remarks,
			updated_at = EXCLUDED.updated_at`,
		underwritingRow{
			PolicyHolderID:       u.PolicyHolderID,
			Score:                u.Score,
			RiskCategory:         string(u.RiskCategory),
			LoadingPercent:       u.LoadingPercent,
			Factors:              string(raw),
			NeedsReview:          u.NeedsReview,
			MedicalExamRequired:  u.MedicalExamRequired,
			MedicalExamCompleted: u.MedicalExamCompleted,
			ManualOverride:       u.ManualOverride,
			Remarks:              u.Remarks,
			UpdatedAt:            utc(u.UpdatedAt),
		})
	if err != nil {
		return fmt.Errorf("underwriting.upsert: %w", err)
	}
	return nil
}
