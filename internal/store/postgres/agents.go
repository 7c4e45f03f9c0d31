package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

type agentRow struct {
	ID             string          `db:"id"`
	Name           string          `db:"name"`
	CommissionRate decimal.Decimal `db:"commission_rate"`
	Active         bool            `db:"active"`
	ApplicationID  sql.NullString  `db:"application_id"`
}

type reportRow struct {
	AgentID          string          `db:"agent_id"`
	Date             time.Time       `db:"report_date"`
	PoliciesSold     int             `db:"policies_sold"`
	TotalPremium     decimal.Decimal `db:"total_premium"`
	CommissionEarned decimal.Decimal `db:"commission_earned"`
}

func fromReportRow(r reportRow) core.AgentReport {
	return core.AgentReport{
		AgentID:          r.AgentID,
		Date:             core.DateOf(r.Date.UTC()),
		PoliciesSold:     r.PoliciesSold,
		TotalPremium:     r.TotalPremium,
		CommissionEarned: r.CommissionEarned,
	}
}

type agentRepo struct{ q queryer }

func (r agentRepo) Get(ctx context.Context, id string) (core.SalesAgent, error) {
	var row agentRow
	err := r.q.GetContext(ctx, &row, `SELECT id, name, commission_rate, active, application_id FROM sales_agents WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.SalesAgent{}, core.ErrAgentNotFound
		}
		return core.SalesAgent{}, fmt.Errorf("sales_agents.get: %w", err)
	}
	return core.SalesAgent{
		ID:             row.ID,
		Name:           row.Name,
		CommissionRate: row.CommissionRate,
		Active:         row.Active,
		ApplicationID:  row.ApplicationID.String,
	}, nil
}

func (r agentRepo) Upsert(ctx context.Context, a core.SalesAgent) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO sales_agents (id, name, commission_rate, active, application_id)
		VALUES (:id, :name, :commission_rate, :active, :application_id)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			commission_rate = EXCLUDED.commission_rate,
			active = EXCLUDED.active,
			application_id = COALESCE(EXCLUDED.application_id, sales_agents.application_id)`,
		agentRow{
			ID:             a.ID,
			Name:           a.Name,
			CommissionRate: a.CommissionRate,
			Active:         a.Active,
			ApplicationID:  sql.NullString{String: a.ApplicationID, Valid: a.ApplicationID != ""},
		})
	if err != nil {
		return fmt.Errorf("sales_agents.upsert: %w", err)
	}
	return nil
}

func (r agentRepo) GetReport(ctx context.Context, agentID string, date time.Time) (core.AgentReport, error) {
	day := core.DateOf(date)
	var row reportRow
	err := r.q.GetContext(ctx, &row, `
		SELECT agent_id, report_date, policies_sold, total_premium, commission_earned
		FROM agent_reports WHERE agent_id = $1 AND report_date = $2`, agentID, day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.AgentReport{AgentID: agentID, Date: day}, nil
		}
		return core.AgentReport{}, fmt.Errorf("agent_reports.get: %w", err)
	}
	return fromReportRow(row), nil
}

func (r agentRepo) SaveReport(ctx context.Context, rep core.AgentReport) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO agent_reports (agent_id, report_date, policies_sold, total_premium, commission_earned)
		VALUES (:agent_id, :report_date, :policies_sold, :total_premium, :commission_earned)
		ON CONFLICT (agent_id, report_date) DO UPDATE SET
			policies_sold = EXCLUDED.policies_sold,
			total_premium = EXCLUDED.total_premium,
			commission_earned = EXCLUDED.commission_earned`,
		reportRow{
			AgentID:          rep.AgentID,
			Date:             core.DateOf(rep.Date),
			PoliciesSold:     rep.PoliciesSold,
			TotalPremium:     rep.TotalPremium,
			CommissionEarned: rep.CommissionEarned,
		})
	if err != nil {
		return fmt.Errorf("agent_reports.upsert: %w", err)
	}
	return nil
}

func (r agentRepo) ListReports(ctx context.Context, date time.Time) ([]core.AgentReport, error) {
	var rows []reportRow
	err := r.q.SelectContext(ctx, &rows, `
		SELECT agent_id, report_date, policies_sold, total_premium, commission_earned
		FROM agent_reports WHERE report_date = $1
		ORDER BY agent_id`, core.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("agent_reports.list: %w", err)
	}
	out := make([]core.AgentReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromReportRow(row))
	}
	return out, nil
}

type applicationRow struct {
	ID            string         `db:"id"`
	Number        int64          `db:"number"`
	BranchCode    string         `db:"branch_code"`
	FirstName     string         `db:"first_name"`
	LastName      string         `db:"last_name"`
	Email         string         `db:"email"`
	Phone         string         `db:"phone"`
	Address       string         `db:"address"`
	DateOfBirth   *time.Time     `db:"date_of_birth"`
	LicenseNumber string         `db:"license_number"`
	LicenseExpiry *time.Time     `db:"license_expiry"`
	Status        string         `db:"status"`
	AgentID       sql.NullString `db:"agent_id"`
	Remarks       string         `db:"remarks"`
	CreatedAt     time.Time      `db:"created_at"`
	DecidedAt     *time.Time     `db:"decided_at"`
}

const applicationColumns = `id, number, branch_code, first_name, last_name, email, phone, address,
	date_of_birth, license_number, license_expiry, status, agent_id, remarks, created_at, decided_at`

func toApplicationRow(a core.AgentApplication) applicationRow {
	return applicationRow{
		ID:            a.ID,
		Number:        a.Number,
		BranchCode:    a.BranchCode,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Email:         a.Email,
		Phone:         a.Phone,
		Address:       a.Address,
		DateOfBirth:   utcPtr(a.DateOfBirth),
		LicenseNumber: a.LicenseNumber,
		LicenseExpiry: utcPtr(a.LicenseExpiry),
		Status:        string(a.Status),
		AgentID:       sql.NullString{String: a.AgentID, Valid: a.AgentID != ""},
		Remarks:       a.Remarks,
		CreatedAt:     utc(a.CreatedAt),
		DecidedAt:     utcPtr(a.DecidedAt),
	}
}

func fromApplicationRow(r applicationRow) core.AgentApplication {
	return core.AgentApplication{
		ID:            r.ID,
		Number:        r.Number,
		BranchCode:    r.BranchCode,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		DateOfBirth:   utcPtr(r.DateOfBirth),
		LicenseNumber: r.LicenseNumber,
		LicenseExpiry: utcPtr(r.LicenseExpiry),
		Status:        core.ApplicationStatus(r.Status),
		AgentID:       r.AgentID.String,
		Remarks:       r.Remarks,
		CreatedAt:     utc(r.CreatedAt),
		DecidedAt:     utcPtr(r.DecidedAt),
	}
}

type applicationRepo struct{ q queryer }

func (r applicationRepo) Create(ctx context.Context, a core.AgentApplication) error {
	_, err := r.q.NamedExecContext(ctx, `
		INSERT INTO agent_applications (`+applicationColumns+`)
		VALUES (:id, :number, :branch_code, :first_name, :last_name, :email, :phone, :address,
			:date_of_birth, :license_number, :license_expiry, :status, :agent_id, :remarks, :created_at, :decided_at)`,
		toApplicationRow(a))
	if err != nil {
		return mapWriteErr("agent_applications.insert", err,
			fmt.Errorf("%w: agent application for %s exists", core.ErrConflict, a.Email))
	}
	return nil
}

func (r applicationRepo) Get(ctx context.Context, id string) (core.AgentApplication, error) {
	var row applicationRow
	err := r.q.GetContext(ctx, &row, `SELECT `+applicationColumns+` FROM agent_applications WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.AgentApplication{}, core.ErrApplicationNotFound
		}
		return core.AgentApplication{}, fmt.Errorf("agent_applications.get: %w", err)
	}
	return fromApplicationRow(row), nil
}

func (r applicationRepo) Update(ctx context.Context, a core.AgentApplication) error {
	res, err := r.q.NamedExecContext(ctx, `
		UPDATE agent_applications SET
			status = :status,
			agent_id = :agent_id,
			remarks = :remarks,
			decided_at = :decided_at
		WHERE id = :id`, toApplicationRow(a))
	if err != nil {
		return fmt.Errorf("agent_applications.update: %w", err)
	}
	return checkAffected("agent_applications.update", res, core.ErrApplicationNotFound)
}

func (r applicationRepo) List(ctx context.Context, status core.ApplicationStatus) ([]core.AgentApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM agent_applications`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY number`

	var rows []applicationRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("agent_applications.list: %w", err)
	}
	out := make([]core.AgentApplication, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromApplicationRow(row))
	}
	return out, nil
}

// NextNumber bumps the single-row counter, so a rolled back submission does
// not burn a number.
func (r applicationRepo) NextNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.q.GetContext(ctx, &n, `
		INSERT INTO agent_application_counter (id, value) VALUES (TRUE, 1)
		ON CONFLICT (id) DO UPDATE SET value = agent_application_counter.value + 1
		RETURNING value`)
	if err != nil {
		return 0, fmt.Errorf("agent_application_counter.next: %w", err)
	}
	return n, nil
}
