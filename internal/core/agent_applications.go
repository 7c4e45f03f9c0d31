package core

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "Pending"
	ApplicationApproved ApplicationStatus = "Approved"
	ApplicationRejected ApplicationStatus = "Rejected"
)

// AgentApplication is a request to join the sales force. Approval creates
// the SalesAgent it names in AgentID.
type AgentApplication struct {
	ID            string            `json:"id"`
	Number        int64             `json:"number"`
	BranchCode    string            `json:"branch_code"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
	Address       string            `json:"address,omitempty"`
	DateOfBirth   *time.Time        `json:"date_of_birth,omitempty"`
	LicenseNumber string            `json:"license_number,omitempty"`
	LicenseExpiry *time.Time        `json:"license_expiry,omitempty"`
	Status        ApplicationStatus `json:"status"`
	AgentID       string            `json:"agent_id,omitempty"`
	Remarks       string            `json:"remarks,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	DecidedAt     *time.Time        `json:"decided_at,omitempty"`
}

// AgentApplicationInput is what an applicant submits.
type AgentApplicationInput struct {
	BranchCode    string     `json:"branch_code"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address,omitempty"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	LicenseNumber string     `json:"license_number,omitempty"`
	LicenseExpiry *time.Time `json:"license_expiry,omitempty"`
}

func (in AgentApplicationInput) Validate() error {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", ErrValidation)
	}
	if strings.TrimSpace(in.BranchCode) == "" || strings.ContainsAny(in.BranchCode, " -") {
		return fmt.Errorf("%w: branch code is required and may not contain spaces or dashes", ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, in.Email)
	}
	if strings.TrimSpace(in.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrValidation)
	}
	return nil
}

// AgentCode is the code of the agent an approved application creates:
// A-<branch>-<application number, zero padded to 4>.
func (a AgentApplication) AgentCode() string {
	return fmt.Sprintf("A-%s-%04d", a.BranchCode, a.Number)
}

func (a AgentApplication) FullName() string {
	return a.FirstName + " " + a.LastName
}

// Decide approves or rejects a Pending application. An expired license
// blocks approval.
func (a *AgentApplication) Decide(next ApplicationStatus, remarks string, now time.Time) error {
	if a.Status != ApplicationPending || (next != ApplicationApproved && next != ApplicationRejected) {
		return fmt.Errorf("%w: application %s cannot move from %s to %s", ErrInvalidState, a.ID, a.Status, next)
	}
	if next == ApplicationApproved && a.LicenseExpiry != nil && a.LicenseExpiry.Before(DateOf(now)) {
		return fmt.Errorf("%w: license expired on %s", ErrValidation, a.LicenseExpiry.Format(time.DateOnly))
	}
	a.Status = next
	a.Remarks = remarks
	a.DecidedAt = &now
	return nil
}

type AgentApplicationRepo interface {
	// Create fails with ErrConflict when the email is already used.
	Create(ctx context.Context, a AgentApplication) error
	Get(ctx context.Context, id string) (AgentApplication, error)
	Update(ctx context.Context, a AgentApplication) error
	// List returns applications oldest first, all of them when status is empty.
	List(ctx context.Context, status ApplicationStatus) ([]AgentApplication, error)
	// NextNumber allocates the application number inside the caller's transaction.
	NextNumber(ctx context.Context) (int64, error)
}

var ErrApplicationNotFound = fmt.Errorf("%w: agent application not found", ErrNotFound)
