package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrKriegler/go-policyadmin/internal/platform/ids"
)

type AgentService interface {
	SaveAgent(ctx context.Context, a SalesAgent) (SalesAgent, error)
	GetAgent(ctx context.Context, id string) (SalesAgent, error)
	AgentReports(ctx context.Context, date time.Time) ([]AgentReport, error)

	SubmitAgentApplication(ctx context.Context, in AgentApplicationInput) (AgentApplication, error)
	GetAgentApplication(ctx context.Context, id string) (AgentApplication, error)
	ListAgentApplications(ctx context.Context, status ApplicationStatus) ([]AgentApplication, error)
	// ApproveAgentApplication creates the sales agent at the default commission rate.
	ApproveAgentApplication(ctx context.Context, id, remarks string) (AgentApplication, SalesAgent, error)
	RejectAgentApplication(ctx context.Context, id, remarks string) (AgentApplication, error)
}

func (s *Lifecycle) SaveAgent(ctx context.Context, a SalesAgent) (SalesAgent, error) {
	if err := a.Validate(); err != nil {
		return SalesAgent{}, err
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Agents().Upsert(ctx, a)
	})
	if err != nil {
		return SalesAgent{}, err
	}
	return a, nil
}

func (s *Lifecycle) GetAgent(ctx context.Context, id string) (SalesAgent, error) {
	if id == "" {
		return SalesAgent{}, fmt.Errorf("%w: missing agent ID", ErrValidation)
	}
	var a SalesAgent
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		a, err = tx.Agents().Get(ctx, id)
		return err
	})
	return a, err
}

func (s *Lifecycle) AgentReports(ctx context.Context, date time.Time) ([]AgentReport, error) {
	var reports []AgentReport
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		reports, err = tx.Agents().ListReports(ctx, DateOf(date))
		return err
	})
	if reports == nil {
		reports = []AgentReport{}
	}
	return reports, err
}

func (s *Lifecycle) SubmitAgentApplication(ctx context.Context, in AgentApplicationInput) (AgentApplication, error) {
	if err := in.Validate(); err != nil {
		return AgentApplication{}, err
	}
	now := s.clock()
	a := AgentApplication{
		ID:            ids.New(),
		BranchCode:    in.BranchCode,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       in.Address,
		DateOfBirth:   in.DateOfBirth,
		LicenseNumber: in.LicenseNumber,
		LicenseExpiry: in.LicenseExpiry,
		Status:        ApplicationPending,
		CreatedAt:     now,
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if a.Number, err = tx.AgentApplications().NextNumber(ctx); err != nil {
			return err
		}
		return tx.AgentApplications().Create(ctx, a)
	})
	if err != nil {
		return AgentApplication{}, err
	}
	s.log.Info("agent application submitted", "application_id", a.ID, "branch_code", a.BranchCode)
	return a, nil
}

func (s *Lifecycle) GetAgentApplication(ctx context.Context, id string) (AgentApplication, error) {
	if id == "" {
		return AgentApplication{}, fmt.Errorf("%w: missing application ID", ErrValidation)
	}
	var a AgentApplication
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		a, err = tx.AgentApplications().Get(ctx, id)
		return err
	})
	return a, err
}

func (s *Lifecycle) ListAgentApplications(ctx context.Context, status ApplicationStatus) ([]AgentApplication, error) {
	var out []AgentApplication
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.AgentApplications().List(ctx, status)
		return err
	})
	if out == nil {
		out = []AgentApplication{}
	}
	return out, err
}

func (s *Lifecycle) ApproveAgentApplication(ctx context.Context, id, remarks string) (AgentApplication, SalesAgent, error) {
	if id == "" {
		return AgentApplication{}, SalesAgent{}, fmt.Errorf("%w: missing application ID", ErrValidation)
	}
	var (
		a     AgentApplication
		agent SalesAgent
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if a, err = tx.AgentApplications().Get(ctx, id); err != nil {
			return err
		}
		if err := a.Decide(ApplicationApproved, remarks, s.clock()); err != nil {
			return err
		}

		// One agent per application
		code := a.AgentCode()
		if _, err := tx.Agents().Get(ctx, code); err == nil {
			return fmt.Errorf("%w: sales agent %s exists", ErrConflict, code)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		agent = SalesAgent{
			ID:             code,
			Name:           a.FullName(),
			CommissionRate: s.terms.AgentCommissionPercent,
			Active:         true,
			ApplicationID:  a.ID,
		}
		if err := tx.Agents().Upsert(ctx, agent); err != nil {
			return err
		}
		a.AgentID = agent.ID
		return tx.AgentApplications().Update(ctx, a)
	})
	if err != nil {
		return AgentApplication{}, SalesAgent{}, err
	}
	s.log.Info("agent application approved", "application_id", a.ID, "agent_id", agent.ID)
	return a, agent, nil
}

func (s *Lifecycle) RejectAgentApplication(ctx context.Context, id, remarks string) (AgentApplication, error) {
	if id == "" {
		return AgentApplication{}, fmt.Errorf("%w: missing application ID", ErrValidation)
	}
	if remarks == "" {
		return AgentApplication{}, fmt.Errorf("%w: remarks are required to reject an application", ErrValidation)
	}
	var a AgentApplication
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if a, err = tx.AgentApplications().Get(ctx, id); err != nil {
			return err
		}
		if err := a.Decide(ApplicationRejected, remarks, s.clock()); err != nil {
			return err
		}
		return tx.AgentApplications().Update(ctx, a)
	})
	if err != nil {
		return AgentApplication{}, err
	}
	s.log.Info("agent application rejected", "application_id", a.ID)
	return a, nil
}
