package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrKriegler/go-policyadmin/internal/platform/ids"
)

// RateSource hands out the current rate table snapshot.
type RateSource interface {
	Snapshot(ctx context.Context) (*RateTables, error)
}

type RateService interface {
	RateSource

	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	SaveProduct(ctx context.Context, p Product) (Product, error)

	ListBands(ctx context.Context, table RateTable) ([]RateBand, error)
	// AddBand rejects bands overlapping an existing band of the same table and key.
	AddBand(ctx context.Context, b RateBand) (RateBand, error)
	RemoveBand(ctx context.Context, id string) error
}

type rateService struct {
	repo  RateTableRepo
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	snapshot *RateTables
	loadedAt time.Time
}

// NewRateService caches the snapshot for ttl. Writes through the service
// invalidate the cache immediately.
func NewRateService(repo RateTableRepo, ttl time.Duration) RateService {
	return &rateService{
		repo:  repo,
		ttl:   ttl,
		clock: time.Now,
	}
}

func (s *rateService) Snapshot(ctx context.Context) (*RateTables, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.clock().Sub(s.loadedAt) < s.ttl {
		rt := s.snapshot
		s.mu.RUnlock()
		return rt, nil
	}
	s.mu.RUnlock()

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	bands, err := s.repo.ListBands(ctx, "")
	if err != nil {
		return nil, err
	}
	rt, err := NewRateTables(products, bands)
	if err != nil {
		return nil, fmt.Errorf("build rate tables: %w", err)
	}

	s.mu.Lock()
	s.snapshot, s.loadedAt = rt, s.clock()
	s.mu.Unlock()
	return rt, nil
}

func (s *rateService) invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

func (s *rateService) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *rateService) GetProduct(ctx context.Context, id string) (Product, error) {
	if id == "" {
		return Product{}, fmt.Errorf("%w: missing product id", ErrValidation)
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *rateService) SaveProduct(ctx context.Context, p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	if err := s.repo.UpsertProduct(ctx, p); err != nil {
		return Product{}, err
	}
	s.invalidate()
	return p, nil
}

func (s *rateService) ListBands(ctx context.Context, table RateTable) ([]RateBand, error) {
	if table != "" && !table.Valid() {
		return nil, fmt.Errorf("%w: unknown rate table %q", ErrValidation, table)
	}
	return s.repo.ListBands(ctx, table)
}

func (s *rateService) AddBand(ctx context.Context, b RateBand) (RateBand, error) {
	// 1) Validate the row on its own
	if err := b.Validate(); err != nil {
		return RateBand{}, err
	}

	// 2) GSV/SSV bands must point at a known product
	if b.Table == TableGSVRate || b.Table == TableSSVConfig {
		if _, err := s.repo.GetProduct(ctx, b.Key); err != nil {
			return RateBand{}, err
		}
	}

	// 3) Reject overlaps within the same table and key
	existing, err := s.repo.ListBands(ctx, b.Table)
	if err != nil {
		return RateBand{}, err
	}
	if err := CheckOverlap(existing, b); err != nil {
		return RateBand{}, err
	}

	// 4) Persist
	if b.ID == "" {
		b.ID = ids.New()
	}
	if err := s.repo.CreateBand(ctx, b); err != nil {
		return RateBand{}, err
	}
	s.invalidate()
	return b, nil
}

func (s *rateService) RemoveBand(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: missing band id", ErrValidation)
	}
	if err := s.repo.DeleteBand(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}
