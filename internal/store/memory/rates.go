package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MrKriegler/go-policyadmin/internal/core"
)

// RateRepo keeps products and rate bands in memory.
type RateRepo struct {
	mu       sync.RWMutex
	products map[string]core.Product
	bands    map[string]core.RateBand
}

var _ core.RateTableRepo = (*RateRepo)(nil)

func NewRateRepo() *RateRepo {
	return &RateRepo{
		products: map[string]core.Product{},
		bands:    map[string]core.RateBand{},
	}
}

func (r *RateRepo) ListProducts(_ context.Context) ([]core.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RateRepo) GetProduct(_ context.Context, id string) (core.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return core.Product{}, core.ErrProductNotFound
	}
	return p, nil
}

func (r *RateRepo) UpsertProduct(_ context.Context, p core.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

func (r *RateRepo) ListBands(_ context.Context, table core.RateTable) ([]core.RateBand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.RateBand
	for _, b := range r.bands {
		if table == "" || b.Table == table {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Min < out[j].Min
	})
	return out, nil
}

func (r *RateRepo) CreateBand(_ context.Context, b core.RateBand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bands[b.ID]; ok {
		return fmt.Errorf("%w: rate band %s exists", core.ErrConflict, b.ID)
	}
	r.bands[b.ID] = b
	return nil
}

func (r *RateRepo) DeleteBand(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bands[id]; !ok {
		return core.ErrRateBandNotFound
	}
	delete(r.bands, id)
	return nil
}

// Reminders is a ReminderLedger whose keys expire after their ttl.
type Reminders struct {
	mu    sync.Mutex
	sent  map[string]time.Time
	clock func() time.Time
}

var _ core.ReminderLedger = (*Reminders)(nil)

func NewReminders() *Reminders {
	return &Reminders{sent: map[string]time.Time{}, clock: time.Now}
}

func (r *Reminders) MarkSent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	if exp, ok := r.sent[key]; ok && now.Before(exp) {
		return false, nil
	}
	r.sent[key] = now.Add(ttl)
	return true, nil
}
