// Package memory implements store.Store in process memory.
// Used by tests and local development without Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"postpurchase/internal/model"
	"postpurchase/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	funnels     map[string]model.Funnel
	credentials map[string]model.OfflineCredential // keyed by shop
}

func New() *Store {
	return &Store{
		funnels:     make(map[string]model.Funnel),
		credentials: make(map[string]model.OfflineCredential),
	}
}

func (s *Store) Close() error { return nil }

// Seed stores a funnel verbatim, timestamps included.
func (s *Store) Seed(f model.Funnel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	s.funnels[f.ID] = f
}

// PutCredential seeds an offline token for a shop.
func (s *Store) PutCredential(c model.OfflineCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = "offline_" + c.Shop
	}
	s.credentials[c.Shop] = c
}

func (s *Store) CreateFunnel(_ context.Context, f model.Funnel) (*model.Funnel, error) {
	if err := store.ValidateFunnel(f); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Active && s.hasActiveTrigger(f.ShopDomain, f.TriggerGID, "") {
		return nil, store.ErrDuplicateTrigger
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	s.funnels[f.ID] = f

	created := f
	return &created, nil
}

func (s *Store) GetFunnel(_ context.Context, shop, id string) (*model.Funnel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.funnels[id]
	if !ok || f.ShopDomain != shop {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (s *Store) ListFunnels(_ context.Context, shop, sortKey string) ([]model.Funnel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	funnels := make([]model.Funnel, 0, len(s.funnels))
	for _, f := range s.funnels {
		if f.ShopDomain == shop {
			funnels = append(funnels, f)
		}
	}

	sort.Slice(funnels, func(i, j int) bool {
		switch sortKey {
		case "discount":
			return funnels[i].DiscountPct > funnels[j].DiscountPct
		case "created":
			return funnels[i].CreatedAt.After(funnels[j].CreatedAt)
		default:
			return strings.ToLower(funnels[i].Name) < strings.ToLower(funnels[j].Name)
		}
	})

	return funnels, nil
}

func (s *Store) UpdateFunnel(_ context.Context, f model.Funnel) (*model.Funnel, error) {
	if err := store.ValidateFunnel(f); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.funnels[f.ID]
	if !ok || existing.ShopDomain != f.ShopDomain {
		return nil, store.ErrNotFound
	}
	if f.Active && s.hasActiveTrigger(f.ShopDomain, f.TriggerGID, f.ID) {
		return nil, store.ErrDuplicateTrigger
	}

	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = time.Now().UTC()
	s.funnels[f.ID] = f

	updated := f
	return &updated, nil
}

func (s *Store) DeleteFunnel(_ context.Context, shop, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.funnels[id]
	if !ok || f.ShopDomain != shop {
		return store.ErrNotFound
	}
	delete(s.funnels, id)
	return nil
}

func (s *Store) ActiveFunnelForTriggers(_ context.Context, shop string, triggers []string) (*model.Funnel, error) {
	if len(triggers) == 0 {
		return nil, store.ErrNotFound
	}

	set := make(map[string]struct{}, len(triggers))
	for _, t := range triggers {
		set[t] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *model.Funnel
	for _, f := range s.funnels {
		if f.ShopDomain != shop || !f.Active {
			continue
		}
		if _, ok := set[f.TriggerGID]; !ok {
			continue
		}
		if best == nil || f.UpdatedAt.After(best.UpdatedAt) {
			match := f
			best = &match
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (s *Store) LatestActiveFunnel(_ context.Context, shop string) (*model.Funnel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *model.Funnel
	for _, f := range s.funnels {
		if f.ShopDomain != shop || !f.Active {
			continue
		}
		if best == nil || f.UpdatedAt.After(best.UpdatedAt) {
			match := f
			best = &match
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (s *Store) OfflineCredential(_ context.Context, shop string) (*model.OfflineCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[shop]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

// hasActiveTrigger reports whether another active funnel already
// claims the trigger. Caller must hold the lock.
func (s *Store) hasActiveTrigger(shop, trigger, excludeID string) bool {
	for _, f := range s.funnels {
		if f.ID == excludeID {
			continue
		}
		if f.ShopDomain == shop && f.Active && f.TriggerGID == trigger {
			return true
		}
	}
	return false
}
