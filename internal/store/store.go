// Package store defines persistence for funnels and shop credentials.
package store

import (
	"context"
	"errors"

	"postpurchase/internal/model"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTrigger means the shop already has an active funnel
	// for the same trigger product.
	ErrDuplicateTrigger = errors.New("active funnel already exists for trigger")

	ErrInvalidFunnel = errors.New("invalid funnel")
)

// Store is the persistence interface. Implementations: postgres for
// production, memory for tests.
type Store interface {
	CreateFunnel(ctx context.Context, f model.Funnel) (*model.Funnel, error)
	GetFunnel(ctx context.Context, shop, id string) (*model.Funnel, error)
	ListFunnels(ctx context.Context, shop, sort string) ([]model.Funnel, error)
	UpdateFunnel(ctx context.Context, f model.Funnel) (*model.Funnel, error)
	DeleteFunnel(ctx context.Context, shop, id string) error

	// ActiveFunnelForTriggers returns the shop's active funnel whose
	// trigger is in the candidate set. Ties break to the most recently
	// updated funnel.
	ActiveFunnelForTriggers(ctx context.Context, shop string, triggers []string) (*model.Funnel, error)

	// LatestActiveFunnel returns the shop's most recently updated
	// active funnel, regardless of trigger.
	LatestActiveFunnel(ctx context.Context, shop string) (*model.Funnel, error)

	// OfflineCredential returns the shop's offline Admin API token.
	OfflineCredential(ctx context.Context, shop string) (*model.OfflineCredential, error)

	Close() error
}

// ValidateFunnel checks the fields a funnel must carry before it can
// be stored. Shared by both implementations.
func ValidateFunnel(f model.Funnel) error {
	if f.ShopDomain == "" || f.Name == "" || f.TriggerGID == "" || f.OfferGID == "" {
		return ErrInvalidFunnel
	}
	if f.DiscountPct < 0 || f.DiscountPct > 90 {
		return ErrInvalidFunnel
	}
	return nil
}
