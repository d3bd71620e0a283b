// Package offer resolves which upsell to show for a purchase and
// enriches it with product metadata.
package offer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"postpurchase/internal/catalog"
	"postpurchase/internal/gid"
	"postpurchase/internal/model"
	"postpurchase/internal/store"
)

// Fetcher is the product metadata lookup. Satisfied by *catalog.Client.
type Fetcher interface {
	FetchMeta(ctx context.Context, shop, accessToken string, gids []string) (map[string]catalog.ProductMeta, *catalog.Debug)
}

// Service matches purchases to funnels and builds enriched offers.
type Service struct {
	store  store.Store
	fetch  Fetcher
	logger *slog.Logger
}

func NewService(st store.Store, fetch Fetcher, logger *slog.Logger) *Service {
	return &Service{store: st, fetch: fetch, logger: logger}
}

// Match resolves the upsell offers for a purchase containing the given
// product references. Returns zero or one offer plus a trace of how
// the decision was made. Match degrades instead of failing: metadata
// problems produce an offer with defaults, and a purchase with no
// recognizable product ids falls back to the shop's latest active
// funnel (marked as guessed in the trace).
func (s *Service) Match(ctx context.Context, shop string, rawIDs []string) ([]model.Offer, *Trace) {
	trace := &Trace{Shop: shop, RawIDs: rawIDs}

	canonical := gid.NormalizeSet(rawIDs)
	trace.ProductGIDs = canonical

	var funnel *model.Funnel
	var err error
	if len(canonical) == 0 {
		// Nothing recognizable in the purchase. Guess the shop's most
		// recently updated active funnel rather than show nothing.
		trace.Reason = ReasonFallbackNoGids
		funnel, err = s.store.LatestActiveFunnel(ctx, shop)
		if funnel != nil {
			trace.GuessedFrom = guessedLatestActive
		}
	} else {
		trace.Reason = ReasonTriggerMatch
		funnel, err = s.store.ActiveFunnelForTriggers(ctx, shop, candidateTriggers(rawIDs, canonical))
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			trace.Reason = ReasonNoFunnel
			return []model.Offer{}, trace
		}
		trace.Reason = ReasonStoreError
		trace.StoreError = err.Error()
		s.logger.ErrorContext(ctx, "funnel lookup failed",
			slog.String("shop", shop),
			slog.String("error", err.Error()),
		)
		return []model.Offer{}, trace
	}

	trace.FunnelID = funnel.ID

	offerGID, ok := gid.ToProductGID(funnel.OfferGID)
	if !ok {
		// A funnel with a malformed offer reference renders nothing.
		trace.Reason = ReasonNoFunnel
		return []model.Offer{}, trace
	}
	trace.OfferGID = offerGID

	var meta catalog.ProductMeta
	cred, err := s.store.OfflineCredential(ctx, shop)
	if err != nil {
		trace.Session = ReasonNoOfflineSession
		s.logger.WarnContext(ctx, "no offline credential for shop", slog.String("shop", shop))
	} else {
		byID, debug := s.fetch.FetchMeta(ctx, shop, cred.AccessToken, []string{offerGID})
		trace.Meta = debug
		meta = byID[offerGID]
	}

	return []model.Offer{buildOffer(funnel, offerGID, meta)}, trace
}

// candidateTriggers widens the lookup set so a stored trigger matches
// whether the merchant saved it as a gid, a variant gid, or a bare id.
// Raw inputs, canonical forms, and numeric ids, deduped in that order.
func candidateTriggers(rawIDs, canonical []string) []string {
	out := make([]string, 0, len(rawIDs)*3)
	seen := make(map[string]struct{})
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, r := range rawIDs {
		add(r)
	}
	for _, c := range canonical {
		add(c)
	}
	for _, n := range gid.NumericIDs(canonical) {
		add(n)
	}
	return out
}

// buildOffer assembles the response offer, defaulting every cosmetic
// field the fetch could not supply.
func buildOffer(funnel *model.Funnel, offerGID string, meta catalog.ProductMeta) model.Offer {
	offer := model.Offer{
		ProductGID:   offerGID,
		FunnelID:     funnel.ID,
		Title:        meta.Title,
		Image:        meta.Image,
		Images:       meta.Images,
		Price:        meta.Price,
		PriceAmount:  meta.PriceAmount,
		CurrencyCode: meta.CurrencyCode,
		VariantID:    meta.VariantID,
		Variants:     meta.Variants,
		DiscountPct:  funnel.DiscountPct,
	}
	if offer.Title == "" {
		offer.Title = "Untitled product"
	}
	if offer.Image == "" {
		offer.Image = model.PlaceholderImage
	}
	if len(offer.Images) == 0 {
		offer.Images = []string{offer.Image}
	}
	if offer.Variants == nil {
		offer.Variants = []model.OfferVariant{}
	}
	return offer
}
