package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"postpurchase/internal/model"
	"postpurchase/internal/offer"
)

// matchRequest is the POST body for /offers/match. GET requests carry
// the same fields as query parameters (shop, gids).
type matchRequest struct {
	Shop        string   `json:"shop"`
	ProductGIDs []string `json:"productGids"`
}

// matchResponse always carries an offers array; debug is the match
// trace, returned so the extension can be debugged from the browser's
// network tab without shell access to the service.
type matchResponse struct {
	Offers []model.Offer `json:"offers"`
	Debug  *offer.Trace  `json:"debug,omitempty"`
}

// handleMatch resolves the upsell offers for a purchase.
//
//	GET  /offers/match?shop=x.myshopify.com&gids=gid://shopify/Product/1,2
//	POST /offers/match {"shop": "...", "productGids": [...]}
//
// With no shop parameter it answers a bare liveness probe; platform
// review tooling pings the route that way.
func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w, r)

	var req matchRequest
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
	}

	query := r.URL.Query()
	if req.Shop == "" {
		req.Shop = query.Get("shop")
	}
	if len(req.ProductGIDs) == 0 {
		for _, raw := range query["gids"] {
			for _, g := range strings.Split(raw, ",") {
				if g = strings.TrimSpace(g); g != "" {
					req.ProductGIDs = append(req.ProductGIDs, g)
				}
			}
		}
	}

	if req.Shop == "" {
		h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	offers, trace := h.offers.Match(r.Context(), req.Shop, req.ProductGIDs)

	h.logger.InfoContext(r.Context(), "offer match",
		slog.String("shop", req.Shop),
		slog.Int("input_ids", len(req.ProductGIDs)),
		slog.Int("offers", len(offers)),
		slog.String("reason", trace.Reason),
	)

	h.writeJSON(w, http.StatusOK, matchResponse{Offers: offers, Debug: trace})
}
