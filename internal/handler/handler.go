// Package handler provides HTTP handlers for the upsell API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"postpurchase/internal/model"
	"postpurchase/internal/offer"
	"postpurchase/internal/signing"
	"postpurchase/internal/store"
)

// OfferMatcher resolves enriched offers for a purchase.
// Satisfied by *offer.Service.
type OfferMatcher interface {
	Match(ctx context.Context, shop string, rawIDs []string) ([]model.Offer, *offer.Trace)
}

// ChangesetSigner signs change-sets against the checkout edge.
// Satisfied by *signing.Signer.
type ChangesetSigner interface {
	Sign(ctx context.Context, req *signing.Request) (*signing.Result, *signing.Failure)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store  store.Store
	offers OfferMatcher
	signer ChangesetSigner
	logger *slog.Logger
}

// New creates a new Handler.
func New(st store.Store, offers OfferMatcher, signer ChangesetSigner, logger *slog.Logger) *Handler {
	return &Handler{
		store:  st,
		offers: offers,
		signer: signer,
		logger: logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns. The bare-path registrations
// catch disallowed methods so the 405 still carries CORS headers.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Extension-facing endpoints
	mux.HandleFunc("GET /offers/match", h.handleMatch)
	mux.HandleFunc("POST /offers/match", h.handleMatch)
	mux.HandleFunc("OPTIONS /offers/match", h.handlePreflight)
	mux.HandleFunc("/offers/match", h.handleMethodNotAllowed)

	mux.HandleFunc("POST /offers/sign", h.handleSign)
	mux.HandleFunc("OPTIONS /offers/sign", h.handlePreflight)
	mux.HandleFunc("/offers/sign", h.handleMethodNotAllowed)

	// Merchant admin - funnel CRUD
	mux.HandleFunc("GET /funnels", h.handleListFunnels)
	mux.HandleFunc("POST /funnels", h.handleCreateFunnel)
	mux.HandleFunc("GET /funnels/{id}", h.handleGetFunnel)
	mux.HandleFunc("PUT /funnels/{id}", h.handleUpdateFunnel)
	mux.HandleFunc("DELETE /funnels/{id}", h.handleDeleteFunnel)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === CORS ===

// The extension runs inside the platform's checkout sandbox, so every
// response, errors included, must carry CORS headers or the browser
// hides the body from it.

func (h *Handler) setCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Upsell-Client")
	w.Header().Add("Vary", "Origin")
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w, r)
	h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Error: errorBody{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"},
	})
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if errors.As(err, &apiErr) {
		// Found APIError in error chain - use it
	} else {
		// Wrap unexpected errors
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// storeError maps store sentinel errors onto the API error taxonomy.
func storeError(err error, resource string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return model.NewNotFoundError(resource)
	case errors.Is(err, store.ErrDuplicateTrigger):
		return model.NewConflictError("an active funnel already exists for this trigger product")
	case errors.Is(err, store.ErrInvalidFunnel):
		return model.NewValidationError("funnel", "name, shop, trigger, offer and a 0-90 discount are required")
	default:
		return model.NewInternalError(err)
	}
}
