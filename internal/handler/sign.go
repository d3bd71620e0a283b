package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"postpurchase/internal/middleware"
	"postpurchase/internal/signing"
)

// signRequest is the POST body for /offers/sign.
type signRequest struct {
	Shop           string          `json:"shop"`
	ReferenceID    string          `json:"referenceId"`
	Changes        []signing.Change `json:"changes"`
	CheckoutOrigin string          `json:"checkoutOrigin"`
}

// signErrorResponse is the sign endpoint's failure shape. The
// extension shows error/status to the buyer flow and merchants quote
// requestId in support tickets; tried lets us see which edge
// deployments a shop hit.
type signErrorResponse struct {
	Error     string          `json:"error"`
	Status    int             `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Tried     []string        `json:"tried,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// handleSign exchanges a buyer's requested changes for a signed
// change-set token from the checkout edge.
//
//	POST /offers/sign
//	Authorization: Bearer <buyer token>
//	{"shop": ..., "referenceId": ..., "changes": [...], "checkoutOrigin": ...}
func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w, r)
	requestID := middleware.GetRequestID(r.Context())

	token, ok := bearerToken(r)
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, signErrorResponse{
			Error:     "missing_bearer_token",
			Status:    http.StatusUnauthorized,
			RequestID: requestID,
		})
		return
	}

	var req signRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeSignBadRequest(w, requestID)
		return
	}
	if req.Shop == "" || req.ReferenceID == "" || len(req.Changes) == 0 {
		h.writeSignBadRequest(w, requestID)
		return
	}

	callerOrigin := req.CheckoutOrigin
	if callerOrigin == "" {
		callerOrigin = r.Header.Get("Origin")
	}

	result, failure := h.signer.Sign(r.Context(), &signing.Request{
		Shop:         req.Shop,
		ReferenceID:  req.ReferenceID,
		Changes:      req.Changes,
		CallerOrigin: callerOrigin,
		BuyerToken:   token,
	})
	if failure != nil {
		h.logger.WarnContext(r.Context(), "signing failed",
			slog.String("shop", req.Shop),
			slog.String("reason", failure.Reason),
			slog.Int("status", failure.Status),
			slog.Int("tried", len(failure.Tried)),
			slog.String("request_id", requestID),
		)
		h.writeJSON(w, failure.Status, signErrorResponse{
			Error:     failure.Reason,
			Status:    failure.Status,
			Data:      failure.Data,
			Tried:     failure.Tried,
			RequestID: requestID,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"changeset": result.Changeset})
}

func (h *Handler) writeSignBadRequest(w http.ResponseWriter, requestID string) {
	h.writeJSON(w, http.StatusBadRequest, signErrorResponse{
		Error:     "bad_request",
		Status:    http.StatusBadRequest,
		RequestID: requestID,
	})
}

// bearerToken extracts the Bearer credential from the Authorization
// header. Scheme matching is case-insensitive.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(auth[7:])
	return token, token != ""
}
