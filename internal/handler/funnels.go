package handler

import (
	"log/slog"
	"net/http"

	"postpurchase/internal/gid"
	"postpurchase/internal/model"
)

// Funnel CRUD for the merchant admin UI. Every operation is scoped to
// a shop domain; a funnel id alone never grants access to another
// shop's funnel.

func (h *Handler) handleListFunnels(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		h.writeError(w, model.NewValidationError("shop", "query parameter required"))
		return
	}

	funnels, err := h.store.ListFunnels(r.Context(), shop, r.URL.Query().Get("sort"))
	if err != nil {
		h.writeError(w, storeError(err, "funnel"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string][]model.Funnel{"funnels": funnels})
}

func (h *Handler) handleCreateFunnel(w http.ResponseWriter, r *http.Request) {
	var f model.Funnel
	if err := decodeJSON(r, &f); err != nil {
		h.writeError(w, err)
		return
	}
	normalizeFunnelGIDs(&f)

	created, err := h.store.CreateFunnel(r.Context(), f)
	if err != nil {
		h.writeError(w, storeError(err, "funnel"))
		return
	}

	h.logger.InfoContext(r.Context(), "funnel created",
		slog.String("shop", created.ShopDomain),
		slog.String("funnel_id", created.ID),
	)
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetFunnel(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		h.writeError(w, model.NewValidationError("shop", "query parameter required"))
		return
	}

	funnel, err := h.store.GetFunnel(r.Context(), shop, r.PathValue("id"))
	if err != nil {
		h.writeError(w, storeError(err, "funnel"))
		return
	}

	h.writeJSON(w, http.StatusOK, funnel)
}

func (h *Handler) handleUpdateFunnel(w http.ResponseWriter, r *http.Request) {
	var f model.Funnel
	if err := decodeJSON(r, &f); err != nil {
		h.writeError(w, err)
		return
	}
	f.ID = r.PathValue("id")
	normalizeFunnelGIDs(&f)

	updated, err := h.store.UpdateFunnel(r.Context(), f)
	if err != nil {
		h.writeError(w, storeError(err, "funnel"))
		return
	}

	h.logger.InfoContext(r.Context(), "funnel updated",
		slog.String("shop", updated.ShopDomain),
		slog.String("funnel_id", updated.ID),
	)
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteFunnel(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		h.writeError(w, model.NewValidationError("shop", "query parameter required"))
		return
	}

	if err := h.store.DeleteFunnel(r.Context(), shop, r.PathValue("id")); err != nil {
		h.writeError(w, storeError(err, "funnel"))
		return
	}

	h.logger.InfoContext(r.Context(), "funnel deleted",
		slog.String("shop", shop),
		slog.String("funnel_id", r.PathValue("id")),
	)
	w.WriteHeader(http.StatusNoContent)
}

// normalizeFunnelGIDs canonicalizes trigger and offer references so
// the stored form is always a product gid, whatever the admin UI sent.
func normalizeFunnelGIDs(f *model.Funnel) {
	if g, ok := gid.ToProductGID(f.TriggerGID); ok {
		f.TriggerGID = g
	}
	if g, ok := gid.ToProductGID(f.OfferGID); ok {
		f.OfferGID = g
	}
}
