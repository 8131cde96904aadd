package handlers

import (
	"net/http"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalKeys     int64 `json:"total_keys"`
	TotalMessages int64 `json:"total_messages"`
}

// Stats returns aggregate relay counters. Everything here is metadata the
// relay already holds; no ciphertext or addresses leave this endpoint.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalKeys, err := h.store.CountPublicKeys(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count keys")
		return
	}

	totalMessages, err := h.store.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalKeys:     totalKeys,
		TotalMessages: totalMessages,
	})
}
