package handlers

import (
	"net/http"

	"github.com/jamin-groot/hush-starknet/internal/api/middleware"
	"github.com/jamin-groot/hush-starknet/internal/store"
)

// DrainEvents handles GET /events. It returns and clears the caller's
// pending realtime nudges. Without Redis it degrades to an empty list so
// polling clients keep working.
func (h *Handler) DrainEvents(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	events := []store.WalletEvent{}
	if h.redis != nil {
		drained, err := h.redis.DrainWalletEvents(r.Context(), session.WalletAddress)
		if err != nil {
			h.logger.Warn().Err(err).Str("address", session.WalletAddress).Msg("event drain failed")
		} else {
			events = drained
		}
	}

	h.JSON(w, http.StatusOK, map[string]any{"events": events})
}
