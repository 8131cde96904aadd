package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jamin-groot/hush-starknet/internal/api/middleware"
	"github.com/jamin-groot/hush-starknet/internal/metrics"
)

// RegisterKeyRequest is the body for publishing an identity public key.
type RegisterKeyRequest struct {
	Address      string          `json:"address"`
	PublicKeyJWK json.RawMessage `json:"publicKeyJwk"`
}

// RegisterKey handles POST /public-key. Publishing is an idempotent upsert:
// re-publishing an existing key succeeds and overwrites.
func (h *Handler) RegisterKey(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req RegisterKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	address := normalizeAddress(req.Address)
	if address == "" || len(req.PublicKeyJWK) == 0 {
		h.Error(w, http.StatusBadRequest, "address and publicKeyJwk are required")
		return
	}
	if !isValidAddress(address) {
		h.Error(w, http.StatusBadRequest, "invalid wallet address format")
		return
	}
	if address != session.WalletAddress {
		h.Error(w, http.StatusForbidden, "wallet does not match authenticated session")
		return
	}

	var jwk struct {
		Kty string `json:"kty"`
	}
	if err := json.Unmarshal(req.PublicKeyJWK, &jwk); err != nil || jwk.Kty == "" {
		h.Error(w, http.StatusBadRequest, "publicKeyJwk must be a JWK object")
		return
	}

	if err := h.store.UpsertPublicKey(r.Context(), address, req.PublicKeyJWK); err != nil {
		h.logger.Error().Err(err).Str("address", address).Msg("public key upsert failed")
		h.Error(w, http.StatusInternalServerError, "failed to register key")
		return
	}

	metrics.KeysRegistered.Inc()
	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetKey handles GET /public-key/{address}.
func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	address := normalizeAddress(chi.URLParam(r, "address"))
	if !isValidAddress(address) {
		h.Error(w, http.StatusBadRequest, "invalid wallet address format")
		return
	}

	jwk, err := h.store.GetPublicKey(r.Context(), address)
	if err != nil {
		h.logger.Error().Err(err).Str("address", address).Msg("public key lookup failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch public key")
		return
	}
	if jwk == nil {
		h.Error(w, http.StatusNotFound, "public key not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]json.RawMessage{"publicKeyJwk": jwk})
}
