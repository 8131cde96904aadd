package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jamin-groot/hush-starknet/internal/api/middleware"
	"github.com/jamin-groot/hush-starknet/internal/metrics"
	"github.com/jamin-groot/hush-starknet/internal/models"
)

// reAuthWindow bounds how old a session may be when it overwrites an
// existing identity backup. Overwriting destroys the previous backup, so a
// stolen long-lived session must not be enough.
const reAuthWindow = 5 * time.Minute

// BackupRequest is the body for POST /identity. The blob is sealed
// client-side; the relay never sees the passphrase or the private key.
type BackupRequest struct {
	EncryptedBlob string `json:"encryptedBlob"`
	Nonce         string `json:"nonce"`
	Algorithm     string `json:"algorithm"`
	Version       int    `json:"version"`
}

// SaveIdentityBackup handles POST /identity.
func (h *Handler) SaveIdentityBackup(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req BackupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.EncryptedBlob == "" || req.Nonce == "" {
		h.Error(w, http.StatusBadRequest, "encryptedBlob and nonce are required")
		return
	}
	if req.Version <= 0 {
		req.Version = 1
	}

	existing, err := h.store.GetIdentityBackup(r.Context(), session.WalletAddress)
	if err != nil {
		h.logger.Error().Err(err).Str("address", session.WalletAddress).Msg("backup lookup failed")
		h.Error(w, http.StatusInternalServerError, "failed to check existing backup")
		return
	}
	if existing != nil && time.Since(session.IssuedAt) > reAuthWindow {
		h.Error(w, http.StatusForbidden, "recent authentication required to overwrite backup")
		return
	}

	backup := &models.IdentityBackup{
		WalletAddress: session.WalletAddress,
		EncryptedBlob: req.EncryptedBlob,
		Nonce:         req.Nonce,
		Algorithm:     req.Algorithm,
		Version:       req.Version,
	}
	if err := h.store.UpsertIdentityBackup(r.Context(), backup); err != nil {
		h.logger.Error().Err(err).Str("address", session.WalletAddress).Msg("backup save failed")
		h.Error(w, http.StatusInternalServerError, "failed to save backup")
		return
	}

	metrics.IdentityBackupWrites.Inc()
	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetIdentityBackup handles GET /identity.
func (h *Handler) GetIdentityBackup(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	backup, err := h.store.GetIdentityBackup(r.Context(), session.WalletAddress)
	if err != nil {
		h.logger.Error().Err(err).Str("address", session.WalletAddress).Msg("backup lookup failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch backup")
		return
	}
	if backup == nil {
		h.Error(w, http.StatusNotFound, "no backup found")
		return
	}

	h.JSON(w, http.StatusOK, backup)
}
