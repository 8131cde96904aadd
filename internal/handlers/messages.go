package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jamin-groot/hush-starknet/internal/api/middleware"
	"github.com/jamin-groot/hush-starknet/internal/metrics"
	"github.com/jamin-groot/hush-starknet/internal/models"
	"github.com/jamin-groot/hush-starknet/internal/store"
)

// SaveMessageRequest is the body for POST /messages.
type SaveMessageRequest struct {
	ID                  string               `json:"id,omitempty"`
	TxHash              string               `json:"txHash,omitempty"`
	Kind                models.Kind          `json:"kind,omitempty"`
	RequestID           string               `json:"requestId,omitempty"`
	PaidTxHash          string               `json:"paidTxHash,omitempty"`
	Amount              string               `json:"amount,omitempty"`
	Status              models.RequestStatus `json:"status,omitempty"`
	ExpiresAt           int64                `json:"expiresAt,omitempty"`
	IsStealth           bool                 `json:"isStealth,omitempty"`
	StealthAddress      string               `json:"stealthAddress,omitempty"`
	ClaimStatus         models.ClaimStatus   `json:"claimStatus,omitempty"`
	ClaimTxHash         string               `json:"claimTxHash,omitempty"`
	StealthDeployTxHash string               `json:"stealthDeployTxHash,omitempty"`
	StealthSalt         string               `json:"stealthSalt,omitempty"`
	StealthClassHash    string               `json:"stealthClassHash,omitempty"`
	StealthPublicKey    string               `json:"stealthPublicKey,omitempty"`
	DerivationTag       string               `json:"derivationTag,omitempty"`
	Payload             json.RawMessage      `json:"payload"`
	CreatedAt           int64                `json:"createdAt,omitempty"`
}

// PatchMessageRequest is the body for PATCH /messages.
type PatchMessageRequest struct {
	ID                  string                `json:"id,omitempty"`
	RequestID           string                `json:"requestId,omitempty"`
	Status              *models.RequestStatus `json:"status,omitempty"`
	PaidTxHash          *string               `json:"paidTxHash,omitempty"`
	TxHash              *string               `json:"txHash,omitempty"`
	ExpiresAt           *int64                `json:"expiresAt,omitempty"`
	ClaimStatus         *models.ClaimStatus   `json:"claimStatus,omitempty"`
	ClaimTxHash         *string               `json:"claimTxHash,omitempty"`
	StealthDeployTxHash *string               `json:"stealthDeployTxHash,omitempty"`
}

// envelopeAddresses is the slice of the opaque payload the relay is allowed
// to read: routing addresses only, never key material or ciphertext.
type envelopeAddresses struct {
	SenderAddress    string `json:"senderAddress"`
	RecipientAddress string `json:"recipientAddress"`
}

// ListMessages handles GET /messages?recipient=&includeSent=&cursor=&limit=.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recipient := normalizeAddress(q.Get("recipient"))
	if recipient == "" {
		h.Error(w, http.StatusBadRequest, "recipient is required")
		return
	}
	if !isValidAddress(recipient) {
		h.Error(w, http.StatusBadRequest, "invalid wallet address format")
		return
	}

	opts := store.ListOptions{
		IncludeSent: q.Get("includeSent") == "true",
		Cursor:      q.Get("cursor"),
	}
	if rawLimit := q.Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			h.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = limit
	}

	page, err := h.store.ListForWallet(r.Context(), recipient, opts)
	if err != nil {
		h.logger.Error().Err(err).Str("recipient", recipient).Msg("message list failed")
		h.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	// Request expiry and claimability are derived at read time, never stored.
	now := time.Now()
	for i := range page.Messages {
		m := &page.Messages[i]
		m.Status = m.EffectiveStatus(now)
		m.ClaimStatus = m.EffectiveClaimStatus()
	}

	h.JSON(w, http.StatusOK, page)
}

// SaveMessage handles POST /messages.
func (h *Handler) SaveMessage(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SaveMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Payload) == 0 {
		h.Error(w, http.StatusBadRequest, "payload is required")
		return
	}

	kind := req.Kind
	if kind == "" {
		if req.TxHash != "" {
			kind = models.KindPaymentNote
		} else {
			kind = models.KindChat
		}
	}
	if kind == models.KindRequest && req.RequestID == "" {
		h.Error(w, http.StatusBadRequest, "requestId is required for requests")
		return
	}

	var addrs envelopeAddresses
	_ = json.Unmarshal(req.Payload, &addrs)

	msg := &models.StoredMessage{
		ID:                  req.ID,
		TxHash:              req.TxHash,
		Kind:                kind,
		RequestID:           req.RequestID,
		PaidTxHash:          req.PaidTxHash,
		Amount:              req.Amount,
		Status:              req.Status,
		ExpiresAt:           req.ExpiresAt,
		IsStealth:           req.IsStealth,
		StealthAddress:      normalizeAddress(req.StealthAddress),
		ClaimStatus:         req.ClaimStatus,
		ClaimTxHash:         req.ClaimTxHash,
		StealthDeployTxHash: req.StealthDeployTxHash,
		StealthSalt:         req.StealthSalt,
		StealthClassHash:    req.StealthClassHash,
		StealthPublicKey:    req.StealthPublicKey,
		DerivationTag:       req.DerivationTag,
		SenderAddress:       normalizeAddress(addrs.SenderAddress),
		RecipientAddress:    normalizeAddress(addrs.RecipientAddress),
		Payload:             req.Payload,
		CreatedAt:           req.CreatedAt,
	}
	if !msg.HasCompleteStealthGroup() {
		h.Error(w, http.StatusBadRequest, "stealth fields must be all present or all absent")
		return
	}

	if err := h.store.SaveMessage(r.Context(), msg); err != nil {
		h.logger.Error().Err(err).Str("id", msg.ID).Msg("message save failed")
		h.Error(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	metrics.MessagesSaved.WithLabelValues(string(kind)).Inc()
	h.notifyWallets(r, msg, store.MessageSavedEvent(msg))

	h.JSON(w, http.StatusOK, map[string]any{"ok": true, "id": msg.ID})
}

// PatchMessage handles PATCH /messages.
func (h *Handler) PatchMessage(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req PatchMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" && req.RequestID == "" {
		h.Error(w, http.StatusBadRequest, "id or requestId is required")
		return
	}

	updated, err := h.store.UpdateMessage(r.Context(),
		store.MessageMatch{ID: req.ID, RequestID: req.RequestID},
		store.MessagePatch{
			Status:              req.Status,
			PaidTxHash:          req.PaidTxHash,
			TxHash:              req.TxHash,
			ExpiresAt:           req.ExpiresAt,
			ClaimStatus:         req.ClaimStatus,
			ClaimTxHash:         req.ClaimTxHash,
			StealthDeployTxHash: req.StealthDeployTxHash,
		})
	if err != nil {
		h.logger.Error().Err(err).Str("id", req.ID).Str("request_id", req.RequestID).Msg("message patch failed")
		h.Error(w, http.StatusInternalServerError, "failed to update message")
		return
	}
	if updated == nil {
		h.Error(w, http.StatusNotFound, "message not found")
		return
	}

	metrics.MessagesPatched.Inc()
	if req.ClaimStatus != nil {
		metrics.ClaimStatusWrites.WithLabelValues(string(*req.ClaimStatus)).Inc()
	}
	h.notifyWallets(r, updated, store.MessageUpdatedEvent(updated))

	h.JSON(w, http.StatusOK, map[string]any{"ok": true, "message": updated})
}

// notifyWallets queues realtime nudges for both conversation parties.
// Best-effort: failures are logged and swallowed.
func (h *Handler) notifyWallets(r *http.Request, msg *models.StoredMessage, ev store.WalletEvent) {
	if h.redis == nil {
		return
	}
	for _, address := range []string{msg.RecipientAddress, msg.SenderAddress} {
		if address == "" {
			continue
		}
		if err := h.redis.PushWalletEvent(r.Context(), address, ev); err != nil {
			h.logger.Warn().Err(err).Str("address", address).Msg("wallet event publish failed")
		}
	}
}
