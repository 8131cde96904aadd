package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jamin-groot/hush-starknet/internal/api/middleware"
	"github.com/jamin-groot/hush-starknet/internal/auth"
	"github.com/jamin-groot/hush-starknet/internal/metrics"
)

// ChallengeRequest is the body for POST /auth/challenge.
type ChallengeRequest struct {
	Address string `json:"address"`
}

// VerifyRequest is the body for POST /auth/verify. The signature is the
// account key's Stark signature over the challenge nonce.
type VerifyRequest struct {
	Challenge  string `json:"challenge"`
	PublicKey  string `json:"publicKey"`
	SignatureR string `json:"signatureR"`
	SignatureS string `json:"signatureS"`
}

// IssueChallenge handles POST /auth/challenge.
func (h *Handler) IssueChallenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	address := normalizeAddress(req.Address)
	if !isValidAddress(address) {
		h.Error(w, http.StatusBadRequest, "invalid wallet address format")
		return
	}

	token, challenge, err := h.issuer.IssueChallenge(address)
	if err != nil {
		h.logger.Error().Err(err).Msg("challenge issue failed")
		h.Error(w, http.StatusInternalServerError, "failed to issue challenge")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{
		"challenge": token,
		"nonce":     challenge.Nonce,
	})
}

// VerifyChallenge handles POST /auth/verify. On success it sets the session
// cookie and returns the session token for non-browser clients.
func (h *Handler) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Challenge == "" || req.PublicKey == "" || req.SignatureR == "" || req.SignatureS == "" {
		h.Error(w, http.StatusBadRequest, "challenge, publicKey and signature are required")
		return
	}

	challenge, err := h.issuer.VerifyChallenge(req.Challenge)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid or expired challenge")
		return
	}

	// Each challenge nonce is single-use.
	if h.redis != nil {
		if h.redis.IsAuthNonceUsed(r.Context(), challenge.WalletAddress, challenge.Nonce) {
			h.Error(w, http.StatusUnauthorized, "challenge already used")
			return
		}
	}

	err = auth.VerifyChallengeSignature(challenge.WalletAddress, challenge.Nonce, req.PublicKey, req.SignatureR, req.SignatureS)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPublicKey) {
			h.Error(w, http.StatusBadRequest, "invalid public key")
			return
		}
		h.Error(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	if h.redis != nil {
		h.redis.MarkAuthNonceUsed(r.Context(), challenge.WalletAddress, challenge.Nonce, h.issuer.ChallengeTTL())
	}

	session, err := h.issuer.IssueSession(challenge.WalletAddress)
	if err != nil {
		h.logger.Error().Err(err).Msg("session issue failed")
		h.Error(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session,
		Path:     "/",
		MaxAge:   int(auth.DefaultSessionTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	metrics.SessionsIssued.Inc()
	h.logger.Info().Str("address", challenge.WalletAddress).Msg("session issued")

	h.JSON(w, http.StatusOK, map[string]string{
		"session": session,
		"address": challenge.WalletAddress,
	})
}
