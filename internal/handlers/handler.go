package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jamin-groot/hush-starknet/internal/auth"
	"github.com/jamin-groot/hush-starknet/internal/store"
)

// addressRegex accepts Starknet-style hex addresses (felt-sized).
var addressRegex = regexp.MustCompile(`^0x[0-9a-f]{1,64}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store  store.MessageStore
	redis  *store.RedisStore
	issuer *auth.TokenIssuer
	logger zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(s store.MessageStore, redis *store.RedisStore, issuer *auth.TokenIssuer, logger zerolog.Logger) *Handler {
	return &Handler{store: s, redis: redis, issuer: issuer, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// normalizeAddress lower-cases and trims a wallet address.
func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// isValidAddress checks the normalized hex address shape.
func isValidAddress(address string) bool {
	return addressRegex.MatchString(address)
}
