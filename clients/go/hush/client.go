// Package hush is the wallet-agent library for the Hush relay: identity
// keys, encrypted note envelopes, stealth payment derivation and the claim
// orchestrator that drains stealth accounts on Starknet.
package hush

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/NethermindEth/starknet.go/curve"
)

// Client is a Hush relay API client. A session token is attached to write
// requests after Authenticate.
type Client struct {
	BaseURL    string
	ConfigDir  string
	HTTPClient *http.Client

	session string
	wallet  string
}

// NewClient creates a client for the given relay. Config (identity keys,
// note cache, session) lives under HUSH_CONFIG or ~/.hush.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("HUSH_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".hush")
	}

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Wallet returns the wallet address of the current session, if any.
func (c *Client) Wallet() string { return c.wallet }

// Authenticate performs the challenge/verify exchange with the wallet's
// Stark private key and keeps the resulting session for later requests.
func (c *Client) Authenticate(ctx context.Context, walletAddress, starkPrivateKey string) error {
	wallet := normalizeAddress(walletAddress)

	body, _ := json.Marshal(map[string]string{"address": wallet})
	respBody, err := c.doRequest(ctx, "POST", "/auth/challenge", body)
	if err != nil {
		return err
	}
	var challenge struct {
		Challenge string `json:"challenge"`
		Nonce     string `json:"nonce"`
	}
	if err := json.Unmarshal(respBody, &challenge); err != nil {
		return err
	}

	priv, ok := new(big.Int).SetString(strings.TrimPrefix(starkPrivateKey, "0x"), 16)
	if !ok {
		return fmt.Errorf("invalid stark private key")
	}
	pubX, _, err := curve.Curve.PrivateToPoint(priv)
	if err != nil {
		return fmt.Errorf("stark key derivation failed: %w", err)
	}

	// The relay and the wallet agree on sha256(wallet:nonce) truncated to
	// 31 bytes so the signed value always fits in a felt.
	sum := sha256.Sum256([]byte(wallet + ":" + challenge.Nonce))
	hash := new(big.Int).SetBytes(sum[:31])

	r, s, err := curve.Curve.Sign(hash, priv)
	if err != nil {
		return fmt.Errorf("challenge signing failed: %w", err)
	}

	verifyBody, _ := json.Marshal(map[string]string{
		"challenge":  challenge.Challenge,
		"publicKey":  "0x" + pubX.Text(16),
		"signatureR": "0x" + r.Text(16),
		"signatureS": "0x" + s.Text(16),
	})
	respBody, err = c.doRequest(ctx, "POST", "/auth/verify", verifyBody)
	if err != nil {
		return err
	}
	var session struct {
		Session string `json:"session"`
		Address string `json:"address"`
	}
	if err := json.Unmarshal(respBody, &session); err != nil {
		return err
	}

	c.session = session.Session
	c.wallet = session.Address
	return nil
}

// PublishKey publishes a wallet's identity public key to the registry.
func (c *Client) PublishKey(ctx context.Context, address string, jwk JWK) error {
	body, _ := json.Marshal(map[string]any{
		"address":      normalizeAddress(address),
		"publicKeyJwk": jwk,
	})
	_, err := c.doRequest(ctx, "POST", "/public-key", body)
	return err
}

// FetchKey fetches a published identity key, or ErrRecipientKeyMissing when
// the wallet never published one.
func (c *Client) FetchKey(ctx context.Context, address string) (json.RawMessage, error) {
	respBody, err := c.doRequest(ctx, "GET", "/public-key/"+url.PathEscape(normalizeAddress(address)), nil)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, ErrRecipientKeyMissing
		}
		return nil, err
	}
	var resp struct {
		PublicKeyJWK json.RawMessage `json:"publicKeyJwk"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.PublicKeyJWK, nil
}

// LedgerMessage mirrors the relay's stored message row.
type LedgerMessage struct {
	ID                  string          `json:"id,omitempty"`
	TxHash              string          `json:"txHash,omitempty"`
	Kind                MessageKind     `json:"kind,omitempty"`
	RequestID           string          `json:"requestId,omitempty"`
	PaidTxHash          string          `json:"paidTxHash,omitempty"`
	Amount              string          `json:"amount,omitempty"`
	Status              string          `json:"status,omitempty"`
	ExpiresAt           int64           `json:"expiresAt,omitempty"`
	IsStealth           bool            `json:"isStealth,omitempty"`
	StealthAddress      string          `json:"stealthAddress,omitempty"`
	ClaimStatus         string          `json:"claimStatus,omitempty"`
	ClaimTxHash         string          `json:"claimTxHash,omitempty"`
	StealthDeployTxHash string          `json:"stealthDeployTxHash,omitempty"`
	StealthSalt         string          `json:"stealthSalt,omitempty"`
	StealthClassHash    string          `json:"stealthClassHash,omitempty"`
	StealthPublicKey    string          `json:"stealthPublicKey,omitempty"`
	DerivationTag       string          `json:"derivationTag,omitempty"`
	SenderAddress       string          `json:"senderAddress,omitempty"`
	RecipientAddress    string          `json:"recipientAddress,omitempty"`
	Payload             json.RawMessage `json:"payload"`
	CreatedAt           int64           `json:"createdAt,omitempty"`
}

// MessagePatch is a partial update of a ledger row. Nil fields stay as-is.
type MessagePatch struct {
	ID                  string  `json:"id,omitempty"`
	RequestID           string  `json:"requestId,omitempty"`
	Status              *string `json:"status,omitempty"`
	PaidTxHash          *string `json:"paidTxHash,omitempty"`
	TxHash              *string `json:"txHash,omitempty"`
	ExpiresAt           *int64  `json:"expiresAt,omitempty"`
	ClaimStatus         *string `json:"claimStatus,omitempty"`
	ClaimTxHash         *string `json:"claimTxHash,omitempty"`
	StealthDeployTxHash *string `json:"stealthDeployTxHash,omitempty"`
}

// MessagePage is one page of ledger rows plus the cursor for the next.
type MessagePage struct {
	Messages   []LedgerMessage `json:"messages"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// SaveMessage stores an envelope on the relay ledger.
func (c *Client) SaveMessage(ctx context.Context, msg *LedgerMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	respBody, err := c.doRequest(ctx, "POST", "/messages", body)
	if err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// UpdateMessage patches a ledger row. A 404 is returned as updated=false
// with no error: the row was already resolved by another writer.
func (c *Client) UpdateMessage(ctx context.Context, patch MessagePatch) (bool, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return false, err
	}
	_, err = c.doRequest(ctx, "PATCH", "/messages", body)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListMessages pages through a wallet's messages, newest first.
func (c *Client) ListMessages(ctx context.Context, recipient string, includeSent bool, cursor string, limit int) (*MessagePage, error) {
	q := url.Values{}
	q.Set("recipient", normalizeAddress(recipient))
	if includeSent {
		q.Set("includeSent", "true")
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	respBody, err := c.doRequest(ctx, "GET", "/messages?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var page MessagePage
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// IdentityBackup is a sealed identity blob stored on the relay.
type IdentityBackup struct {
	WalletAddress string `json:"walletAddress,omitempty"`
	EncryptedBlob string `json:"encryptedBlob"`
	Nonce         string `json:"nonce"`
	Algorithm     string `json:"algorithm,omitempty"`
	Version       int    `json:"version,omitempty"`
}

// UploadBackup stores a sealed identity backup for the session wallet.
func (c *Client) UploadBackup(ctx context.Context, backup *IdentityBackup) error {
	body, err := json.Marshal(backup)
	if err != nil {
		return err
	}
	_, err = c.doRequest(ctx, "POST", "/identity", body)
	return err
}

// DownloadBackup fetches the session wallet's sealed backup, or nil when
// none exists.
func (c *Client) DownloadBackup(ctx context.Context) (*IdentityBackup, error) {
	respBody, err := c.doRequest(ctx, "GET", "/identity", nil)
	if err != nil {
		var apiErr *APIError
		if asAPIError(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	var backup IdentityBackup
	if err := json.Unmarshal(respBody, &backup); err != nil {
		return nil, err
	}
	return &backup, nil
}

// WalletEvent is a realtime nudge drained from the relay.
type WalletEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Timestamp int64  `json:"ts"`
}

// DrainEvents fetches and clears the session wallet's pending events.
func (c *Client) DrainEvents(ctx context.Context) ([]WalletEvent, error) {
	respBody, err := c.doRequest(ctx, "GET", "/events", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Events []WalletEvent `json:"events"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// MarkClaimFailed records a failed claim on the ledger.
func (c *Client) MarkClaimFailed(ctx context.Context, messageID string) error {
	status := "failed"
	_, err := c.UpdateMessage(ctx, MessagePatch{ID: messageID, ClaimStatus: &status})
	return err
}

// MarkClaimed records a successful claim and its transaction hashes.
func (c *Client) MarkClaimed(ctx context.Context, messageID, claimTxHash, deployTxHash string) error {
	status := "claimed"
	patch := MessagePatch{ID: messageID, ClaimStatus: &status}
	if claimTxHash != "" {
		patch.ClaimTxHash = &claimTxHash
	}
	if deployTxHash != "" {
		patch.StealthDeployTxHash = &deployTxHash
	}
	_, err := c.UpdateMessage(ctx, patch)
	return err
}

// APIError is a non-2xx relay response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Status, e.Message)
}

func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set("Authorization", "Bearer "+c.session)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}
	return respBody, nil
}
