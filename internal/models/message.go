package models

import (
	"encoding/json"
	"time"
)

// Kind classifies a stored envelope.
type Kind string

const (
	KindChat        Kind = "chat"
	KindPaymentNote Kind = "payment_note"
	KindRequest     Kind = "request"
)

// RequestStatus is the lifecycle of a payment request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestPaid     RequestStatus = "paid"
	RequestExpired  RequestStatus = "expired"
	RequestRejected RequestStatus = "rejected"
)

// ClaimStatus is the lifecycle of a stealth claim.
type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimClaimable ClaimStatus = "claimable"
	ClaimClaimed   ClaimStatus = "claimed"
	ClaimFailed    ClaimStatus = "failed"
)

// StoredMessage is a ledger row: an encrypted envelope plus server-side
// bookkeeping. The payload is opaque to the relay; sender/recipient are
// lifted out of it at save time so the ledger can be queried per wallet.
type StoredMessage struct {
	ID                  string          `json:"id"`
	TxHash              string          `json:"txHash,omitempty"`
	Kind                Kind            `json:"kind,omitempty"`
	RequestID           string          `json:"requestId,omitempty"`
	PaidTxHash          string          `json:"paidTxHash,omitempty"`
	Amount              string          `json:"amount,omitempty"`
	Status              RequestStatus   `json:"status,omitempty"`
	ExpiresAt           int64           `json:"expiresAt,omitempty"` // unix ms
	IsStealth           bool            `json:"isStealth,omitempty"`
	StealthAddress      string          `json:"stealthAddress,omitempty"`
	ClaimStatus         ClaimStatus     `json:"claimStatus,omitempty"`
	ClaimTxHash         string          `json:"claimTxHash,omitempty"`
	StealthDeployTxHash string          `json:"stealthDeployTxHash,omitempty"`
	StealthSalt         string          `json:"stealthSalt,omitempty"`
	StealthClassHash    string          `json:"stealthClassHash,omitempty"`
	StealthPublicKey    string          `json:"stealthPublicKey,omitempty"`
	DerivationTag       string          `json:"derivationTag,omitempty"`
	SenderAddress       string          `json:"senderAddress,omitempty"`
	RecipientAddress    string          `json:"recipientAddress,omitempty"`
	Payload             json.RawMessage `json:"payload"`
	CreatedAt           int64           `json:"createdAt"` // unix ms
}

// EffectiveStatus derives a request's status at read time. Paid and rejected
// are terminal and sticky; expiry is computed against the clock so no
// background job is needed.
func (m *StoredMessage) EffectiveStatus(now time.Time) RequestStatus {
	if m.Kind != KindRequest {
		return m.Status
	}
	switch m.Status {
	case RequestPaid, RequestRejected:
		return m.Status
	}
	if m.ExpiresAt > 0 && now.UnixMilli() > m.ExpiresAt {
		return RequestExpired
	}
	if m.Status == "" {
		return RequestPending
	}
	return m.Status
}

// EffectiveClaimStatus derives a stealth payment's claim status at read time.
// An explicit terminal status wins; otherwise a known txHash means the payment
// leg landed and the funds are claimable.
func (m *StoredMessage) EffectiveClaimStatus() ClaimStatus {
	if !m.IsStealth {
		return ""
	}
	switch m.ClaimStatus {
	case ClaimClaimed, ClaimFailed:
		return m.ClaimStatus
	}
	if m.TxHash != "" {
		return ClaimClaimable
	}
	return ClaimPending
}

// HasCompleteStealthGroup reports whether the stealth columns are either all
// present or all absent. Partial groups are rejected at the write boundary.
func (m *StoredMessage) HasCompleteStealthGroup() bool {
	if !m.IsStealth {
		return m.StealthAddress == "" && m.StealthSalt == "" &&
			m.StealthClassHash == "" && m.StealthPublicKey == "" && m.DerivationTag == ""
	}
	return m.StealthAddress != "" && m.StealthSalt != "" &&
		m.StealthClassHash != "" && m.StealthPublicKey != "" && m.DerivationTag != ""
}
