package store

import (
	"context"
	"encoding/json"

	"github.com/jamin-groot/hush-starknet/internal/models"
)

// ListOptions controls wallet message listing.
type ListOptions struct {
	IncludeSent bool
	Cursor      string
	Limit       int
}

// MessagePage is one page of ledger rows, newest first.
type MessagePage struct {
	Messages   []models.StoredMessage `json:"messages"`
	NextCursor string                 `json:"nextCursor,omitempty"`
}

// MessageMatch selects a ledger row for a partial update. Exactly one of the
// fields should be set; ID wins when both are.
type MessageMatch struct {
	ID        string
	RequestID string
}

// MessagePatch is a partial update of status and transaction-hash fields.
// Nil fields are left untouched.
type MessagePatch struct {
	Status              *models.RequestStatus
	PaidTxHash          *string
	TxHash              *string
	ExpiresAt           *int64
	ClaimStatus         *models.ClaimStatus
	ClaimTxHash         *string
	StealthDeployTxHash *string
}

// MessageStore is the durable ledger plus the public-key directory.
// Both PostgresStore and SQLiteStore implement this interface.
type MessageStore interface {
	Close()
	Ping(ctx context.Context) error

	// Key registry
	UpsertPublicKey(ctx context.Context, address string, publicKeyJWK json.RawMessage) error
	GetPublicKey(ctx context.Context, address string) (json.RawMessage, error) // nil if absent
	CountPublicKeys(ctx context.Context) (int64, error)

	// Message ledger
	SaveMessage(ctx context.Context, msg *models.StoredMessage) error
	UpdateMessage(ctx context.Context, match MessageMatch, patch MessagePatch) (*models.StoredMessage, error) // nil if no match
	ListForWallet(ctx context.Context, address string, opts ListOptions) (*MessagePage, error)
	CountMessages(ctx context.Context) (int64, error)

	// Encrypted identity backups
	UpsertIdentityBackup(ctx context.Context, backup *models.IdentityBackup) error
	GetIdentityBackup(ctx context.Context, walletAddress string) (*models.IdentityBackup, error) // nil if absent
}

const (
	defaultPageLimit = 100
	maxPageLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
