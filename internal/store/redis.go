package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jamin-groot/hush-starknet/internal/models"
)

const (
	walletEventTTL = 10 * time.Minute
	walletEventCap = 100
)

// WalletEvent is a realtime nudge published when a wallet's ledger changes.
// Clients poll these to know when to refetch; the event carries no plaintext.
type WalletEvent struct {
	Type      string `json:"type"` // "message_saved" or "message_updated"
	MessageID string `json:"messageId,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Timestamp int64  `json:"ts"`
}

// RedisStore handles Redis operations: realtime wallet events and the
// auth-nonce replay guard.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for middleware that needs it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func walletEventsKey(address string) string {
	return fmt.Sprintf("wallet:%s:events", address)
}

func authNonceKey(address, nonce string) string {
	return fmt.Sprintf("authnonce:%s:%s", address, nonce)
}

// PushWalletEvent queues a realtime event for a wallet. Best-effort: callers
// log failures but never fail the write that triggered the event.
func (s *RedisStore) PushWalletEvent(ctx context.Context, address string, event WalletEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := walletEventsKey(address)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, 0, walletEventCap-1)
	pipe.Expire(ctx, key, walletEventTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// DrainWalletEvents returns and clears all pending events for a wallet.
func (s *RedisStore) DrainWalletEvents(ctx context.Context, address string) ([]WalletEvent, error) {
	key := walletEventsKey(address)

	pipe := s.client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	raw, err := rangeCmd.Result()
	if err != nil {
		return nil, err
	}

	events := make([]WalletEvent, 0, len(raw))
	for _, item := range raw {
		var ev WalletEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue // drop unreadable entries
		}
		events = append(events, ev)
	}
	return events, nil
}

// MessageSavedEvent builds the event for a freshly saved ledger row.
func MessageSavedEvent(msg *models.StoredMessage) WalletEvent {
	return WalletEvent{Type: "message_saved", MessageID: msg.ID, Kind: string(msg.Kind)}
}

// MessageUpdatedEvent builds the event for a patched ledger row.
func MessageUpdatedEvent(msg *models.StoredMessage) WalletEvent {
	return WalletEvent{Type: "message_updated", MessageID: msg.ID, Kind: string(msg.Kind)}
}

// IsAuthNonceUsed reports whether a challenge nonce was already consumed.
func (s *RedisStore) IsAuthNonceUsed(ctx context.Context, address, nonce string) bool {
	exists, err := s.client.Exists(ctx, authNonceKey(address, nonce)).Result()
	if err != nil {
		// Fail closed: treat Redis trouble as a used nonce.
		return true
	}
	return exists > 0
}

// MarkAuthNonceUsed consumes a challenge nonce for its remaining lifetime.
func (s *RedisStore) MarkAuthNonceUsed(ctx context.Context, address, nonce string, ttl time.Duration) {
	s.client.Set(ctx, authNonceKey(address, nonce), "1", ttl)
}
