package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/jamin-groot/hush-starknet/internal/models"
)

// PostgresStore is the primary MessageStore backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertPublicKey publishes or re-publishes a wallet's identity public key.
func (s *PostgresStore) UpsertPublicKey(ctx context.Context, address string, publicKeyJWK json.RawMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO public_keys (address, public_key_jwk, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (address) DO UPDATE
		SET public_key_jwk = EXCLUDED.public_key_jwk, updated_at = NOW()
	`, address, publicKeyJWK)
	return err
}

// GetPublicKey returns the published key for an address, or nil if absent.
func (s *PostgresStore) GetPublicKey(ctx context.Context, address string) (json.RawMessage, error) {
	var jwk json.RawMessage
	err := s.pool.QueryRow(ctx, `
		SELECT public_key_jwk FROM public_keys WHERE address = $1
	`, address).Scan(&jwk)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return jwk, nil
}

// CountPublicKeys returns the number of registered identity keys.
func (s *PostgresStore) CountPublicKeys(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM public_keys`).Scan(&n)
	return n, err
}

const messageColumns = `id, tx_hash, kind, request_id, paid_tx_hash, amount, status,
	expires_at, is_stealth, stealth_address, claim_status, claim_tx_hash,
	stealth_deploy_tx_hash, stealth_salt, stealth_class_hash, stealth_public_key,
	derivation_tag, sender_address, recipient_address, payload_json, created_at`

type pgRowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row pgRowScanner) (*models.StoredMessage, error) {
	var (
		m                                                models.StoredMessage
		txHash, kind, requestID, paidTxHash, amount      *string
		status, stealthAddress, claimStatus, claimTxHash *string
		deployTxHash, salt, classHash, stealthPub, tag   *string
		senderAddress, recipientAddress                  *string
		expiresAt                                        *int64
	)
	err := row.Scan(
		&m.ID, &txHash, &kind, &requestID, &paidTxHash, &amount, &status,
		&expiresAt, &m.IsStealth, &stealthAddress, &claimStatus, &claimTxHash,
		&deployTxHash, &salt, &classHash, &stealthPub,
		&tag, &senderAddress, &recipientAddress, &m.Payload, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	m.TxHash = deref(txHash)
	m.Kind = models.Kind(deref(kind))
	m.RequestID = deref(requestID)
	m.PaidTxHash = deref(paidTxHash)
	m.Amount = deref(amount)
	m.Status = models.RequestStatus(deref(status))
	if expiresAt != nil {
		m.ExpiresAt = *expiresAt
	}
	m.StealthAddress = deref(stealthAddress)
	m.ClaimStatus = models.ClaimStatus(deref(claimStatus))
	m.ClaimTxHash = deref(claimTxHash)
	m.StealthDeployTxHash = deref(deployTxHash)
	m.StealthSalt = deref(salt)
	m.StealthClassHash = deref(classHash)
	m.StealthPublicKey = deref(stealthPub)
	m.DerivationTag = deref(tag)
	m.SenderAddress = deref(senderAddress)
	m.RecipientAddress = deref(recipientAddress)
	return &m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SaveMessage upserts a ledger row. Rows are keyed by txHash when present,
// otherwise by id: two writers racing to attach one txHash to the same
// optimistic id converge to a single row with the second payload winning.
func (s *PostgresStore) SaveMessage(ctx context.Context, msg *models.StoredMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}

	id := msg.ID
	if msg.TxHash != "" {
		var existingID string
		err := s.pool.QueryRow(ctx, `
			SELECT id FROM messages WHERE tx_hash = $1 LIMIT 1
		`, msg.TxHash).Scan(&existingID)
		switch {
		case err == nil:
			id = existingID
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return err
		}
	}

	var expiresAt *int64
	if msg.ExpiresAt > 0 {
		expiresAt = &msg.ExpiresAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (`+messageColumns+`, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,NOW())
		ON CONFLICT (id) DO UPDATE SET
			tx_hash = EXCLUDED.tx_hash,
			kind = EXCLUDED.kind,
			request_id = EXCLUDED.request_id,
			paid_tx_hash = EXCLUDED.paid_tx_hash,
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at,
			is_stealth = EXCLUDED.is_stealth,
			stealth_address = EXCLUDED.stealth_address,
			claim_status = EXCLUDED.claim_status,
			claim_tx_hash = EXCLUDED.claim_tx_hash,
			stealth_deploy_tx_hash = EXCLUDED.stealth_deploy_tx_hash,
			stealth_salt = EXCLUDED.stealth_salt,
			stealth_class_hash = EXCLUDED.stealth_class_hash,
			stealth_public_key = EXCLUDED.stealth_public_key,
			derivation_tag = EXCLUDED.derivation_tag,
			sender_address = EXCLUDED.sender_address,
			recipient_address = EXCLUDED.recipient_address,
			payload_json = EXCLUDED.payload_json,
			created_at = EXCLUDED.created_at,
			updated_at = NOW()
	`,
		id, nullable(msg.TxHash), nullable(string(msg.Kind)), nullable(msg.RequestID),
		nullable(msg.PaidTxHash), nullable(msg.Amount), nullable(string(msg.Status)),
		expiresAt, msg.IsStealth, nullable(msg.StealthAddress),
		nullable(string(msg.ClaimStatus)), nullable(msg.ClaimTxHash),
		nullable(msg.StealthDeployTxHash), nullable(msg.StealthSalt),
		nullable(msg.StealthClassHash), nullable(msg.StealthPublicKey),
		nullable(msg.DerivationTag), nullable(msg.SenderAddress),
		nullable(msg.RecipientAddress), msg.Payload, msg.CreatedAt,
	)
	if err != nil {
		return err
	}
	msg.ID = id
	return nil
}

// UpdateMessage applies a partial update to the row matched by id or
// requestId. It returns nil (not an error) when nothing matches; callers
// treat that as "already resolved".
func (s *PostgresStore) UpdateMessage(ctx context.Context, match MessageMatch, patch MessagePatch) (*models.StoredMessage, error) {
	where, arg := "id = $1", match.ID
	if match.ID == "" {
		if match.RequestID == "" {
			return nil, nil
		}
		where, arg = "request_id = $1", match.RequestID
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{arg}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.PaidTxHash != nil {
		add("paid_tx_hash", *patch.PaidTxHash)
	}
	if patch.TxHash != nil {
		add("tx_hash", *patch.TxHash)
	}
	if patch.ExpiresAt != nil {
		add("expires_at", *patch.ExpiresAt)
	}
	if patch.ClaimStatus != nil {
		add("claim_status", string(*patch.ClaimStatus))
	}
	if patch.ClaimTxHash != nil {
		add("claim_tx_hash", *patch.ClaimTxHash)
	}
	if patch.StealthDeployTxHash != nil {
		add("stealth_deploy_tx_hash", *patch.StealthDeployTxHash)
	}

	query := fmt.Sprintf(`
		UPDATE messages SET %s WHERE %s
		RETURNING `+messageColumns, strings.Join(sets, ", "), where)

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListForWallet returns one newest-first page of a wallet's messages.
func (s *PostgresStore) ListForWallet(ctx context.Context, address string, opts ListOptions) (*MessagePage, error) {
	limit := clampLimit(opts.Limit)

	where := "recipient_address = $1"
	if opts.IncludeSent {
		where = "(recipient_address = $1 OR sender_address = $1)"
	}
	args := []any{address}

	if opts.Cursor != "" {
		createdAt, id, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		args = append(args, createdAt, id)
		where += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit+1)
	query := fmt.Sprintf(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, where, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.StoredMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := &MessagePage{}
	if len(messages) > limit {
		messages = messages[:limit]
		last := messages[len(messages)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	page.Messages = messages
	return page, nil
}

// CountMessages returns the total number of ledger rows.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// UpsertIdentityBackup stores or replaces a wallet's encrypted identity blob.
func (s *PostgresStore) UpsertIdentityBackup(ctx context.Context, backup *models.IdentityBackup) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO identity_backups (wallet_address, encrypted_blob, nonce, algorithm, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (wallet_address) DO UPDATE SET
			encrypted_blob = EXCLUDED.encrypted_blob,
			nonce = EXCLUDED.nonce,
			algorithm = EXCLUDED.algorithm,
			version = EXCLUDED.version,
			updated_at = NOW()
	`, backup.WalletAddress, backup.EncryptedBlob, backup.Nonce, backup.Algorithm, backup.Version)
	return err
}

// GetIdentityBackup returns a wallet's encrypted identity blob, or nil.
func (s *PostgresStore) GetIdentityBackup(ctx context.Context, walletAddress string) (*models.IdentityBackup, error) {
	b := &models.IdentityBackup{}
	err := s.pool.QueryRow(ctx, `
		SELECT wallet_address, encrypted_blob, nonce, algorithm, version, updated_at
		FROM identity_backups WHERE wallet_address = $1
	`, walletAddress).Scan(
		&b.WalletAddress, &b.EncryptedBlob, &b.Nonce, &b.Algorithm, &b.Version, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}
