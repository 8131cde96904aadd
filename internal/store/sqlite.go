package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/jamin-groot/hush-starknet/internal/models"
)

// SQLiteStore is the single-node fallback MessageStore used when no
// DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/hush.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/hush.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS public_keys (
		address TEXT PRIMARY KEY,
		public_key_jwk TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		tx_hash TEXT,
		kind TEXT,
		request_id TEXT,
		paid_tx_hash TEXT,
		amount TEXT,
		status TEXT,
		expires_at INTEGER,
		is_stealth INTEGER NOT NULL DEFAULT 0,
		stealth_address TEXT,
		claim_status TEXT,
		claim_tx_hash TEXT,
		stealth_deploy_tx_hash TEXT,
		stealth_salt TEXT,
		stealth_class_hash TEXT,
		stealth_public_key TEXT,
		derivation_tag TEXT,
		sender_address TEXT,
		recipient_address TEXT,
		payload_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_tx_hash ON messages(tx_hash) WHERE tx_hash IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_messages_request_id ON messages(request_id);
	CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_address, created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_address, created_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS identity_backups (
		wallet_address TEXT PRIMARY KEY,
		encrypted_blob TEXT NOT NULL,
		nonce TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertPublicKey publishes or re-publishes a wallet's identity public key.
func (s *SQLiteStore) UpsertPublicKey(ctx context.Context, address string, publicKeyJWK json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO public_keys (address, public_key_jwk, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (address) DO UPDATE
		SET public_key_jwk = excluded.public_key_jwk, updated_at = excluded.updated_at
	`, address, string(publicKeyJWK), time.Now())
	return err
}

// GetPublicKey returns the published key for an address, or nil if absent.
func (s *SQLiteStore) GetPublicKey(ctx context.Context, address string) (json.RawMessage, error) {
	var jwk string
	err := s.db.QueryRowContext(ctx, `
		SELECT public_key_jwk FROM public_keys WHERE address = ?
	`, address).Scan(&jwk)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return json.RawMessage(jwk), nil
}

// CountPublicKeys returns the number of registered identity keys.
func (s *SQLiteStore) CountPublicKeys(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM public_keys`).Scan(&n)
	return n, err
}

func scanMessageSQL(row pgRowScanner) (*models.StoredMessage, error) {
	var (
		m         models.StoredMessage
		fields    [16]sql.NullString
		expiresAt sql.NullInt64
		payload   string
	)
	err := row.Scan(
		&m.ID, &fields[0], &fields[1], &fields[2], &fields[3], &fields[4], &fields[5],
		&expiresAt, &m.IsStealth, &fields[6], &fields[7], &fields[8],
		&fields[9], &fields[10], &fields[11], &fields[12],
		&fields[13], &fields[14], &fields[15], &payload, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.TxHash = fields[0].String
	m.Kind = models.Kind(fields[1].String)
	m.RequestID = fields[2].String
	m.PaidTxHash = fields[3].String
	m.Amount = fields[4].String
	m.Status = models.RequestStatus(fields[5].String)
	m.ExpiresAt = expiresAt.Int64
	m.StealthAddress = fields[6].String
	m.ClaimStatus = models.ClaimStatus(fields[7].String)
	m.ClaimTxHash = fields[8].String
	m.StealthDeployTxHash = fields[9].String
	m.StealthSalt = fields[10].String
	m.StealthClassHash = fields[11].String
	m.StealthPublicKey = fields[12].String
	m.DerivationTag = fields[13].String
	m.SenderAddress = fields[14].String
	m.RecipientAddress = fields[15].String
	m.Payload = json.RawMessage(payload)
	return &m, nil
}

// SaveMessage upserts a ledger row, keyed by txHash when present, else by id.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *models.StoredMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}

	id := msg.ID
	if msg.TxHash != "" {
		var existingID string
		err := s.db.QueryRowContext(ctx, `
			SELECT id FROM messages WHERE tx_hash = ? LIMIT 1
		`, msg.TxHash).Scan(&existingID)
		switch {
		case err == nil:
			id = existingID
		case errors.Is(err, sql.ErrNoRows):
		default:
			return err
		}
	}

	var expiresAt *int64
	if msg.ExpiresAt > 0 {
		expiresAt = &msg.ExpiresAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			tx_hash = excluded.tx_hash,
			kind = excluded.kind,
			request_id = excluded.request_id,
			paid_tx_hash = excluded.paid_tx_hash,
			amount = excluded.amount,
			status = excluded.status,
			expires_at = excluded.expires_at,
			is_stealth = excluded.is_stealth,
			stealth_address = excluded.stealth_address,
			claim_status = excluded.claim_status,
			claim_tx_hash = excluded.claim_tx_hash,
			stealth_deploy_tx_hash = excluded.stealth_deploy_tx_hash,
			stealth_salt = excluded.stealth_salt,
			stealth_class_hash = excluded.stealth_class_hash,
			stealth_public_key = excluded.stealth_public_key,
			derivation_tag = excluded.derivation_tag,
			sender_address = excluded.sender_address,
			recipient_address = excluded.recipient_address,
			payload_json = excluded.payload_json,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`,
		id, nullable(msg.TxHash), nullable(string(msg.Kind)), nullable(msg.RequestID),
		nullable(msg.PaidTxHash), nullable(msg.Amount), nullable(string(msg.Status)),
		expiresAt, msg.IsStealth, nullable(msg.StealthAddress),
		nullable(string(msg.ClaimStatus)), nullable(msg.ClaimTxHash),
		nullable(msg.StealthDeployTxHash), nullable(msg.StealthSalt),
		nullable(msg.StealthClassHash), nullable(msg.StealthPublicKey),
		nullable(msg.DerivationTag), nullable(msg.SenderAddress),
		nullable(msg.RecipientAddress), string(msg.Payload), msg.CreatedAt, time.Now(),
	)
	if err != nil {
		return err
	}
	msg.ID = id
	return nil
}

// UpdateMessage applies a partial update; returns nil when nothing matches.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, match MessageMatch, patch MessagePatch) (*models.StoredMessage, error) {
	where, arg := "id = ?", match.ID
	if match.ID == "" {
		if match.RequestID == "" {
			return nil, nil
		}
		where, arg = "request_id = ?", match.RequestID
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now()}
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
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
	args = append(args, arg)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE messages SET %s WHERE %s", strings.Join(sets, ", "), where), args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	msg, err := scanMessageSQL(s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE "+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListForWallet returns one newest-first page of a wallet's messages.
func (s *SQLiteStore) ListForWallet(ctx context.Context, address string, opts ListOptions) (*MessagePage, error) {
	limit := clampLimit(opts.Limit)

	where := "recipient_address = ?"
	args := []any{address}
	if opts.IncludeSent {
		where = "(recipient_address = ? OR sender_address = ?)"
		args = append(args, address)
	}

	if opts.Cursor != "" {
		createdAt, id, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		where += " AND (created_at < ? OR (created_at = ? AND id < ?))"
		args = append(args, createdAt, createdAt, id)
	}
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.StoredMessage
	for rows.Next() {
		m, err := scanMessageSQL(rows)
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
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// UpsertIdentityBackup stores or replaces a wallet's encrypted identity blob.
func (s *SQLiteStore) UpsertIdentityBackup(ctx context.Context, backup *models.IdentityBackup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity_backups (wallet_address, encrypted_blob, nonce, algorithm, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (wallet_address) DO UPDATE SET
			encrypted_blob = excluded.encrypted_blob,
			nonce = excluded.nonce,
			algorithm = excluded.algorithm,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, backup.WalletAddress, backup.EncryptedBlob, backup.Nonce, backup.Algorithm, backup.Version, time.Now())
	return err
}

// GetIdentityBackup returns a wallet's encrypted identity blob, or nil.
func (s *SQLiteStore) GetIdentityBackup(ctx context.Context, walletAddress string) (*models.IdentityBackup, error) {
	b := &models.IdentityBackup{}
	err := s.db.QueryRowContext(ctx, `
		SELECT wallet_address, encrypted_blob, nonce, algorithm, version, updated_at
		FROM identity_backups WHERE wallet_address = ?
	`, walletAddress).Scan(
		&b.WalletAddress, &b.EncryptedBlob, &b.Nonce, &b.Algorithm, &b.Version, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}
