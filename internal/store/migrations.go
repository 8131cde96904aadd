package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS public_keys (
	address TEXT PRIMARY KEY,
	public_key_jwk JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	tx_hash TEXT,
	kind TEXT,
	request_id TEXT,
	paid_tx_hash TEXT,
	amount TEXT,
	status TEXT,
	expires_at BIGINT,
	is_stealth BOOLEAN NOT NULL DEFAULT FALSE,
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
	payload_json JSONB NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// RunMigrations applies the relay schema. Statements are idempotent so this
// is safe to run on every boot.
func RunMigrations(databaseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, schema)
	return err
}
