package models

import (
	"encoding/json"
	"time"
)

// PublicKeyRecord maps a wallet address to its published identity public key.
type PublicKeyRecord struct {
	Address      string          `json:"address"`
	PublicKeyJWK json.RawMessage `json:"publicKeyJwk"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IdentityBackup is an encrypted identity keypair blob stored for recovery.
// The relay never sees the plaintext key material.
type IdentityBackup struct {
	WalletAddress string    `json:"walletAddress"`
	EncryptedBlob string    `json:"encryptedBlob"`
	Nonce         string    `json:"nonce"`
	Algorithm     string    `json:"algorithm"`
	Version       int       `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}
