package hush

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	backupAlgorithm  = "PBKDF2-SHA256+ChaCha20-Poly1305"
	backupVersion    = 1
	backupIterations = 100_000
	backupSaltSize   = 16
)

// SealIdentityBackup encrypts an identity private key under a passphrase so
// it can be stored on the relay. The relay only ever sees the sealed blob.
func SealIdentityBackup(kp *IdentityKeyPair, passphrase string) (*IdentityBackup, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("backup passphrase is required")
	}

	salt := make([]byte, backupSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(passphrase), salt, backupIterations, chacha20poly1305.KeySize, sha256.New)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	plaintext := x509.MarshalPKCS1PrivateKey(kp.PrivateKey)
	sealed := aead.Seal(nil, nonce, plaintext, []byte(kp.WalletAddress))

	// blob = salt || ciphertext; the nonce travels in its own field.
	blob := append(salt, sealed...)
	return &IdentityBackup{
		WalletAddress: kp.WalletAddress,
		EncryptedBlob: base64.StdEncoding.EncodeToString(blob),
		Nonce:         base64.StdEncoding.EncodeToString(nonce),
		Algorithm:     backupAlgorithm,
		Version:       backupVersion,
	}, nil
}

// OpenIdentityBackup decrypts a sealed backup back into a keypair. A wrong
// passphrase surfaces as ErrDecryptionFailed.
func OpenIdentityBackup(backup *IdentityBackup, walletAddress, passphrase string) (*IdentityKeyPair, error) {
	blob, err := base64.StdEncoding.DecodeString(backup.EncryptedBlob)
	if err != nil || len(blob) <= backupSaltSize {
		return nil, ErrDecryptionFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(backup.Nonce)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	salt := blob[:backupSaltSize]
	sealed := blob[backupSaltSize:]
	key := pbkdf2.Key([]byte(passphrase), salt, backupIterations, chacha20poly1305.KeySize, sha256.New)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrDecryptionFailed
	}

	wallet := normalizeAddress(walletAddress)
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(wallet))
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	priv, err := x509.ParsePKCS1PrivateKey(plaintext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return &IdentityKeyPair{WalletAddress: wallet, PrivateKey: priv}, nil
}
