package hush

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const identityKeyBits = 2048

// IdentityKeyPair is a wallet's local note-encryption keypair. The private
// half never leaves the config directory.
type IdentityKeyPair struct {
	WalletAddress string
	PrivateKey    *rsa.PrivateKey
}

// PublicJWK returns the publishable half of the keypair.
func (kp *IdentityKeyPair) PublicJWK() JWK {
	return EncodeJWK(&kp.PrivateKey.PublicKey)
}

func (c *Client) identityKeyPath(wallet string) string {
	name := strings.TrimPrefix(normalizeAddress(wallet), "0x")
	return filepath.Join(c.ConfigDir, "keys", name+".pem")
}

// LoadIdentity reads the local keypair for a wallet, or ErrNoLocalKey when
// none exists.
func (c *Client) LoadIdentity(wallet string) (*IdentityKeyPair, error) {
	data, err := os.ReadFile(c.identityKeyPath(wallet))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoLocalKey
		}
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, fmt.Errorf("malformed identity key file for %s", wallet)
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("malformed identity key for %s: %w", wallet, err)
	}
	return &IdentityKeyPair{WalletAddress: normalizeAddress(wallet), PrivateKey: priv}, nil
}

// SaveIdentity writes the keypair to the config directory, mode 0600.
func (c *Client) SaveIdentity(kp *IdentityKeyPair) error {
	if err := os.MkdirAll(filepath.Join(c.ConfigDir, "keys"), 0700); err != nil {
		return err
	}
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(kp.PrivateKey),
	}
	return os.WriteFile(c.identityKeyPath(kp.WalletAddress), pem.EncodeToMemory(block), 0600)
}

// EnsureIdentity loads or generates the wallet's identity keypair and
// publishes its public half to the registry. Re-publishing an existing key
// is an idempotent upsert. Publishing is a single attempt; failures surface
// to the caller.
func (c *Client) EnsureIdentity(ctx context.Context, wallet string) (*IdentityKeyPair, error) {
	kp, err := c.LoadIdentity(wallet)
	if err != nil {
		if err != ErrNoLocalKey {
			return nil, err
		}
		priv, genErr := rsa.GenerateKey(rand.Reader, identityKeyBits)
		if genErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, genErr)
		}
		kp = &IdentityKeyPair{WalletAddress: normalizeAddress(wallet), PrivateKey: priv}
		if err := c.SaveIdentity(kp); err != nil {
			return nil, err
		}
	}

	if err := c.PublishKey(ctx, kp.WalletAddress, kp.PublicJWK()); err != nil {
		return nil, fmt.Errorf("key publish failed: %w", err)
	}
	return kp, nil
}

// ResolvePublicKey fetches and parses a recipient's published identity key.
func (c *Client) ResolvePublicKey(ctx context.Context, address string) (*rsa.PublicKey, error) {
	raw, err := c.FetchKey(ctx, address)
	if err != nil {
		return nil, err
	}
	pub, err := ParseJWK(raw)
	if err != nil {
		return nil, fmt.Errorf("published key for %s is invalid: %w", address, err)
	}
	return pub, nil
}
