package hush

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/contracts"
	"github.com/NethermindEth/starknet.go/curve"
	"github.com/NethermindEth/starknet.go/utils"
)

// DefaultAccountClassHash is the OpenZeppelin account class already declared
// on Starknet Sepolia. Override with HUSH_STEALTH_CLASS_HASH.
const DefaultAccountClassHash = "0x540d7f5ec7ecf317e68d48564934cb99259781b1ee3cedbbc37ec5337f8e688"

// saltNibbles is the platform's deployment-salt width: the low 62 hex
// nibbles of the salt seed, left-padded.
const saltNibbles = 62

// StealthMetadata is everything the recipient needs to activate and drain a
// stealth account. It is embedded encrypted inside the payment envelope and
// never persisted in cleartext anywhere else.
type StealthMetadata struct {
	StealthAddress    string `json:"stealthAddress"`
	StealthPrivateKey string `json:"stealthPrivateKey"`
	StealthPublicKey  string `json:"stealthPublicKey"`
	Salt              string `json:"salt"`
	ClassHash         string `json:"classHash"`
	DerivationTag     string `json:"derivationTag"`
}

// Complete reports whether all six fields are present.
func (m *StealthMetadata) Complete() bool {
	return m.StealthAddress != "" && m.StealthPrivateKey != "" &&
		m.StealthPublicKey != "" && m.Salt != "" &&
		m.ClassHash != "" && m.DerivationTag != ""
}

// NormalizeStealthPrivateKey reduces a scalar mod the Stark curve order and
// clamps it away from zero, then re-validates the range. A key still outside
// the valid range after normalization is a derivation defect, not a
// retryable condition.
func NormalizeStealthPrivateKey(value string) (string, error) {
	raw, ok := new(big.Int).SetString(trimHexPrefix(value), 16)
	if !ok {
		return "", fmt.Errorf("%w: not a hex scalar", ErrInvalidDerivedKey)
	}
	order := curve.Curve.N
	normalized := new(big.Int).Mod(raw, order)
	if normalized.Sign() < 0 {
		normalized.Add(normalized, order)
	}
	if normalized.Sign() == 0 {
		normalized.SetInt64(1)
	}
	if normalized.Sign() <= 0 || normalized.Cmp(order) >= 0 {
		return "", ErrInvalidDerivedKey
	}
	return "0x" + normalized.Text(16), nil
}

// Derive produces a deterministic one-time keypair, contract address and
// derivation tag for a stealth payment from sender to recipient, using fresh
// random entropy. Entropy must never be reused across two payments.
func Derive(senderAddress, recipientAddress, classHash string) (*StealthMetadata, error) {
	return DeriveWithEntropy(senderAddress, recipientAddress, classHash, rand.Reader)
}

// DeriveWithEntropy is Derive with an injectable entropy source. Given
// identical (sender, recipient, entropy) it always returns identical
// metadata.
func DeriveWithEntropy(senderAddress, recipientAddress, classHash string, entropy io.Reader) (*StealthMetadata, error) {
	if classHash == "" {
		classHash = DefaultAccountClassHash
	}
	sender := normalizeHex(senderAddress)
	recipient := normalizeHex(recipientAddress)
	classHash = normalizeHex(classHash)

	var seed [32]byte
	if _, err := io.ReadFull(entropy, seed[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	entropySeed, err := NormalizeStealthPrivateKey(fmt.Sprintf("0x%x", seed[:]))
	if err != nil {
		return nil, err
	}

	senderFelt, err := utils.HexToFelt(sender)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	recipientFelt, err := utils.HexToFelt(recipient)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	entropyFelt, err := utils.HexToFelt(entropySeed)
	if err != nil {
		return nil, err
	}

	// sharedSecret binds the one-time key to the sender/recipient pair.
	sharedSecret := curve.Curve.PoseidonArray(senderFelt, recipientFelt, entropyFelt)
	keyMaterial := curve.Pedersen(sharedSecret, entropyFelt)

	privateKey, err := NormalizeStealthPrivateKey(keyMaterial.String())
	if err != nil {
		return nil, err
	}
	privInt, _ := new(big.Int).SetString(trimHexPrefix(privateKey), 16)

	pubX, _, err := curve.Curve.PrivateToPoint(privInt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDerivedKey, err)
	}
	publicKey := "0x" + pubX.Text(16)

	privFelt := utils.BigIntToFelt(privInt)
	pubFelt := utils.BigIntToFelt(pubX)
	classHashFelt, err := utils.HexToFelt(classHash)
	if err != nil {
		return nil, fmt.Errorf("invalid class hash: %w", err)
	}

	saltSeed := curve.Curve.PoseidonArray(privFelt, pubFelt, classHashFelt)
	salt := truncateSalt(saltSeed.String())
	saltFelt, err := utils.HexToFelt(salt)
	if err != nil {
		return nil, err
	}

	addressFelt := contracts.PrecomputeAddress(&felt.Zero, saltFelt, classHashFelt, []*felt.Felt{pubFelt})

	tag := curve.PedersenArray(senderFelt, recipientFelt, saltFelt)

	return &StealthMetadata{
		StealthAddress:    normalizeHex(addressFelt.String()),
		StealthPrivateKey: privateKey,
		StealthPublicKey:  publicKey,
		Salt:              salt,
		ClassHash:         classHash,
		DerivationTag:     normalizeHex(tag.String()),
	}, nil
}

// truncateSalt keeps the low 62 hex nibbles of a salt seed, left-padded.
func truncateSalt(value string) string {
	stripped := trimHexPrefix(value)
	if len(stripped) > saltNibbles {
		stripped = stripped[len(stripped)-saltNibbles:]
	}
	for len(stripped) < saltNibbles {
		stripped = "0" + stripped
	}
	return "0x" + stripped
}

func trimHexPrefix(value string) string {
	v := normalizeHex(value)
	if len(v) >= 2 {
		return v[2:]
	}
	return v
}
