package auth

import (
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"

	"github.com/NethermindEth/starknet.go/curve"
)

var (
	ErrInvalidSignature = errors.New("invalid wallet signature")
	ErrInvalidPublicKey = errors.New("invalid stark public key")
)

// ChallengeHash maps a challenge to the field element the wallet signs.
// The nonce and address are folded through SHA-256 and truncated to 31 bytes
// so the result always fits in a felt.
func ChallengeHash(walletAddress, nonce string) *big.Int {
	sum := sha256.Sum256([]byte(strings.ToLower(walletAddress) + ":" + nonce))
	return new(big.Int).SetBytes(sum[:31])
}

// VerifyChallengeSignature checks a Stark-curve ECDSA signature over the
// challenge hash. The public key is the x-coordinate; both candidate
// y-coordinates are tried since wallets only expose x.
func VerifyChallengeSignature(walletAddress, nonce, publicKeyHex, rHex, sHex string) error {
	pubX, ok := parseHexInt(publicKeyHex)
	if !ok || pubX.Sign() <= 0 {
		return ErrInvalidPublicKey
	}
	r, ok := parseHexInt(rHex)
	if !ok {
		return ErrInvalidSignature
	}
	s, ok := parseHexInt(sHex)
	if !ok {
		return ErrInvalidSignature
	}

	y := curve.Curve.GetYCoordinate(pubX)
	if y == nil {
		return ErrInvalidPublicKey
	}

	hash := ChallengeHash(walletAddress, nonce)
	if curve.Curve.Verify(hash, r, s, pubX, y) {
		return nil
	}
	negY := new(big.Int).Sub(curve.Curve.P, y)
	if curve.Curve.Verify(hash, r, s, pubX, negY) {
		return nil
	}
	return ErrInvalidSignature
}

func parseHexInt(value string) (*big.Int, bool) {
	v := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if v == "" {
		return nil, false
	}
	n, ok := new(big.Int).SetString(v, 16)
	return n, ok
}
