package auth

import (
	"errors"
	"math/big"
	"testing"

	"github.com/NethermindEth/starknet.go/curve"
)

func TestVerifyChallengeSignature(t *testing.T) {
	priv, _ := new(big.Int).SetString("3e3979c1ed728490308054fe357a9f49cf67f80f9721f44cc57235129e090f4", 16)
	pubX, _, err := curve.Curve.PrivateToPoint(priv)
	if err != nil {
		t.Fatal(err)
	}

	wallet := "0xAbCd1234"
	nonce := "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"
	hash := ChallengeHash(wallet, nonce)

	r, s, err := curve.Curve.Sign(hash, priv)
	if err != nil {
		t.Fatal(err)
	}

	pubHex := "0x" + pubX.Text(16)
	rHex := "0x" + r.Text(16)
	sHex := "0x" + s.Text(16)

	if err := VerifyChallengeSignature(wallet, nonce, pubHex, rHex, sHex); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	// Case-insensitive wallet matching.
	if err := VerifyChallengeSignature("0xabcd1234", nonce, pubHex, rHex, sHex); err != nil {
		t.Fatalf("lowercased wallet rejected: %v", err)
	}

	// Any mutation invalidates the signature.
	if err := VerifyChallengeSignature(wallet, "other-nonce", pubHex, rHex, sHex); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for a wrong nonce, got %v", err)
	}
	if err := VerifyChallengeSignature(wallet, nonce, pubHex, sHex, rHex); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for swapped r/s, got %v", err)
	}
}

func TestVerifyChallengeSignatureBadInputs(t *testing.T) {
	if err := VerifyChallengeSignature("0xabc", "n", "", "0x1", "0x2"); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey for empty key, got %v", err)
	}
	if err := VerifyChallengeSignature("0xabc", "n", "zzz", "0x1", "0x2"); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey for non-hex key, got %v", err)
	}
	if err := VerifyChallengeSignature("0xabc", "n", "0x5", "not-hex", "0x2"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for a bad r, got %v", err)
	}
}

func TestChallengeHashFitsInFelt(t *testing.T) {
	hash := ChallengeHash("0xABC", "nonce")
	if hash.BitLen() > 31*8 {
		t.Fatalf("hash is %d bits, must fit in 31 bytes", hash.BitLen())
	}
	if hash.Cmp(ChallengeHash("0xabc", "nonce")) != 0 {
		t.Fatal("hash must be case-insensitive over the wallet address")
	}
}
