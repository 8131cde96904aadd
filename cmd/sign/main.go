package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/NethermindEth/starknet.go/curve"
)

// Dev tool: sign a relay auth challenge with a wallet Stark key, for
// exercising /auth/verify by hand.
func main() {
	privKeyHex := flag.String("key", "", "Stark private key (hex)")
	wallet := flag.String("wallet", "", "Wallet address")
	nonce := flag.String("nonce", "", "Challenge nonce")
	flag.Parse()

	if *privKeyHex == "" || *wallet == "" || *nonce == "" {
		fmt.Fprintln(os.Stderr, "Usage: sign -key <stark-private-key> -wallet <address> -nonce <challenge-nonce>")
		os.Exit(1)
	}

	priv, ok := new(big.Int).SetString(strings.TrimPrefix(*privKeyHex, "0x"), 16)
	if !ok {
		fmt.Fprintln(os.Stderr, "Invalid private key")
		os.Exit(1)
	}

	pubX, _, err := curve.Curve.PrivateToPoint(priv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Key derivation failed: %v\n", err)
		os.Exit(1)
	}

	address := strings.ToLower(strings.TrimSpace(*wallet))
	sum := sha256.Sum256([]byte(address + ":" + *nonce))
	hash := new(big.Int).SetBytes(sum[:31])

	r, s, err := curve.Curve.Sign(hash, priv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Signing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("publicKey:  0x%s\n", pubX.Text(16))
	fmt.Printf("signatureR: 0x%s\n", r.Text(16))
	fmt.Printf("signatureS: 0x%s\n", s.Text(16))
}
