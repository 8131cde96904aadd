package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/jamin-groot/hush-starknet/clients/go/hush"
)

func main() {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	}
	jwk, _ := json.MarshalIndent(hush.EncodeJWK(&priv.PublicKey), "", "  ")

	fmt.Printf("Public key (JWK):\n%s\n\n", jwk)
	fmt.Printf("Private key (PEM):\n%s", pem.EncodeToMemory(block))
}
