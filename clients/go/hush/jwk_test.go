package hush

import (
	"encoding/json"
	"testing"
)

func TestJWKRoundTrip(t *testing.T) {
	priv := generateTestKeypair(t)

	jwk := EncodeJWK(&priv.PublicKey)
	if jwk.Kty != "RSA" || jwk.Alg != "RSA-OAEP-256" || jwk.Use != "enc" {
		t.Fatalf("unexpected JWK header: %+v", jwk)
	}

	pub, err := DecodeJWK(jwk)
	if err != nil {
		t.Fatal(err)
	}
	if pub.N.Cmp(priv.PublicKey.N) != 0 || pub.E != priv.PublicKey.E {
		t.Fatal("decoded key does not match the original")
	}
}

func TestParseJWK(t *testing.T) {
	priv := generateTestKeypair(t)
	raw, err := json.Marshal(EncodeJWK(&priv.PublicKey))
	if err != nil {
		t.Fatal(err)
	}

	pub, err := ParseJWK(raw)
	if err != nil {
		t.Fatal(err)
	}
	if pub.N.Cmp(priv.PublicKey.N) != 0 {
		t.Fatal("parsed modulus mismatch")
	}
}

func TestDecodeJWKRejections(t *testing.T) {
	priv := generateTestKeypair(t)
	good := EncodeJWK(&priv.PublicKey)

	cases := []struct {
		name   string
		mutate func(*JWK)
	}{
		{"wrong kty", func(j *JWK) { j.Kty = "EC" }},
		{"bad modulus encoding", func(j *JWK) { j.N = "!!!" }},
		{"empty modulus", func(j *JWK) { j.N = "" }},
		{"tiny exponent", func(j *JWK) { j.E = "AQ" }}, // e = 1
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jwk := good
			tc.mutate(&jwk)
			if _, err := DecodeJWK(jwk); err == nil {
				t.Fatalf("expected %s to be rejected", tc.name)
			}
		})
	}
}
