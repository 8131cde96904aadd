package hush

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
)

func generateTestKeypair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return priv
}

func TestEnvelopeRoundTrip(t *testing.T) {
	priv := generateTestKeypair(t)

	env, err := Encrypt("hello bob", "0xAAA", "0xBBB", &priv.PublicKey, nil)
	if err != nil {
		t.Fatal(err)
	}
	if env.Version != EnvelopeVersion || env.Algorithm != EnvelopeAlgorithm {
		t.Fatalf("unexpected envelope header: %s %s", env.Version, env.Algorithm)
	}
	if env.SenderAddress != "0xaaa" || env.RecipientAddress != "0xbbb" {
		t.Fatalf("addresses not normalized: %s %s", env.SenderAddress, env.RecipientAddress)
	}

	pt, err := Decrypt(env, priv)
	if err != nil {
		t.Fatal(err)
	}
	if pt != "hello bob" {
		t.Fatalf("expected 'hello bob', got %q", pt)
	}
}

func TestEnvelopeLengthLimits(t *testing.T) {
	priv := generateTestKeypair(t)

	if _, err := Encrypt("", "0xa", "0xb", &priv.PublicKey, nil); !errors.Is(err, ErrInvalidNoteFormat) {
		t.Fatalf("expected ErrInvalidNoteFormat for empty note, got %v", err)
	}
	if _, err := Encrypt(strings.Repeat("x", 281), "0xa", "0xb", &priv.PublicKey, nil); !errors.Is(err, ErrInvalidNoteFormat) {
		t.Fatalf("expected ErrInvalidNoteFormat for long note, got %v", err)
	}
	if _, err := Encrypt(strings.Repeat("x", 280), "0xa", "0xb", &priv.PublicKey, nil); err != nil {
		t.Fatalf("280 chars should be accepted: %v", err)
	}
}

func TestEnvelopeNondeterministic(t *testing.T) {
	priv := generateTestKeypair(t)

	env1, _ := Encrypt("same", "0xa", "0xb", &priv.PublicKey, nil)
	env2, _ := Encrypt("same", "0xa", "0xb", &priv.PublicKey, nil)
	if env1.Ciphertext == env2.Ciphertext {
		t.Fatal("ciphertexts should differ for the same plaintext")
	}
}

func TestEnvelopeWrongKeyFails(t *testing.T) {
	priv := generateTestKeypair(t)
	wrong := generateTestKeypair(t)

	env, _ := Encrypt("secret", "0xa", "0xb", &priv.PublicKey, nil)
	if _, err := Decrypt(env, wrong); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
	if _, ok := DecryptVisible(env, wrong); ok {
		t.Fatal("DecryptVisible should report not-ok for a wrong key")
	}
}

func TestEnvelopeTamperFails(t *testing.T) {
	priv := generateTestKeypair(t)

	env, _ := Encrypt("secret", "0xa", "0xb", &priv.PublicKey, nil)
	tampered := *env
	tampered.Ciphertext = "AAAA" + env.Ciphertext[4:]
	if _, err := Decrypt(&tampered, priv); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed after tamper, got %v", err)
	}
}

func TestDecryptNoLocalKey(t *testing.T) {
	priv := generateTestKeypair(t)
	env, _ := Encrypt("secret", "0xa", "0xb", &priv.PublicKey, nil)
	if _, err := Decrypt(env, nil); !errors.Is(err, ErrNoLocalKey) {
		t.Fatalf("expected ErrNoLocalKey, got %v", err)
	}
}

func validStealthMetadata() StealthMetadata {
	return StealthMetadata{
		StealthAddress:    "0x1234abcd",
		StealthPrivateKey: "0x2",
		StealthPublicKey:  "0x5678",
		Salt:              "0x9abc",
		ClassHash:         "0xdef0",
		DerivationTag:     "0x1111",
	}
}

func TestStealthBodyRoundTrip(t *testing.T) {
	meta := validStealthMetadata()
	body, err := BuildStealthBody("1000000000000000000", "  lunch  ", meta)
	if err != nil {
		t.Fatal(err)
	}

	parsed := ParseStealthBody(body)
	if parsed == nil {
		t.Fatal("expected valid stealth body to parse")
	}
	if parsed.Amount != "1000000000000000000" {
		t.Fatalf("amount mismatch: %s", parsed.Amount)
	}
	if parsed.Note != "lunch" {
		t.Fatalf("note should be trimmed, got %q", parsed.Note)
	}
	if parsed.Stealth.StealthAddress != meta.StealthAddress {
		t.Fatalf("stealth address mismatch: %s", parsed.Stealth.StealthAddress)
	}
}

func TestParseStealthBodyRejections(t *testing.T) {
	base := validStealthMetadata()

	cases := []struct {
		name string
		body string
	}{
		{"not json", "just a chat message"},
		{"wrong type", `{"type":"chat","amount":"1"}`},
		{"missing amount", mustStealthJSON(t, "", base)},
		{"missing private key", mustStealthJSON(t, "1", withField(base, func(m *StealthMetadata) { m.StealthPrivateKey = "" }))},
		{"missing tag", mustStealthJSON(t, "1", withField(base, func(m *StealthMetadata) { m.DerivationTag = "" }))},
		{"non-hex salt", mustStealthJSON(t, "1", withField(base, func(m *StealthMetadata) { m.Salt = "0xZZZ" }))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if ParseStealthBody(tc.body) != nil {
				t.Fatalf("expected nil for %s", tc.name)
			}
		})
	}
}

func mustStealthJSON(t *testing.T, amount string, meta StealthMetadata) string {
	t.Helper()
	body, err := BuildStealthBody(amount, "", meta)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestStealthPaymentEnvelopeRoundTrip(t *testing.T) {
	priv := generateTestKeypair(t)
	meta, err := DeriveWithEntropy(testSender, testRecipient, "", fixedEntropy(0x21))
	if err != nil {
		t.Fatal(err)
	}

	body, err := BuildStealthBody("10000000000000000000", "rent", *meta)
	if err != nil {
		t.Fatal(err)
	}
	// Real derived metadata alone exceeds the note cap.
	if len(body) <= MaxNoteLength {
		t.Fatalf("expected a body longer than %d chars, got %d", MaxNoteLength, len(body))
	}

	env, err := Encrypt(body, testSender, testRecipient, &priv.PublicKey, nil)
	if err != nil {
		t.Fatal(err)
	}
	plaintext, err := Decrypt(env, priv)
	if err != nil {
		t.Fatal(err)
	}

	parsed := ParseStealthBody(plaintext)
	if parsed == nil {
		t.Fatal("decrypted stealth body failed to parse")
	}
	if parsed.Stealth.StealthAddress != meta.StealthAddress {
		t.Fatalf("stealth address mismatch: %s vs %s", parsed.Stealth.StealthAddress, meta.StealthAddress)
	}
	if parsed.Note != "rent" {
		t.Fatalf("note = %q", parsed.Note)
	}
}

func TestStealthBodyNoteCap(t *testing.T) {
	meta := validStealthMetadata()
	if _, err := BuildStealthBody("1", strings.Repeat("x", 281), meta); !errors.Is(err, ErrInvalidNoteFormat) {
		t.Fatalf("expected ErrInvalidNoteFormat for an over-cap note, got %v", err)
	}
	if _, err := BuildStealthBody("1", strings.Repeat("x", 280), meta); err != nil {
		t.Fatalf("280-char note should be accepted: %v", err)
	}
}

func TestEncryptRejectsOversizedStealthBody(t *testing.T) {
	priv := generateTestKeypair(t)
	huge := `{"type":"stealth_payment","amount":"1","stealth":{"stealthAddress":"0x` +
		strings.Repeat("a", 4100) + `"}}`
	if _, err := Encrypt(huge, "0xa", "0xb", &priv.PublicKey, nil); !errors.Is(err, ErrInvalidNoteFormat) {
		t.Fatalf("expected ErrInvalidNoteFormat past the body ceiling, got %v", err)
	}
}

func withField(meta StealthMetadata, mutate func(*StealthMetadata)) StealthMetadata {
	mutate(&meta)
	return meta
}
