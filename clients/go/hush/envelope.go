package hush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	// EnvelopeVersion tags every envelope this codec produces.
	EnvelopeVersion = "hush-note-v1"

	// EnvelopeAlgorithm names the hybrid scheme: RSA-OAEP(SHA-256) wraps a
	// one-time AES-256-GCM key.
	EnvelopeAlgorithm = "RSA-OAEP+AES-256-GCM"

	// MaxNoteLength caps the human-readable note text. Stealth payment
	// bodies carry derived metadata on top of the note and are bounded by
	// maxBodyLength instead.
	MaxNoteLength = 280

	maxBodyLength = 4096

	ivSize     = 12
	aesKeySize = 32
)

// MessageKind tags the metadata variant riding alongside the ciphertext.
type MessageKind string

const (
	KindChat        MessageKind = "chat"
	KindPaymentNote MessageKind = "payment_note"
	KindRequest     MessageKind = "request"
)

// StealthRef is the unencrypted, non-secret subset of stealth bookkeeping
// that may ride in envelope metadata. The private key never appears here;
// it lives only inside the encrypted body.
type StealthRef struct {
	StealthAddress   string `json:"stealthAddress,omitempty"`
	ClaimStatus      string `json:"claimStatus,omitempty"`
	StealthSalt      string `json:"stealthSalt,omitempty"`
	StealthClassHash string `json:"stealthClassHash,omitempty"`
	StealthPublicKey string `json:"stealthPublicKey,omitempty"`
	DerivationTag    string `json:"derivationTag,omitempty"`
}

// Meta is the tagged metadata union. Type selects the variant; the stealth
// group is either fully present or fully absent, never partial.
type Meta struct {
	Type MessageKind `json:"type"`

	// payment_note fields
	IsStealth bool        `json:"isStealth,omitempty"`
	Stealth   *StealthRef `json:"stealth,omitempty"`

	// request fields
	RequestID  string `json:"requestId,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Status     string `json:"status,omitempty"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
	PaidTxHash string `json:"paidTxHash,omitempty"`
}

// Envelope is the encrypted, self-describing container for a note. Only the
// holder of the recipient's private key can open it.
type Envelope struct {
	Version          string `json:"version"`
	Algorithm        string `json:"algorithm"`
	SenderAddress    string `json:"senderAddress"`
	RecipientAddress string `json:"recipientAddress"`
	EncryptedKey     string `json:"encryptedKey"`
	IV               string `json:"iv"`
	Ciphertext       string `json:"ciphertext"`
	Meta             *Meta  `json:"meta,omitempty"`
}

// Encrypt seals plaintext for the recipient. A fresh AES-256-GCM key and
// 96-bit IV are drawn per call; the key is wrapped with the recipient's
// RSA-OAEP public key.
func Encrypt(plaintext, senderAddress, recipientAddress string, recipientKey *rsa.PublicKey, meta *Meta) (*Envelope, error) {
	if plaintext == "" || len(plaintext) > maxBodyLength {
		return nil, ErrInvalidNoteFormat
	}
	if len(plaintext) > MaxNoteLength && !withinStealthBounds(plaintext) {
		return nil, ErrInvalidNoteFormat
	}
	if recipientKey == nil {
		return nil, ErrRecipientKeyMissing
	}

	key := make([]byte, aesKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, iv, []byte(plaintext), nil)

	wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, recipientKey, key, nil)
	if err != nil {
		return nil, fmt.Errorf("key wrap failed: %w", err)
	}

	return &Envelope{
		Version:          EnvelopeVersion,
		Algorithm:        EnvelopeAlgorithm,
		SenderAddress:    normalizeAddress(senderAddress),
		RecipientAddress: normalizeAddress(recipientAddress),
		EncryptedKey:     base64.StdEncoding.EncodeToString(wrappedKey),
		IV:               base64.StdEncoding.EncodeToString(iv),
		Ciphertext:       base64.StdEncoding.EncodeToString(ciphertext),
		Meta:             meta,
	}, nil
}

// Decrypt opens an envelope with the owner's private key. Any unwrap or
// AEAD failure returns ErrDecryptionFailed; callers drop those envelopes
// from view rather than surfacing garbage.
func Decrypt(env *Envelope, priv *rsa.PrivateKey) (string, error) {
	if priv == nil {
		return "", ErrNoLocalKey
	}

	wrappedKey, err := base64.StdEncoding.DecodeString(env.EncryptedKey)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(iv) != ivSize {
		return "", ErrDecryptionFailed
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrappedKey, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// DecryptVisible opens an envelope and reports whether it was readable.
// Undecryptable envelopes yield ok=false with no error, making the
// drop-from-view policy explicit in the signature.
func DecryptVisible(env *Envelope, priv *rsa.PrivateKey) (plaintext string, ok bool) {
	pt, err := Decrypt(env, priv)
	if err != nil {
		return "", false
	}
	return pt, true
}

// StealthBody is the typed plaintext of a stealth payment note. It is the
// only place the stealth private key is ever stored.
type StealthBody struct {
	Type    string          `json:"type"`
	Amount  string          `json:"amount"`
	Note    string          `json:"note,omitempty"`
	Stealth StealthMetadata `json:"stealth"`
}

const stealthBodyType = "stealth_payment"

// BuildStealthBody serializes the stealth payment plaintext. The note cap
// applies to the user's note; the stealth metadata rides outside it.
func BuildStealthBody(amount, note string, stealth StealthMetadata) (string, error) {
	note = strings.TrimSpace(note)
	if len(note) > MaxNoteLength {
		return "", ErrInvalidNoteFormat
	}
	body := StealthBody{
		Type:    stealthBodyType,
		Amount:  amount,
		Note:    note,
		Stealth: stealth,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// withinStealthBounds reports whether an over-cap plaintext is a stealth
// payment body whose embedded note still honors the note cap. Real derived
// metadata alone runs well past MaxNoteLength, so stealth bodies are sized
// against maxBodyLength instead.
func withinStealthBounds(plaintext string) bool {
	var head struct {
		Type string `json:"type"`
		Note string `json:"note"`
	}
	if err := json.Unmarshal([]byte(plaintext), &head); err != nil {
		return false
	}
	return head.Type == stealthBodyType && len(head.Note) <= MaxNoteLength
}

var hexFieldRegex = regexp.MustCompile(`^0x[0-9a-f]+$`)

// ParseStealthBody decodes a decrypted plaintext as a stealth payment body.
// It returns nil for anything that is not a complete, well-formed stealth
// payment, so unrelated notes still display as plain chat.
func ParseStealthBody(plaintext string) *StealthBody {
	var body StealthBody
	if err := json.Unmarshal([]byte(plaintext), &body); err != nil {
		return nil
	}
	if body.Type != stealthBodyType || body.Amount == "" {
		return nil
	}

	s := &body.Stealth
	s.StealthAddress = normalizeHex(s.StealthAddress)
	s.StealthPrivateKey = normalizeHex(s.StealthPrivateKey)
	s.StealthPublicKey = normalizeHex(s.StealthPublicKey)
	s.Salt = normalizeHex(s.Salt)
	s.ClassHash = normalizeHex(s.ClassHash)
	s.DerivationTag = normalizeHex(s.DerivationTag)

	for _, field := range []string{
		s.StealthAddress, s.StealthPrivateKey, s.StealthPublicKey,
		s.Salt, s.ClassHash, s.DerivationTag,
	} {
		if !hexFieldRegex.MatchString(field) {
			return nil
		}
	}

	normalized, err := NormalizeStealthPrivateKey(s.StealthPrivateKey)
	if err != nil {
		return nil
	}
	s.StealthPrivateKey = normalized

	return &body
}

// normalizeAddress lower-cases a wallet address and ensures the 0x prefix.
func normalizeAddress(address string) string {
	return normalizeHex(address)
}

func normalizeHex(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "0x") {
		v = "0x" + v
	}
	return v
}
