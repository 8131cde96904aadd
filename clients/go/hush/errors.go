package hush

import "errors"

// Error values surfaced by the envelope codec, identity registry, stealth
// deriver and claim orchestrator. Callers match with errors.Is.
var (
	// ErrInvalidNoteFormat rejects empty notes and notes over the length cap.
	ErrInvalidNoteFormat = errors.New("note must be between 1 and 280 characters")

	// ErrRecipientKeyMissing means the recipient never published an identity key.
	ErrRecipientKeyMissing = errors.New("recipient has no published public key")

	// ErrNoLocalKey means no local keypair exists for the wallet address.
	ErrNoLocalKey = errors.New("no local identity key for wallet")

	// ErrDecryptionFailed covers key-unwrap and AEAD failures. Callers filter
	// undecryptable envelopes out of view instead of surfacing this error.
	ErrDecryptionFailed = errors.New("envelope decryption failed")

	// ErrKeyGeneration means the platform crypto source failed.
	ErrKeyGeneration = errors.New("identity key generation failed")

	// ErrInvalidDerivedKey indicates a derived stealth key fell outside the
	// curve's scalar range. This is a derivation bug, never retried.
	ErrInvalidDerivedKey = errors.New("derived stealth private key is outside curve range")

	// ErrSelfClaimRejected rejects claims paying the stealth address itself.
	ErrSelfClaimRejected = errors.New("claim recipient cannot be the stealth account address")

	// ErrInsufficientClaimableBalance means nothing is spendable after fees.
	ErrInsufficientClaimableBalance = errors.New("stealth balance too low to claim after fees")

	// ErrClaimTimedOut means confirmation polling exhausted its attempts.
	ErrClaimTimedOut = errors.New("transaction confirmation timed out")

	// ErrClaimVerificationFailed means transfers reported success but the
	// receiver's balance never increased.
	ErrClaimVerificationFailed = errors.New("transfer confirmed but receiver balance did not increase")

	// ErrStealthMetadataIncomplete means one or more stealth fields are absent.
	ErrStealthMetadataIncomplete = errors.New("stealth metadata is incomplete")
)
