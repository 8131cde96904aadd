package hush

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
)

// CachedNote is an outgoing plaintext kept locally so senders can re-read
// their own notes. Envelopes are encrypted to the recipient only; without
// this cache the sender's copy would be unreadable.
type CachedNote struct {
	TxHash    string `json:"txHash,omitempty"`
	Recipient string `json:"recipient"`
	Plaintext string `json:"plaintext"`
	CreatedAt int64  `json:"createdAt"`
}

// NoteCache is a file-backed KV of outgoing plaintexts keyed by ciphertext
// fingerprint.
type NoteCache struct {
	dir string
}

// NewNoteCache opens the cache under the client config directory.
func (c *Client) NewNoteCache() *NoteCache {
	return &NoteCache{dir: filepath.Join(c.ConfigDir, "notes")}
}

// Fingerprint derives the cache key for an envelope from its ciphertext.
func Fingerprint(env *Envelope) string {
	sum := sha256.Sum256([]byte(env.Ciphertext))
	return hex.EncodeToString(sum[:16])
}

// Put stores the plaintext for an envelope's fingerprint.
func (nc *NoteCache) Put(fingerprint string, note *CachedNote) error {
	if err := os.MkdirAll(nc.dir, 0700); err != nil {
		return err
	}
	data, err := json.Marshal(note)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(nc.dir, fingerprint+".json"), data, 0600)
}

// Get returns the cached plaintext for a fingerprint, or nil when absent.
func (nc *NoteCache) Get(fingerprint string) (*CachedNote, error) {
	data, err := os.ReadFile(filepath.Join(nc.dir, fingerprint+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var note CachedNote
	if err := json.Unmarshal(data, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// Delete removes a cached note. Missing entries are not an error.
func (nc *NoteCache) Delete(fingerprint string) error {
	err := os.Remove(filepath.Join(nc.dir, fingerprint+".json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
