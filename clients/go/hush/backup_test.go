package hush

import (
	"errors"
	"testing"
)

func TestIdentityBackupRoundTrip(t *testing.T) {
	priv := generateTestKeypair(t)
	kp := &IdentityKeyPair{WalletAddress: "0xabc123", PrivateKey: priv}

	backup, err := SealIdentityBackup(kp, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if backup.Algorithm != backupAlgorithm || backup.Version != backupVersion {
		t.Fatalf("unexpected backup header: %s v%d", backup.Algorithm, backup.Version)
	}

	restored, err := OpenIdentityBackup(backup, "0xabc123", "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if restored.WalletAddress != kp.WalletAddress {
		t.Fatalf("wallet mismatch: %s", restored.WalletAddress)
	}
	if restored.PrivateKey.N.Cmp(priv.N) != 0 {
		t.Fatal("restored private key does not match")
	}
}

func TestIdentityBackupWrongPassphrase(t *testing.T) {
	priv := generateTestKeypair(t)
	kp := &IdentityKeyPair{WalletAddress: "0xabc123", PrivateKey: priv}

	backup, err := SealIdentityBackup(kp, "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := OpenIdentityBackup(backup, "0xabc123", "wrong"); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestIdentityBackupWrongWallet(t *testing.T) {
	priv := generateTestKeypair(t)
	kp := &IdentityKeyPair{WalletAddress: "0xabc123", PrivateKey: priv}

	backup, err := SealIdentityBackup(kp, "pass")
	if err != nil {
		t.Fatal(err)
	}
	// The wallet address is bound in as associated data.
	if _, err := OpenIdentityBackup(backup, "0xother", "pass"); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSealRequiresPassphrase(t *testing.T) {
	priv := generateTestKeypair(t)
	kp := &IdentityKeyPair{WalletAddress: "0xabc123", PrivateKey: priv}
	if _, err := SealIdentityBackup(kp, ""); err == nil {
		t.Fatal("empty passphrase must be rejected")
	}
}
