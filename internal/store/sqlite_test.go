package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/jamin-groot/hush-starknet/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "hush.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSaveMessageConvergesOnTxHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &models.StoredMessage{
		TxHash:           "0xabc",
		Kind:             models.KindPaymentNote,
		SenderAddress:    "0xaaa",
		RecipientAddress: "0xbbb",
		Payload:          json.RawMessage(`{"v":"first"}`),
	}
	if err := s.SaveMessage(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := &models.StoredMessage{
		TxHash:           "0xabc",
		Kind:             models.KindPaymentNote,
		SenderAddress:    "0xaaa",
		RecipientAddress: "0xbbb",
		Payload:          json.RawMessage(`{"v":"second"}`),
	}
	if err := s.SaveMessage(ctx, second); err != nil {
		t.Fatal(err)
	}

	// Racing writers attaching the same txHash converge to one row.
	if second.ID != first.ID {
		t.Fatalf("ids diverged: %s vs %s", first.ID, second.ID)
	}

	page, err := s.ListForWallet(ctx, "0xbbb", ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 1 {
		t.Fatalf("row count = %d, want exactly 1", len(page.Messages))
	}
	if string(page.Messages[0].Payload) != `{"v":"second"}` {
		t.Fatalf("payload = %s, want the second writer's payload", page.Messages[0].Payload)
	}
}

func TestSaveMessageDistinctTxHashes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, txHash := range []string{"0x1", "0x2"} {
		msg := &models.StoredMessage{
			TxHash:           txHash,
			RecipientAddress: "0xbbb",
			Payload:          json.RawMessage(`{}`),
		}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.ListForWallet(ctx, "0xbbb", ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("row count = %d, want 2", len(page.Messages))
	}
}

func TestUpdateMessageNoMatch(t *testing.T) {
	s := newTestStore(t)

	status := models.RequestPaid
	row, err := s.UpdateMessage(context.Background(), MessageMatch{RequestID: "missing"}, MessagePatch{Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	if row != nil {
		t.Fatalf("expected nil for a no-match patch, got %+v", row)
	}
}

func TestUpdateMessageByRequestID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &models.StoredMessage{
		Kind:             models.KindRequest,
		RequestID:        "req-1",
		RecipientAddress: "0xbbb",
		Payload:          json.RawMessage(`{}`),
	}
	if err := s.SaveMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}

	status := models.RequestPaid
	paidTx := "0xpaid"
	row, err := s.UpdateMessage(ctx, MessageMatch{RequestID: "req-1"}, MessagePatch{
		Status:     &status,
		PaidTxHash: &paidTx,
	})
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("expected the patched row back")
	}
	if row.Status != models.RequestPaid || row.PaidTxHash != "0xpaid" {
		t.Fatalf("patch did not land: %+v", row)
	}
}
