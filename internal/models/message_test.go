package models

import (
	"testing"
	"time"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.UnixMilli(1_756_600_000_000)

	cases := []struct {
		name string
		msg  StoredMessage
		want RequestStatus
	}{
		{"non-request passes through", StoredMessage{Kind: KindChat, Status: ""}, ""},
		{"pending before expiry", StoredMessage{Kind: KindRequest, Status: RequestPending, ExpiresAt: now.UnixMilli() + 1000}, RequestPending},
		{"expires at read time", StoredMessage{Kind: KindRequest, Status: RequestPending, ExpiresAt: now.UnixMilli() - 1}, RequestExpired},
		{"paid is sticky past expiry", StoredMessage{Kind: KindRequest, Status: RequestPaid, ExpiresAt: now.UnixMilli() - 1}, RequestPaid},
		{"rejected is sticky past expiry", StoredMessage{Kind: KindRequest, Status: RequestRejected, ExpiresAt: now.UnixMilli() - 1}, RequestRejected},
		{"no expiry never expires", StoredMessage{Kind: KindRequest, Status: RequestPending}, RequestPending},
		{"empty status defaults pending", StoredMessage{Kind: KindRequest}, RequestPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.msg.EffectiveStatus(now); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEffectiveClaimStatus(t *testing.T) {
	cases := []struct {
		name string
		msg  StoredMessage
		want ClaimStatus
	}{
		{"non-stealth has none", StoredMessage{TxHash: "0x1"}, ""},
		{"no tx yet means pending", StoredMessage{IsStealth: true}, ClaimPending},
		{"funded means claimable", StoredMessage{IsStealth: true, TxHash: "0x1"}, ClaimClaimable},
		{"claimed is terminal", StoredMessage{IsStealth: true, TxHash: "0x1", ClaimStatus: ClaimClaimed}, ClaimClaimed},
		{"failed is terminal", StoredMessage{IsStealth: true, TxHash: "0x1", ClaimStatus: ClaimFailed}, ClaimFailed},
		{"stored pending upgraded by tx", StoredMessage{IsStealth: true, TxHash: "0x1", ClaimStatus: ClaimPending}, ClaimClaimable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.msg.EffectiveClaimStatus(); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHasCompleteStealthGroup(t *testing.T) {
	full := StoredMessage{
		IsStealth:        true,
		StealthAddress:   "0x1",
		StealthSalt:      "0x2",
		StealthClassHash: "0x3",
		StealthPublicKey: "0x4",
		DerivationTag:    "0x5",
	}
	if !full.HasCompleteStealthGroup() {
		t.Fatal("full group should be complete")
	}

	partial := full
	partial.DerivationTag = ""
	if partial.HasCompleteStealthGroup() {
		t.Fatal("a missing tag makes the group partial")
	}

	empty := StoredMessage{}
	if !empty.HasCompleteStealthGroup() {
		t.Fatal("an entirely absent group is valid")
	}

	stray := StoredMessage{StealthSalt: "0x2"}
	if stray.HasCompleteStealthGroup() {
		t.Fatal("stealth columns without the flag are a partial group")
	}
}
