package store

import (
	"errors"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	cases := []struct {
		createdAt int64
		id        string
	}{
		{1756600000000, "01J8ZX5Y9QC4N2R7T1V3W5X7Y9"},
		{0, "a"},
		{9223372036854775807, "id|with|pipes"},
	}
	for _, tc := range cases {
		cursor := encodeCursor(tc.createdAt, tc.id)
		createdAt, id, err := decodeCursor(cursor)
		if err != nil {
			t.Fatalf("decode(%q): %v", cursor, err)
		}
		if createdAt != tc.createdAt || id != tc.id {
			t.Fatalf("round trip (%d, %q) became (%d, %q)", tc.createdAt, tc.id, createdAt, id)
		}
	}
}

func TestCursorRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"not base64!!!", "aGVsbG8", "MTIzNA", "eHw1"} {
		if _, _, err := decodeCursor(bad); !errors.Is(err, errBadCursor) {
			t.Fatalf("decode(%q) should fail with errBadCursor, got %v", bad, err)
		}
	}
}
