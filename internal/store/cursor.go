package store

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Pagination cursors are opaque to clients. Internally they carry the
// (createdAt, id) pair of the last row returned; the id tie-break keeps the
// sort total when several rows share one timestamp.

var errBadCursor = errors.New("malformed pagination cursor")

func encodeCursor(createdAt int64, id string) string {
	raw := fmt.Sprintf("%d|%s", createdAt, id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (createdAt int64, id string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, "", errBadCursor
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return 0, "", errBadCursor
	}
	createdAt, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", errBadCursor
	}
	return createdAt, parts[1], nil
}
