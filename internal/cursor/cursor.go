// Package cursor implements the pagination cursor codec:
// base64-url-nopad of "<rfc3339>|<uuid>", decoded back into the
// (updated_at, id) pair a keyset-paginated query resumes from.
package cursor

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cursor is the decoded (updated_at, id) position a page resumes after.
type Cursor struct {
	UpdatedAt time.Time
	ID        uuid.UUID
}

var encoding = base64.URLEncoding.WithPadding(base64.NoPadding)

// Encode returns the opaque cursor string for row.
func Encode(c Cursor) string {
	raw := fmt.Sprintf("%s|%s", c.UpdatedAt.Format(time.RFC3339Nano), c.ID.String())
	return encoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor string produced by Encode. It rejects extra
// segments rather than silently ignoring them, since a cursor with a third
// field is either corrupt or from an incompatible future format.
func Decode(s string) (Cursor, error) {
	raw, err := encoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("cursor: invalid encoding: %w", err)
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("cursor: expected 2 segments, got %d", len(parts))
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("cursor: invalid timestamp: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, fmt.Errorf("cursor: invalid id: %w", err)
	}
	return Cursor{UpdatedAt: updatedAt, ID: id}, nil
}

// Page bounds one page of a query's results: Items holds at most Limit
// rows, and Next is set whenever the caller fetched one extra row to
// detect there is more.
type Page[T any] struct {
	Items   []T
	Next    string
	HasMore bool
}

// Paginate applies the "fetch limit+1, drop the extra, emit a cursor"
// rule to rows already ordered by (updated_at, id) DESC.
// cursorOf extracts the (updated_at, id) pair a following page would
// resume after.
func Paginate[T any](rows []T, limit int, cursorOf func(T) Cursor) Page[T] {
	if limit <= 0 {
		limit = 1
	}
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	items := rows[:limit]
	return Page[T]{
		Items:   items,
		Next:    Encode(cursorOf(items[len(items)-1])),
		HasMore: true,
	}
}
