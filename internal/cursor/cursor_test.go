package cursor

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := Cursor{
		UpdatedAt: time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC),
		ID:        uuid.New(),
	}

	decoded, err := Decode(Encode(original))
	require.NoError(t, err)
	assert.True(t, original.UpdatedAt.Equal(decoded.UpdatedAt))
	assert.Equal(t, original.ID, decoded.ID)
}

func TestDecodeRejectsExtraSegments(t *testing.T) {
	raw := time.Now().UTC().Format(time.RFC3339Nano) + "|" + uuid.New().String() + "|extra"
	encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw))

	_, err := Decode(encoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 segments")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("!!not-base64!!")
	assert.Error(t, err)

	_, err = Decode(base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte("nope|" + uuid.New().String())))
	assert.Error(t, err)
}

func TestPaginateEmitsCursorOnlyWhenExtraRowMaterialises(t *testing.T) {
	type row struct {
		ID        uuid.UUID
		UpdatedAt time.Time
	}
	cursorOf := func(r row) Cursor { return Cursor{UpdatedAt: r.UpdatedAt, ID: r.ID} }

	rows := make([]row, 4)
	for i := range rows {
		rows[i] = row{ID: uuid.New(), UpdatedAt: time.Now().UTC().Add(-time.Duration(i) * time.Minute)}
	}

	// Fewer rows than the limit: no cursor.
	page := Paginate(rows[:2], 3, cursorOf)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.Next)

	// limit+1 rows fetched: final row dropped, cursor emitted for the last
	// kept row.
	page = Paginate(rows, 3, cursorOf)
	require.Len(t, page.Items, 3)
	assert.True(t, page.HasMore)

	decoded, err := Decode(page.Next)
	require.NoError(t, err)
	assert.Equal(t, rows[2].ID, decoded.ID)
}
