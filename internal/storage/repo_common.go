package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// timestampLayout is fixed width so that lexical order of the stored text
// matches chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func NewID() string {
	return uuid.NewString()
}

func ensureID(id string) string {
	if id != "" {
		return id
	}
	return NewID()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// FormatTimestamp renders t in the stored timestamp form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(raw sql.NullString) *string {
	if !raw.Valid {
		return nil
	}
	value := raw.String
	return &value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
