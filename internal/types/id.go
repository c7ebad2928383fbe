package types

import (
	"fmt"
	"time"
)

// IDLength is the number of hex characters in an entity identifier.
const IDLength = 8

// ValidateID checks that id is a fixed-width lowercase hex string.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if len(id) != IDLength {
		return fmt.Errorf("id %q must be %d characters (got %d)", id, IDLength, len(id))
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("id %q must be lowercase hexadecimal", id)
		}
	}
	return nil
}

// TimestampLayout is the canonical mutation timestamp layout (UTC, second
// resolution).
const TimestampLayout = "2006-01-02 15:04:05"

// acceptedLayouts are tried in order when parsing timestamps from the store
// or from interchange files written by other versions.
var acceptedLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// FormatTimestamp renders t in the canonical layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a mutation timestamp in any accepted layout.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
