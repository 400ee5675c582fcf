package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// Timestamp is a leniently parsed document timestamp.
//
// Documents are written by different producers: the collector stores RFC3339
// with an offset, the analysis job stores a zone-less ISO string. The raw string
// is kept so a document re-marshals exactly as it was received. Values that
// cannot be parsed decode to the zero time.
type Timestamp struct {
	time.Time
	raw string
}

// NewTimestamp wraps t, marshalling it as RFC3339
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses s, assuming UTC for zone-less values
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return parsed
	}
	parsed, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// Raw returns the string the timestamp was decoded from
func (t Timestamp) Raw() string {
	return t.raw
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}

	t.raw = s
	t.Time = ParseTimestamp(s)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.raw != "" {
		return json.Marshal(t.raw)
	}
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
