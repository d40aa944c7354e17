package claims

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// NaiveLayout is the zone-less form the backend writes for its UTC columns.
const NaiveLayout = "2006-01-02T15:04:05.999999"

// Timestamp is a wire time that accepts RFC 3339 and the backend's naive
// layout. Naive values are read as UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t for use in wire types.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

// ParseTimestamp parses s as RFC 3339 or, failing that, as NaiveLayout in UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{Time: t}, nil
	}
	t, err := time.ParseInLocation(NaiveLayout, s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return Timestamp{Time: t}, nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimestamp, data)
	}

	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}
