package types

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// TimelineEntry records one status transition on an order.
type TimelineEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// Timeline is the append-only audit trail embedded on an order. Entries are
// never removed or reordered; every transition appends exactly one.
type Timeline []TimelineEntry

// Append returns the timeline extended with one entry.
func (t Timeline) Append(status string, at time.Time, note string) Timeline {
	return append(t, TimelineEntry{Status: status, Timestamp: at, Note: note})
}

// Last returns the most recent entry, or nil for an empty timeline.
func (t Timeline) Last() *TimelineEntry {
	if len(t) == 0 {
		return nil
	}
	entry := t[len(t)-1]
	return &entry
}

// Value serializes the timeline to JSON.
func (t Timeline) Value() (driver.Value, error) {
	if t == nil {
		return json.Marshal(Timeline{})
	}
	return json.Marshal(t)
}

// Scan decodes JSONB into the timeline.
func (t *Timeline) Scan(value interface{}) error {
	if value == nil {
		*t = Timeline{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, t)
}
