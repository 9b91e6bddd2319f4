// internal/engine/tools/systime.go
package tools

import (
	"context"
	"encoding/json"
	"time"
)

// SystemTime reports the server's current time, timezone-aware.
type SystemTime struct {
	// now is swappable for tests.
	now func() time.Time
}

// NewSystemTime creates the system time tool.
func NewSystemTime() *SystemTime {
	return &SystemTime{now: time.Now}
}

func (s *SystemTime) Name() string { return "get_system_time" }
func (s *SystemTime) Description() string {
	return "Get the current system date and time, including timezone"
}

func (s *SystemTime) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (s *SystemTime) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	now := s.now()
	zone, _ := now.Zone()
	data, _ := json.Marshal(map[string]string{
		"iso_datetime": now.Format(time.RFC3339),
		"current_time": now.Format("03:04:05 PM"),
		"current_date": now.Format("January 02, 2006"),
		"day_of_week":  now.Format("Monday"),
		"timezone":     zone,
		"utc_offset":   now.Format("-0700"),
	})
	return string(data), nil
}
