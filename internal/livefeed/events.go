package livefeed

import (
	"time"

	"mangalib/internal/monitor"
)

const (
	TypeWelcome   = "welcome"
	TypeCallEnded = "call.ended"
	TypeCleared   = "monitor.cleared"
)

// Event is one line of the feed.
type Event struct {
	Type      string                `json:"type"`
	Transport string                `json:"transport,omitempty"`
	Call      *monitor.CallLogEntry `json:"call,omitempty"`
	Stats     *monitor.Stats        `json:"stats,omitempty"`
	At        time.Time             `json:"at"`
}
