package journal

import (
	"time"

	"github.com/google/uuid"
)

// Exchange is a persisted conversational turn: what was asked, what was
// answered (if anything), and how it went.
type Exchange struct {
	ID        uuid.UUID `json:"id"`
	Channel   string    `json:"channel"`
	Author    string    `json:"author"`
	Prompt    string    `json:"prompt"`
	Reply     string    `json:"reply,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}
