package registry

import "time"

// Channel is a groupchat room the bot participates in. Only active channels
// get replies; the bot still joins inactive ones to keep history flowing.
type Channel struct {
	JID       string    `json:"jid"`
	Nick      string    `json:"nick,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IgnoredUser is a sender whose messages never trigger replies.
type IgnoredUser struct {
	JID       string    `json:"jid"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
