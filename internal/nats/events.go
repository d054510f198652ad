package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamMessages = "PARLEY_MESSAGES"
	StreamEvents   = "PARLEY_EVENTS"
)

// Subject constants.
const (
	SubjectInboundMessage  = "parley.messages.inbound"
	SubjectOutboundMessage = "parley.messages.outbound"
	SubjectExchangeEvent   = "parley.events.exchange"
)

// InboundMessage is published when a chat message arrives at the XMPP client.
type InboundMessage struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"` // bare JID of the conversation (correspondent or MUC room)
	Author     string    `json:"author"`  // bare JID of the sender, or room JID + nick for MUC
	Body       string    `json:"body"`
	StanzaType string    `json:"stanza_type"` // "chat" or "groupchat"
	ImageURL   string    `json:"image_url,omitempty"` // out-of-band attachment, if any
	ReceivedAt time.Time `json:"received_at"`
}

// OutboundMessage is published to deliver a reply via XMPP. The outbound relay
// applies reply pacing before sending.
type OutboundMessage struct {
	ID         string `json:"id"`
	To         string `json:"to"`
	StanzaType string `json:"stanza_type"`
	Body       string `json:"body"`
	InReplyTo  string `json:"in_reply_to,omitempty"`
	// ChunkIndex and ChunkTotal mark a reply split across several messages.
	// The relay skips the reading delay on all but the first chunk.
	ChunkIndex int `json:"chunk_index"`
	ChunkTotal int `json:"chunk_total"`
}

// ExchangeEvent records one handled conversational turn for journaling.
type ExchangeEvent struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Author    string    `json:"author"`
	Prompt    string    `json:"prompt"`
	Reply     string    `json:"reply,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Outcome   string    `json:"outcome"` // replied, suppressed, failed
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Exchange outcomes.
const (
	OutcomeReplied    = "replied"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
)
