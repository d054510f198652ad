package xmpp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	inats "github.com/parley-im/parley/internal/nats"
)

// Handler bridges incoming XMPP stanzas onto the inbound NATS subject.
type Handler struct {
	publisher *inats.Publisher
	nick      string
}

func NewHandler(publisher *inats.Publisher, nick string) *Handler {
	return &Handler{publisher: publisher, nick: nick}
}

// HandleMessage publishes chat and groupchat messages to NATS. Everything
// else (errors, headlines, chat-state-only stanzas) is dropped here so the
// pipeline only ever sees real conversational turns.
func (h *Handler) HandleMessage(s xmpp.Sender, p stanza.Packet) {
	msg, ok := p.(stanza.Message)
	if !ok {
		return
	}

	if msg.Body == "" {
		return
	}
	if msg.Type != "chat" && msg.Type != "groupchat" {
		return
	}

	inbound, ok := h.toInbound(msg)
	if !ok {
		return
	}

	slog.Debug("xmpp message received",
		"channel", inbound.Channel,
		"author", inbound.Author,
		"type", inbound.StanzaType,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.publisher.PublishInboundMessage(ctx, inbound); err != nil {
		slog.Error("publishing inbound message", "error", err, "channel", inbound.Channel)
	}
}

// toInbound maps a stanza to the pipeline's inbound shape. Groupchat echoes
// of the bot's own messages are filtered here.
func (h *Handler) toInbound(msg stanza.Message) (inats.InboundMessage, bool) {
	inbound := inats.InboundMessage{
		ID:         uuid.New().String(),
		Body:       msg.Body,
		StanzaType: string(msg.Type),
		ReceivedAt: time.Now().UTC(),
	}
	if msg.Id != "" {
		inbound.ID = msg.Id
	}

	if msg.Type == "groupchat" {
		room, nick := splitJID(msg.From)
		if nick == "" || strings.EqualFold(nick, h.nick) {
			return inats.InboundMessage{}, false
		}
		inbound.Channel = room
		inbound.Author = nick
	} else {
		bare := bareJID(msg.From)
		inbound.Channel = bare
		inbound.Author = bare
	}

	if url := imageURL(msg.Body); url != "" {
		inbound.ImageURL = url
	}

	return inbound, true
}

// imageURL reports whether a body is a bare link to an image, the way most
// clients share HTTP-uploaded files.
func imageURL(body string) string {
	body = strings.TrimSpace(body)
	if strings.ContainsAny(body, " \n\t") {
		return ""
	}
	if !strings.HasPrefix(body, "http://") && !strings.HasPrefix(body, "https://") {
		return ""
	}
	lower := strings.ToLower(body)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return body
		}
	}
	return ""
}

// HandlePresence auto-approves subscription requests so contacts can see
// the bot online.
func (h *Handler) HandlePresence(s xmpp.Sender, p stanza.Packet) {
	pres, ok := p.(stanza.Presence)
	if !ok {
		return
	}

	if pres.Type == "subscribe" {
		reply := stanza.Presence{
			Attrs: stanza.Attrs{
				To:   pres.From,
				Type: "subscribed",
			},
		}
		if err := s.Send(reply); err != nil {
			slog.Error("sending presence subscribed reply", "error", err)
		}
	}
}

func bareJID(jid string) string {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[:i]
	}
	return jid
}

func splitJID(jid string) (bare, resource string) {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[:i], jid[i+1:]
	}
	return jid, ""
}
