package xmpp

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	"github.com/parley-im/parley/internal/config"
)

// Client manages the XMPP account session the bot chats through. It logs in
// as a regular user, joins the registered groupchat rooms after every
// (re)connect, and routes inbound stanzas to the Handler.
type Client struct {
	client *xmpp.Client
	sm     *xmpp.StreamManager
	nick   string
	rooms  func() map[string]string // bare room JID -> nick

	connected atomic.Bool
	cancel    context.CancelFunc
}

// NewClient builds the XMPP client. rooms supplies the groupchat rooms to
// join on connect, keyed by bare JID with the nick to use in each.
func NewClient(cfg config.XMPPConfig, handler *Handler, rooms func() map[string]string) (*Client, error) {
	router := xmpp.NewRouter()
	router.HandleFunc("message", handler.HandleMessage)
	router.HandleFunc("presence", handler.HandlePresence)

	jid := cfg.JID
	if cfg.Resource != "" {
		jid += "/" + cfg.Resource
	}
	xcfg := xmpp.Config{
		TransportConfiguration: xmpp.TransportConfiguration{
			Address: cfg.Address,
		},
		Jid:        jid,
		Credential: xmpp.Password(cfg.Password),
	}

	c := &Client{nick: Nick(cfg.JID), rooms: rooms}

	client, err := xmpp.NewClient(&xcfg, router, func(err error) {
		c.connected.Store(false)
		slog.Error("xmpp stream error", "error", err)
	})
	if err != nil {
		return nil, err
	}
	c.client = client

	c.sm = xmpp.NewStreamManager(client, func(s xmpp.Sender) {
		c.connected.Store(true)
		slog.Info("xmpp connected", "jid", cfg.JID)
		c.joinRooms(s)
	})

	return c, nil
}

// Start runs the session with automatic reconnection. Blocks until the
// context is cancelled or the stream manager gives up.
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.sm.Run()
	}()

	select {
	case <-ctx.Done():
		c.sm.Stop()
		return nil
	case err := <-errCh:
		c.connected.Store(false)
		return err
	}
}

// Stop disconnects the session.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.sm.Stop()
}

// Sender returns the underlying client for sending stanzas.
func (c *Client) Sender() xmpp.Sender {
	return c.client
}

// Connected reports whether the stream is currently up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// JoinRoom enters a groupchat room. Used for rooms activated at runtime.
func (c *Client) JoinRoom(roomJID, nick string) error {
	if nick == "" {
		nick = c.nick
	}
	return c.client.Send(joinPresence(roomJID, nick))
}

func (c *Client) joinRooms(s xmpp.Sender) {
	if c.rooms == nil {
		return
	}
	for room, nick := range c.rooms() {
		if nick == "" {
			nick = c.nick
		}
		if err := s.Send(joinPresence(room, nick)); err != nil {
			slog.Error("joining room", "room", room, "error", err)
		} else {
			slog.Info("joined room", "room", room, "nick", nick)
		}
	}
}

// joinPresence builds the room-join stanza. History is pinned to zero so a
// reconnect never replays old room messages into the inbound pipeline.
func joinPresence(roomJID, nick string) stanza.Presence {
	pres := stanza.Presence{Attrs: stanza.Attrs{To: roomJID + "/" + nick}}
	pres.Extensions = append(pres.Extensions, stanza.MucPresence{
		History: stanza.History{MaxStanzas: stanza.NewNullableInt(0)},
	})
	return pres
}

// Nick derives the default groupchat nick from a JID's local part.
func Nick(jid string) string {
	if i := strings.IndexByte(jid, '@'); i > 0 {
		return jid[:i]
	}
	return jid
}
