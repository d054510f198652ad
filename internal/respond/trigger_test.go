package respond

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/parley-im/parley/internal/config"
	inats "github.com/parley-im/parley/internal/nats"
)

type fakeRegistry struct {
	active  map[string]bool
	ignored map[string]bool
}

func (f *fakeRegistry) ChannelActive(channel string) bool { return f.active[channel] }
func (f *fakeRegistry) UserIgnored(jid string) bool       { return f.ignored[jid] }

func newTestTrigger(t *testing.T, cfg config.BotConfig, reg *fakeRegistry) (*Trigger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	if reg == nil {
		reg = &fakeRegistry{active: map[string]bool{}, ignored: map[string]bool{}}
	}
	return NewTrigger(rdb, reg, cfg, "parley"), mr
}

func baseCfg() config.BotConfig {
	return config.BotConfig{
		TriggerWords:        []string{"parley", "bot"},
		AllowDM:             true,
		AllowMUC:            true,
		ConversationTimeout: 5 * time.Minute,
	}
}

func mucMsg(body string) inats.InboundMessage {
	return inats.InboundMessage{
		ID: "1", Channel: "room@muc.example.org", Author: "alice",
		Body: body, StanzaType: "groupchat",
	}
}

func dmMsg(body string) inats.InboundMessage {
	return inats.InboundMessage{
		ID: "1", Channel: "alice@example.org", Author: "alice@example.org",
		Body: body, StanzaType: "chat",
	}
}

func TestDirectMessageAlwaysTriggers(t *testing.T) {
	tr, _ := newTestTrigger(t, baseCfg(), nil)

	ok, reason := tr.Evaluate(context.Background(), dmMsg("anything at all"))
	assert.True(t, ok)
	assert.Equal(t, ReasonDirect, reason)
}

func TestDirectMessageDeniedWhenDMOff(t *testing.T) {
	cfg := baseCfg()
	cfg.AllowDM = false
	tr, _ := newTestTrigger(t, cfg, nil)

	ok, reason := tr.Evaluate(context.Background(), dmMsg("hello"))
	assert.False(t, ok)
	assert.Equal(t, ReasonChatDenied, reason)
}

func TestTriggerWordUsesWordBoundaries(t *testing.T) {
	reg := &fakeRegistry{active: map[string]bool{"room@muc.example.org": true}, ignored: map[string]bool{}}
	tr, _ := newTestTrigger(t, baseCfg(), reg)
	ctx := context.Background()

	ok, reason := tr.Evaluate(ctx, mucMsg("hey bot, what's up"))
	assert.True(t, ok)
	assert.Equal(t, ReasonTriggerWord, reason)

	// "robotics" contains "bot" but must not trigger.
	ok, reason = tr.Evaluate(ctx, inats.InboundMessage{
		ID: "2", Channel: "room@muc.example.org", Author: "bob",
		Body: "robotics is fun", StanzaType: "groupchat",
	})
	assert.False(t, ok)
	assert.Equal(t, ReasonNoTrigger, reason)
}

func TestMentionUsesWordBoundaries(t *testing.T) {
	reg := &fakeRegistry{active: map[string]bool{"room@muc.example.org": true}, ignored: map[string]bool{}}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := baseCfg()
	cfg.TriggerWords = nil
	tr := NewTrigger(rdb, reg, cfg, "Al")
	ctx := context.Background()

	ok, reason := tr.Evaluate(ctx, mucMsg("hey Al, you around?"))
	assert.True(t, ok)
	assert.Equal(t, ReasonMention, reason)

	// A short nick inside an ordinary word must not count as a mention.
	ok, reason = tr.Evaluate(ctx, inats.InboundMessage{
		ID: "2", Channel: "room@muc.example.org", Author: "bob",
		Body: "I failed my algebra exam", StanzaType: "groupchat",
	})
	assert.False(t, ok)
	assert.Equal(t, ReasonNoTrigger, reason)
}

func TestInactiveChannelSuppressed(t *testing.T) {
	tr, _ := newTestTrigger(t, baseCfg(), nil) // no active channels

	ok, reason := tr.Evaluate(context.Background(), mucMsg("hey parley"))
	assert.False(t, ok)
	assert.Equal(t, ReasonInactive, reason)
}

func TestIgnoredUserSuppressed(t *testing.T) {
	reg := &fakeRegistry{
		active:  map[string]bool{"room@muc.example.org": true},
		ignored: map[string]bool{"alice": true},
	}
	tr, _ := newTestTrigger(t, baseCfg(), reg)

	ok, reason := tr.Evaluate(context.Background(), mucMsg("hey parley"))
	assert.False(t, ok)
	assert.Equal(t, ReasonIgnoredUser, reason)
}

func TestOwnerBypassesIgnoreList(t *testing.T) {
	cfg := baseCfg()
	cfg.OwnerJID = "alice@example.org"
	reg := &fakeRegistry{active: map[string]bool{}, ignored: map[string]bool{"alice@example.org": true}}
	tr, _ := newTestTrigger(t, cfg, reg)

	ok, _ := tr.Evaluate(context.Background(), dmMsg("hello"))
	assert.True(t, ok)
}

func TestHeldConversationKeepsFlowing(t *testing.T) {
	reg := &fakeRegistry{active: map[string]bool{"room@muc.example.org": true}, ignored: map[string]bool{}}
	tr, _ := newTestTrigger(t, baseCfg(), reg)
	ctx := context.Background()

	ok, _ := tr.Evaluate(ctx, mucMsg("hey parley"))
	assert.True(t, ok)

	// Follow-up without the trigger word still flows.
	ok, reason := tr.Evaluate(ctx, mucMsg("so anyway, about earlier"))
	assert.True(t, ok)
	assert.Equal(t, ReasonConversation, reason)
}

func TestHeldConversationExpires(t *testing.T) {
	reg := &fakeRegistry{active: map[string]bool{"room@muc.example.org": true}, ignored: map[string]bool{}}
	tr, mr := newTestTrigger(t, baseCfg(), reg)
	ctx := context.Background()

	ok, _ := tr.Evaluate(ctx, mucMsg("hey parley"))
	assert.True(t, ok)

	mr.FastForward(6 * time.Minute)

	ok, reason := tr.Evaluate(ctx, mucMsg("still there?"))
	assert.False(t, ok)
	assert.Equal(t, ReasonNoTrigger, reason)
}

func TestEndConversation(t *testing.T) {
	reg := &fakeRegistry{active: map[string]bool{"room@muc.example.org": true}, ignored: map[string]bool{}}
	tr, _ := newTestTrigger(t, baseCfg(), reg)
	ctx := context.Background()

	ok, _ := tr.Evaluate(ctx, mucMsg("hey parley"))
	assert.True(t, ok)

	tr.EndConversation(ctx, Scope(mucMsg("")))

	ok, reason := tr.Evaluate(ctx, mucMsg("you still around"))
	assert.False(t, ok)
	assert.Equal(t, ReasonNoTrigger, reason)
}

func TestScope(t *testing.T) {
	assert.Equal(t, "room@muc.example.org/alice", Scope(mucMsg("x")))
	assert.Equal(t, "alice@example.org", Scope(dmMsg("x")))
}
