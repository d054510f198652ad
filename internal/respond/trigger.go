package respond

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/nats"
)

// Reasons a message is allowed through or held back. Used for logging and
// the suppression metric.
const (
	ReasonTriggerWord  = "trigger_word"
	ReasonMention      = "mention"
	ReasonDirect       = "direct"
	ReasonConversation = "held_conversation"
	ReasonNoTrigger    = "no_trigger"
	ReasonChatDenied   = "chat_type_denied"
	ReasonIgnoredUser  = "ignored_user"
	ReasonInactive     = "inactive_channel"
	ReasonPaused       = "paused"
	ReasonCooldown     = "cooldown"
)

// Registry answers whether a groupchat channel is activated and whether the
// author is on the ignore list.
type Registry interface {
	ChannelActive(channel string) bool
	UserIgnored(jid string) bool
}

// Trigger decides whether an inbound message warrants a reply. A hit opens a
// held conversation in Redis so follow-up messages keep flowing without
// repeating the trigger, until the scope goes quiet for the conversation
// timeout.
type Trigger struct {
	rdb      redis.Cmdable
	registry Registry
	cfg      config.BotConfig
	nickRe   *regexp.Regexp
	patterns []*regexp.Regexp
}

func NewTrigger(rdb redis.Cmdable, registry Registry, cfg config.BotConfig, nick string) *Trigger {
	t := &Trigger{rdb: rdb, registry: registry, cfg: cfg}
	// Word boundaries so a short nick never matches inside another word.
	if nick != "" {
		t.nickRe = wordPattern(nick)
	}
	for _, w := range cfg.TriggerWords {
		t.patterns = append(t.patterns, wordPattern(w))
	}
	return t
}

func wordPattern(w string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(w)) + `\b`)
}

func convStateKey(scope string) string {
	return "conv:active:" + scope
}

// Evaluate returns (respond, reason). The reason names either why the message
// passed or why it was dropped.
func (t *Trigger) Evaluate(ctx context.Context, msg nats.InboundMessage) (bool, string) {
	author := strings.ToLower(msg.Author)
	if t.registry.UserIgnored(author) && author != t.cfg.OwnerJID {
		return false, ReasonIgnoredUser
	}

	isDM := msg.StanzaType != "groupchat"
	if isDM && !t.cfg.AllowDM {
		return false, ReasonChatDenied
	}
	if !isDM {
		if !t.cfg.AllowMUC {
			return false, ReasonChatDenied
		}
		if !t.registry.ChannelActive(bareJID(msg.Channel)) {
			return false, ReasonInactive
		}
	}

	scope := Scope(msg)

	if isDM {
		t.touchConversation(ctx, scope)
		return true, ReasonDirect
	}

	body := strings.ToLower(msg.Body)
	if t.nickRe != nil && t.nickRe.MatchString(body) {
		t.touchConversation(ctx, scope)
		return true, ReasonMention
	}
	for _, re := range t.patterns {
		if re.MatchString(body) {
			t.touchConversation(ctx, scope)
			return true, ReasonTriggerWord
		}
	}

	if t.inConversation(ctx, scope) {
		t.touchConversation(ctx, scope)
		return true, ReasonConversation
	}

	return false, ReasonNoTrigger
}

// EndConversation drops the held-conversation marker for a scope.
func (t *Trigger) EndConversation(ctx context.Context, scope string) {
	if err := t.rdb.Del(ctx, convStateKey(scope)).Err(); err != nil {
		slog.Warn("ending conversation failed", "scope", scope, "error", err)
	}
}

// TouchConversation refreshes the held-conversation window, typically after
// the bot itself replies.
func (t *Trigger) TouchConversation(ctx context.Context, scope string) {
	t.touchConversation(ctx, scope)
}

func (t *Trigger) touchConversation(ctx context.Context, scope string) {
	err := t.rdb.Set(ctx, convStateKey(scope), time.Now().Format(time.RFC3339), t.cfg.ConversationTimeout).Err()
	if err != nil {
		slog.Warn("holding conversation failed", "scope", scope, "error", err)
	}
}

func (t *Trigger) inConversation(ctx context.Context, scope string) bool {
	n, err := t.rdb.Exists(ctx, convStateKey(scope)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Scope identifies a conversation: the bare channel JID plus, for group
// chats, the author's nick so concurrent room conversations stay separate.
func Scope(msg nats.InboundMessage) string {
	if msg.StanzaType == "groupchat" {
		return fmt.Sprintf("%s/%s", bareJID(msg.Channel), msg.Author)
	}
	return bareJID(msg.Channel)
}

func bareJID(jid string) string {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[:i]
	}
	return jid
}
