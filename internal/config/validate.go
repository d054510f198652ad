package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for startup-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.XMPP.JID == "" {
		errs = append(errs, "XMPP_JID is required")
	} else if !strings.Contains(c.XMPP.JID, "@") {
		errs = append(errs, fmt.Sprintf("XMPP_JID must be a full JID (user@domain), got %q", c.XMPP.JID))
	}
	if c.XMPP.Password == "" {
		errs = append(errs, "XMPP_PASSWORD is required")
	}

	// At least one provider in the fallback order must carry an API key.
	anyEnabled := false
	for _, name := range c.Providers.Order {
		p, ok := c.Providers.ByName(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("PROVIDER_ORDER contains unknown provider %q", name))
			continue
		}
		if p.Enabled() {
			anyEnabled = true
		}
	}
	if !anyEnabled {
		errs = append(errs, "no provider API key configured (set GROQ_API_KEY, OPENROUTER_API_KEY or OPENAI_API_KEY)")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	if c.Bot.BatchWindow <= 0 {
		errs = append(errs, "BOT_BATCH_WINDOW must be positive")
	}
	if c.Bot.MentionWindow > c.Bot.BatchWindow {
		errs = append(errs, "BOT_MENTION_WINDOW must not exceed BOT_BATCH_WINDOW")
	}
	if c.Bot.TypingMinDelay > c.Bot.TypingMaxDelay {
		errs = append(errs, "BOT_TYPING_MIN_DELAY must not exceed BOT_TYPING_MAX_DELAY")
	}
	if c.Bot.InstantReplyChance < 0 || c.Bot.InstantReplyChance > 1 {
		errs = append(errs, "BOT_TYPING_INSTANT_CHANCE must be between 0 and 1")
	}

	if c.Memory.MaxTurns < 1 {
		errs = append(errs, "MEMORY_MAX_TURNS must be at least 1")
	}

	// Admin API is warn-only: without a password hash the API runs read-only
	// health/metrics endpoints, which is a valid deployment.
	if c.Admin.PasswordHash == "" {
		slog.Warn("ADMIN_PASSWORD_HASH is empty, admin API login is disabled")
	} else if len(c.Admin.JWTSecret) < 32 {
		errs = append(errs, "ADMIN_JWT_SECRET must be at least 32 characters when admin login is enabled")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
