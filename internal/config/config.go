package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	XMPP      XMPPConfig
	Providers ProvidersConfig
	Bot       BotConfig
	Memory    MemoryConfig
	Admin     AdminConfig
	Alert     AlertConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

// XMPPConfig holds the client account credentials. The daemon logs in as a
// regular XMPP client, not a server component.
type XMPPConfig struct {
	JID      string
	Password string
	Address  string // host:port of the XMPP server; derived from the JID domain if empty
	Resource string
}

// ProviderConfig describes one OpenAI-compatible completion endpoint.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

func (p ProviderConfig) Enabled() bool {
	return p.APIKey != ""
}

type ProvidersConfig struct {
	// Order lists provider names in fallback order. Providers without an
	// API key are skipped.
	Order      []string
	Groq       ProviderConfig
	OpenAI     ProviderConfig
	OpenRouter ProviderConfig

	MaxRetries     int
	RequestTimeout time.Duration
	EmbedModel     string
}

// ByName returns the configured provider with the given name.
func (c ProvidersConfig) ByName(name string) (ProviderConfig, bool) {
	switch name {
	case "groq":
		return c.Groq, true
	case "openai":
		return c.OpenAI, true
	case "openrouter":
		return c.OpenRouter, true
	}
	return ProviderConfig{}, false
}

// BotConfig holds the conversational behavior tunables.
type BotConfig struct {
	TriggerWords        []string
	OwnerJID            string
	AllowDM             bool
	AllowMUC            bool
	ConversationTimeout time.Duration

	BatchWindow   time.Duration
	MentionWindow time.Duration
	BatchMaxSize  int

	CooldownWindow   time.Duration
	CooldownMax      int
	CooldownDuration time.Duration

	TypingWPM          int
	TypingMinDelay     time.Duration
	TypingMaxDelay     time.Duration
	ReadingMinDelay    time.Duration
	ReadingMaxDelay    time.Duration
	InstantReplyChance float64

	ReplyMaxChunks  int
	DisableMentions bool
	FallbackReply   string
	PersonaPath     string
}

type MemoryConfig struct {
	MaxTurns int
	TTL      time.Duration

	LongTerm            bool
	LongTermMaxResults  int
	SimilarityThreshold float64
}

type AdminConfig struct {
	// PasswordHash is the bcrypt hash of the owner password for the admin API.
	PasswordHash       string
	JWTSecret          string
	TokenExpiry        time.Duration
	CORSAllowedOrigins []string
	LoginMaxPerWindow  int
}

type AlertConfig struct {
	WebhookURL string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		XMPP: XMPPConfig{
			JID:      k.String("xmpp.jid"),
			Password: k.String("xmpp.password"),
			Address:  k.String("xmpp.address"),
			Resource: k.String("xmpp.resource"),
		},
		Providers: ProvidersConfig{
			Order: splitList(k.String("provider.order")),
			Groq: ProviderConfig{
				Name:    "groq",
				APIKey:  k.String("groq.api.key"),
				BaseURL: k.String("groq.base.url"),
				Model:   k.String("groq.model"),
			},
			OpenAI: ProviderConfig{
				Name:    "openai",
				APIKey:  k.String("openai.api.key"),
				BaseURL: k.String("openai.base.url"),
				Model:   k.String("openai.model"),
			},
			OpenRouter: ProviderConfig{
				Name:    "openrouter",
				APIKey:  k.String("openrouter.api.key"),
				BaseURL: k.String("openrouter.base.url"),
				Model:   k.String("openrouter.model"),
			},
			MaxRetries: k.Int("provider.max.retries"),
			EmbedModel: k.String("provider.embed.model"),
		},
		Bot: BotConfig{
			TriggerWords:       splitList(k.String("bot.trigger")),
			OwnerJID:           strings.ToLower(k.String("bot.owner.jid")),
			AllowDM:            boolDefault(k, "bot.allow.dm", true),
			AllowMUC:           boolDefault(k, "bot.allow.muc", false),
			BatchMaxSize:       k.Int("bot.batch.max.size"),
			CooldownMax:        k.Int("bot.cooldown.max"),
			TypingWPM:          k.Int("bot.typing.wpm"),
			InstantReplyChance: floatDefault(k, "bot.typing.instant.chance", 0.3),
			ReplyMaxChunks:     k.Int("bot.reply.max.chunks"),
			DisableMentions:    boolDefault(k, "bot.disable.mentions", true),
			FallbackReply:      k.String("bot.fallback.reply"),
			PersonaPath:        k.String("persona.path"),
		},
		Memory: MemoryConfig{
			MaxTurns:            k.Int("memory.max.turns"),
			LongTerm:            k.Bool("memory.long.term"),
			LongTermMaxResults:  k.Int("memory.long.term.max.results"),
			SimilarityThreshold: floatDefault(k, "memory.similarity.threshold", 0.7),
		},
		Admin: AdminConfig{
			PasswordHash:       k.String("admin.password.hash"),
			JWTSecret:          k.String("admin.jwt.secret"),
			CORSAllowedOrigins: splitList(k.String("admin.cors.origins")),
			LoginMaxPerWindow:  k.Int("admin.login.max"),
		},
		Alert: AlertConfig{
			WebhookURL: k.String("alert.webhook.url"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg, k); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "parley"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "parley"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.XMPP.Resource == "" {
		cfg.XMPP.Resource = "parley"
	}
	if cfg.XMPP.Address == "" {
		if _, domain, ok := strings.Cut(cfg.XMPP.JID, "@"); ok {
			cfg.XMPP.Address = domain + ":5222"
		}
	}
	if len(cfg.Providers.Order) == 0 {
		cfg.Providers.Order = []string{"groq", "openrouter", "openai"}
	}
	if cfg.Providers.Groq.BaseURL == "" {
		cfg.Providers.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Providers.Groq.Model == "" {
		cfg.Providers.Groq.Model = "llama-3.3-70b-versatile"
	}
	if cfg.Providers.OpenAI.BaseURL == "" {
		cfg.Providers.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Providers.OpenAI.Model == "" {
		cfg.Providers.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.Providers.OpenRouter.BaseURL == "" {
		cfg.Providers.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Providers.OpenRouter.Model == "" {
		cfg.Providers.OpenRouter.Model = "meta-llama/llama-3.3-70b-instruct"
	}
	if cfg.Providers.MaxRetries == 0 {
		cfg.Providers.MaxRetries = 2
	}
	if cfg.Providers.EmbedModel == "" {
		cfg.Providers.EmbedModel = "text-embedding-3-small"
	}
	if len(cfg.Bot.TriggerWords) == 0 {
		cfg.Bot.TriggerWords = []string{"parley"}
	}
	if cfg.Bot.BatchMaxSize == 0 {
		cfg.Bot.BatchMaxSize = 5
	}
	if cfg.Bot.CooldownMax == 0 {
		cfg.Bot.CooldownMax = 5
	}
	if cfg.Bot.TypingWPM == 0 {
		cfg.Bot.TypingWPM = 55
	}
	if cfg.Bot.ReplyMaxChunks == 0 {
		cfg.Bot.ReplyMaxChunks = 3
	}
	if cfg.Memory.MaxTurns == 0 {
		cfg.Memory.MaxTurns = 20
	}
	if cfg.Memory.LongTermMaxResults == 0 {
		cfg.Memory.LongTermMaxResults = 5
	}
	if cfg.Admin.LoginMaxPerWindow == 0 {
		cfg.Admin.LoginMaxPerWindow = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func parseDurations(cfg *Config, k *koanf.Koanf) error {
	specs := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"provider.timeout", "60s", &cfg.Providers.RequestTimeout},
		{"bot.conversation.timeout", "5m", &cfg.Bot.ConversationTimeout},
		{"bot.batch.window", "2s", &cfg.Bot.BatchWindow},
		{"bot.mention.window", "500ms", &cfg.Bot.MentionWindow},
		{"bot.cooldown.window", "10s", &cfg.Bot.CooldownWindow},
		{"bot.cooldown.duration", "60s", &cfg.Bot.CooldownDuration},
		{"bot.typing.min.delay", "1s", &cfg.Bot.TypingMinDelay},
		{"bot.typing.max.delay", "25s", &cfg.Bot.TypingMaxDelay},
		{"bot.reading.min.delay", "1s", &cfg.Bot.ReadingMinDelay},
		{"bot.reading.max.delay", "4s", &cfg.Bot.ReadingMaxDelay},
		{"memory.ttl", "1h", &cfg.Memory.TTL},
		{"admin.token.expiry", "12h", &cfg.Admin.TokenExpiry},
	}

	for _, s := range specs {
		raw := k.String(s.key)
		if raw == "" {
			raw = s.def
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", strings.ToUpper(strings.ReplaceAll(s.key, ".", "_")), err)
		}
		*s.dst = d
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func boolDefault(k *koanf.Koanf, key string, def bool) bool {
	if !k.Exists(key) {
		return def
	}
	return k.Bool(key)
}

func floatDefault(k *koanf.Koanf, key string, def float64) float64 {
	if !k.Exists(key) {
		return def
	}
	return k.Float64(key)
}
