package pacing

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/metrics"
)

// Plan describes how a single outbound reply should be delivered: how long to
// appear to read the prompt, how long to appear to type, and whether to show a
// typing notification at all.
type Plan struct {
	ReadingDelay time.Duration
	TypingDelay  time.Duration
	ShowTyping   bool
}

// Total is the wall-clock delay before the reply body is sent.
func (p Plan) Total() time.Duration {
	return p.ReadingDelay + p.TypingDelay
}

// Pacer computes human-like delivery delays. A reply is either sent near
// instantly (short conversational bursts) or after a reading pause plus a
// typing period proportional to the reply length at a configured words per
// minute rate, with jitter so repeated replies never pace identically.
type Pacer struct {
	wpm           float64
	minTyping     time.Duration
	maxTyping     time.Duration
	minReading    time.Duration
	maxReading    time.Duration
	instantChance float64

	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg config.BotConfig) *Pacer {
	return &Pacer{
		wpm:           float64(cfg.TypingWPM),
		minTyping:     cfg.TypingMinDelay,
		maxTyping:     cfg.TypingMaxDelay,
		minReading:    cfg.ReadingMinDelay,
		maxReading:    cfg.ReadingMaxDelay,
		instantChance: cfg.InstantReplyChance,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSource replaces the random source. Tests use this for determinism.
func (p *Pacer) WithSource(src rand.Source) *Pacer {
	p.mu.Lock()
	p.rng = rand.New(src)
	p.mu.Unlock()
	return p
}

// PlanReply computes the delivery plan for a reply body. promptLen is the
// rune length of the prompt the reply answers; longer prompts read slower.
func (p *Pacer) PlanReply(body string, promptLen int) Plan {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rng.Float64() < p.instantChance {
		return Plan{ShowTyping: false}
	}

	reading := p.readingDelay(promptLen)
	typing := p.typingDelay(body)
	metrics.TypingDelaySeconds.Observe(typing.Seconds())

	return Plan{ReadingDelay: reading, TypingDelay: typing, ShowTyping: true}
}

func (p *Pacer) readingDelay(promptLen int) time.Duration {
	span := p.maxReading - p.minReading
	if span <= 0 {
		return p.minReading
	}
	base := p.minReading + time.Duration(p.rng.Int63n(int64(span)))
	// Long prompts take a touch longer to read, capped at the max.
	if promptLen > 200 {
		base += time.Duration(promptLen/200) * 500 * time.Millisecond
	}
	if base > p.maxReading {
		base = p.maxReading
	}
	return base
}

func (p *Pacer) typingDelay(body string) time.Duration {
	words := len(strings.Fields(body))
	if words == 0 {
		words = 1
	}
	wpm := p.wpm
	if wpm <= 0 {
		wpm = 55
	}

	secs := float64(words) / wpm * 60
	// ±20% jitter.
	secs *= 0.8 + p.rng.Float64()*0.4

	d := time.Duration(secs * float64(time.Second))
	if d < p.minTyping {
		d = p.minTyping
	}
	if d > p.maxTyping {
		d = p.maxTyping
	}
	return d
}
