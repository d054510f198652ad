package respond

import (
	"strings"
	"sync"
	"time"

	"github.com/parley-im/parley/internal/metrics"
	"github.com/parley-im/parley/internal/nats"
)

// Batch is a run of consecutive messages from one author in one channel,
// combined so rapid-fire typing produces a single generation call.
type Batch struct {
	Channel    string
	Author     string
	StanzaType string
	FirstID    string
	Bodies     []string
	ImageURL   string
	Reason     string
}

// Combined joins the batched bodies the way the model sees them.
func (b Batch) Combined() string {
	return strings.Join(b.Bodies, " | ")
}

// Batcher accumulates messages per (channel, author) pair and flushes each
// batch once its window elapses or it reaches the size cap. Mentions use the
// shorter window so direct address still feels immediate.
type Batcher struct {
	window        time.Duration
	mentionWindow time.Duration
	maxSize       int
	flush         func(Batch)

	mu      sync.Mutex
	pending map[string]*pendingBatch
}

type pendingBatch struct {
	batch Batch
	timer *time.Timer
}

func NewBatcher(window, mentionWindow time.Duration, maxSize int, flush func(Batch)) *Batcher {
	return &Batcher{
		window:        window,
		mentionWindow: mentionWindow,
		maxSize:       maxSize,
		flush:         flush,
		pending:       make(map[string]*pendingBatch),
	}
}

// Add appends a message to its (channel, author) batch, opening one with the
// appropriate window if none is pending.
func (b *Batcher) Add(msg nats.InboundMessage, reason string) {
	key := msg.Channel + "|" + msg.Author

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[key]
	if !ok {
		window := b.window
		if reason == ReasonMention {
			window = b.mentionWindow
		}
		p = &pendingBatch{
			batch: Batch{
				Channel:    msg.Channel,
				Author:     msg.Author,
				StanzaType: msg.StanzaType,
				FirstID:    msg.ID,
				Reason:     reason,
			},
		}
		p.timer = time.AfterFunc(window, func() { b.flushKey(key) })
		b.pending[key] = p
	}

	if p.batch.ImageURL == "" && msg.ImageURL != "" {
		p.batch.ImageURL = msg.ImageURL
	}

	// Duplicate bodies inside one window add nothing to the prompt.
	for _, existing := range p.batch.Bodies {
		if existing == msg.Body {
			return
		}
	}

	p.batch.Bodies = append(p.batch.Bodies, msg.Body)

	if len(p.batch.Bodies) >= b.maxSize {
		p.timer.Stop()
		delete(b.pending, key)
		metrics.TurnsBatchedTotal.Inc()
		go b.flush(p.batch)
	}
}

func (b *Batcher) flushKey(key string) {
	b.mu.Lock()
	p, ok := b.pending[key]
	if ok {
		delete(b.pending, key)
	}
	b.mu.Unlock()

	if ok && len(p.batch.Bodies) > 0 {
		metrics.TurnsBatchedTotal.Inc()
		b.flush(p.batch)
	}
}

// Stop cancels all pending windows without flushing.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, p := range b.pending {
		p.timer.Stop()
		delete(b.pending, key)
	}
}
