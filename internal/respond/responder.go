package respond

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/cooldown"
	"github.com/parley-im/parley/internal/memory"
	"github.com/parley-im/parley/internal/metrics"
	inats "github.com/parley-im/parley/internal/nats"
	"github.com/parley-im/parley/internal/persona"
	"github.com/parley-im/parley/internal/provider"
)

// Notifier is told about generation failures. The alert webhook satisfies it.
type Notifier interface {
	Notify(ctx context.Context, subject, detail string)
}

// Publisher hands pipeline output to the message bus. nats.Publisher
// satisfies it.
type Publisher interface {
	PublishOutboundMessage(ctx context.Context, msg inats.OutboundMessage) error
	PublishExchangeEvent(ctx context.Context, event inats.ExchangeEvent) error
}

// Responder consumes inbound messages, decides whether and what to reply,
// and publishes the reply for paced delivery.
type Responder struct {
	publisher   Publisher
	consumerMgr *inats.ConsumerManager
	trigger     *Trigger
	limiter     *cooldown.Limiter
	mem         *memory.Service
	persona     *persona.Persona
	chain       *provider.Chain
	notifier    Notifier
	cfg         config.BotConfig

	batcher *Batcher
	paused  atomic.Bool
}

func NewResponder(
	publisher Publisher,
	consumerMgr *inats.ConsumerManager,
	trigger *Trigger,
	limiter *cooldown.Limiter,
	mem *memory.Service,
	p *persona.Persona,
	chain *provider.Chain,
	notifier Notifier,
	cfg config.BotConfig,
) *Responder {
	r := &Responder{
		publisher:   publisher,
		consumerMgr: consumerMgr,
		trigger:     trigger,
		limiter:     limiter,
		mem:         mem,
		persona:     p,
		chain:       chain,
		notifier:    notifier,
		cfg:         cfg,
	}
	r.batcher = NewBatcher(cfg.BatchWindow, cfg.MentionWindow, cfg.BatchMaxSize, r.handleBatch)
	return r
}

// Pause stops the responder from replying; inbound messages are still
// consumed and acked so the queue does not back up.
func (r *Responder) Pause()  { r.paused.Store(true) }
func (r *Responder) Resume() { r.paused.Store(false) }

// Paused reports whether replying is currently suspended.
func (r *Responder) Paused() bool { return r.paused.Load() }

// Start begins the responder event loop.
func (r *Responder) Start(ctx context.Context) error {
	consumer, err := r.consumerMgr.EnsureConsumer(ctx, inats.StreamMessages, "responder", inats.SubjectInboundMessage)
	if err != nil {
		return err
	}

	slog.Info("responder started", "consumer", "responder")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				r.batcher.Stop()
				return nil
			}
			slog.Debug("fetching inbound messages", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			r.processMessage(ctx, msg)
		}

		if ctx.Err() != nil {
			r.batcher.Stop()
			return nil
		}
	}
}

func (r *Responder) processMessage(ctx context.Context, msg jetstream.Msg) {
	var inbound inats.InboundMessage
	if err := json.Unmarshal(msg.Data(), &inbound); err != nil {
		slog.Error("unmarshaling inbound message", "error", err)
		_ = msg.Term()
		return
	}

	metrics.MessagesReceivedTotal.Inc()

	respond, reason := r.trigger.Evaluate(ctx, inbound)

	if r.paused.Load() {
		// Only messages that would have replied count as suppressed;
		// journaling every passerby while paused would flood the log.
		if respond {
			r.suppress(ctx, inbound, ReasonPaused)
		}
		_ = msg.Ack()
		return
	}

	if !respond {
		metrics.RepliesSuppressedTotal.WithLabelValues(reason).Inc()
		slog.Debug("message not triggering", "channel", inbound.Channel, "reason", reason)
		_ = msg.Ack()
		return
	}

	scope := Scope(inbound)
	if !r.limiter.Allow(ctx, scope) {
		r.suppress(ctx, inbound, ReasonCooldown)
		_ = msg.Ack()
		return
	}

	r.batcher.Add(inbound, reason)
	_ = msg.Ack()
}

func (r *Responder) suppress(ctx context.Context, inbound inats.InboundMessage, reason string) {
	metrics.RepliesSuppressedTotal.WithLabelValues(reason).Inc()
	slog.Info("reply suppressed", "channel", inbound.Channel, "reason", reason)

	event := inats.ExchangeEvent{
		ID:        uuid.New().String(),
		Channel:   inbound.Channel,
		Author:    inbound.Author,
		Prompt:    inbound.Body,
		Outcome:   inats.OutcomeSuppressed,
		Timestamp: time.Now().UTC(),
	}
	if err := r.publisher.PublishExchangeEvent(ctx, event); err != nil {
		slog.Error("publishing exchange event", "error", err)
	}
}

// handleBatch runs on the batcher's timer goroutine once a batch window
// closes. It owns the whole generate-and-publish path for one turn.
func (r *Responder) handleBatch(batch Batch) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	scope := batch.Scope()
	prompt := batch.Combined()
	start := time.Now()

	history := r.providerHistory(ctx, scope)
	notes := r.recallNotes(ctx, scope, prompt)

	req := provider.Request{
		System:   r.persona.SystemPrompt(notes),
		History:  history,
		Prompt:   prompt + persona.StyleHints(prompt),
		ImageURL: batch.ImageURL,
	}

	completion, err := r.chain.Complete(ctx, req)
	if err != nil {
		r.handleFailure(ctx, batch, prompt, start, err)
		return
	}

	r.mem.Record(ctx, scope, memory.Turn{Role: memory.RoleUser, Author: batch.Author, Body: prompt})
	r.mem.Record(ctx, scope, memory.Turn{Role: memory.RoleAssistant, Body: completion.Text})

	r.sendReply(ctx, batch, completion.Text)
	r.limiter.RecordReply(ctx, scope)
	r.trigger.TouchConversation(ctx, scope)

	event := inats.ExchangeEvent{
		ID:        uuid.New().String(),
		Channel:   batch.Channel,
		Author:    batch.Author,
		Prompt:    prompt,
		Reply:     completion.Text,
		Provider:  completion.Provider,
		Outcome:   inats.OutcomeReplied,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err := r.publisher.PublishExchangeEvent(ctx, event); err != nil {
		slog.Error("publishing exchange event", "error", err)
	}
}

func (r *Responder) handleFailure(ctx context.Context, batch Batch, prompt string, start time.Time, genErr error) {
	slog.Error("generation failed", "channel", batch.Channel, "error", genErr)

	if r.notifier != nil {
		r.notifier.Notify(ctx, "generation failed", genErr.Error())
	}

	if r.cfg.FallbackReply != "" {
		r.sendReply(ctx, batch, r.cfg.FallbackReply)
	}

	event := inats.ExchangeEvent{
		ID:        uuid.New().String(),
		Channel:   batch.Channel,
		Author:    batch.Author,
		Prompt:    prompt,
		Outcome:   inats.OutcomeFailed,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err := r.publisher.PublishExchangeEvent(ctx, event); err != nil {
		slog.Error("publishing exchange event", "error", err)
	}
}

func (r *Responder) sendReply(ctx context.Context, batch Batch, text string) {
	chunks := SplitReply(text, r.cfg.ReplyMaxChunks)
	for i, chunk := range chunks {
		if r.cfg.DisableMentions {
			chunk = NeutralizeMentions(chunk)
		}

		outbound := inats.OutboundMessage{
			ID:         uuid.New().String(),
			To:         batch.Channel,
			StanzaType: batch.StanzaType,
			Body:       chunk,
			InReplyTo:  batch.FirstID,
			ChunkIndex: i,
			ChunkTotal: len(chunks),
		}
		if err := r.publisher.PublishOutboundMessage(ctx, outbound); err != nil {
			slog.Error("publishing outbound message", "error", err)
			return
		}
	}
	metrics.RepliesSentTotal.Inc()
}

func (r *Responder) providerHistory(ctx context.Context, scope string) []provider.Message {
	turns := r.mem.Recent(ctx, scope)
	history := make([]provider.Message, 0, len(turns))
	for _, t := range turns {
		content := t.Body
		if t.Role == memory.RoleUser {
			if t.Author != "" {
				content = persona.AnnotateTurn(t.Author, t.Body, false)
			} else {
				content += persona.StyleHints(t.Body)
			}
		}
		history = append(history, provider.Message{Role: t.Role, Content: content})
	}
	return history
}

func (r *Responder) recallNotes(ctx context.Context, scope, prompt string) []string {
	matches := r.mem.Recall(ctx, scope, prompt)
	notes := make([]string, 0, len(matches))
	for _, m := range matches {
		notes = append(notes, m.Note.Content)
	}
	return notes
}

// Scope identifies the batch's conversation, mirroring Scope on the inbound
// message that opened it.
func (b Batch) Scope() string {
	if b.StanzaType == "groupchat" {
		return bareJID(b.Channel) + "/" + b.Author
	}
	return bareJID(b.Channel)
}
