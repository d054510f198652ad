package xmpp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	inats "github.com/parley-im/parley/internal/nats"
	"github.com/parley-im/parley/internal/pacing"
)

// OutboundRelay consumes outbound messages from NATS and delivers them over
// XMPP at a human pace: a reading pause, a typing notification held for a
// length-proportional delay, then the message itself.
type OutboundRelay struct {
	sender      xmpp.Sender
	pacer       *pacing.Pacer
	consumerMgr *inats.ConsumerManager
}

func NewOutboundRelay(sender xmpp.Sender, pacer *pacing.Pacer, consumerMgr *inats.ConsumerManager) *OutboundRelay {
	return &OutboundRelay{sender: sender, pacer: pacer, consumerMgr: consumerMgr}
}

// Start begins consuming outbound messages. Blocks until ctx is cancelled.
func (r *OutboundRelay) Start(ctx context.Context) error {
	consumer, err := r.consumerMgr.EnsureConsumer(ctx, inats.StreamMessages, "outbound-relay", inats.SubjectOutboundMessage)
	if err != nil {
		return err
	}

	slog.Info("outbound relay started", "consumer", "outbound-relay")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("fetching outbound messages", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			if err := r.process(ctx, msg); err != nil {
				return nil
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// process handles one queued message. It returns an error only when the
// context was cancelled mid-delivery; the message stays queued for the next
// run. Send failures are logged and dropped: redelivering them would
// double-post the reply once the stream recovers.
func (r *OutboundRelay) process(ctx context.Context, msg jetstream.Msg) error {
	var outbound inats.OutboundMessage
	if err := json.Unmarshal(msg.Data(), &outbound); err != nil {
		slog.Error("unmarshaling outbound message", "error", err)
		_ = msg.Term()
		return nil
	}

	if err := r.deliver(ctx, outbound); err != nil {
		if ctx.Err() != nil {
			_ = msg.Nak()
			return ctx.Err()
		}
		slog.Error("dropping undeliverable message", "error", err, "to", outbound.To)
	}
	_ = msg.Ack()
	return nil
}

func (r *OutboundRelay) deliver(ctx context.Context, outbound inats.OutboundMessage) error {
	plan := r.pacer.PlanReply(outbound.Body, len(outbound.Body))

	// Later chunks of a split reply skip the reading pause; the first one
	// already paid it.
	if outbound.ChunkIndex > 0 {
		plan.ReadingDelay = 0
	}

	if plan.ReadingDelay > 0 {
		if err := sleep(ctx, plan.ReadingDelay); err != nil {
			return err
		}
	}

	if plan.ShowTyping {
		r.sendChatState(outbound, stanza.StateComposing{})
		if err := sleep(ctx, plan.TypingDelay); err != nil {
			return err
		}
	}

	msg := stanza.Message{
		Attrs: stanza.Attrs{
			To:   outbound.To,
			Type: stanza.StanzaType(outbound.StanzaType),
			Id:   outbound.ID,
		},
		Body: outbound.Body,
	}
	msg.Extensions = append(msg.Extensions, stanza.StateActive{})

	if err := r.sender.Send(msg); err != nil {
		return err
	}

	slog.Debug("sent outbound message",
		"to", outbound.To,
		"chunk", outbound.ChunkIndex,
		"delay_ms", plan.Total().Milliseconds(),
	)
	return nil
}

func (r *OutboundRelay) sendChatState(outbound inats.OutboundMessage, state stanza.MsgExtension) {
	msg := stanza.Message{
		Attrs: stanza.Attrs{
			To:   outbound.To,
			Type: stanza.StanzaType(outbound.StanzaType),
		},
	}
	msg.Extensions = append(msg.Extensions, state)
	if err := r.sender.Send(msg); err != nil {
		slog.Debug("sending chat state", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
