package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/parley-im/parley/internal/nats"
)

// Consumer listens on the exchange event subject and persists entries to the
// database, keeping the hot reply path free of Postgres writes.
type Consumer struct {
	repo        *Repository
	consumerMgr *inats.ConsumerManager
}

func NewConsumer(repo *Repository, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{repo: repo, consumerMgr: consumerMgr}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, "journal-persister", inats.SubjectExchangeEvent)
	if err != nil {
		return err
	}

	slog.Info("journal consumer started", "consumer", "journal-persister")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("journal consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var event inats.ExchangeEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("journal consumer: unmarshaling event", "error", err)
		_ = msg.Term()
		return
	}

	ex := convertEventToExchange(event)
	if err := c.repo.Insert(ctx, ex); err != nil {
		slog.Error("journal consumer: persisting exchange", "error", err, "outcome", event.Outcome)
		// Delay redelivery so a down database is not hammered.
		_ = msg.NakWithDelay(5 * time.Second)
		return
	}

	_ = msg.Ack()

	slog.Debug("journal consumer: persisted exchange",
		"channel", event.Channel,
		"outcome", event.Outcome,
	)
}

func convertEventToExchange(event inats.ExchangeEvent) *Exchange {
	ex := &Exchange{
		Channel:   event.Channel,
		Author:    event.Author,
		Prompt:    event.Prompt,
		Reply:     event.Reply,
		Provider:  event.Provider,
		Outcome:   event.Outcome,
		LatencyMs: event.LatencyMs,
		CreatedAt: event.Timestamp,
	}

	// Event IDs come from the responder; fall back to a fresh one so a
	// malformed event still journals.
	if parsed, err := uuid.Parse(event.ID); err == nil {
		ex.ID = parsed
	} else {
		ex.ID = uuid.New()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	return ex
}
