package respond

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inats "github.com/parley-im/parley/internal/nats"
)

type fakePublisher struct {
	mu       sync.Mutex
	events   []inats.ExchangeEvent
	outbound []inats.OutboundMessage
}

func (p *fakePublisher) PublishOutboundMessage(_ context.Context, msg inats.OutboundMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outbound = append(p.outbound, msg)
	return nil
}

func (p *fakePublisher) PublishExchangeEvent(_ context.Context, event inats.ExchangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fakeStreamMsg struct {
	data  []byte
	acked int
	naked int
}

func (m *fakeStreamMsg) Metadata() (*jetstream.MsgMetadata, error) { return &jetstream.MsgMetadata{}, nil }
func (m *fakeStreamMsg) Data() []byte                              { return m.data }
func (m *fakeStreamMsg) Headers() nats.Header                      { return nil }
func (m *fakeStreamMsg) Subject() string                           { return inats.SubjectInboundMessage }
func (m *fakeStreamMsg) Reply() string                             { return "" }
func (m *fakeStreamMsg) Ack() error                                { m.acked++; return nil }
func (m *fakeStreamMsg) DoubleAck(context.Context) error           { m.acked++; return nil }
func (m *fakeStreamMsg) Nak() error                                { m.naked++; return nil }
func (m *fakeStreamMsg) NakWithDelay(time.Duration) error          { m.naked++; return nil }
func (m *fakeStreamMsg) InProgress() error                         { return nil }
func (m *fakeStreamMsg) Term() error                               { return nil }
func (m *fakeStreamMsg) TermWithReason(string) error               { return nil }

func streamMsg(t *testing.T, inbound inats.InboundMessage) *fakeStreamMsg {
	t.Helper()
	data, err := json.Marshal(inbound)
	require.NoError(t, err)
	return &fakeStreamMsg{data: data}
}

func newPausedResponder(t *testing.T) (*Responder, *fakePublisher) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := baseCfg()
	cfg.BatchWindow = 10 * time.Millisecond
	reg := &fakeRegistry{active: map[string]bool{}, ignored: map[string]bool{}}
	trigger := NewTrigger(rdb, reg, cfg, "parley")

	pub := &fakePublisher{}
	r := NewResponder(pub, nil, trigger, nil, nil, nil, nil, nil, cfg)
	t.Cleanup(r.batcher.Stop)
	r.Pause()
	return r, pub
}

func TestPausedJournalsOnlyWouldBeReplies(t *testing.T) {
	r, pub := newPausedResponder(t)
	ctx := context.Background()

	// A groupchat message in an unregistered room would never reply;
	// pausing must not journal it.
	msg := streamMsg(t, mucMsg("hey parley"))
	r.processMessage(ctx, msg)
	assert.Equal(t, 1, msg.acked)
	assert.Empty(t, pub.events)

	// A direct message would have replied, so its suppression is recorded.
	msg = streamMsg(t, dmMsg("you there?"))
	r.processMessage(ctx, msg)
	assert.Equal(t, 1, msg.acked)
	require.Len(t, pub.events, 1)
	assert.Equal(t, inats.OutcomeSuppressed, pub.events[0].Outcome)
}
