package xmpp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gosrc.io/xmpp/stanza"

	"github.com/parley-im/parley/internal/config"
	inats "github.com/parley-im/parley/internal/nats"
	"github.com/parley-im/parley/internal/pacing"
)

type fakeSender struct {
	sent []stanza.Packet
	err  error
}

func (f *fakeSender) Send(p stanza.Packet) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeSender) SendIQ(ctx context.Context, iq *stanza.IQ) (chan stanza.IQ, error) {
	return nil, nil
}

func (f *fakeSender) SendRaw(string) error { return nil }

type fakeJSMsg struct {
	data   []byte
	acked  int
	naked  int
	termed int
}

func (m *fakeJSMsg) Metadata() (*jetstream.MsgMetadata, error) { return &jetstream.MsgMetadata{}, nil }
func (m *fakeJSMsg) Data() []byte                              { return m.data }
func (m *fakeJSMsg) Headers() nats.Header                      { return nil }
func (m *fakeJSMsg) Subject() string                           { return inats.SubjectOutboundMessage }
func (m *fakeJSMsg) Reply() string                             { return "" }
func (m *fakeJSMsg) Ack() error                                { m.acked++; return nil }
func (m *fakeJSMsg) DoubleAck(context.Context) error           { m.acked++; return nil }
func (m *fakeJSMsg) Nak() error                                { m.naked++; return nil }
func (m *fakeJSMsg) NakWithDelay(time.Duration) error          { m.naked++; return nil }
func (m *fakeJSMsg) InProgress() error                         { return nil }
func (m *fakeJSMsg) Term() error                               { m.termed++; return nil }
func (m *fakeJSMsg) TermWithReason(string) error               { m.termed++; return nil }

func instantPacer() *pacing.Pacer {
	return pacing.New(config.BotConfig{InstantReplyChance: 1, TypingWPM: 200})
}

func queuedMsg(t *testing.T) *fakeJSMsg {
	t.Helper()
	data, err := json.Marshal(inats.OutboundMessage{
		ID: "1", To: "alice@example.org", StanzaType: "chat", Body: "hey",
	})
	require.NoError(t, err)
	return &fakeJSMsg{data: data}
}

func TestProcessDeliversAndAcks(t *testing.T) {
	sender := &fakeSender{}
	relay := NewOutboundRelay(sender, instantPacer(), nil)

	msg := queuedMsg(t)
	require.NoError(t, relay.process(context.Background(), msg))

	assert.Equal(t, 1, msg.acked)
	assert.Len(t, sender.sent, 1)
}

func TestProcessDropsFailedSends(t *testing.T) {
	sender := &fakeSender{err: errors.New("stream closed")}
	relay := NewOutboundRelay(sender, instantPacer(), nil)

	msg := queuedMsg(t)
	require.NoError(t, relay.process(context.Background(), msg))

	// A failed send is acked away, never queued for redelivery.
	assert.Equal(t, 1, msg.acked)
	assert.Zero(t, msg.naked)
}

func TestProcessRequeuesOnShutdown(t *testing.T) {
	sender := &fakeSender{}
	pacer := pacing.New(config.BotConfig{
		ReadingMinDelay: 50 * time.Millisecond,
		ReadingMaxDelay: 50 * time.Millisecond,
		TypingWPM:       200,
	})
	relay := NewOutboundRelay(sender, pacer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg := queuedMsg(t)
	require.Error(t, relay.process(ctx, msg))

	assert.Equal(t, 1, msg.naked)
	assert.Zero(t, msg.acked)
	assert.Empty(t, sender.sent)
}

func TestProcessTermsPoisonMessages(t *testing.T) {
	relay := NewOutboundRelay(&fakeSender{}, instantPacer(), nil)

	msg := &fakeJSMsg{data: []byte("{not json")}
	require.NoError(t, relay.process(context.Background(), msg))

	assert.Equal(t, 1, msg.termed)
	assert.Zero(t, msg.naked)
}
