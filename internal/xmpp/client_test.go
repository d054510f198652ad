package xmpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gosrc.io/xmpp/stanza"
)

func TestJoinPresenceRequestsNoHistory(t *testing.T) {
	pres := joinPresence("room@muc.example.org", "parley")
	assert.Equal(t, "room@muc.example.org/parley", pres.Attrs.To)

	require.Len(t, pres.Extensions, 1)
	muc, ok := pres.Extensions[0].(stanza.MucPresence)
	require.True(t, ok)

	// Zero history so a reconnect never replays stale room messages.
	n, set := muc.History.MaxStanzas.Get()
	require.True(t, set)
	assert.Equal(t, 0, n)
}
