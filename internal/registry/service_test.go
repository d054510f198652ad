package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	channels map[string]Channel
	ignored  map[string]IgnoredUser
	failLoad bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		channels: make(map[string]Channel),
		ignored:  make(map[string]IgnoredUser),
	}
}

func (f *fakeRepo) ListChannels(ctx context.Context) ([]Channel, error) {
	if f.failLoad {
		return nil, assert.AnError
	}
	var out []Channel
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (f *fakeRepo) UpsertChannel(ctx context.Context, ch Channel) error {
	f.channels[ch.JID] = ch
	return nil
}

func (f *fakeRepo) SetChannelActive(ctx context.Context, jid string, active bool) error {
	ch, ok := f.channels[jid]
	if !ok {
		return ErrNotFound
	}
	ch.Active = active
	f.channels[jid] = ch
	return nil
}

func (f *fakeRepo) DeleteChannel(ctx context.Context, jid string) error {
	if _, ok := f.channels[jid]; !ok {
		return ErrNotFound
	}
	delete(f.channels, jid)
	return nil
}

func (f *fakeRepo) ListIgnored(ctx context.Context) ([]IgnoredUser, error) {
	var out []IgnoredUser
	for _, u := range f.ignored {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeRepo) AddIgnored(ctx context.Context, u IgnoredUser) error {
	f.ignored[u.JID] = u
	return nil
}

func (f *fakeRepo) RemoveIgnored(ctx context.Context, jid string) error {
	if _, ok := f.ignored[jid]; !ok {
		return ErrNotFound
	}
	delete(f.ignored, jid)
	return nil
}

func TestLoadPopulatesSnapshot(t *testing.T) {
	repo := newFakeRepo()
	repo.channels["room@muc.example.org"] = Channel{JID: "room@muc.example.org", Active: true}
	repo.ignored["spammer@example.org"] = IgnoredUser{JID: "spammer@example.org"}

	svc := NewService(repo)
	require.NoError(t, svc.Load(context.Background()))

	assert.True(t, svc.ChannelActive("room@muc.example.org"))
	assert.True(t, svc.UserIgnored("spammer@example.org"))
	assert.False(t, svc.ChannelActive("other@muc.example.org"))
}

func TestChannelActivateDeactivate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	require.NoError(t, svc.Load(context.Background()))
	ctx := context.Background()

	require.NoError(t, svc.ActivateChannel(ctx, "Room@MUC.example.org", "parley"))
	assert.True(t, svc.ChannelActive("room@muc.example.org"), "lookups are case-insensitive")

	require.NoError(t, svc.DeactivateChannel(ctx, "room@muc.example.org"))
	assert.False(t, svc.ChannelActive("room@muc.example.org"))
}

func TestDeactivateUnknownChannel(t *testing.T) {
	svc := NewService(newFakeRepo())
	require.NoError(t, svc.Load(context.Background()))

	err := svc.DeactivateChannel(context.Background(), "nope@muc.example.org")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveChannel(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	require.NoError(t, svc.Load(context.Background()))
	ctx := context.Background()

	require.NoError(t, svc.ActivateChannel(ctx, "room@muc.example.org", "parley"))
	require.NoError(t, svc.RemoveChannel(ctx, "Room@MUC.example.org"))

	assert.False(t, svc.ChannelActive("room@muc.example.org"))
	assert.Empty(t, repo.channels)

	err := svc.RemoveChannel(ctx, "room@muc.example.org")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIgnoreUnignore(t *testing.T) {
	svc := NewService(newFakeRepo())
	require.NoError(t, svc.Load(context.Background()))
	ctx := context.Background()

	require.NoError(t, svc.IgnoreUser(ctx, "Spammer@example.org", "flooding"))
	assert.True(t, svc.UserIgnored("spammer@example.org"))

	require.NoError(t, svc.UnignoreUser(ctx, "spammer@example.org"))
	assert.False(t, svc.UserIgnored("spammer@example.org"))
}

func TestLoadPropagatesRepoError(t *testing.T) {
	repo := newFakeRepo()
	repo.failLoad = true

	svc := NewService(repo)
	assert.Error(t, svc.Load(context.Background()))
}
