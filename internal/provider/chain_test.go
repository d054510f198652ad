package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	calls    int
	failures int
	err      error
	reply    string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failures > 0 {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func TestChainFirstProviderSucceeds(t *testing.T) {
	primary := &fakeProvider{name: "groq", reply: "hello"}
	secondary := &fakeProvider{name: "openai", reply: "unused"}
	chain := NewChain([]Provider{primary, secondary}, 2, time.Second)

	out, err := chain.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, "groq", out.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, secondary.calls)
}

func TestChainFallsOverAfterBoundedRetries(t *testing.T) {
	primary := &fakeProvider{name: "groq", failures: 99, err: context.DeadlineExceeded}
	secondary := &fakeProvider{name: "openai", reply: "from secondary"}
	chain := NewChain([]Provider{primary, secondary}, 2, time.Second)

	out, err := chain.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from secondary", out.Text)
	assert.Equal(t, "openai", out.Provider)
	assert.Equal(t, 2, primary.calls, "primary attempts must not exceed the retry bound")
}

func TestChainRetriesTransientThenSucceeds(t *testing.T) {
	rateLimited := &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"}
	primary := &fakeProvider{name: "groq", failures: 1, err: rateLimited, reply: "recovered"}
	chain := NewChain([]Provider{primary}, 3, time.Second)

	out, err := chain.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out.Text)
	assert.Equal(t, 2, primary.calls)
}

func TestChainPermanentErrorSkipsRetry(t *testing.T) {
	authErr := &openai.APIError{HTTPStatusCode: 401, Message: "invalid key"}
	primary := &fakeProvider{name: "groq", failures: 99, err: authErr}
	secondary := &fakeProvider{name: "openai", reply: "backup"}
	chain := NewChain([]Provider{primary, secondary}, 3, time.Second)

	out, err := chain.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "backup", out.Text)
	assert.Equal(t, 1, primary.calls, "auth errors must not be retried")
}

func TestChainAllProvidersExhausted(t *testing.T) {
	primary := &fakeProvider{name: "groq", failures: 99, err: errors.New("boom")}
	secondary := &fakeProvider{name: "openai", failures: 99, err: errors.New("boom")}
	chain := NewChain([]Provider{primary, secondary}, 2, time.Second)

	_, err := chain.Complete(context.Background(), Request{Prompt: "hi"})
	require.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.LessOrEqual(t, primary.calls, 2)
	assert.LessOrEqual(t, secondary.calls, 2)
}

func TestChainContextCancellation(t *testing.T) {
	primary := &fakeProvider{name: "groq", failures: 99, err: errors.New("boom")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := NewChain([]Provider{primary}, 2, time.Second)
	_, err := chain.Complete(ctx, Request{Prompt: "hi"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestChainEmbedFallsOver(t *testing.T) {
	primary := &fakeProvider{name: "groq", failures: 1, err: errors.New("no embeddings")}
	secondary := &fakeProvider{name: "openai"}
	chain := NewChain([]Provider{primary, secondary}, 2, time.Second)

	vec, err := chain.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
}
