package llms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	name      string
	response  string
	err       error
	available bool
	attempts  int
	probes    int
}

func (f *fakeProvider) Complete(ctx context.Context, messages []Message, opts *Options) (string, Usage, error) {
	f.mu.Lock()
	f.attempts++
	f.mu.Unlock()
	if f.err != nil {
		return "", Usage{}, f.err
	}
	return f.response, Usage{InputTokens: 1, OutputTokens: 1}, nil
}

func (f *fakeProvider) Available(ctx context.Context) bool {
	f.mu.Lock()
	f.probes++
	f.mu.Unlock()
	return f.available
}

func (f *fakeProvider) GetModelName() string { return f.name }
func (f *fakeProvider) Close() error         { return nil }

func (f *fakeProvider) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func newTestManager(t *testing.T, primary string, providers ...*fakeProvider) *Manager {
	t.Helper()
	byName := make(map[string]Provider, len(providers))
	order := make([]string, 0, len(providers))
	for _, p := range providers {
		byName[p.name] = p
		order = append(order, p.name)
	}
	m, err := NewManagerWithProviders(primary, nil, byName, order)
	require.NoError(t, err)
	m.SetHealthTTL(0) // probe every call so tests see fresh state
	return m
}

func TestManagerCompleteUsesPrimaryFirst(t *testing.T) {
	a := &fakeProvider{name: "a", response: "from a", available: true}
	b := &fakeProvider{name: "b", response: "from b", available: true}
	m := newTestManager(t, "b", a, b)

	text, err := m.Complete(context.Background(), []Message{User("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from b", text)
	assert.Equal(t, 0, a.attemptCount())
	assert.Equal(t, 1, b.attemptCount())
}

func TestManagerFallsBackToSecondProvider(t *testing.T) {
	// First provider errors, second succeeds; exactly one
	// unsuccessful attempt against provider 1 and no terminal error.
	a := &fakeProvider{name: "a", err: errors.New("boom"), available: true}
	b := &fakeProvider{name: "b", response: "from b", available: true}
	m := newTestManager(t, "a", a, b)

	text, err := m.Complete(context.Background(), []Message{User("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from b", text)
	assert.Equal(t, 1, a.attemptCount())
	assert.Equal(t, 1, b.attemptCount())
}

func TestManagerAllProvidersFailed(t *testing.T) {
	// One ordered attempt per provider, then ErrAllProvidersFailed.
	a := &fakeProvider{name: "a", err: errors.New("a down"), available: true}
	b := &fakeProvider{name: "b", err: errors.New("b down"), available: true}
	c := &fakeProvider{name: "c", err: errors.New("c down"), available: true}
	m := newTestManager(t, "a", a, b, c)

	_, err := m.Complete(context.Background(), []Message{User("hi")}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "c down") // wraps the last error
	assert.Equal(t, 1, a.attemptCount())
	assert.Equal(t, 1, b.attemptCount())
	assert.Equal(t, 1, c.attemptCount())
}

func TestManagerSkipsUnavailableProvider(t *testing.T) {
	a := &fakeProvider{name: "a", response: "from a", available: false}
	b := &fakeProvider{name: "b", response: "from b", available: true}
	m := newTestManager(t, "a", a, b)

	text, err := m.Complete(context.Background(), []Message{User("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from b", text)
	// The failed health probe means no completion attempt reaches a.
	assert.Equal(t, 0, a.attemptCount())
}

func TestManagerPreferredProviderWins(t *testing.T) {
	a := &fakeProvider{name: "a", response: "from a", available: true}
	b := &fakeProvider{name: "b", response: "from b", available: true}
	m := newTestManager(t, "a", a, b)

	text, err := m.Complete(context.Background(), []Message{User("hi")},
		&Options{PreferredProvider: "b"})
	require.NoError(t, err)
	assert.Equal(t, "from b", text)
	assert.Equal(t, 0, a.attemptCount())
}

func TestManagerUnknownPreferredIgnored(t *testing.T) {
	a := &fakeProvider{name: "a", response: "from a", available: true}
	m := newTestManager(t, "a", a)

	text, err := m.Complete(context.Background(), []Message{User("hi")},
		&Options{PreferredProvider: "nope"})
	require.NoError(t, err)
	assert.Equal(t, "from a", text)
}

func TestManagerHonorsCancellation(t *testing.T) {
	// No attempt is initiated after cancellation is observed.
	a := &fakeProvider{name: "a", err: errors.New("down"), available: true}
	b := &fakeProvider{name: "b", response: "from b", available: true}
	m := newTestManager(t, "a", a, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Complete(ctx, []Message{User("hi")}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.attemptCount())
	assert.Equal(t, 0, b.attemptCount())
}

func TestManagerHealthCache(t *testing.T) {
	a := &fakeProvider{name: "a", response: "ok", available: true}
	m := newTestManager(t, "a", a)
	m.SetHealthTTL(time.Minute)

	for i := 0; i < 5; i++ {
		_, err := m.Complete(context.Background(), []Message{User("hi")}, nil)
		require.NoError(t, err)
	}

	a.mu.Lock()
	probes := a.probes
	a.mu.Unlock()
	assert.Equal(t, 1, probes, "probe result should be cached within the TTL")
}

func TestManagerEmptyMessages(t *testing.T) {
	a := &fakeProvider{name: "a", response: "ok", available: true}
	m := newTestManager(t, "a", a)

	_, err := m.Complete(context.Background(), nil, nil)
	assert.Error(t, err)
}
