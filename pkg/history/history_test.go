package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/llms"
)

func TestMemoryStoreAppendAndGet(t *testing.T) {
	store := NewMemoryStore(50)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-1",
		llms.User("hello"),
		llms.Assistant("hi there"),
	))

	messages, err := store.Get(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, llms.RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, llms.RoleAssistant, messages[1].Role)
}

func TestMemoryStoreGetLimit(t *testing.T) {
	store := NewMemoryStore(50)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Append(ctx, "conv-1", llms.User(fmt.Sprintf("msg-%d", i))))
	}

	messages, err := store.Get(ctx, "conv-1", 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "msg-7", messages[0].Content)
	assert.Equal(t, "msg-9", messages[2].Content)
}

func TestMemoryStoreTrimsOldest(t *testing.T) {
	store := NewMemoryStore(5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, store.Append(ctx, "conv-1", llms.User(fmt.Sprintf("msg-%d", i))))
	}

	messages, err := store.Get(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	assert.Equal(t, "msg-3", messages[0].Content)
	assert.Equal(t, "msg-7", messages[4].Content)
}

func TestMemoryStoreIsolatesConversations(t *testing.T) {
	store := NewMemoryStore(50)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-a", llms.User("a")))
	require.NoError(t, store.Append(ctx, "conv-b", llms.User("b")))

	messages, err := store.Get(ctx, "conv-a", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "a", messages[0].Content)
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore(50)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-1", llms.User("hello")))
	require.NoError(t, store.Clear(ctx, "conv-1"))

	messages, err := store.Get(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMemoryStoreEmptyConversationID(t *testing.T) {
	store := NewMemoryStore(50)
	ctx := context.Background()

	assert.Error(t, store.Append(ctx, "", llms.User("hello")))
	_, err := store.Get(ctx, "", 0)
	assert.Error(t, err)
	assert.Error(t, store.Clear(ctx, ""))
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(50)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-1", llms.User("original")))

	messages, err := store.Get(ctx, "conv-1", 0)
	require.NoError(t, err)
	messages[0].Content = "mutated"

	again, err := store.Get(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestNewStoreSelectsBackend(t *testing.T) {
	cfg := &config.HistoryConfig{}
	cfg.SetDefaults()

	store, err := NewStore(cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}

func TestNewStoreUnknownBackend(t *testing.T) {
	_, err := NewStore(&config.HistoryConfig{Backend: "redis"})
	assert.Error(t, err)
}

func TestSQLStoreRebind(t *testing.T) {
	s := &SQLStore{dialect: "postgres"}
	got := s.rebind("INSERT INTO t (a, b) VALUES (?, ?)")
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", got)

	s = &SQLStore{dialect: "sqlite"}
	got = s.rebind("SELECT * FROM t WHERE a = ?")
	assert.Equal(t, "SELECT * FROM t WHERE a = ?", got)
}

func TestSQLStoreRequiresConfig(t *testing.T) {
	_, err := NewSQLStore(nil, 50)
	assert.Error(t, err)
}
