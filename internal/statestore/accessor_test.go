package statestore_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/sidecar"
	"github.com/taskwire/taskwire/internal/statestore"
)

// fakeStateClient is an in-memory StateClient. It keeps a manual clock so
// tests can step time past a TTL and see the backend evict the entry, the
// way the real store does. Setting failWith makes every operation return
// that error, simulating an unavailable state backend.
type fakeStateClient struct {
	values   map[string][]byte
	ttls     map[string]int
	expiries map[string]time.Time
	now      time.Time
	failWith error
}

func newFakeStateClient() *fakeStateClient {
	return &fakeStateClient{
		values:   make(map[string][]byte),
		ttls:     make(map[string]int),
		expiries: make(map[string]time.Time),
		now:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

// advance moves the fake clock forward.
func (f *fakeStateClient) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fakeStateClient) GetState(ctx context.Context, store, key string) ([]byte, bool, error) {
	if f.failWith != nil {
		return nil, false, f.failWith
	}
	if deadline, ok := f.expiries[key]; ok && !f.now.Before(deadline) {
		delete(f.values, key)
		delete(f.ttls, key)
		delete(f.expiries, key)
	}
	raw, ok := f.values[key]
	return raw, ok, nil
}

func (f *fakeStateClient) PutState(ctx context.Context, store, key string, value []byte, ttlSeconds int) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.values[key] = value
	f.ttls[key] = ttlSeconds
	if ttlSeconds > 0 {
		f.expiries[key] = f.now.Add(time.Duration(ttlSeconds) * time.Second)
	} else {
		delete(f.expiries, key)
	}
	return nil
}

func (f *fakeStateClient) DeleteState(ctx context.Context, store, key string) error {
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.values, key)
	delete(f.ttls, key)
	delete(f.expiries, key)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAccessorRoundTrip(t *testing.T) {
	client := newFakeStateClient()
	accessor := statestore.NewAccessor(client, "statestore")
	ctx := context.Background()

	type entry struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, accessor.PutJSON(ctx, "k1", entry{Name: "a", Count: 3}, 120))

	var got entry
	found, err := accessor.GetJSON(ctx, "k1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{Name: "a", Count: 3}, got)
	assert.Equal(t, 120, client.ttls["k1"])

	require.NoError(t, accessor.Delete(ctx, "k1"))
	found, err = accessor.GetJSON(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAccessorEntryExpiresAfterTTL(t *testing.T) {
	client := newFakeStateClient()
	accessor := statestore.NewAccessor(client, "statestore")
	ctx := context.Background()

	require.NoError(t, accessor.PutJSON(ctx, "expiring", map[string]int{"n": 1}, 60))
	require.NoError(t, accessor.PutJSON(ctx, "durable", map[string]int{"n": 2}, 0))

	var out map[string]int
	found, err := accessor.GetJSON(ctx, "expiring", &out)
	require.NoError(t, err)
	assert.True(t, found, "entry must be readable before its ttl elapses")

	client.advance(61 * time.Second)

	found, err = accessor.GetJSON(ctx, "expiring", &out)
	require.NoError(t, err)
	assert.False(t, found, "entry must be gone after its ttl elapses")

	// A zero ttl means no expiry.
	found, err = accessor.GetJSON(ctx, "durable", &out)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestAccessorMissLeavesOutUntouched(t *testing.T) {
	accessor := statestore.NewAccessor(newFakeStateClient(), "statestore")

	out := map[string]int{"existing": 1}
	found, err := accessor.GetJSON(context.Background(), "absent", &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, map[string]int{"existing": 1}, out)
}

func TestAccessorPropagatesTransportErrors(t *testing.T) {
	client := newFakeStateClient()
	client.failWith = &sidecar.TransportError{Op: "get state", StatusCode: 503}
	accessor := statestore.NewAccessor(client, "statestore")

	var out struct{}
	_, err := accessor.GetJSON(context.Background(), "k", &out)
	var transportErr *sidecar.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestAccessorRejectsCorruptState(t *testing.T) {
	client := newFakeStateClient()
	client.values["k"] = []byte("{corrupt")
	accessor := statestore.NewAccessor(client, "statestore")

	var out struct{}
	_, err := accessor.GetJSON(context.Background(), "k", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode state")
}

func TestConversationStoreRoundTrip(t *testing.T) {
	client := newFakeStateClient()
	store := statestore.NewConversationStore(statestore.NewAccessor(client, "statestore"), testLogger())
	ctx := context.Background()

	messages := []domain.Message{
		{Role: domain.MessageRoleUser, Content: "add milk to my list", Timestamp: time.Now().UTC()},
		{Role: domain.MessageRoleAssistant, Content: "Added.", Timestamp: time.Now().UTC()},
	}
	require.NoError(t, store.Save(ctx, "conv-1", messages, 3600))

	loaded := store.Load(ctx, "conv-1")
	require.Len(t, loaded, 2)
	assert.Equal(t, "add milk to my list", loaded[0].Content)
	assert.Equal(t, domain.MessageRoleAssistant, loaded[1].Role)
}

func TestConversationStoreHistoryExpiresAfterTTL(t *testing.T) {
	client := newFakeStateClient()
	store := statestore.NewConversationStore(statestore.NewAccessor(client, "statestore"), testLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-1", []domain.Message{
		{Role: domain.MessageRoleUser, Content: "remind me tomorrow", Timestamp: time.Now().UTC()},
	}, 3600))
	require.Len(t, store.Load(ctx, "conv-1"), 1)

	client.advance(3601 * time.Second)

	loaded := store.Load(ctx, "conv-1")
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded, "history must lapse once its ttl elapses")
}

func TestConversationStoreMissYieldsEmptyHistory(t *testing.T) {
	store := statestore.NewConversationStore(
		statestore.NewAccessor(newFakeStateClient(), "statestore"), testLogger())

	loaded := store.Load(context.Background(), "never-seen")
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestConversationStoreDegradesOnBackendFailure(t *testing.T) {
	client := newFakeStateClient()
	client.failWith = &sidecar.TransportError{Op: "get state", StatusCode: 503}
	store := statestore.NewConversationStore(statestore.NewAccessor(client, "statestore"), testLogger())

	// A dead state backend degrades to an empty history, never an error.
	loaded := store.Load(context.Background(), "conv-1")
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestConversationStoreSaveSurfacesErrors(t *testing.T) {
	client := newFakeStateClient()
	client.failWith = &sidecar.TransportError{Op: "put state", StatusCode: 503}
	store := statestore.NewConversationStore(statestore.NewAccessor(client, "statestore"), testLogger())

	// Writes are not fire-and-forget; the caller decides what a lost
	// conversation update means.
	err := store.Save(context.Background(), "conv-1", nil, 3600)
	assert.Error(t, err)
}

func TestConversationStoreDelete(t *testing.T) {
	client := newFakeStateClient()
	store := statestore.NewConversationStore(statestore.NewAccessor(client, "statestore"), testLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-1", []domain.Message{
		{Role: domain.MessageRoleUser, Content: "hi", Timestamp: time.Now().UTC()},
	}, 3600))
	require.NoError(t, store.Delete(ctx, "conv-1"))
	assert.Empty(t, store.Load(ctx, "conv-1"))
}
