package clients

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/feedgate/internal/platform"
)

// fakeClient is a scriptable platform.Client for cache tests.
type fakeClient struct {
	mu        sync.Mutex
	sessionID string
	username  string
	settings  platform.Settings

	sessionLoginErr   error
	sessionLoginDelay time.Duration
	sessionLoginCalls *atomic.Int32
}

func (f *fakeClient) Login(ctx context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.username = username
	return nil
}

func (f *fakeClient) LoginBySessionID(ctx context.Context, sessionID string) error {
	if f.sessionLoginCalls != nil {
		f.sessionLoginCalls.Add(1)
	}
	if f.sessionLoginDelay > 0 {
		time.Sleep(f.sessionLoginDelay)
	}
	if f.sessionLoginErr != nil {
		return f.sessionLoginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionID = sessionID
	return nil
}

func (f *fakeClient) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}

func (f *fakeClient) UserID() string   { return "42" }
func (f *fakeClient) Username() string { return f.username }

func (f *fakeClient) Settings() platform.Settings          { return f.settings }
func (f *fakeClient) ApplySettings(s platform.Settings)    { f.settings = s }
func (f *fakeClient) Refresh(ctx context.Context) error    { return nil }
func (f *fakeClient) TimelineFeed(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeClient) HashtagMediaChunk(ctx context.Context, name, maxID string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeClient) SearchHashtags(ctx context.Context, query string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func fakeFactory(calls *atomic.Int32, loginErr error, delay time.Duration) platform.Factory {
	return func() platform.Client {
		return &fakeClient{
			sessionLoginCalls: calls,
			sessionLoginErr:   loginErr,
			sessionLoginDelay: delay,
		}
	}
}

func TestCache_Get(t *testing.T) {
	t.Run("miss rehydrates and caches", func(t *testing.T) {
		var calls atomic.Int32
		cache := NewCache(fakeFactory(&calls, nil, 0))
		ctx := context.Background()

		first, err := cache.Get(ctx, "sess-1")
		require.NoError(t, err)
		require.Equal(t, "sess-1", first.SessionID())
		require.Equal(t, int32(1), calls.Load())

		second, err := cache.Get(ctx, "sess-1")
		require.NoError(t, err)
		require.Same(t, first, second)
		require.Equal(t, int32(1), calls.Load(), "cached client must not re-authenticate")
	})

	t.Run("failed rehydration caches nothing", func(t *testing.T) {
		var calls atomic.Int32
		cache := NewCache(fakeFactory(&calls, platform.ErrSessionInvalid, 0))
		ctx := context.Background()

		_, err := cache.Get(ctx, "sess-dead")
		require.ErrorIs(t, err, platform.ErrSessionInvalid)
		require.Equal(t, 0, cache.Len())

		// The next access gets a clean attempt, not a poisoned entry.
		_, err = cache.Get(ctx, "sess-dead")
		require.ErrorIs(t, err, platform.ErrSessionInvalid)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("concurrent misses collapse to one upstream login", func(t *testing.T) {
		var calls atomic.Int32
		cache := NewCache(fakeFactory(&calls, nil, 20*time.Millisecond))
		ctx := context.Background()

		const workers = 16
		results := make([]platform.Client, workers)

		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				client, err := cache.Get(ctx, "sess-1")
				require.NoError(t, err)
				results[i] = client
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), calls.Load(), "duplicate concurrent misses must share one login")
		for i := 1; i < workers; i++ {
			require.Same(t, results[0], results[i])
		}
	})

	t.Run("distinct session ids get distinct clients", func(t *testing.T) {
		var calls atomic.Int32
		cache := NewCache(fakeFactory(&calls, nil, 0))
		ctx := context.Background()

		a, err := cache.Get(ctx, "sess-a")
		require.NoError(t, err)
		b, err := cache.Get(ctx, "sess-b")
		require.NoError(t, err)

		require.NotSame(t, a, b)
		require.Equal(t, 2, cache.Len())
	})
}

func TestCache_Set(t *testing.T) {
	t.Run("set stores under the client session id", func(t *testing.T) {
		cache := NewCache(fakeFactory(nil, nil, 0))

		client := &fakeClient{sessionID: "sess-9"}
		cache.Set(client)

		got, err := cache.Get(context.Background(), "sess-9")
		require.NoError(t, err)
		require.Same(t, client, got)
	})

	t.Run("set overwrites an existing entry", func(t *testing.T) {
		cache := NewCache(fakeFactory(nil, nil, 0))

		first := &fakeClient{sessionID: "sess-9"}
		second := &fakeClient{sessionID: "sess-9"}
		cache.Set(first)
		cache.Set(second)

		got, err := cache.Get(context.Background(), "sess-9")
		require.NoError(t, err)
		require.Same(t, second, got)
		require.Equal(t, 1, cache.Len())
	})
}

func TestCache_NewClient(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(fakeFactory(&calls, nil, 0))

	client := cache.NewClient()
	require.NotNil(t, client)
	require.Empty(t, client.SessionID())
	require.Equal(t, 0, cache.Len(), "factory must not touch the cache")
}

func TestCache_Evict(t *testing.T) {
	cache := NewCache(fakeFactory(nil, nil, 0))

	cache.Set(&fakeClient{sessionID: "sess-1"})
	require.True(t, cache.Evict("sess-1"))
	require.False(t, cache.Evict("sess-1"))
	require.Equal(t, 0, cache.Len())
}
