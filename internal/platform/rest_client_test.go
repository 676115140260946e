package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *RESTClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRESTClient(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestLogin(t *testing.T) {
	t.Run("success captures identity", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/v1/accounts/login", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "alice", body["username"])
			require.Equal(t, "secret", body["password"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"sessionid":"sess-1","user_id":"42","username":"alice"}`))
		})

		err := client.Login(context.Background(), "alice", "secret")
		require.NoError(t, err)
		require.Equal(t, "sess-1", client.SessionID())
		require.Equal(t, "42", client.UserID())
		require.Equal(t, "alice", client.Username())
	})

	t.Run("401 maps to invalid credentials", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusUnauthorized)
		})

		err := client.Login(context.Background(), "alice", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("500 maps to connectivity", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		err := client.Login(context.Background(), "alice", "secret")
		require.ErrorIs(t, err, ErrConnectivity)
	})

	t.Run("504 maps to timeout", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow", http.StatusGatewayTimeout)
		})

		err := client.Login(context.Background(), "alice", "secret")
		require.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("unreachable host maps to connectivity", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		baseURL := srv.URL
		srv.Close()

		client := NewRESTClient(Config{BaseURL: baseURL})

		err := client.Login(context.Background(), "alice", "secret")
		require.ErrorIs(t, err, ErrConnectivity)
	})

	t.Run("deadline exceeded maps to timeout", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := client.Login(ctx, "alice", "secret")
		require.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("missing session id in response maps to connectivity", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"user_id":"42"}`))
		})

		err := client.Login(context.Background(), "alice", "secret")
		require.ErrorIs(t, err, ErrConnectivity)
	})
}

func TestLoginBySessionID(t *testing.T) {
	t.Run("success adopts the token", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/accounts/login_by_sessionid", r.URL.Path)
			_, _ = w.Write([]byte(`{"sessionid":"sess-7","user_id":"42","username":"alice"}`))
		})

		err := client.LoginBySessionID(context.Background(), "sess-7")
		require.NoError(t, err)
		require.Equal(t, "sess-7", client.SessionID())
		require.Equal(t, "alice", client.Username())
	})

	t.Run("401 maps to invalid session", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "expired", http.StatusUnauthorized)
		})

		err := client.LoginBySessionID(context.Background(), "sess-dead")
		require.ErrorIs(t, err, ErrSessionInvalid)
	})

	t.Run("response without session id keeps the supplied one", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"user_id":"42"}`))
		})

		err := client.LoginBySessionID(context.Background(), "sess-7")
		require.NoError(t, err)
		require.Equal(t, "sess-7", client.SessionID())
	})
}

func TestRefresh(t *testing.T) {
	t.Run("pushes settings and picks up identity", func(t *testing.T) {
		var received map[string]any
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/accounts/refresh", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			_, _ = w.Write([]byte(`{"sessionid":"sess-9","user_id":"42","username":"alice"}`))
		})

		client.ApplySettings(Settings{"device": "test"})

		err := client.Refresh(context.Background())
		require.NoError(t, err)
		require.Equal(t, "sess-9", client.SessionID())

		settings, ok := received["settings"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "test", settings["device"])
	})

	t.Run("rejection maps to invalid session", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "expired", http.StatusForbidden)
		})

		err := client.Refresh(context.Background())
		require.ErrorIs(t, err, ErrSessionInvalid)
	})
}

func TestFeedCalls(t *testing.T) {
	t.Run("timeline feed passes body through with bearer token", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/v1/accounts/login":
				_, _ = w.Write([]byte(`{"sessionid":"sess-1"}`))
			case "/api/v1/feed/timeline":
				require.Equal(t, "Bearer sess-1", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(`{"feed_items":[1,2]}`))
			default:
				http.NotFound(w, r)
			}
		})

		require.NoError(t, client.Login(context.Background(), "alice", "secret"))

		feed, err := client.TimelineFeed(context.Background())
		require.NoError(t, err)
		require.JSONEq(t, `{"feed_items":[1,2]}`, string(feed))
	})

	t.Run("hashtag media chunk sends name and cursor", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/hashtag/media/chunk", r.URL.Path)
			require.Equal(t, "golang", r.URL.Query().Get("name"))
			require.Equal(t, "recent", r.URL.Query().Get("tab_key"))
			require.Equal(t, "cursor-1", r.URL.Query().Get("max_id"))
			_, _ = w.Write([]byte(`[{"pk":"1"}]`))
		})

		medias, err := client.HashtagMediaChunk(context.Background(), "golang", "cursor-1")
		require.NoError(t, err)
		require.JSONEq(t, `[{"pk":"1"}]`, string(medias))
	})

	t.Run("hashtag search sends the query", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/hashtag/search", r.URL.Path)
			require.Equal(t, "golang", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`[{"name":"golang"}]`))
		})

		hashtags, err := client.SearchHashtags(context.Background(), "golang")
		require.NoError(t, err)
		require.JSONEq(t, `[{"name":"golang"}]`, string(hashtags))
	})

	t.Run("expired session on feed maps to invalid session", func(t *testing.T) {
		client := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "expired", http.StatusUnauthorized)
		})

		_, err := client.TimelineFeed(context.Background())
		require.ErrorIs(t, err, ErrSessionInvalid)
	})
}

func TestSettingsCopy(t *testing.T) {
	client := NewRESTClient(Config{BaseURL: "http://localhost"})
	client.ApplySettings(Settings{"device": "test"})

	settings := client.Settings()
	settings["device"] = "mutated"

	require.Equal(t, "test", client.Settings()["device"])
}
