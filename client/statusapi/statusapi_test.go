package statusapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpcdash/config"
	"hpcdash/internal/pkg/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	var cfg config.Config
	cfg.Server.Upstream.BaseURL = srv.URL + "/dash/"
	cfg.SetDefaults()
	c, err := New(cfg.Server.Upstream, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		override string
		page     string
		want     string
		wantErr  bool
	}{
		{"override wins", "https://api.example.org/v2", "https://ignored/", "https://api.example.org/v2/", false},
		{"page directory", "", "https://status.example.org/hpc/index.html?x=1#top", "https://status.example.org/hpc/", false},
		{"page root", "", "https://status.example.org", "https://status.example.org/", false},
		{"nothing", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveBaseURL(tt.override, tt.page)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchStatus_CacheBusts(t *testing.T) {
	var tokens []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dash/api/status", r.URL.Path)
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		tokens = append(tokens, r.URL.Query().Get("_"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"systems":[{"system":"Alpha","status":"UP"}],"meta":{"generated_at":"2025-01-01T00:00:00Z"}}`)
	})

	for i := 0; i < 2; i++ {
		snap, err := c.FetchStatus(context.Background())
		require.NoError(t, err)
		require.Len(t, snap.Systems, 1)
		assert.Equal(t, "Alpha", snap.Systems[0].System)
	}
	require.Len(t, tokens, 2)
	assert.NotEmpty(t, tokens[0])
	assert.NotEqual(t, tokens[0], tokens[1], "every request gets a fresh token")
}

func TestFetchStatus_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "scraper exploded", http.StatusBadGateway)
	})
	_, err := c.FetchStatus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.False(t, errors.Is(err, model.ErrNotFound))
}

func TestFetchStatus_AnySuccessCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = io.WriteString(w, `{"systems":[{"system":"Alpha","status":"UP"}]}`)
	})
	snap, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Systems, 1)
}

func TestFetchClusterUsage_BothShapes(t *testing.T) {
	body := `[{"cluster_metadata":{"name":"jean","uri":"pw://jean"}}]`
	wrapped := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dash/data/cluster_usage.json", r.URL.Path)
		if wrapped {
			_, _ = io.WriteString(w, `{"clusters":`+body+`}`)
			return
		}
		_, _ = io.WriteString(w, body)
	})

	cs, err := c.FetchClusterUsage(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 1)

	wrapped = true
	cs, err = c.FetchClusterUsage(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "pw://jean", cs[0].ID())
}

func TestFetchSystemMarkdown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dash/api/system-markdown/alpha":
			_, _ = io.WriteString(w, `{"slug":"alpha","content":"# Alpha"}`)
		default:
			http.NotFound(w, r)
		}
	})

	md, err := c.FetchSystemMarkdown(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, "# Alpha", md)

	_, err = c.FetchSystemMarkdown(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTriggerRefresh(t *testing.T) {
	fail, accepted := false, false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/dash/api/refresh", r.URL.Path)
		switch {
		case fail:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"ok":false,"detail":"scrape already running"}`)
			return
		case accepted:
			w.WriteHeader(http.StatusAccepted)
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	res, err := c.TriggerRefresh(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)

	accepted = true
	res, err = c.TriggerRefresh(context.Background())
	require.NoError(t, err, "any 2xx is a success")
	assert.True(t, res.OK)
	accepted = false

	fail = true
	_, err = c.TriggerRefresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape already running")
}
