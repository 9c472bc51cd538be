// Package session keeps one view state per browser. Browsers are told apart
// by a long-lived client cookie; idle sessions expire from a go-cache.
package session

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"hpcdash/internal/pkg/ingest"
	"hpcdash/internal/pkg/view"
)

const (
	// CookieName carries the client id.
	CookieName = "hpcdash_client"
	contextKey = "hpcdash.session"

	cookieMaxAge = 365 * 24 * 60 * 60
)

// Session is the page session of one browser.
type Session struct {
	ID      string
	History *view.URLHistory
	View    *view.Manager
}

// Manager creates, caches and syncs sessions.
type Manager struct {
	cache   *gocache.Cache
	store   *ingest.Store
	fetcher view.BriefingFetcher
	prefix  string
	logger  *slog.Logger
}

// NewManager returns a Manager whose sessions expire after ttl without use.
// prefix is the normalized URL prefix ("" or "/x"); cookies are scoped to it
// and new sessions start at its home page.
func NewManager(store *ingest.Store, fetcher view.BriefingFetcher, ttl time.Duration, prefix string, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cache:   gocache.New(ttl, ttl*2),
		store:   store,
		fetcher: fetcher,
		prefix:  prefix,
		logger:  logger,
	}
}

// Home returns the dashboard home URL.
func (m *Manager) Home() *url.URL { return &url.URL{Path: m.prefix + "/"} }

// Get returns the session for id, creating one at the home page when id is
// unknown or invalid. The returned session is synced with the store.
func (m *Manager) Get(id string) (*Session, bool) {
	created := false
	s := m.lookup(id)
	if s == nil {
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		h := view.NewURLHistory(m.Home())
		s = &Session{ID: id, History: h, View: view.NewManager(h, m.fetcher, m.logger.With("session", id))}
		created = true
		m.logger.Debug("session created", "session", id)
	}
	m.cache.SetDefault(s.ID, s)
	m.Sync(s)
	return s, created
}

// Len returns the number of live sessions.
func (m *Manager) Len() int { return m.cache.ItemCount() }

// Sync applies the store snapshots the session has not seen yet.
func (m *Manager) Sync(s *Session) {
	if m.store == nil {
		return
	}
	if snap, seq := m.store.Status(); seq > 0 {
		s.View.ApplyStatusSnapshot(snap, seq)
	}
	if cs, seq := m.store.Clusters(); seq > 0 {
		s.View.ApplyClusterSnapshot(cs, seq)
	}
}

func (m *Manager) lookup(id string) *Session {
	if id == "" {
		return nil
	}
	v, ok := m.cache.Get(id)
	if !ok {
		return nil
	}
	return v.(*Session)
}

// Middleware attaches the session of the requesting browser to the context
// and (re)issues the client cookie.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(CookieName)
		s, created := m.Get(id)
		if created || id != s.ID {
			path := m.prefix
			if path == "" {
				path = "/"
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CookieName, s.ID, cookieMaxAge, path, "", c.Request.TLS != nil, true)
		}
		c.Set(contextKey, s)
		c.Next()
	}
}

// FromContext returns the session attached by Middleware.
func FromContext(c *gin.Context) *Session {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}

// ClientID returns the client id of the request, or "" when no session is
// attached.
func ClientID(c *gin.Context) string {
	if s := FromContext(c); s != nil {
		return s.ID
	}
	return ""
}
