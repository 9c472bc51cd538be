package view

import (
	"net/url"
	"sync"
)

// History is the navigation stack the detail view is encoded in.
type History interface {
	Location() *url.URL
	Push(u *url.URL)
	Replace(u *url.URL)
}

// URLHistory is an in-memory History. The server keeps one per session and
// feeds it the URLs the browser actually requests through Visit.
type URLHistory struct {
	mu      sync.Mutex
	entries []*url.URL
	index   int
}

// NewURLHistory starts a history at start.
func NewURLHistory(start *url.URL) *URLHistory {
	if start == nil {
		start = &url.URL{Path: "/"}
	}
	return &URLHistory{entries: []*url.URL{cloneURL(start)}}
}

// Location returns a copy of the current entry.
func (h *URLHistory) Location() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneURL(h.entries[h.index])
}

// Push drops forward entries and appends u.
func (h *URLHistory) Push(u *url.URL) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], cloneURL(u))
	h.index++
}

// Replace overwrites the current entry.
func (h *URLHistory) Replace(u *url.URL) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = cloneURL(u)
}

// Back moves to the previous entry. False at the start.
func (h *URLHistory) Back() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 {
		return false
	}
	h.index--
	return true
}

// Forward moves to the next entry. False at the end.
func (h *URLHistory) Forward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index >= len(h.entries)-1 {
		return false
	}
	h.index++
	return true
}

// Index returns the position of the current entry. It grows on every push
// and is left alone by a replace.
func (h *URLHistory) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

// Len returns the number of entries.
func (h *URLHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Visit records a URL requested by the browser. A URL equal to the
// neighbouring entry is treated as back or forward, the current URL is a
// no-op, anything else is a new entry. It reports whether the location
// changed.
func (h *URLHistory) Visit(u *url.URL) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := u.RequestURI()
	switch {
	case h.entries[h.index].RequestURI() == key:
		return false
	case h.index > 0 && h.entries[h.index-1].RequestURI() == key:
		h.index--
	case h.index < len(h.entries)-1 && h.entries[h.index+1].RequestURI() == key:
		h.index++
	default:
		h.entries = append(h.entries[:h.index+1], cloneURL(u))
		h.index++
	}
	return true
}

func cloneURL(u *url.URL) *url.URL {
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}

// WithSystem returns a copy of u whose "system" parameter is slug, or
// without the parameter when slug is empty.
func WithSystem(u *url.URL, slug string) *url.URL {
	c := cloneURL(u)
	q := c.Query()
	if slug == "" {
		q.Del(SystemParam)
	} else {
		q.Set(SystemParam, slug)
	}
	c.RawQuery = q.Encode()
	return c
}

// SystemParam is the query parameter that carries the open detail.
const SystemParam = "system"
