// Package view owns the per-page view state: filters, the system detail
// panel and its navigation, the briefing cache and the selected cluster.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"hpcdash/internal/pkg/aggregate"
	"hpcdash/internal/pkg/markdown"
	"hpcdash/internal/pkg/model"
)

// DetailState is the lifecycle of the detail panel.
type DetailState int

const (
	DetailClosed DetailState = iota
	// DetailOpening has the header populated and the briefing loading.
	DetailOpening
	DetailOpen
)

func (s DetailState) String() string {
	switch s {
	case DetailOpening:
		return "opening"
	case DetailOpen:
		return "open"
	default:
		return "closed"
	}
}

// Placeholder texts for the briefing region.
const (
	BriefingLoading = "Loading briefing..."
	BriefingMissing = "No briefing is available for this system yet."
	BriefingFailed  = "The briefing could not be loaded."
)

const (
	noticeNotAvail = "System %q is not available in the current snapshot."
	noticeNoLonger = "System %q is no longer in the status feed."

	briefingTTL = 10 * time.Minute
)

// BriefingFetcher loads the raw markdown briefing of a system.
type BriefingFetcher interface {
	FetchSystemMarkdown(ctx context.Context, slug string) (string, error)
}

// Detail is the detail panel as rendered.
type Detail struct {
	State DetailState     `json:"state"`
	Slug  string          `json:"slug,omitempty"`
	Row   model.SystemRow `json:"row"`
	// HTML is the rendered briefing once State is DetailOpen and the
	// briefing loaded. Otherwise Placeholder explains its absence.
	HTML        string `json:"html,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Page is a consistent copy of the view state for one render.
type Page struct {
	Ready   bool
	Seq     uint64
	Summary model.FleetSummary
	Meta    model.Meta
	Rows    []model.SystemRow
	Total   int
	Filter  Filter
	Options Options
	Detail  Detail

	ClustersReady bool
	Clusters      []aggregate.ClusterSummary
	Selected      *aggregate.ClusterSummary
	SelectedIndex int
}

// Manager is the view state of one page session. All methods are safe for
// concurrent use; briefing fetches run without holding the lock.
type Manager struct {
	mu      sync.Mutex
	history History
	fetcher BriefingFetcher
	cache   *gocache.Cache
	logger  *slog.Logger

	statusSeq uint64
	summary   model.FleetSummary
	meta      model.Meta
	rows      []model.SystemRow
	bySlug    map[string]int
	filter    Filter

	detail      Detail
	generation  uint64
	pendingSlug string
	notice      string

	clusterState
}

// NewManager creates a Manager navigating through history and loading
// briefings through fetcher.
func NewManager(history History, fetcher BriefingFetcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		history: history,
		fetcher: fetcher,
		cache:   gocache.New(briefingTTL, briefingTTL*2),
		logger:  logger,
		bySlug:  map[string]int{},
	}
}

// Seq returns the sequence number of the applied status snapshot.
func (m *Manager) Seq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusSeq
}

// ApplyStatusSnapshot replaces the rows with snap. Snapshots with a seq not
// newer than the applied one are ignored. The briefing cache is flushed; an
// open detail is refreshed in place, or closed with a notice when its
// system is gone. A slug taken from the location before the first snapshot
// is resolved here.
func (m *Manager) ApplyStatusSnapshot(snap model.StatusSnapshot, seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq <= m.statusSeq {
		return false
	}
	m.statusSeq = seq
	m.rows = AssignSlugs(snap.Systems)
	m.summary = snap.Summary
	m.meta = snap.Meta
	m.bySlug = make(map[string]int, len(m.rows))
	for i, r := range m.rows {
		m.bySlug[r.Slug] = i
	}
	m.cache.Flush()

	if slug := m.detail.Slug; slug != "" {
		i, ok := m.bySlug[slug]
		if !ok {
			m.notice = fmt.Sprintf(noticeNoLonger, m.detail.Row.System)
			m.closeLocked(true)
		} else {
			m.generation++
			m.detail.Row = m.rows[i]
			m.detail.State = DetailOpening
			m.detail.HTML = ""
			m.detail.Error = ""
			m.detail.Placeholder = BriefingLoading
		}
	}

	if slug := m.pendingSlug; slug != "" {
		m.pendingSlug = ""
		if _, ok := m.bySlug[slug]; ok {
			m.openLocked(slug)
		} else {
			m.notice = fmt.Sprintf(noticeNotAvail, slug)
			m.history.Replace(WithSystem(m.history.Location(), ""))
		}
	}
	return true
}

// SetFilter replaces the table filter.
func (m *Manager) SetFilter(f Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
}

// OpenDetail opens the detail of slug. It pushes a history entry unless the
// location already carries the slug, in which case it replaces it. Unknown
// slugs leave a notice and report false.
func (m *Manager) OpenDetail(slug string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	slug = Slugify(slug)
	if _, ok := m.bySlug[slug]; !ok || slug == "" {
		m.notice = fmt.Sprintf(noticeNotAvail, slug)
		return false
	}

	loc := m.history.Location()
	next := WithSystem(loc, slug)
	if Slugify(loc.Query().Get(SystemParam)) == slug {
		m.history.Replace(next)
	} else {
		m.history.Push(next)
	}
	if m.detail.Slug != slug {
		m.openLocked(slug)
	}
	return true
}

// CloseDetail closes the detail and removes the slug from the location
// without adding a history entry.
func (m *Manager) CloseDetail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked(true)
}

// HandleNavigation re-derives the detail from the current location after a
// back/forward or a direct visit. Before the first snapshot the slug is kept
// and resolved by ApplyStatusSnapshot.
func (m *Manager) HandleNavigation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	slug := Slugify(m.history.Location().Query().Get(SystemParam))
	if m.statusSeq == 0 {
		m.pendingSlug = slug
		return
	}
	switch {
	case slug == "":
		m.closeLocked(false)
	case slug == m.detail.Slug:
	default:
		if _, ok := m.bySlug[slug]; ok {
			m.openLocked(slug)
			return
		}
		m.notice = fmt.Sprintf(noticeNotAvail, slug)
		m.closeLocked(true)
	}
}

// LoadBriefing fetches the briefing of the open detail when it is still
// loading. A result for a detail that was closed, switched or refreshed
// meanwhile is discarded.
func (m *Manager) LoadBriefing(ctx context.Context) {
	m.mu.Lock()
	if m.detail.State != DetailOpening || m.fetcher == nil {
		m.mu.Unlock()
		return
	}
	slug, gen := m.detail.Slug, m.generation
	m.mu.Unlock()

	content, err := m.fetcher.FetchSystemMarkdown(ctx, slug)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detail.Slug != slug || m.generation != gen {
		m.logger.Debug("discarding stale briefing", "slug", slug)
		return
	}
	m.detail.State = DetailOpen
	switch {
	case errors.Is(err, model.ErrNotFound):
		m.detail.Placeholder = BriefingMissing
	case err != nil:
		m.logger.Warn("briefing fetch failed", "slug", slug, "err", err)
		m.detail.Placeholder = BriefingFailed
		m.detail.Error = err.Error()
	default:
		m.cache.SetDefault(slug, content)
		m.showBriefingLocked(content)
	}
}

// Notify sets the notice shown on the next render.
func (m *Manager) Notify(msg string) {
	m.mu.Lock()
	m.notice = msg
	m.mu.Unlock()
}

// TakeNotice returns the pending notice and clears it.
func (m *Manager) TakeNotice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notice
	m.notice = ""
	return n
}

// Detail returns the detail panel.
func (m *Manager) Detail() Detail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detail
}

// Page returns the view state for one render.
func (m *Manager) Page() Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Page{
		Ready:   m.statusSeq > 0,
		Seq:     m.statusSeq,
		Summary: m.summary,
		Meta:    m.meta,
		Rows:    m.filter.Apply(m.rows),
		Total:   len(m.rows),
		Filter:  m.filter,
		Options: FilterOptions(m.rows),
		Detail:  m.detail,
	}
	m.fillClustersLocked(&p)
	return p
}

func (m *Manager) openLocked(slug string) {
	m.generation++
	m.detail = Detail{
		State:       DetailOpening,
		Slug:        slug,
		Row:         m.rows[m.bySlug[slug]],
		Placeholder: BriefingLoading,
	}
	if content, ok := m.cache.Get(slug); ok {
		m.detail.State = DetailOpen
		m.showBriefingLocked(content.(string))
	}
}

func (m *Manager) showBriefingLocked(content string) {
	m.detail.HTML = markdown.Render(content)
	m.detail.Placeholder = ""
	m.detail.Error = ""
	if m.detail.HTML == "" {
		m.detail.Placeholder = BriefingMissing
	}
}

// closeLocked closes the detail; with rewrite the location loses its slug
// through a replace.
func (m *Manager) closeLocked(rewrite bool) {
	m.generation++
	m.detail = Detail{}
	if rewrite {
		loc := m.history.Location()
		if loc.Query().Has(SystemParam) {
			m.history.Replace(WithSystem(loc, ""))
		}
	}
}
