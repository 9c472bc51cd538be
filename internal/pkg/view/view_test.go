package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpcdash/internal/pkg/model"
)

type fakeFetcher struct {
	mu      sync.Mutex
	content map[string]string
	err     error
	calls   []string
	// gate, when set, blocks every fetch until it is closed.
	gate    chan struct{}
	started chan string
}

func (f *fakeFetcher) FetchSystemMarkdown(_ context.Context, slug string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, slug)
	gate, started := f.gate, f.started
	f.mu.Unlock()
	if started != nil {
		started <- slug
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	c, ok := f.content[slug]
	if !ok {
		return "", model.ErrNotFound
	}
	return c, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func newTestManager(t *testing.T, start string, f *fakeFetcher) (*Manager, *URLHistory) {
	t.Helper()
	h := NewURLHistory(mustURL(t, start))
	return NewManager(h, f, slog.New(slog.NewTextHandler(io.Discard, nil))), h
}

func rows(names ...string) model.StatusSnapshot {
	var snap model.StatusSnapshot
	for _, n := range names {
		snap.Systems = append(snap.Systems, model.SystemRow{System: n, Status: model.StatusUp})
	}
	return snap
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "alpha123", Slugify("Alpha-123"))
	assert.Equal(t, "narwhalnavy", Slugify(" Narwhal (Navy) "))
	assert.Equal(t, "", Slugify("---"))
}

func TestAssignSlugs(t *testing.T) {
	got := AssignSlugs([]model.SystemRow{
		{System: "Alpha"},
		{System: ""},
		{System: "ALPHA"},
		{System: "system2"},
		{System: "!!"},
		{System: "alpha2"},
	})
	slugs := make([]string, 0, len(got))
	for _, r := range got {
		slugs = append(slugs, r.Slug)
	}
	assert.Equal(t, []string{"alpha", "system3", "alpha3", "system2", "system5", "alpha2"}, slugs)
}

func TestFilter_ANDSemantics(t *testing.T) {
	data := []model.SystemRow{
		{System: "Alpha", Status: "UP"},
		{System: "Beta", Status: "DOWN"},
	}

	got := Filter{Text: "alp"}.Apply(data)
	require.Len(t, got, 1)
	assert.Equal(t, "Alpha", got[0].System)

	assert.Empty(t, Filter{Text: "alp", Status: "DOWN"}.Apply(data))
	assert.Len(t, Filter{Status: "down"}.Apply(data), 1)
	assert.Len(t, Filter{}.Apply(data), 2)
}

func TestFilter_MatchesLoginAndDSRC(t *testing.T) {
	r := model.SystemRow{System: "Carpenter", Login: "carpenter.erdc.hpc.mil", DSRC: "ERDC"}
	assert.True(t, Filter{Text: "ERDC.HPC"}.Match(r))
	assert.True(t, Filter{DSRC: "erdc"}.Match(r))
	assert.False(t, Filter{DSRC: "er"}.Match(r), "dsrc is an exact match")
}

func TestFilterOptions(t *testing.T) {
	opts := FilterOptions([]model.SystemRow{
		{Status: "UP", DSRC: "NAVY"},
		{Status: "LIMITED", DSRC: "ARL"},
		{Status: "UP", DSRC: ""},
	})
	assert.Equal(t, []string{"LIMITED", "UP"}, opts.Statuses)
	assert.Equal(t, []string{"ARL", "NAVY"}, opts.DSRCs)
}

func TestURLHistory_Visit(t *testing.T) {
	h := NewURLHistory(mustURL(t, "/"))
	assert.False(t, h.Visit(mustURL(t, "/")))
	assert.True(t, h.Visit(mustURL(t, "/?system=alpha")))
	assert.Equal(t, 2, h.Len())

	assert.True(t, h.Visit(mustURL(t, "/")), "back")
	assert.Equal(t, "/", h.Location().RequestURI())
	assert.Equal(t, 2, h.Len())

	assert.True(t, h.Visit(mustURL(t, "/?system=alpha")), "forward")
	assert.True(t, h.Back())
	assert.True(t, h.Forward())
	assert.False(t, h.Forward())

	assert.Equal(t, 1, h.Index())
	h.Replace(mustURL(t, "/"))
	assert.Equal(t, 1, h.Index(), "replace keeps the position")
	h.Push(mustURL(t, "/?system=beta"))
	assert.Equal(t, 2, h.Index())
}

func TestManager_DeepLinkBeforeSnapshot(t *testing.T) {
	f := &fakeFetcher{content: map[string]string{"alpha123": "# Alpha"}}
	m, _ := newTestManager(t, "/?system=alpha123", f)

	m.HandleNavigation()
	assert.Equal(t, DetailClosed, m.Detail().State)

	require.True(t, m.ApplyStatusSnapshot(rows("Alpha-123", "Beta"), 1))
	d := m.Detail()
	assert.Equal(t, DetailOpening, d.State)
	assert.Equal(t, "alpha123", d.Slug)
	assert.Equal(t, "Alpha-123", d.Row.System)

	m.LoadBriefing(context.Background())
	d = m.Detail()
	assert.Equal(t, DetailOpen, d.State)
	assert.Contains(t, d.HTML, "<h1>Alpha</h1>")
}

func TestManager_DeepLinkUnknownSlug(t *testing.T) {
	m, h := newTestManager(t, "/?system=ghost&q=a", &fakeFetcher{})
	m.HandleNavigation()
	m.ApplyStatusSnapshot(rows("Alpha"), 1)

	assert.Equal(t, DetailClosed, m.Detail().State)
	assert.Contains(t, m.TakeNotice(), "ghost")
	assert.Empty(t, m.TakeNotice(), "notice is consumed once")
	assert.Equal(t, "/?q=a", h.Location().RequestURI())
}

func TestManager_OpenPushesThenReplaces(t *testing.T) {
	m, h := newTestManager(t, "/", &fakeFetcher{})
	m.ApplyStatusSnapshot(rows("Alpha", "Beta"), 1)

	require.True(t, m.OpenDetail("alpha"))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, "/?system=alpha", h.Location().RequestURI())

	require.True(t, m.OpenDetail("Alpha"), "repeat click")
	assert.Equal(t, 2, h.Len(), "same slug replaces")

	require.True(t, m.OpenDetail("beta"))
	assert.Equal(t, 3, h.Len())

	m.CloseDetail()
	assert.Equal(t, 3, h.Len(), "close replaces")
	assert.Equal(t, "/", h.Location().RequestURI())
	assert.Equal(t, DetailClosed, m.Detail().State)

	assert.False(t, m.OpenDetail("ghost"))
	assert.NotEmpty(t, m.TakeNotice())
}

func TestManager_BackForwardNavigation(t *testing.T) {
	m, h := newTestManager(t, "/", &fakeFetcher{})
	m.ApplyStatusSnapshot(rows("Alpha"), 1)
	m.OpenDetail("alpha")

	require.True(t, h.Back())
	m.HandleNavigation()
	assert.Equal(t, DetailClosed, m.Detail().State)

	require.True(t, h.Forward())
	m.HandleNavigation()
	assert.Equal(t, "alpha", m.Detail().Slug)
}

func TestManager_RefreshClosesRemovedSystem(t *testing.T) {
	m, h := newTestManager(t, "/", &fakeFetcher{})
	m.ApplyStatusSnapshot(rows("Alpha", "Beta"), 1)
	m.OpenDetail("beta")

	require.True(t, m.ApplyStatusSnapshot(rows("Alpha"), 2))
	assert.Equal(t, DetailClosed, m.Detail().State)
	assert.Contains(t, m.TakeNotice(), "Beta")
	assert.Equal(t, "/", h.Location().RequestURI())
}

func TestManager_RefreshKeepsOpenDetailAndRefetches(t *testing.T) {
	f := &fakeFetcher{content: map[string]string{"alpha": "v1"}}
	m, _ := newTestManager(t, "/", f)
	m.ApplyStatusSnapshot(rows("Alpha"), 1)
	m.OpenDetail("alpha")
	m.LoadBriefing(context.Background())
	require.Contains(t, m.Detail().HTML, "v1")

	f.mu.Lock()
	f.content["alpha"] = "v2"
	f.mu.Unlock()

	snap := rows("Alpha")
	snap.Systems[0].Status = model.StatusDown
	require.True(t, m.ApplyStatusSnapshot(snap, 2))
	d := m.Detail()
	assert.Equal(t, DetailOpening, d.State)
	assert.Equal(t, model.StatusDown, d.Row.Status, "header refreshed in place")

	m.LoadBriefing(context.Background())
	assert.Contains(t, m.Detail().HTML, "v2")
	assert.Equal(t, 2, f.callCount())
}

func TestManager_CachedBriefingOpensImmediately(t *testing.T) {
	f := &fakeFetcher{content: map[string]string{"alpha": "hello"}}
	m, _ := newTestManager(t, "/", f)
	m.ApplyStatusSnapshot(rows("Alpha", "Beta"), 1)

	m.OpenDetail("alpha")
	m.LoadBriefing(context.Background())
	m.OpenDetail("beta")
	m.OpenDetail("alpha")
	assert.Equal(t, DetailOpen, m.Detail().State)
	m.LoadBriefing(context.Background())
	assert.Equal(t, 1, f.callCount(), "cache hit")
}

func TestManager_IgnoresOlderSnapshot(t *testing.T) {
	m, _ := newTestManager(t, "/", &fakeFetcher{})
	require.True(t, m.ApplyStatusSnapshot(rows("Alpha", "Beta"), 2))
	assert.False(t, m.ApplyStatusSnapshot(rows("Gamma"), 1))
	assert.Equal(t, 2, m.Page().Total)
}

func TestManager_BriefingNotFoundAndError(t *testing.T) {
	f := &fakeFetcher{content: map[string]string{}}
	m, _ := newTestManager(t, "/", f)
	m.ApplyStatusSnapshot(rows("Alpha", "Beta"), 1)

	m.OpenDetail("alpha")
	m.LoadBriefing(context.Background())
	d := m.Detail()
	assert.Equal(t, DetailOpen, d.State)
	assert.Equal(t, BriefingMissing, d.Placeholder)
	assert.Empty(t, d.Error)

	f.mu.Lock()
	f.err = errors.New("upstream 502")
	f.mu.Unlock()
	m.OpenDetail("beta")
	m.LoadBriefing(context.Background())
	d = m.Detail()
	assert.Equal(t, DetailOpen, d.State, "errors keep the panel open")
	assert.Equal(t, "Beta", d.Row.System)
	assert.Equal(t, BriefingFailed, d.Placeholder)
	assert.Contains(t, d.Error, "502")
}

func TestManager_DiscardsStaleBriefing(t *testing.T) {
	f := &fakeFetcher{
		content: map[string]string{"alpha": "alpha text", "beta": "beta text"},
		gate:    make(chan struct{}),
		started: make(chan string, 1),
	}
	m, _ := newTestManager(t, "/", f)
	m.ApplyStatusSnapshot(rows("Alpha", "Beta"), 1)
	m.OpenDetail("alpha")

	done := make(chan struct{})
	go func() {
		m.LoadBriefing(context.Background())
		close(done)
	}()
	assert.Equal(t, "alpha", <-f.started)

	m.OpenDetail("beta")
	close(f.gate)
	<-done

	d := m.Detail()
	assert.Equal(t, "beta", d.Slug)
	assert.Equal(t, DetailOpening, d.State, "alpha result was discarded")
	assert.Empty(t, d.HTML)
}

func TestManager_PageAppliesFilter(t *testing.T) {
	m, _ := newTestManager(t, "/", &fakeFetcher{})
	snap := model.StatusSnapshot{Systems: []model.SystemRow{
		{System: "Alpha", Status: "UP"},
		{System: "Beta", Status: "DOWN"},
	}}
	m.ApplyStatusSnapshot(snap, 1)
	m.SetFilter(Filter{Status: "down"})

	p := m.Page()
	assert.True(t, p.Ready)
	assert.Equal(t, 2, p.Total)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "beta", p.Rows[0].Slug)
	assert.Equal(t, []string{"DOWN", "UP"}, p.Options.Statuses)
}

func clusterSnap(ids ...string) model.Clusters {
	cs := make(model.Clusters, 0, len(ids))
	for _, id := range ids {
		cs = append(cs, model.ClusterRecord{Metadata: model.ClusterMetadata{URI: id, Name: "name-" + id}})
	}
	return cs
}

func TestManager_ClusterSelectionFollowsIdentifier(t *testing.T) {
	m, _ := newTestManager(t, "/", &fakeFetcher{})
	require.True(t, m.ApplyClusterSnapshot(clusterSnap("uri-a", "uri-b"), 1))
	require.True(t, m.SelectClusterIndex(1))

	require.True(t, m.ApplyClusterSnapshot(clusterSnap("uri-b", "uri-c"), 2))
	sel, ok := m.SelectedCluster()
	require.True(t, ok)
	assert.Equal(t, "uri-b", sel.ID)
	assert.Equal(t, 0, m.Page().SelectedIndex)
}

func TestManager_ClusterSelectionResetsWhenGone(t *testing.T) {
	m, _ := newTestManager(t, "/", &fakeFetcher{})
	m.ApplyClusterSnapshot(clusterSnap("uri-a", "uri-b"), 1)
	require.True(t, m.SelectCluster("uri-b"))
	assert.False(t, m.SelectCluster("uri-z"))

	m.ApplyClusterSnapshot(clusterSnap("uri-c", "uri-d"), 2)
	sel, ok := m.SelectedCluster()
	require.True(t, ok)
	assert.Equal(t, "uri-c", sel.ID)

	m.ApplyClusterSnapshot(model.Clusters{}, 3)
	_, ok = m.SelectedCluster()
	assert.False(t, ok)
	assert.Nil(t, m.Page().Selected)
}
