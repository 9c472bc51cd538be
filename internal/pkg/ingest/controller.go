// Package ingest polls the upstream status backend. Each resource is a Feed
// with its own retry policy; the Controller adds the fallback snapshot, the
// background refresh schedule and the manual refresh.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"

	"hpcdash/internal/pkg/aggregate"
	"hpcdash/internal/pkg/model"
)

const (
	feedStatus   = "status"
	feedClusters = "clusters"
)

// Source is the upstream backend.
type Source interface {
	FetchStatus(ctx context.Context) (model.StatusSnapshot, error)
	FetchFallbackStatus(ctx context.Context) (model.StatusSnapshot, error)
	FetchClusterUsage(ctx context.Context) (model.Clusters, error)
	TriggerRefresh(ctx context.Context) (model.RefreshResult, error)
}

// Options tunes the Controller. Zero durations take the defaults.
type Options struct {
	StatusRetry    time.Duration
	StatusRefresh  time.Duration
	ClusterRetry   time.Duration
	ClusterRefresh time.Duration
	// ClustersEnabled turns the cluster usage feed on.
	ClustersEnabled bool
	Clock           Clock
}

func (o *Options) setDefaults() {
	if o.StatusRetry <= 0 {
		o.StatusRetry = 15 * time.Second
	}
	if o.StatusRefresh <= 0 {
		o.StatusRefresh = 3 * time.Minute
	}
	if o.ClusterRetry <= 0 {
		o.ClusterRetry = 60 * time.Second
	}
	if o.ClusterRefresh <= 0 {
		o.ClusterRefresh = 5 * time.Minute
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
}

// Controller owns the status and cluster feeds.
type Controller struct {
	src    Source
	store  *Store
	opts   Options
	logger *slog.Logger

	status   *Feed[model.StatusSnapshot]
	clusters *Feed[model.Clusters]
	cron     *cron.Cron
}

// NewController wires the feeds to src and store. Nothing runs until Start.
func NewController(src Source, store *Store, opts Options, logger *slog.Logger) *Controller {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{src: src, store: store, opts: opts, logger: logger}

	c.status = NewFeed(FeedConfig[model.StatusSnapshot]{
		Name: feedStatus,
		Load: c.loadStatus,
		OnSuccess: func(snap model.StatusSnapshot, source string) {
			seq := store.SetStatus(snap, source, opts.Clock.Now())
			logger.Info("status snapshot applied", "seq", seq, "source", source, "systems", len(snap.Systems))
		},
		OnError: func(err error, next time.Time) {
			store.SetStatusError(err, opts.Clock.Now(), next)
		},
		BackOff: backoff.NewConstantBackOff(opts.StatusRetry),
		Clock:   opts.Clock,
		Logger:  logger,
	})

	c.clusters = NewFeed(FeedConfig[model.Clusters]{
		Name: feedClusters,
		Load: c.loadClusters,
		OnSuccess: func(cs model.Clusters, _ string) {
			seq := store.SetClusters(cs, opts.Clock.Now())
			logger.Info("cluster snapshot applied", "seq", seq, "clusters", len(cs))
		},
		OnError: func(err error, next time.Time) {
			store.SetClusterError(err, opts.Clock.Now(), next)
		},
		BackOff: backoff.NewConstantBackOff(opts.ClusterRetry),
		Clock:   opts.Clock,
		Logger:  logger,
	})
	return c
}

// Store returns the snapshot store.
func (c *Controller) Store() *Store { return c.store }

// Start runs the initial loads in the background and schedules the
// periodic refreshes. The refresh schedule runs regardless of error state.
func (c *Controller) Start(ctx context.Context) error {
	c.status.Bind(ctx)
	c.clusters.Bind(ctx)

	c.cron = cron.New()
	if _, err := c.cron.AddFunc(every(c.opts.StatusRefresh), func() { c.status.Load(ctx) }); err != nil {
		return fmt.Errorf("schedule status refresh: %w", err)
	}
	if c.opts.ClustersEnabled {
		if _, err := c.cron.AddFunc(every(c.opts.ClusterRefresh), func() { c.clusters.Load(ctx) }); err != nil {
			return fmt.Errorf("schedule cluster refresh: %w", err)
		}
	}
	c.cron.Start()

	go c.status.Load(ctx)
	if c.opts.ClustersEnabled {
		go c.clusters.Load(ctx)
	}
	return nil
}

// Stop halts the schedule and cancels pending retries. It waits for
// scheduled loads that are already running.
func (c *Controller) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
	c.status.Stop()
	c.clusters.Stop()
}

// LoadStatus loads the status feed now. False means it was dropped.
func (c *Controller) LoadStatus(ctx context.Context) bool { return c.status.Load(ctx) }

// LoadClusters loads the cluster feed now. False means it was dropped.
func (c *Controller) LoadClusters(ctx context.Context) bool { return c.clusters.Load(ctx) }

// Refresh asks the backend to scrape again and then reloads the status feed
// whatever the outcome of the refresh request.
func (c *Controller) Refresh(ctx context.Context) (model.RefreshResult, error) {
	res, err := c.src.TriggerRefresh(ctx)
	observeFetch(feedStatus, SourceRefresh, err)
	if err != nil {
		c.logger.Warn("manual refresh failed", "err", err)
	}
	c.status.Load(ctx)
	return res, err
}

// StatusState returns the status feed lifecycle state.
func (c *Controller) StatusState() State { return c.status.State() }

// ClusterState returns the cluster feed lifecycle state.
func (c *Controller) ClusterState() State { return c.clusters.State() }

func (c *Controller) loadStatus(ctx context.Context) (model.StatusSnapshot, string, error) {
	snap, err := c.src.FetchStatus(ctx)
	observeFetch(feedStatus, SourcePrimary, err)
	if err == nil {
		return prepareStatus(snap), SourcePrimary, nil
	}
	c.logger.Warn("primary status fetch failed, trying fallback", "err", err)

	fb, fbErr := c.src.FetchFallbackStatus(ctx)
	observeFetch(feedStatus, SourceFallback, fbErr)
	if fbErr == nil {
		return prepareStatus(fb), SourceFallback, nil
	}
	return model.StatusSnapshot{}, "", fmt.Errorf("status unavailable: %w (fallback: %v)", err, fbErr)
}

func (c *Controller) loadClusters(ctx context.Context) (model.Clusters, string, error) {
	cs, err := c.src.FetchClusterUsage(ctx)
	observeFetch(feedClusters, SourcePrimary, err)
	if err != nil {
		return nil, "", fmt.Errorf("cluster usage unavailable: %w", err)
	}
	return cs, SourcePrimary, nil
}

// prepareStatus normalizes rows and recomputes the summary from them.
func prepareStatus(snap model.StatusSnapshot) model.StatusSnapshot {
	rows := make([]model.SystemRow, len(snap.Systems))
	for i, r := range snap.Systems {
		r.Normalize()
		rows[i] = r
	}
	snap.Systems = rows
	snap.Summary = aggregate.Fleet(rows)
	return snap
}

func every(d time.Duration) string { return "@every " + d.String() }
