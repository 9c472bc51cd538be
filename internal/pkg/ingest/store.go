package ingest

import (
	"sync"
	"time"

	"hpcdash/internal/pkg/model"
)

// Feed sources.
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
	SourceRefresh  = "refresh"
)

// FeedStatus is what the error banner and the summary API show about a feed.
type FeedStatus struct {
	LastError     string    `json:"last_error,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at,omitempty"`
	UsingFallback bool      `json:"using_fallback"`
	LastSuccess   time.Time `json:"last_success,omitempty"`
	NextRetry     time.Time `json:"next_retry,omitempty"`
}

// Healthy reports whether the last load succeeded.
func (s FeedStatus) Healthy() bool { return s.LastError == "" }

// Store holds the current snapshot of each feed. Every replacement gets a
// new sequence number so readers can tell whether they have seen it.
// Snapshots are shared: readers must not modify them.
type Store struct {
	mu sync.RWMutex

	status     model.StatusSnapshot
	statusSeq  uint64
	statusFeed FeedStatus

	clusters    model.Clusters
	clusterSeq  uint64
	clusterFeed FeedStatus
}

// NewStore returns an empty Store.
func NewStore() *Store { return &Store{} }

// SetStatus replaces the status snapshot and returns its sequence number.
func (s *Store) SetStatus(snap model.StatusSnapshot, source string, at time.Time) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = snap
	s.statusSeq++
	s.statusFeed = FeedStatus{
		UsingFallback: source == SourceFallback,
		LastSuccess:   at,
	}
	return s.statusSeq
}

// Status returns the current status snapshot; seq is 0 before the first one.
func (s *Store) Status() (snap model.StatusSnapshot, seq uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.statusSeq
}

// SetStatusError records a failed status load. The snapshot is kept.
func (s *Store) SetStatusError(err error, at, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFeed.LastError = err.Error()
	s.statusFeed.LastErrorAt = at
	s.statusFeed.NextRetry = next
}

// StatusFeed returns the status feed banner state.
func (s *Store) StatusFeed() FeedStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusFeed
}

// SetClusters replaces the cluster snapshot and returns its sequence number.
func (s *Store) SetClusters(cs model.Clusters, at time.Time) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters = cs
	s.clusterSeq++
	s.clusterFeed = FeedStatus{LastSuccess: at}
	return s.clusterSeq
}

// Clusters returns the current cluster snapshot; seq is 0 before the first one.
func (s *Store) Clusters() (cs model.Clusters, seq uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clusters, s.clusterSeq
}

// SetClusterError records a failed cluster load. The snapshot is kept.
func (s *Store) SetClusterError(err error, at, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusterFeed.LastError = err.Error()
	s.clusterFeed.LastErrorAt = at
	s.clusterFeed.NextRetry = next
}

// ClusterFeed returns the cluster feed banner state.
func (s *Store) ClusterFeed() FeedStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clusterFeed
}
