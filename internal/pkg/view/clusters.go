package view

import (
	"hpcdash/internal/pkg/aggregate"
	"hpcdash/internal/pkg/model"
)

// clusterState tracks the cluster snapshot and the selection. The selection
// follows the cluster identifier, not its position.
type clusterState struct {
	clusterSeq  uint64
	summaries   []aggregate.ClusterSummary
	selectedID  string
	selectedIdx int
}

// ApplyClusterSnapshot replaces the clusters and re-locates the selected
// cluster by identifier, falling back to the first one.
func (m *Manager) ApplyClusterSnapshot(cs model.Clusters, seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq <= m.clusterSeq {
		return false
	}
	m.clusterSeq = seq
	m.summaries = aggregate.Clusters(cs)
	if i := m.indexOfCluster(m.selectedID); i >= 0 {
		m.selectedIdx = i
	} else {
		m.selectIndexLocked(0)
	}
	return true
}

// ClusterSeq returns the sequence number of the applied cluster snapshot.
func (m *Manager) ClusterSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clusterSeq
}

// SelectCluster selects the cluster with identifier id.
func (m *Manager) SelectCluster(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOfCluster(id)
	if i < 0 {
		return false
	}
	m.selectIndexLocked(i)
	return true
}

// SelectClusterIndex selects the cluster at position i of the snapshot.
func (m *Manager) SelectClusterIndex(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.summaries) {
		return false
	}
	m.selectIndexLocked(i)
	return true
}

// SelectedCluster returns the selected cluster summary.
func (m *Manager) SelectedCluster() (aggregate.ClusterSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.summaries) == 0 {
		return aggregate.ClusterSummary{}, false
	}
	return m.summaries[m.selectedIdx], true
}

func (m *Manager) selectIndexLocked(i int) {
	if i >= len(m.summaries) {
		m.selectedIdx, m.selectedID = 0, ""
		return
	}
	m.selectedIdx = i
	m.selectedID = m.summaries[i].ID
}

func (m *Manager) indexOfCluster(id string) int {
	if id == "" {
		return -1
	}
	for i, s := range m.summaries {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) fillClustersLocked(p *Page) {
	p.ClustersReady = m.clusterSeq > 0
	p.Clusters = m.summaries
	p.SelectedIndex = m.selectedIdx
	if len(m.summaries) > 0 {
		sel := m.summaries[m.selectedIdx]
		p.Selected = &sel
	}
}
