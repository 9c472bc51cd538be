package aggregate

import (
	"sort"
	"strings"

	"hpcdash/internal/pkg/model"
	"hpcdash/internal/pkg/numfmt"
)

// ClusterSummary is the derived view of one ClusterRecord.
type ClusterSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URI       string `json:"uri,omitempty"`
	Status    string `json:"status"`
	Type      string `json:"type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	Queues       int     `json:"queues"`
	JobsRunning  float64 `json:"jobs_running"`
	JobsPending  float64 `json:"jobs_pending"`
	CoresRunning float64 `json:"cores_running"`
	CoresPending float64 `json:"cores_pending"`
	// CoreCapacity is the core count of the typed node rows, or of the
	// aggregate "Nodes" row when no typed rows exist.
	CoreCapacity    float64 `json:"core_capacity"`
	UtilizationPct  float64 `json:"utilization_pct"`
	PendingSharePct float64 `json:"pending_share_pct"`

	QueueMix  []QueueTypeMix      `json:"queue_mix"`
	QueueRows []model.QueueRecord `json:"queue_rows"`
	Nodes     []model.NodeRecord  `json:"nodes"`

	Usage         UsageTotals    `json:"usage"`
	Badges        []UsageBadge   `json:"badges"`
	PlacementHint *PlacementHint `json:"placement_hint,omitempty"`
}

// QueueTypeMix groups queues by queue_type.
type QueueTypeMix struct {
	Type        string  `json:"type"`
	Queues      int     `json:"queues"`
	JobsRunning float64 `json:"jobs_running"`
	JobsPending float64 `json:"jobs_pending"`
}

// UsageTotals sums the allocation records that carry an allocation.
type UsageTotals struct {
	HoursAllocated   float64 `json:"hours_allocated"`
	HoursUsed        float64 `json:"hours_used"`
	HoursRemaining   float64 `json:"hours_remaining"`
	PercentRemaining float64 `json:"percent_remaining"`
	HasData          bool    `json:"has_data"`
}

// UsageBadge is the compact remaining-hours indicator for one allocation.
type UsageBadge struct {
	System           string  `json:"system"`
	Subproject       string  `json:"subproject"`
	HoursRemaining   float64 `json:"hours_remaining"`
	PercentRemaining float64 `json:"percent_remaining"`
	Label            string  `json:"label"`
}

// PlacementHint suggests the least backlogged queue.
type PlacementHint struct {
	Queue       string  `json:"queue"`
	Type        string  `json:"type,omitempty"`
	JobsPending float64 `json:"jobs_pending"`
	JobsRunning float64 `json:"jobs_running"`
}

// SanitizeNodes drops the aggregate "Nodes" placeholder rows.
func SanitizeNodes(nodes []model.NodeRecord) []model.NodeRecord {
	out := make([]model.NodeRecord, 0, len(nodes))
	for _, n := range nodes {
		if n.IsAggregate() {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Cluster derives the summary of one record. Job and core totals come from
// the queue rows; node rows only feed capacity and the node table.
func Cluster(rec model.ClusterRecord) ClusterSummary {
	s := ClusterSummary{
		ID:        rec.ID(),
		Name:      rec.DisplayName(),
		URI:       rec.Metadata.URI,
		Status:    strings.TrimSpace(rec.Metadata.Status),
		Type:      rec.Metadata.Type,
		Timestamp: rec.Metadata.Timestamp,
		QueueRows: rec.QueueData.Queues,
		Nodes:     SanitizeNodes(rec.QueueData.Nodes),
	}

	mix := map[string]*QueueTypeMix{}
	for _, q := range rec.QueueData.Queues {
		s.Queues++
		s.JobsRunning += q.JobsRunning.Float()
		s.JobsPending += q.JobsPending.Float()
		s.CoresRunning += q.CoresRunning.Float()
		s.CoresPending += q.CoresPending.Float()

		t := strings.TrimSpace(q.QueueType)
		if t == "" {
			t = "Other"
		}
		m, ok := mix[t]
		if !ok {
			m = &QueueTypeMix{Type: t}
			mix[t] = m
		}
		m.Queues++
		m.JobsRunning += q.JobsRunning.Float()
		m.JobsPending += q.JobsPending.Float()
	}
	for _, m := range mix {
		s.QueueMix = append(s.QueueMix, *m)
	}
	sort.Slice(s.QueueMix, func(i, j int) bool { return s.QueueMix[i].Type < s.QueueMix[j].Type })

	for _, n := range s.Nodes {
		s.CoreCapacity += n.CoresAvailable.Float()
	}
	if s.CoreCapacity == 0 {
		for _, n := range rec.QueueData.Nodes {
			if n.IsAggregate() {
				s.CoreCapacity += n.CoresAvailable.Float()
			}
		}
	}
	if s.CoreCapacity > 0 {
		s.UtilizationPct = numfmt.ClampPercent(s.CoresRunning / s.CoreCapacity * 100)
	}
	if demand := s.CoresRunning + s.CoresPending; demand > 0 {
		s.PendingSharePct = numfmt.ClampPercent(s.CoresPending / demand * 100)
	}

	s.Usage, s.Badges = Usage(rec.UsageData.Systems)
	s.PlacementHint = LeastBacklogged(rec.QueueData.Queues)
	return s
}

// Usage totals the allocations and builds the badges. Zero-allocation rows
// are "no usage data" and are skipped entirely.
func Usage(records []model.UsageRecord) (UsageTotals, []UsageBadge) {
	var totals UsageTotals
	badges := make([]UsageBadge, 0, len(records))
	for _, u := range records {
		if !u.HasAllocation() {
			continue
		}
		totals.HasData = true
		totals.HoursAllocated += u.HoursAllocated.Float()
		totals.HoursUsed += u.HoursUsed.Float()
		totals.HoursRemaining += u.HoursRemaining.Float()

		pct := u.PercentRemaining.Float()
		if pct == 0 && u.HoursRemaining.Float() > 0 {
			pct = u.HoursRemaining.Float() / u.HoursAllocated.Float() * 100
		}
		badges = append(badges, UsageBadge{
			System:           u.System,
			Subproject:       u.Subproject,
			HoursRemaining:   u.HoursRemaining.Float(),
			PercentRemaining: numfmt.ClampPercent(pct),
			Label:            numfmt.FormatHoursCompact(u.HoursRemaining.Float()),
		})
	}
	if totals.HoursAllocated > 0 {
		totals.PercentRemaining = numfmt.ClampPercent(totals.HoursRemaining / totals.HoursAllocated * 100)
	}
	return totals, badges
}

// LeastBacklogged picks the queue with the fewest pending jobs, then the
// fewest running jobs, then by name. Nil when there are no queues.
func LeastBacklogged(queues []model.QueueRecord) *PlacementHint {
	var best *model.QueueRecord
	for i := range queues {
		q := &queues[i]
		if best == nil || lessBacklogged(q, best) {
			best = q
		}
	}
	if best == nil {
		return nil
	}
	return &PlacementHint{
		Queue:       best.QueueName,
		Type:        best.QueueType,
		JobsPending: best.JobsPending.Float(),
		JobsRunning: best.JobsRunning.Float(),
	}
}

func lessBacklogged(a, b *model.QueueRecord) bool {
	if a.JobsPending != b.JobsPending {
		return a.JobsPending < b.JobsPending
	}
	if a.JobsRunning != b.JobsRunning {
		return a.JobsRunning < b.JobsRunning
	}
	return a.QueueName < b.QueueName
}

// Clusters summarizes every record, keeping snapshot order.
func Clusters(records []model.ClusterRecord) []ClusterSummary {
	out := make([]ClusterSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, Cluster(rec))
	}
	return out
}

// RankByRemaining orders summaries by percent of hours remaining, highest
// first; clusters without usage data sort last.
func RankByRemaining(summaries []ClusterSummary) []ClusterSummary {
	out := append([]ClusterSummary(nil), summaries...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Usage, out[j].Usage
		if a.HasData != b.HasData {
			return a.HasData
		}
		return a.PercentRemaining > b.PercentRemaining
	})
	return out
}
