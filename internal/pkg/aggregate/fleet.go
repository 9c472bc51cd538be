// Package aggregate computes fleet-wide and per-cluster summaries from raw
// snapshot records. Everything here is pure: no I/O, no shared state.
package aggregate

import (
	"math"
	"sort"
	"strings"

	"hpcdash/internal/pkg/model"
)

// Fleet summarizes system rows the same way the backend does: counts by
// status, DSRC and scheduler (upper-cased, empty as UNKNOWN) and the share
// of systems that are UP, rounded to three decimals.
func Fleet(rows []model.SystemRow) model.FleetSummary {
	s := model.FleetSummary{
		TotalSystems:    len(rows),
		StatusCounts:    map[string]int{},
		DSRCCounts:      map[string]int{},
		SchedulerCounts: map[string]int{},
	}
	up := 0
	for _, r := range rows {
		status := model.NormalizeStatus(r.Status)
		s.StatusCounts[status]++
		s.DSRCCounts[bucket(r.DSRC)]++
		s.SchedulerCounts[bucket(r.Scheduler)]++
		if status == model.StatusUp {
			up++
		}
	}
	if len(rows) > 0 {
		s.UptimeRatio = math.Round(float64(up)/float64(len(rows))*1000) / 1000
	}
	return s
}

func bucket(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return model.StatusUnknown
	}
	return v
}

// KeyCount is one entry of a sorted count breakdown.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// SortedCounts orders a count map by descending count, then key.
func SortedCounts(m map[string]int) []KeyCount {
	out := make([]KeyCount, 0, len(m))
	for k, v := range m {
		out = append(out, KeyCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
