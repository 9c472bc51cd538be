package model

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by upstream lookups that answered 404.
var ErrNotFound = errors.New("not found")

// Known system states. Upstream may send others; they are kept upper-cased.
const (
	StatusUp          = "UP"
	StatusDown        = "DOWN"
	StatusDegraded    = "DEGRADED"
	StatusMaintenance = "MAINTENANCE"
	StatusUnknown     = "UNKNOWN"
)

// StatusSnapshot is one /api/status payload. It is never patched: every
// fetch replaces the previous snapshot.
type StatusSnapshot struct {
	Systems []SystemRow  `json:"systems"`
	Summary FleetSummary `json:"summary"`
	Meta    Meta         `json:"meta"`
}

type Meta struct {
	SourceURL   string `json:"source_url,omitempty"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

// FleetSummary mirrors the "summary" block computed by the backend; the
// dashboard recomputes it from rows, see aggregate.Fleet.
type FleetSummary struct {
	TotalSystems    int            `json:"total_systems"`
	StatusCounts    map[string]int `json:"status_counts"`
	DSRCCounts      map[string]int `json:"dsrc_counts"`
	SchedulerCounts map[string]int `json:"scheduler_counts"`
	UptimeRatio     float64        `json:"uptime_ratio"`
}

// Systems is a slice of SystemRow.
type Systems []SystemRow

// SystemRow is one system of the fleet. Slug is derived locally, see
// view.AssignSlugs.
type SystemRow struct {
	System     string `json:"system"`
	Status     string `json:"status"`
	DSRC       string `json:"dsrc"`
	Scheduler  string `json:"scheduler"`
	Login      string `json:"login"`
	ObservedAt string `json:"observed_at"`
	RawAlt     string `json:"raw_alt"`
	SourceURL  string `json:"source_url,omitempty"`
	Slug       string `json:"slug,omitempty"`
}

// NormalizeStatus upper-cases a status value; empty becomes UNKNOWN.
func NormalizeStatus(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return StatusUnknown
	}
	return s
}

// Normalize trims the free-text fields and normalizes Status in place.
func (r *SystemRow) Normalize() {
	r.System = strings.TrimSpace(r.System)
	r.Status = NormalizeStatus(r.Status)
	r.DSRC = strings.TrimSpace(r.DSRC)
	r.Scheduler = strings.TrimSpace(r.Scheduler)
	r.Login = strings.TrimSpace(r.Login)
}

// RefreshResult is the body of POST api/refresh.
type RefreshResult struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Briefing is the body of GET api/system-markdown/<slug>.
type Briefing struct {
	Slug    string `json:"slug,omitempty"`
	Content string `json:"content"`
}
