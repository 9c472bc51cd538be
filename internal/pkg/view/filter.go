package view

import (
	"sort"
	"strings"

	"hpcdash/internal/pkg/model"
)

// Filter is the table filter. Empty fields match everything; set fields
// are combined with AND.
type Filter struct {
	Text   string `json:"q,omitempty"`
	Status string `json:"status,omitempty"`
	DSRC   string `json:"dsrc,omitempty"`
}

// FilterFromQuery converts the bound query parameters.
func FilterFromQuery(q model.FilterQuery) Filter {
	return Filter{
		Text:   strings.TrimSpace(q.Text),
		Status: strings.TrimSpace(q.Status),
		DSRC:   strings.TrimSpace(q.DSRC),
	}
}

// Active reports whether any field is set.
func (f Filter) Active() bool {
	return f.Text != "" || f.Status != "" || f.DSRC != ""
}

// Match reports whether r passes the filter. Text is a case-insensitive
// substring of the system name or login; status and DSRC must be equal
// ignoring case.
func (f Filter) Match(r model.SystemRow) bool {
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(r.System), needle) &&
			!strings.Contains(strings.ToLower(r.Login), needle) {
			return false
		}
	}
	if f.Status != "" && !strings.EqualFold(r.Status, f.Status) {
		return false
	}
	if f.DSRC != "" && !strings.EqualFold(r.DSRC, f.DSRC) {
		return false
	}
	return true
}

// Apply returns the rows matching f, in order.
func (f Filter) Apply(rows []model.SystemRow) []model.SystemRow {
	out := make([]model.SystemRow, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Options are the filter choices observed in a snapshot.
type Options struct {
	Statuses []string `json:"statuses"`
	DSRCs    []string `json:"dsrcs"`
}

// FilterOptions collects the sorted distinct status and DSRC values.
func FilterOptions(rows []model.SystemRow) Options {
	return Options{
		Statuses: distinct(rows, func(r model.SystemRow) string { return r.Status }),
		DSRCs:    distinct(rows, func(r model.SystemRow) string { return r.DSRC }),
	}
}

func distinct(rows []model.SystemRow, key func(model.SystemRow) string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, r := range rows {
		v := strings.TrimSpace(key(r))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
