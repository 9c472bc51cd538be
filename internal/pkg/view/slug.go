package view

import (
	"strconv"
	"strings"

	"hpcdash/internal/pkg/model"
)

// Slugify lowercases s and drops everything but ASCII letters and digits.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AssignSlugs returns a copy of rows with a unique, non-empty Slug on each.
// Natural slugs are reserved before any fallback is handed out, so a later
// row named "system2" keeps its slug even if an earlier row has no name.
// Rows without a usable name get "system<N>" (N is the 1-based position,
// bumped until free); repeated natural slugs get the smallest free numeric
// suffix starting at 2.
func AssignSlugs(rows []model.SystemRow) []model.SystemRow {
	out := make([]model.SystemRow, len(rows))
	natural := make([]string, len(rows))
	used := make(map[string]bool, len(rows))
	for i, r := range rows {
		natural[i] = Slugify(r.System)
		if natural[i] != "" {
			used[natural[i]] = true
		}
	}

	taken := make(map[string]bool, len(rows))
	for i, r := range rows {
		slug := natural[i]
		switch {
		case slug == "":
			slug = nextFree("system", i+1, used)
		case taken[slug]:
			slug = nextFree(slug, 2, used)
		}
		used[slug] = true
		taken[slug] = true
		r.Slug = slug
		out[i] = r
	}
	return out
}

func nextFree(base string, n int, used map[string]bool) string {
	for {
		candidate := base + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
		n++
	}
}
