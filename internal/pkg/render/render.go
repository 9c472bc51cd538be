// Package render turns view state into HTML pages. The three pages share
// one template set: "dashboard" (overview, detail panel and clusters),
// "overview" (summary and table) and "quota" (cluster panels).
package render

import (
	"embed"
	"html/template"
	"io"
	"math"
	"strings"

	"hpcdash/internal/pkg/aggregate"
	"hpcdash/internal/pkg/ingest"
	"hpcdash/internal/pkg/numfmt"
	"hpcdash/internal/pkg/view"
)

// Page names.
const (
	PageDashboard = "dashboard"
	PageOverview  = "overview"
	PageQuota     = "quota"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageData is everything a page template reads.
type PageData struct {
	Title    string
	Prefix   string
	Path     string
	ReturnTo string
	Theme    string
	Notice   string

	Page          view.Page
	DetailEnabled bool
	ClusterPages  bool
	Ranked        []aggregate.ClusterSummary

	StatusFeed  ingest.FeedStatus
	ClusterFeed ingest.FeedStatus
}

// Funcs are the template helpers.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"integer": numfmt.FormatInteger,
		"percent": numfmt.FormatPercent,
		"compact": numfmt.FormatHoursCompact,
		"ratio": func(v float64) string {
			return numfmt.FormatPercent(math.Round(v*1000) / 10)
		},
		"dash": func(s string) string {
			if strings.TrimSpace(s) == "" {
				return "--"
			}
			return s
		},
		"counts": aggregate.SortedCounts,
		"eqFold": strings.EqualFold,
		// trusted marks renderer output as safe. Only markdown.Render output
		// reaches it, which escapes all source text.
		"trusted": func(s string) template.HTML { return template.HTML(s) }, //nolint:gosec
	}
}

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("pages").Funcs(Funcs()).ParseFS(templateFS, "templates/*.html")
}

// Execute renders page name with data.
func Execute(t *template.Template, w io.Writer, name string, data PageData) error {
	return t.ExecuteTemplate(w, name, data)
}
