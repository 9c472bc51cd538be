// Package markdown renders the constrained markdown dialect used by the
// per-system briefings into HTML fragments.
//
// Supported blocks: fenced code, ATX headings, standalone images, pipe
// tables, unordered and ordered lists, paragraphs. Inline: images, links,
// bold, italic, code. Every piece of source text is HTML-escaped before any
// tag is wrapped around it; anything that does not parse degrades to
// paragraph text.
package markdown

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// DefaultImageAlt is used when a standalone image has no alt text.
const DefaultImageAlt = "System illustration"

type listKind int

const (
	listNone listKind = iota
	listUnordered
	listOrdered
)

var (
	fenceRe     = regexp.MustCompile("^```\\s*([A-Za-z0-9_+.#-]*)\\s*$")
	headingRe   = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	imageLineRe = regexp.MustCompile(`^!\[([^\]]*)\]\(([^)\s]+)\)$`)
	dividerRe   = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
	unorderedRe = regexp.MustCompile(`^[-*+]\s+(.*)$`)
	orderedRe   = regexp.MustCompile(`^\d+\.\s+(.*)$`)
)

// renderer carries the block scanner state for one Render call.
type renderer struct {
	out []string

	paragraph []string

	list      listKind
	listItems []string

	inCode    bool
	codeLang  string
	codeLines []string
}

// Render converts src to an HTML fragment. Empty input yields "".
func Render(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	src = strings.TrimRight(src, " \t\n")
	if src == "" {
		return ""
	}

	r := &renderer{}
	lines := strings.Split(src, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")

		if r.inCode {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				r.flushCode()
			} else {
				r.codeLines = append(r.codeLines, line)
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			r.flushParagraph()
			r.flushList()
			continue
		}

		if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
			r.flushParagraph()
			r.flushList()
			r.inCode = true
			r.codeLang = m[1]
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			r.flushParagraph()
			r.flushList()
			level := strconv.Itoa(len(m[1]))
			r.out = append(r.out, "<h"+level+">"+Inline(strings.TrimSpace(m[2]))+"</h"+level+">")
			continue
		}

		if m := imageLineRe.FindStringSubmatch(trimmed); m != nil {
			r.flushParagraph()
			r.flushList()
			r.out = append(r.out, figure(m[1], m[2]))
			continue
		}

		if strings.HasPrefix(trimmed, "|") && i+1 < len(lines) && dividerRe.MatchString(strings.TrimSpace(lines[i+1])) {
			r.flushParagraph()
			r.flushList()
			header := splitRow(trimmed)
			var body [][]string
			j := i + 2
			for ; j < len(lines); j++ {
				next := strings.TrimSpace(lines[j])
				if !strings.HasPrefix(next, "|") {
					break
				}
				body = append(body, splitRow(next))
			}
			r.out = append(r.out, table(header, body))
			i = j - 1
			continue
		}

		if m := unorderedRe.FindStringSubmatch(trimmed); m != nil {
			r.addListItem(listUnordered, m[1])
			continue
		}
		if m := orderedRe.FindStringSubmatch(trimmed); m != nil {
			r.addListItem(listOrdered, m[1])
			continue
		}

		r.flushList()
		r.paragraph = append(r.paragraph, trimmed)
	}

	if r.inCode {
		r.flushCode()
	}
	r.flushParagraph()
	r.flushList()
	return strings.Join(r.out, "\n")
}

func (r *renderer) addListItem(kind listKind, text string) {
	r.flushParagraph()
	if r.list != kind {
		r.flushList()
		r.list = kind
	}
	r.listItems = append(r.listItems, text)
}

func (r *renderer) flushParagraph() {
	if len(r.paragraph) == 0 {
		return
	}
	r.out = append(r.out, "<p>"+Inline(strings.Join(r.paragraph, " "))+"</p>")
	r.paragraph = nil
}

func (r *renderer) flushList() {
	if r.list == listNone {
		return
	}
	tag := "ul"
	if r.list == listOrdered {
		tag = "ol"
	}
	var b strings.Builder
	b.WriteString("<" + tag + ">")
	for _, item := range r.listItems {
		b.WriteString("<li>" + Inline(item) + "</li>")
	}
	b.WriteString("</" + tag + ">")
	r.out = append(r.out, b.String())
	r.list = listNone
	r.listItems = nil
}

func (r *renderer) flushCode() {
	class := ""
	if r.codeLang != "" {
		class = ` class="language-` + html.EscapeString(r.codeLang) + `"`
	}
	r.out = append(r.out, "<pre><code"+class+">"+html.EscapeString(strings.Join(r.codeLines, "\n"))+"</code></pre>")
	r.inCode = false
	r.codeLang = ""
	r.codeLines = nil
}

func figure(alt, src string) string {
	altText := alt
	if strings.TrimSpace(altText) == "" {
		altText = DefaultImageAlt
	}
	img := `<img src="` + html.EscapeString(safeURL(src)) + `" alt="` + html.EscapeString(altText) + `" loading="lazy">`
	if strings.TrimSpace(alt) == "" {
		return "<figure>" + img + "</figure>"
	}
	return "<figure>" + img + "<figcaption>" + Inline(alt) + "</figcaption></figure>"
}

func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	cells := strings.Split(line, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func table(header []string, body [][]string) string {
	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, cell := range header {
		b.WriteString("<th>" + Inline(cell) + "</th>")
	}
	b.WriteString("</tr></thead>")
	if len(body) > 0 {
		b.WriteString("<tbody>")
		for _, row := range body {
			b.WriteString("<tr>")
			for _, cell := range row {
				b.WriteString("<td>" + Inline(cell) + "</td>")
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</tbody>")
	}
	b.WriteString("</table>")
	return b.String()
}
