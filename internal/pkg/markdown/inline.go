package markdown

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	inlineImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	boldStarRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderRe   = regexp.MustCompile(`__(.+?)__`)
	italicStarRe  = regexp.MustCompile(`\*([^*]+)\*`)
	italicUnderRe = regexp.MustCompile(`(^|[^\w])_([^_]+)_($|[^\w])`)
	codeRe        = regexp.MustCompile("`([^`]+)`")
	schemeRe      = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
	tokenRe       = regexp.MustCompile("\x00([0-9]+)\x00")
)

// Inline applies inline formatting to a single run of text. The text is
// escaped first, so the substitutions below only ever see entity-encoded
// user content.
func Inline(text string) string {
	out := html.EscapeString(strings.ReplaceAll(text, "\x00", ""))

	// Images and whole links are parked behind tokens so the emphasis
	// passes can neither rewrite their attributes nor open a span inside a
	// link and close it outside.
	var tags []string
	park := func(tag string) string {
		tags = append(tags, tag)
		return "\x00" + strconv.Itoa(len(tags)-1) + "\x00"
	}
	restore := func(s string) string {
		return tokenRe.ReplaceAllStringFunc(s, func(m string) string {
			i, err := strconv.Atoi(tokenRe.FindStringSubmatch(m)[1])
			if err != nil || i >= len(tags) {
				return ""
			}
			return tags[i]
		})
	}

	out = inlineImageRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := inlineImageRe.FindStringSubmatch(m)
		alt := sub[1]
		if strings.TrimSpace(alt) == "" {
			alt = DefaultImageAlt
		}
		return park(`<img src="` + safeURL(sub[2]) + `" alt="` + alt + `" loading="lazy">`)
	})
	out = linkRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := linkRe.FindStringSubmatch(m)
		return park(`<a href="` + safeURL(sub[2]) + `" target="_blank" rel="noopener noreferrer">` + restore(emphasize(sub[1])) + "</a>")
	})
	out = emphasize(out)

	if len(tags) == 0 {
		return out
	}
	return restore(out)
}

func emphasize(s string) string {
	s = boldStarRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = boldUnderRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicStarRe.ReplaceAllString(s, "<em>$1</em>")
	// The pattern consumes the boundary characters, so adjacent spans like
	// "_a_ _b_" take another pass. Each pass removes two underscores.
	for {
		next := italicUnderRe.ReplaceAllString(s, "$1<em>$2</em>$3")
		if next == s {
			break
		}
		s = next
	}
	return codeRe.ReplaceAllString(s, "<code>$1</code>")
}

// safeURL neutralizes URLs whose scheme is not http, https or mailto.
// Relative references pass through.
func safeURL(u string) string {
	trimmed := strings.TrimSpace(u)
	if !schemeRe.MatchString(trimmed) {
		return trimmed
	}
	lower := strings.ToLower(trimmed)
	for _, allowed := range []string{"http:", "https:", "mailto:"} {
		if strings.HasPrefix(lower, allowed) {
			return trimmed
		}
	}
	return "#"
}
