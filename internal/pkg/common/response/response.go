package response

import (
	"net/url"
	"strconv"
)

// Response is the JSON envelope of every API answer. List endpoints fill
// Count, Previous, Next and Results; errors fill Detail.
type Response struct {
	Count    *int   `json:"count,omitempty"`
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next,omitempty"`
	Results  any    `json:"results,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// BuildPageLinks returns the previous and next page URLs for u, keeping its
// other query parameters. Empty strings mean there is no such page.
func BuildPageLinks(u *url.URL, page, pageSize, total int) (prev, next string) {
	if u == nil || pageSize <= 0 {
		return "", ""
	}
	link := func(p int) string {
		c := *u
		q := c.Query()
		q.Set("page", strconv.Itoa(p))
		q.Set("page_size", strconv.Itoa(pageSize))
		c.RawQuery = q.Encode()
		return c.RequestURI()
	}
	if page > 1 {
		prev = link(page - 1)
	}
	if page*pageSize < total {
		next = link(page + 1)
	}
	return prev, next
}
