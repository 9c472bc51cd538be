// Package site holds what the page handlers of every module share: the
// template set, the URL prefix and the per-request page data.
package site

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	ginrender "github.com/gin-gonic/gin/render"

	"hpcdash/internal/pkg/ingest"
	"hpcdash/internal/pkg/preference"
	"hpcdash/internal/pkg/render"
	"hpcdash/internal/pkg/session"
)

// Site is the shared page context.
type Site struct {
	Title        string
	Prefix       string
	ClusterPages bool
	Templates    *template.Template
	Store        *ingest.Store
	Themes       *preference.Themes
	Logger       *slog.Logger
}

// Home returns the dashboard URL.
func (s *Site) Home() string { return s.Prefix + "/" }

// URL returns p below the prefix.
func (s *Site) URL(p string) string { return s.Prefix + p }

// Data builds the page data of the current request. It consumes the pending
// notice of the session.
func (s *Site) Data(c *gin.Context, sess *session.Session) render.PageData {
	u := c.Request.URL
	data := render.PageData{
		Title:        s.Title,
		Prefix:       s.Prefix,
		Path:         u.Path,
		ReturnTo:     u.RequestURI(),
		Theme:        s.Themes.Resolve(c.Request.Context(), sess.ID),
		ClusterPages: s.ClusterPages,
	}
	if sess.View != nil {
		data.Notice = sess.View.TakeNotice()
		data.Page = sess.View.Page()
	}
	if s.Store != nil {
		data.StatusFeed = s.Store.StatusFeed()
		data.ClusterFeed = s.Store.ClusterFeed()
	}
	return data
}

// HTML renders page name with data.
func (s *Site) HTML(c *gin.Context, name string, data render.PageData) {
	c.Render(http.StatusOK, ginrender.HTML{Template: s.Templates, Name: name, Data: data})
}

// Session returns the session of the request or answers 500.
func (s *Site) Session(c *gin.Context) (*session.Session, bool) {
	sess := session.FromContext(c)
	if sess == nil {
		c.String(http.StatusInternalServerError, "session not initialized")
		return nil, false
	}
	return sess, true
}

// ReturnTo reads the return_to form field. Only local URLs below the prefix
// are accepted; anything else yields fallback.
func (s *Site) ReturnTo(c *gin.Context, fallback string) string {
	v := strings.TrimSpace(c.PostForm("return_to"))
	if v == "" || strings.HasPrefix(v, "//") || strings.Contains(v, `\`) {
		return fallback
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme != "" || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return fallback
	}
	p := path.Clean(u.Path)
	if s.Prefix != "" && p != s.Prefix && !strings.HasPrefix(p, s.Prefix+"/") {
		return fallback
	}
	if strings.HasSuffix(u.Path, "/") && p != "/" {
		p += "/"
	}
	u.Path = p
	return u.RequestURI()
}

// SeeOther redirects after a form post.
func SeeOther(c *gin.Context, target string) {
	c.Redirect(http.StatusSeeOther, target)
}

// NavigateHeader marks form posts sent by the page script. A redirected post
// always adds a browser history entry, so scripted posts get the target as
// JSON and the script replaces the current entry when Replace is set.
const NavigateHeader = "X-Hpcdash-Navigate"

// Navigation is the answer to a scripted form post.
type Navigation struct {
	Location string `json:"location"`
	Replace  bool   `json:"replace"`
}

// Navigate answers a form post that moved the session history to target.
// replace reports that the current entry was overwritten rather than a new
// one pushed.
func Navigate(c *gin.Context, target string, replace bool) {
	if c.GetHeader(NavigateHeader) == "" {
		SeeOther(c, target)
		return
	}
	c.JSON(http.StatusOK, Navigation{Location: target, Replace: replace})
}
