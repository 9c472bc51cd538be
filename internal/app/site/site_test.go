package site

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestReturnTo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Site{Prefix: "/hpc"}

	cases := []struct {
		in   string
		want string
	}{
		{"", "/hpc/"},
		{"/hpc/", "/hpc/"},
		{"/hpc/overview?q=a", "/hpc/overview?q=a"},
		{"/hpc", "/hpc"},
		{"/hpc/../etc", "/hpc/"},
		{"/other/", "/hpc/"},
		{"//evil.example/hpc/", "/hpc/"},
		{"https://evil.example/hpc/", "/hpc/"},
		{`/hpc\evil`, "/hpc/"},
		{"hpc/overview", "/hpc/"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		form := url.Values{"return_to": {tc.in}}
		c.Request = httptest.NewRequest(http.MethodPost, "/hpc/refresh", strings.NewReader(form.Encode()))
		c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(t, tc.want, s.ReturnTo(c, s.Home()), "return_to %q", tc.in)
	}
}

func TestReturnTo_NoPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Site{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	form := url.Values{"return_to": {"/quota"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(form.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, "/quota", s.ReturnTo(c, s.Home()))
	assert.Equal(t, "/", s.Home())
	assert.Equal(t, "/quota", s.URL("/quota"))
}

func TestSession_MissingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := (&Site{}).Session(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNavigate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/detail/close", nil)
	Navigate(c, "/?q=al", true)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?q=al", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/detail/close", nil)
	c.Request.Header.Set(NavigateHeader, "1")
	Navigate(c, "/?q=al", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"location":"/?q=al","replace":true}`, w.Body.String())
}
