package preference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpcdash/internal/app/site"
	"hpcdash/internal/pkg/ingest"
	"hpcdash/internal/pkg/model"
	themes "hpcdash/internal/pkg/preference"
	"hpcdash/internal/pkg/render"
	"hpcdash/internal/pkg/session"
)

type brokenStore struct{}

func (brokenStore) GetTheme(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (brokenStore) SetTheme(context.Context, string, string) error {
	return errors.New("connection refused")
}

type testEnv struct {
	engine  *gin.Engine
	cookies []*http.Cookie
}

func newTestEnv(t *testing.T, store themes.Store) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tmpl, err := render.Templates()
	require.NoError(t, err)

	s := &site.Site{
		Templates: tmpl,
		Themes:    themes.NewThemes(store, model.ThemeDark, logger),
		Logger:    logger,
	}
	sessions := session.NewManager(ingest.NewStore(), nil, time.Minute, "", logger)
	r := gin.New()
	Router{Site: s}.Register(r.Group("", sessions.Middleware()))
	return &testEnv{engine: r}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	if cs := w.Result().Cookies(); len(cs) > 0 {
		e.cookies = cs
	}
	return w
}

func putTheme(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/preferences/theme", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestTheme_DefaultThenSaved(t *testing.T) {
	env := newTestEnv(t, themes.NewMemoryStore())

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/preferences/theme", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"theme":"dark"`)

	w = env.do(putTheme(`{"theme":"light"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"persisted":true`)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/preferences/theme", nil))
	assert.Contains(t, w.Body.String(), `"theme":"light"`)
	assert.Contains(t, w.Body.String(), `"default":"dark"`)
}

func TestTheme_RejectsInvalid(t *testing.T) {
	env := newTestEnv(t, themes.NewMemoryStore())

	w := env.do(putTheme(`{"theme":"neon"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(putTheme(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTheme_StorageFailureDegrades(t *testing.T) {
	env := newTestEnv(t, brokenStore{})

	w := env.do(putTheme(`{"theme":"light"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"persisted":false`)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/preferences/theme", nil))
	assert.Contains(t, w.Body.String(), `"theme":"dark"`)
}

func TestThemeForm_RedirectsBack(t *testing.T) {
	env := newTestEnv(t, themes.NewMemoryStore())

	form := url.Values{"theme": {"light"}, "return_to": {"/overview?q=a"}}
	req := httptest.NewRequest(http.MethodPost, "/theme", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/overview?q=a", w.Header().Get("Location"))

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/preferences/theme", nil))
	assert.Contains(t, w.Body.String(), `"theme":"light"`)
}
