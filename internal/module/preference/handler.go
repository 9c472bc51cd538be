package preference

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hpcdash/internal/app/site"
	"hpcdash/internal/pkg/common/response"
	themes "hpcdash/internal/pkg/preference"
	"hpcdash/internal/pkg/session"
)

type handler struct {
	site *site.Site
}

// Theme is the theme preference of the requesting client.
type Theme struct {
	Theme     string `json:"theme"`
	Default   string `json:"default"`
	Persisted *bool  `json:"persisted,omitempty"`
}

// ThemeRequest is the body of PUT /api/v1/preferences/theme.
type ThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

// HandlerThemeForm is the theme toggle of the pages.
func (h *handler) HandlerThemeForm(c *gin.Context) {
	sess, ok := h.site.Session(c)
	if !ok {
		return
	}
	if _, err := h.site.Themes.Save(c.Request.Context(), sess.ID, c.PostForm("theme")); err != nil {
		sess.View.Notify(err.Error())
	}
	site.SeeOther(c, h.site.ReturnTo(c, h.site.Home()))
}

// @Summary 获取主题偏好
// @Description 返回当前客户端（按 Cookie 识别）保存的主题，未保存时返回默认主题
// @Tags preferences
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/preferences/theme [get]
func (h *handler) HandlerGetTheme(c *gin.Context) {
	t := h.site.Themes
	c.JSON(http.StatusOK, response.Response{Results: Theme{
		Theme:   t.Resolve(c.Request.Context(), session.ClientID(c)),
		Default: t.Default(),
	}})
}

// @Summary 保存主题偏好
// @Description 保存当前客户端的主题（light 或 dark）；存储不可用时仅记录日志，persisted=false
// @Tags preferences
// @Accept json
// @Produce json
// @Param body body ThemeRequest true "主题"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/preferences/theme [put]
func (h *handler) HandlerPutTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "invalid request body"})
		return
	}
	t := h.site.Themes
	persisted, err := t.Save(c.Request.Context(), session.ClientID(c), req.Theme)
	if errors.Is(err, themes.ErrInvalidTheme) {
		c.JSON(http.StatusBadRequest, response.Response{Detail: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.Response{Results: Theme{
		Theme:     req.Theme,
		Default:   t.Default(),
		Persisted: &persisted,
	}})
}
