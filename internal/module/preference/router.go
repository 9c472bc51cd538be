package preference

import (
	"github.com/gin-gonic/gin"

	"hpcdash/internal/app/site"
)

type Router struct {
	Site *site.Site
}

func (rt Router) Register(rg *gin.RouterGroup) {
	h := &handler{site: rt.Site}

	rg.POST("/theme", h.HandlerThemeForm) // POST /theme (theme=light|dark)

	v1 := rg.Group("/api/v1/preferences")
	{
		v1.GET("/theme", h.HandlerGetTheme) // GET /api/v1/preferences/theme
		v1.PUT("/theme", h.HandlerPutTheme) // PUT /api/v1/preferences/theme
	}
}
