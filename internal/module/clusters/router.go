package clusters

import (
	"github.com/gin-gonic/gin"

	"hpcdash/internal/app/site"
)

// Router mounts the quota page and the cluster API. It is only registered
// when cluster pages are enabled.
type Router struct {
	Site *site.Site
}

func (rt Router) Register(rg *gin.RouterGroup) {
	h := &handler{site: rt.Site}

	rg.GET("/quota", h.HandlerQuotaPage)                // GET /quota
	rg.POST("/clusters/select", h.HandlerSelectCluster) // POST /clusters/select (id=xxx)

	v1 := rg.Group("/api/v1/clusters")
	{
		v1.GET("", h.HandlerListClusters)   // GET /api/v1/clusters
		v1.GET("/:id", h.HandlerGetCluster) // GET /api/v1/clusters/xxx (url-escaped uri or name)
	}
}
