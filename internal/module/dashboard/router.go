package dashboard

import (
	"context"

	"github.com/gin-gonic/gin"

	"hpcdash/internal/app/site"
	"hpcdash/internal/pkg/model"
	"hpcdash/internal/pkg/view"
)

// Refresher triggers a backend refresh and reloads the status feed.
type Refresher interface {
	Refresh(ctx context.Context) (model.RefreshResult, error)
}

type Router struct {
	Site      *site.Site
	Refresher Refresher
	Fetcher   view.BriefingFetcher
}

func (rt Router) Register(rg *gin.RouterGroup) {
	h := &handler{site: rt.Site, refresher: rt.Refresher, fetcher: rt.Fetcher}

	rg.GET("/", h.HandlerDashboardPage)                 // GET /?system=xxx&q=xxx&status=xxx&dsrc=xxx
	rg.GET("/overview", h.HandlerOverviewPage)          // GET /overview?q=xxx&status=xxx&dsrc=xxx
	rg.POST("/systems/:slug/open", h.HandlerOpenDetail) // POST /systems/xxx/open
	rg.POST("/detail/close", h.HandlerCloseDetail)      // POST /detail/close
	rg.POST("/refresh", h.HandlerRefreshForm)           // POST /refresh

	v1 := rg.Group("/api/v1/dashboard")
	{
		v1.GET("/summary", h.HandlerGetSummary)                 // GET /api/v1/dashboard/summary
		v1.GET("/systems", h.HandlerListSystems)                // GET /api/v1/dashboard/systems?q=xxx&paging=xxx&page=xxx&page_size=xxx
		v1.GET("/systems/:slug/briefing", h.HandlerGetBriefing) // GET /api/v1/dashboard/systems/xxx/briefing
		v1.POST("/refresh", h.HandlerRefresh)                   // POST /api/v1/dashboard/refresh
	}
}
