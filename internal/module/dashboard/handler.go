package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hpcdash/internal/app/site"
	"hpcdash/internal/pkg/common/response"
	"hpcdash/internal/pkg/ingest"
	"hpcdash/internal/pkg/markdown"
	"hpcdash/internal/pkg/model"
	"hpcdash/internal/pkg/render"
	"hpcdash/internal/pkg/view"
)

type handler struct {
	site      *site.Site
	refresher Refresher
	fetcher   view.BriefingFetcher
}

// Summary is the body of the summary endpoint. Ready is false until the
// first status snapshot arrived.
type Summary struct {
	Ready       bool               `json:"ready"`
	Seq         uint64             `json:"seq"`
	Summary     model.FleetSummary `json:"summary"`
	Meta        model.Meta         `json:"meta"`
	StatusFeed  ingest.FeedStatus  `json:"status_feed"`
	ClusterFeed ingest.FeedStatus  `json:"cluster_feed"`
}

// Briefing is the rendered briefing of one system.
type Briefing struct {
	Slug   string `json:"slug"`
	System string `json:"system"`
	HTML   string `json:"html"`
}

func bindFilter(c *gin.Context) (model.FilterQuery, error) {
	var fq model.FilterQuery
	_ = c.ShouldBindQuery(&fq)
	return fq, fq.Validate()
}

// HandlerDashboardPage renders the dashboard: overview, detail panel and,
// when enabled, the cluster panels. The system parameter deep-links a
// detail; navigating back and forward replays the recorded locations.
func (h *handler) HandlerDashboardPage(c *gin.Context) {
	sess, ok := h.site.Session(c)
	if !ok {
		return
	}
	fq, err := bindFilter(c)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid filter parameters")
		return
	}

	sess.History.Visit(c.Request.URL)
	sess.View.SetFilter(view.FilterFromQuery(fq))
	sess.View.HandleNavigation()
	// A stale slug was dropped from the location; a redirected GET
	// rewrites the browser's current entry instead of adding one.
	if loc := sess.History.Location().RequestURI(); loc != c.Request.URL.RequestURI() {
		site.SeeOther(c, loc)
		return
	}
	sess.View.LoadBriefing(c.Request.Context())

	data := h.site.Data(c, sess)
	data.DetailEnabled = true
	h.site.HTML(c, render.PageDashboard, data)
}

// HandlerOverviewPage renders the summary and the systems table only.
func (h *handler) HandlerOverviewPage(c *gin.Context) {
	sess, ok := h.site.Session(c)
	if !ok {
		return
	}
	fq, err := bindFilter(c)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid filter parameters")
		return
	}
	sess.View.SetFilter(view.FilterFromQuery(fq))
	h.site.HTML(c, render.PageOverview, h.site.Data(c, sess))
}

// HandlerOpenDetail opens the detail of a system and redirects to the new
// location. Unknown systems leave a notice.
func (h *handler) HandlerOpenDetail(c *gin.Context) {
	sess, ok := h.site.Session(c)
	if !ok {
		return
	}
	before := sess.History.Index()
	sess.View.OpenDetail(c.Param("slug"))
	site.Navigate(c, sess.History.Location().RequestURI(), sess.History.Index() == before)
}

// HandlerCloseDetail closes the detail without adding a history entry.
func (h *handler) HandlerCloseDetail(c *gin.Context) {
	sess, ok := h.site.Session(c)
	if !ok {
		return
	}
	sess.View.CloseDetail()
	site.Navigate(c, sess.History.Location().RequestURI(), true)
}

// HandlerRefreshForm is the refresh button of the pages.
func (h *handler) HandlerRefreshForm(c *gin.Context) {
	sess, ok := h.site.Session(c)
	if !ok {
		return
	}
	back := h.site.ReturnTo(c, h.site.Home())
	if h.refresher == nil {
		site.SeeOther(c, back)
		return
	}
	res, err := h.refresher.Refresh(c.Request.Context())
	switch {
	case err != nil:
		sess.View.Notify("Refresh failed: " + err.Error())
	case res.Detail != "":
		sess.View.Notify(res.Detail)
	}
	site.SeeOther(c, back)
}

// @Summary 获取集群状态总览
// @Description 返回最新状态快照的汇总（系统数量、状态/DSRC/调度器分布、可用率）以及数据源状态
// @Tags dashboard
// @Produce json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/dashboard/summary [get]
func (h *handler) HandlerGetSummary(c *gin.Context) {
	store := h.site.Store
	if store == nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "status store not initialized"})
		return
	}
	snap, seq := store.Status()
	c.JSON(http.StatusOK, response.Response{Results: Summary{
		Ready:       seq > 0,
		Seq:         seq,
		Summary:     snap.Summary,
		Meta:        snap.Meta,
		StatusFeed:  store.StatusFeed(),
		ClusterFeed: store.ClusterFeed(),
	}})
}

// @Summary 获取系统列表（过滤 + 分页）
// @Description 按关键字、状态、DSRC 过滤系统行，支持分页参数 paging、page、page_size
// @Tags dashboard
// @Produce json
// @Param q query string false "关键字（匹配系统名与登录节点）"
// @Param status query string false "状态" example("UP")
// @Param dsrc query string false "DSRC"
// @Param paging query bool false "是否开启分页" default(true)
// @Param page query int false "页号(从1开始)" default(1) minimum(1)
// @Param page_size query int false "每页数量" default(20) minimum(1)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/dashboard/systems [get]
func (h *handler) HandlerListSystems(c *gin.Context) {
	if h.site.Store == nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "status store not initialized"})
		return
	}
	fq, err := bindFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "invalid filter parameters"})
		return
	}
	var pq model.PagingQuery
	_ = c.ShouldBindQuery(&pq)
	pq.SetDefaults(1, 20, 1000)
	if err := pq.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "invalid paging parameters"})
		return
	}

	snap, _ := h.site.Store.Status()
	rows := view.FilterFromQuery(fq).Apply(view.AssignSlugs(snap.Systems))
	total := len(rows)
	if !pq.Enabled() {
		c.JSON(http.StatusOK, response.Response{Count: &total, Results: rows})
		return
	}
	start, end := pq.Bounds(total)
	prevURL, nextURL := response.BuildPageLinks(c.Request.URL, pq.Page, pq.PageSize, total)
	c.JSON(http.StatusOK, response.Response{
		Count:    &total,
		Previous: prevURL,
		Next:     nextURL,
		Results:  rows[start:end],
	})
}

// @Summary 获取系统简报
// @Description 获取系统的 Markdown 简报并渲染为 HTML
// @Tags dashboard
// @Produce json
// @Param slug path string true "系统标识"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/dashboard/systems/{slug}/briefing [get]
func (h *handler) HandlerGetBriefing(c *gin.Context) {
	if h.fetcher == nil || h.site.Store == nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "status api client not initialized"})
		return
	}
	slug := view.Slugify(c.Param("slug"))
	snap, seq := h.site.Store.Status()
	var row model.SystemRow
	found := false
	for _, r := range view.AssignSlugs(snap.Systems) {
		if r.Slug == slug {
			row, found = r, true
			break
		}
	}
	if slug == "" || (seq > 0 && !found) {
		c.JSON(http.StatusNotFound, response.Response{Detail: "system not available in the current snapshot"})
		return
	}

	content, err := h.fetcher.FetchSystemMarkdown(c.Request.Context(), slug)
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Response{Detail: view.BriefingMissing})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, response.Response{Detail: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.Response{Results: Briefing{
		Slug:   slug,
		System: row.System,
		HTML:   markdown.Render(content),
	}})
}

// @Summary 手动刷新
// @Description 请求上游重新采集，然后无论结果如何都重新加载状态快照
// @Tags dashboard
// @Produce json
// @Success 200 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/dashboard/refresh [post]
func (h *handler) HandlerRefresh(c *gin.Context) {
	if h.refresher == nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "ingest controller not initialized"})
		return
	}
	res, err := h.refresher.Refresh(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, response.Response{Detail: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response.Response{Results: res})
}
