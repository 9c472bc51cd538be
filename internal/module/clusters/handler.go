package clusters

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hpcdash/internal/app/site"
	"hpcdash/internal/pkg/aggregate"
	"hpcdash/internal/pkg/common/response"
	"hpcdash/internal/pkg/render"
)

type handler struct {
	site *site.Site
}

// HandlerQuotaPage renders the cluster panels and the remaining-hours ranking.
func (h *handler) HandlerQuotaPage(c *gin.Context) {
	sess, ok := h.site.Session(c)
	if !ok {
		return
	}
	data := h.site.Data(c, sess)
	data.Ranked = aggregate.RankByRemaining(data.Page.Clusters)
	h.site.HTML(c, render.PageQuota, data)
}

// HandlerSelectCluster changes the selected cluster and goes back.
func (h *handler) HandlerSelectCluster(c *gin.Context) {
	sess, ok := h.site.Session(c)
	if !ok {
		return
	}
	id := c.PostForm("id")
	if !sess.View.SelectCluster(id) {
		sess.View.Notify("Cluster " + id + " is not in the current snapshot.")
	}
	site.SeeOther(c, h.site.ReturnTo(c, h.site.URL("/quota")))
}

func (h *handler) summaries() []aggregate.ClusterSummary {
	cs, _ := h.site.Store.Clusters()
	return aggregate.Clusters(cs)
}

// @Summary 获取集群列表
// @Description 返回所有集群的汇总（队列、节点、核时用量、建议队列），按剩余核时百分比降序
// @Tags clusters
// @Produce json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/clusters [get]
func (h *handler) HandlerListClusters(c *gin.Context) {
	if h.site.Store == nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "cluster store not initialized"})
		return
	}
	ranked := aggregate.RankByRemaining(h.summaries())
	total := len(ranked)
	c.JSON(http.StatusOK, response.Response{Count: &total, Results: ranked})
}

// @Summary 获取单个集群
// @Description 按集群 URI（需 URL 编码）或名称获取集群汇总，节点列表不含聚合行
// @Tags clusters
// @Produce json
// @Param id path string true "集群 URI 或名称"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/clusters/{id} [get]
func (h *handler) HandlerGetCluster(c *gin.Context) {
	if h.site.Store == nil {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "cluster store not initialized"})
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	for _, s := range h.summaries() {
		if s.ID == id || strings.EqualFold(s.Name, id) {
			c.JSON(http.StatusOK, response.Response{Results: s})
			return
		}
	}
	c.JSON(http.StatusNotFound, response.Response{Detail: "cluster not found"})
}
