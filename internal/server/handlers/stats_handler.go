package handlers

import (
	"errors"

	"knotstats/internal/server/services"
	"knotstats/internal/shared/response"

	"github.com/gin-gonic/gin"
)

// StatsHandler 解析器统计处理器
type StatsHandler struct {
	proxy *services.StatsProxyService
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(proxy *services.StatsProxyService) *StatsHandler {
	return &StatsHandler{
		proxy: proxy,
	}
}

// GetStats 原样转发解析器的JSON指标
func (sh *StatsHandler) GetStats(c *gin.Context) {
	body, err := sh.proxy.Fetch(c.Request.Context())
	if err != nil {
		writeUpstreamError(c, err)
		return
	}

	response.RawJSON(c, body)
}

// GetView 返回指定实例格式化后的统计和图表数据
func (sh *StatsHandler) GetView(c *gin.Context) {
	view, err := sh.proxy.View(c.Request.Context(), c.Query("instance"))
	if err != nil {
		writeUpstreamError(c, err)
		return
	}

	response.Success(c, view)
}

// writeUpstreamError 按错误类型返回对应状态码
func writeUpstreamError(c *gin.Context, err error) {
	var upErr *services.UpstreamError
	if errors.As(err, &upErr) {
		response.Error(c, upErr.HTTPStatus(), upErr.Message)
		return
	}

	log.Errorw("处理统计数据失败", "error", err)
	response.InternalError(c, err.Error())
}
