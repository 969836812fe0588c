package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"knotstats/internal/server/services"
	"knotstats/internal/shared/hostsfile"
	"knotstats/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// HostsHandler hosts文件处理器
type HostsHandler struct {
	hostsService   *services.HostsService
	journalService *services.JournalService
}

// NewHostsHandler 创建hosts文件处理器
func NewHostsHandler(hostsService *services.HostsService, journalService *services.JournalService) *HostsHandler {
	return &HostsHandler{
		hostsService:   hostsService,
		journalService: journalService,
	}
}

// SaveHostsRequest 保存hosts请求
type SaveHostsRequest struct {
	Hosts []hostsfile.Entry `json:"hosts"`
}

// GetHosts 获取hosts记录
func (hh *HostsHandler) GetHosts(c *gin.Context) {
	list, err := hh.hostsService.List()
	if err != nil {
		log.Errorw("读取hosts文件失败", "path", hh.hostsService.Path(), "error", err)
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, list)
}

// SaveHosts 整体覆盖hosts文件
func (hh *HostsHandler) SaveHosts(c *gin.Context) {
	// 表单和 text/plain 请求可以由其他站点的页面直接提交
	if c.ContentType() != binding.MIMEJSON {
		response.Error(c, http.StatusUnsupportedMediaType, "请求类型必须是 "+binding.MIMEJSON)
		return
	}

	var req SaveHostsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求格式错误: "+err.Error())
		return
	}

	result, err := hh.hostsService.Save(c.Request.Context(), req.Hosts, c.ClientIP())
	if err != nil {
		if errors.Is(err, services.ErrInvalidHosts) {
			response.BadRequest(c, err.Error())
			return
		}
		log.Errorw("保存hosts文件失败", "path", hh.hostsService.Path(), "error", err)
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// GetHistory 获取最近的保存记录
func (hh *HostsHandler) GetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultHistoryLimit)))
	if err != nil || limit < 1 {
		limit = services.DefaultHistoryLimit
	}

	changes, err := hh.journalService.Recent(limit)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"changes": changes})
}
