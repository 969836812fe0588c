// Package handlers 实现面板的HTTP接口
package handlers

import (
	"net/http"

	"knotstats/internal/server/services"
	"knotstats/internal/shared/logging"
	"knotstats/internal/shared/response"
	"knotstats/internal/shared/utils"

	"github.com/gin-gonic/gin"
)

var log = logging.Logger("handlers")

// SystemHandler 系统信息与健康检查处理器
type SystemHandler struct {
	systemService  *services.SystemService
	journalService *services.JournalService
	scheduler      *services.CronScheduler
	version        string
}

// NewSystemHandler 创建系统信息处理器，scheduler可以为nil
func NewSystemHandler(systemService *services.SystemService, journalService *services.JournalService, scheduler *services.CronScheduler, version string) *SystemHandler {
	return &SystemHandler{
		systemService:  systemService,
		journalService: journalService,
		scheduler:      scheduler,
		version:        version,
	}
}

// HealthCheck 健康检查项
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthInfo 健康检查结果
type HealthInfo struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version"`
	Uptime   string                 `json:"uptime"`
	Checks   map[string]HealthCheck `json:"checks"`
	Upstream *services.ProbeStatus  `json:"upstream,omitempty"`
	Jobs     map[string]interface{} `json:"jobs,omitempty"`
}

// GetSystem 获取面板所在主机的资源信息
func (sh *SystemHandler) GetSystem(c *gin.Context) {
	info, err := sh.systemService.GetSystemInfo(c.Request.Context())
	if err != nil {
		response.InternalError(c, "获取系统信息失败: "+err.Error())
		return
	}

	response.Success(c, info)
}

// Health 进程存活即返回200，上游和数据库状态只影响 status 字段
func (sh *SystemHandler) Health(c *gin.Context) {
	health := &HealthInfo{
		Status:  "ok",
		Version: sh.version,
		Uptime:  utils.FormatUptime(sh.systemService.ProcessUptime()),
		Checks:  make(map[string]HealthCheck),
	}

	// 检查数据库连接
	if !sh.journalService.Enabled() {
		health.Checks["database"] = HealthCheck{Status: "disabled"}
	} else if err := sh.journalService.Ping(); err != nil {
		health.Checks["database"] = HealthCheck{Status: "error", Message: err.Error()}
		health.Status = "degraded"
	} else {
		health.Checks["database"] = HealthCheck{Status: "ok"}
	}

	if sh.scheduler != nil {
		health.Jobs = sh.scheduler.GetStats()
		if probe, ok := sh.scheduler.LastProbe(); ok {
			health.Upstream = &probe
			if probe.Up {
				health.Checks["upstream"] = HealthCheck{Status: "ok"}
			} else {
				health.Checks["upstream"] = HealthCheck{Status: "error", Message: probe.Error}
				health.Status = "degraded"
			}
		}
	}

	c.JSON(http.StatusOK, health)
}
