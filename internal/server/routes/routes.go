package routes

import (
	"net/http"
	"path/filepath"

	"knotstats/internal/server/handlers"
	"knotstats/internal/server/metrics"
	"knotstats/internal/server/middleware"
	"knotstats/internal/server/services"
	"knotstats/internal/shared/config"
	"knotstats/internal/shared/logging"
	"knotstats/internal/shared/response"
	"knotstats/internal/shared/utils"

	"github.com/gin-gonic/gin"
)

var log = logging.Logger("server")

// Dependencies 路由所需的服务
type Dependencies struct {
	Config    *config.ServerConfig
	Proxy     *services.StatsProxyService
	Hosts     *services.HostsService
	Journal   *services.JournalService
	System    *services.SystemService
	Scheduler *services.CronScheduler
	Metrics   *metrics.Metrics
	Version   string
}

// SetupRoutes 设置服务端路由
func SetupRoutes(deps Dependencies) *gin.Engine {
	r := gin.New()

	// 全局中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Recovery())
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = deps.Config.App.AllowOrigins
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.SecurityHeaders())

	// 创建处理器
	statsHandler := handlers.NewStatsHandler(deps.Proxy)
	hostsHandler := handlers.NewHostsHandler(deps.Hosts, deps.Journal)
	systemHandler := handlers.NewSystemHandler(deps.System, deps.Journal, deps.Scheduler, deps.Version)

	// 健康检查
	r.GET("/health", systemHandler.Health)

	if deps.Metrics != nil && deps.Config.Metrics.Enabled {
		r.GET(deps.Config.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}

	// 设置静态文件和模板
	hasTemplates := setupStaticAndTemplates(r)

	// 设置页面路由
	setupPageRoutes(r, deps, hasTemplates)

	// 设置API路由
	setupAPIRoutes(r, deps.Config, statsHandler, hostsHandler, systemHandler)

	return r
}

// setupStaticAndTemplates 设置静态文件和模板，返回是否找到模板
func setupStaticAndTemplates(r *gin.Engine) bool {
	// 智能查找静态文件和模板路径
	staticPath := utils.FindWebPath("server/static")
	templatesPath := utils.FindWebPath("server/templates")

	r.Static("/static", staticPath)

	files, _ := filepath.Glob(filepath.Join(templatesPath, "*.html"))
	if len(files) == 0 {
		log.Warnw("未找到页面模板，仅提供API", "path", templatesPath)
		return false
	}

	log.Debugw("加载页面模板", "static", staticPath, "templates", files)
	r.LoadHTMLFiles(files...)
	return true
}

// setupPageRoutes 设置页面路由
func setupPageRoutes(r *gin.Engine, deps Dependencies, hasTemplates bool) {
	r.GET("/", func(c *gin.Context) {
		if !hasTemplates {
			response.ServiceUnavailable(c, "页面模板未安装，请使用 /api 接口")
			return
		}
		c.HTML(http.StatusOK, "index.html", gin.H{
			"title":     deps.Config.App.Name,
			"version":   deps.Version,
			"hostsPath": deps.Hosts.Path(),
			"statsURL":  deps.Proxy.StatsURL(),
		})
	})

	// 兼容性重定向路由
	r.GET("/index.html", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/")
	})

	// 404处理
	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "")
	})
}

// setupAPIRoutes 设置API路由
func setupAPIRoutes(
	r *gin.Engine,
	cfg *config.ServerConfig,
	statsHandler *handlers.StatsHandler,
	hostsHandler *handlers.HostsHandler,
	systemHandler *handlers.SystemHandler,
) {
	api := r.Group("/api")
	{
		// 统计相关
		api.GET("/stats", statsHandler.GetStats)
		api.GET("/stats/view", statsHandler.GetView)

		// hosts文件相关，写操作可选基本认证
		api.GET("/hosts", hostsHandler.GetHosts)
		api.GET("/hosts/history", hostsHandler.GetHistory)
		api.POST("/hosts", middleware.BasicAuth(cfg.Auth.Username, cfg.Auth.PasswordHash), hostsHandler.SaveHosts)

		// 系统相关
		api.GET("/system", systemHandler.GetSystem)
	}
}
