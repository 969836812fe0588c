package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"knotstats/internal/server/database"
	"knotstats/internal/server/metrics"
	"knotstats/internal/server/routes"
	"knotstats/internal/server/services"
	"knotstats/internal/shared/logging"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var log = logging.Logger("main")

const shutdownTimeout = 10 * time.Second

// runServe 启动HTTP服务并阻塞到收到退出信号
func runServe(cmd *cobra.Command, opts *cliOptions) error {
	cfg, configPath, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Infow("启动服务", "app", AppName, "version", version, "config", configPath)

	// 设置Gin模式
	gin.SetMode(cfg.App.Mode)

	// 修改记录只是附加功能，数据库不可用时继续提供面板
	var journal *services.JournalService
	dbPath, err := filepath.Abs(cfg.Database.Path)
	if err != nil {
		dbPath = cfg.Database.Path
	}
	if err := database.InitDatabase(dbPath); err != nil {
		log.Warnw("数据库不可用，hosts修改记录已禁用", "path", dbPath, "error", err)
		journal = services.NewJournalService(nil)
	} else {
		log.Infow("数据库初始化成功", "path", dbPath)
		journal = services.NewJournalService(database.DB)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Warnw("关闭数据库连接失败", "error", err)
		}
	}()

	// 创建服务层
	m := metrics.New(version)
	proxy := services.NewStatsProxyService(cfg, m)

	reloader, err := services.NewReloader(cfg)
	if err != nil {
		return err
	}
	hosts := services.NewHostsService(cfg.Hosts.Path, reloader, journal, m)
	system := services.NewSystemService("/")

	scheduler := services.NewCronScheduler(cfg, proxy, journal, m)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("启动定时任务调度器失败: %w", err)
	}
	defer scheduler.Stop()
	go scheduler.Probe()

	router := routes.SetupRoutes(routes.Dependencies{
		Config:    cfg,
		Proxy:     proxy,
		Hosts:     hosts,
		Journal:   journal,
		System:    system,
		Scheduler: scheduler,
		Metrics:   m,
		Version:   version,
	})

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           cfg.App.Listen,
		Handler:        router,
		ReadTimeout:    cfg.App.ReadTimeout,
		WriteTimeout:   cfg.App.WriteTimeout,
		IdleTimeout:    cfg.App.IdleTimeout,
		MaxHeaderBytes: cfg.App.MaxHeaderBytes << 20, // MB to bytes
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("HTTP服务器启动",
			"listen", cfg.App.Listen,
			"stats_url", proxy.StatsURL(),
			"hosts_file", hosts.Path(),
			"reload_method", cfg.Hosts.ReloadMethod,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	notifySystemd(daemon.SdNotifyReady)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Infow("正在关闭服务器...", "signal", sig.String())
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("HTTP服务器启动失败: %w", err)
		}
	}

	notifySystemd(daemon.SdNotifyStopping)
	return gracefulShutdown(server)
}

// gracefulShutdown 优雅关闭服务器
func gracefulShutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("关闭HTTP服务器失败: %w", err)
	}

	log.Info("服务器已关闭")
	return nil
}

// notifySystemd 以 Type=notify 方式运行时通知 systemd，其他情况下什么也不做
func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Debugw("通知systemd失败", "state", state, "error", err)
		return
	}
	if sent {
		log.Debugw("已通知systemd", "state", state)
	}
}
