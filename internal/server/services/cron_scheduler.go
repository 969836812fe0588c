package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"knotstats/internal/server/metrics"
	"knotstats/internal/shared/config"
	"knotstats/internal/shared/logging"

	"github.com/robfig/cron/v3"
)

var schedLog = logging.Logger("scheduler")

// ProbeStatus 最近一次上游探测结果
type ProbeStatus struct {
	Up        bool      `json:"up"`
	Kind      string    `json:"kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	Latency   string    `json:"latency"`
	CheckedAt time.Time `json:"checked_at"`
}

// CronScheduler 定时任务调度器
type CronScheduler struct {
	cron    *cron.Cron
	proxy   *StatsProxyService
	journal *JournalService
	metrics *metrics.Metrics

	probeSpec string
	pruneSpec string
	retention time.Duration

	mu        sync.RWMutex
	lastProbe *ProbeStatus
}

// NewCronScheduler 创建定时任务调度器
func NewCronScheduler(cfg *config.ServerConfig, proxy *StatsProxyService, journal *JournalService, m *metrics.Metrics) *CronScheduler {
	// 创建cron实例，支持秒级精度，上一次未结束时跳过
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &CronScheduler{
		cron:      c,
		proxy:     proxy,
		journal:   journal,
		metrics:   m,
		probeSpec: cfg.Scheduler.ProbeSpec,
		pruneSpec: cfg.Scheduler.PruneSpec,
		retention: cfg.Database.JournalRetention,
	}
}

// Start 启动定时任务调度器
func (cs *CronScheduler) Start() error {
	if cs.probeSpec != "" && cs.proxy != nil {
		if _, err := cs.cron.AddFunc(cs.probeSpec, cs.Probe); err != nil {
			return fmt.Errorf("添加上游探测任务失败: %w", err)
		}
	}

	if cs.pruneSpec != "" && cs.journal != nil {
		if _, err := cs.cron.AddFunc(cs.pruneSpec, cs.PruneJournal); err != nil {
			return fmt.Errorf("添加记录清理任务失败: %w", err)
		}
	}

	cs.cron.Start()
	schedLog.Infow("定时任务调度器已启动", "probe", cs.probeSpec, "prune", cs.pruneSpec)
	return nil
}

// Stop 停止定时任务调度器，等待运行中的任务结束
func (cs *CronScheduler) Stop() {
	ctx := cs.cron.Stop()
	<-ctx.Done()
	schedLog.Info("定时任务调度器已停止")
}

// Probe 请求一次上游指标并记录结果
func (cs *CronScheduler) Probe() {
	start := time.Now()
	_, err := cs.proxy.Fetch(context.Background())

	status := &ProbeStatus{
		Up:        err == nil,
		Latency:   time.Since(start).Round(time.Millisecond).String(),
		CheckedAt: start,
	}
	if err != nil {
		status.Error = err.Error()
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			status.Kind = string(upErr.Kind)
			status.Error = upErr.Message
		}
	}

	cs.mu.Lock()
	cs.lastProbe = status
	cs.mu.Unlock()

	cs.metrics.SetUpstreamUp(status.Up)
}

// LastProbe 返回最近一次探测结果，尚未探测时返回false
func (cs *CronScheduler) LastProbe() (ProbeStatus, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.lastProbe == nil {
		return ProbeStatus{}, false
	}
	return *cs.lastProbe, true
}

// PruneJournal 清理过期的保存记录
func (cs *CronScheduler) PruneJournal() {
	n, err := cs.journal.Prune(cs.retention)
	if err != nil {
		schedLog.Errorw("清理保存记录失败", "error", err)
		return
	}
	if n > 0 {
		schedLog.Infow("已清理过期保存记录", "count", n)
	}
}

// GetStats 获取调度器统计信息
func (cs *CronScheduler) GetStats() map[string]interface{} {
	entries := cs.cron.Entries()

	var jobStats []map[string]interface{}
	for i, entry := range entries {
		jobStats = append(jobStats, map[string]interface{}{
			"job_id":   i + 1,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"total_jobs": len(entries),
		"jobs":       jobStats,
	}
}
