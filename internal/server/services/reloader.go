package services

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"knotstats/internal/server/models"
	"knotstats/internal/shared/config"

	"github.com/coreos/go-systemd/v22/dbus"
)

// ReloadResult 重新加载结果
type ReloadResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OK 是否重新加载成功
func (r ReloadResult) OK() bool {
	return r.Status == models.ReloadStatusOK
}

func reloadFailed(err error) ReloadResult {
	return ReloadResult{Status: models.ReloadStatusFailed, Error: err.Error()}
}

// Reloader 通知解析器重新读取hosts文件
type Reloader interface {
	Reload(ctx context.Context) ReloadResult
}

// NewReloader 根据配置创建重新加载器
func NewReloader(cfg *config.ServerConfig) (Reloader, error) {
	switch cfg.Hosts.ReloadMethod {
	case config.ReloadCommand, "":
		return NewCommandReloader(cfg.Hosts.ReloadCommand, cfg.Hosts.ReloadTimeout), nil
	case config.ReloadSystemd:
		return NewSystemdReloader(cfg.Resolver.ServiceName, cfg.Hosts.ReloadTimeout), nil
	case config.ReloadNone:
		return NoopReloader{}, nil
	}
	return nil, fmt.Errorf("不支持的重新加载方式: %s", cfg.Hosts.ReloadMethod)
}

// CommandReloader 执行外部命令重新加载，默认 sudo systemctl reload knot-resolver
type CommandReloader struct {
	argv    []string
	timeout time.Duration
}

// NewCommandReloader 创建命令重新加载器
func NewCommandReloader(argv []string, timeout time.Duration) *CommandReloader {
	return &CommandReloader{argv: argv, timeout: timeout}
}

// Reload 执行重新加载命令
func (r *CommandReloader) Reload(ctx context.Context) ReloadResult {
	if len(r.argv) == 0 {
		return reloadFailed(errors.New("未配置重新加载命令"))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if msg != "" {
			return reloadFailed(fmt.Errorf("执行 %s 失败: %w: %s", strings.Join(r.argv, " "), err, msg))
		}
		return reloadFailed(fmt.Errorf("执行 %s 失败: %w", strings.Join(r.argv, " "), err))
	}

	return ReloadResult{Status: models.ReloadStatusOK}
}

// SystemdReloader 通过 D-Bus 请求 systemd 重新加载解析器服务
type SystemdReloader struct {
	unit    string
	timeout time.Duration
}

// NewSystemdReloader 创建 systemd 重新加载器
func NewSystemdReloader(unit string, timeout time.Duration) *SystemdReloader {
	return &SystemdReloader{unit: unit, timeout: timeout}
}

// Reload 调用 ReloadUnit 并等待任务完成
func (r *SystemdReloader) Reload(ctx context.Context) ReloadResult {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return reloadFailed(fmt.Errorf("连接 systemd 失败: %w", err))
	}
	defer conn.Close()

	done := make(chan string, 1)
	if _, err := conn.ReloadUnitContext(ctx, r.unit, "replace", done); err != nil {
		return reloadFailed(fmt.Errorf("重新加载 %s 失败: %w", r.unit, err))
	}

	select {
	case result := <-done:
		if result != "done" {
			return reloadFailed(fmt.Errorf("重新加载 %s 未完成: %s", r.unit, result))
		}
	case <-ctx.Done():
		return reloadFailed(fmt.Errorf("等待 %s 重新加载超时: %w", r.unit, ctx.Err()))
	}

	return ReloadResult{Status: models.ReloadStatusOK}
}

// NoopReloader 不执行重新加载
type NoopReloader struct{}

// Reload 直接返回 skipped
func (NoopReloader) Reload(context.Context) ReloadResult {
	return ReloadResult{Status: models.ReloadStatusSkipped}
}
