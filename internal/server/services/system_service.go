package services

import (
	"context"
	"fmt"
	"time"

	"knotstats/internal/shared/utils"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// CPU使用率采样间隔
const cpuSampleInterval = 200 * time.Millisecond

// SystemService 面板所在主机的资源信息
type SystemService struct {
	startTime time.Time
	diskPath  string
}

// NewSystemService 创建系统信息服务
func NewSystemService(diskPath string) *SystemService {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemService{
		startTime: time.Now(),
		diskPath:  diskPath,
	}
}

// SystemInfo 系统资源信息
type SystemInfo struct {
	Hostname        string `json:"hostname"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	HostUptime      string `json:"host_uptime"`
	ProcessUptime   string `json:"process_uptime"`

	CPUCount int     `json:"cpu_count"`
	CPUUsage float64 `json:"cpu_usage"`
	Load1    float64 `json:"load1"`
	Load5    float64 `json:"load5"`
	Load15   float64 `json:"load15"`

	MemoryUsage     float64 `json:"memory_usage"`
	MemoryTotal     uint64  `json:"memory_total"`
	MemoryUsed      uint64  `json:"memory_used"`
	MemoryTotalText string  `json:"memory_total_text"`
	MemoryUsedText  string  `json:"memory_used_text"`

	DiskPath      string  `json:"disk_path"`
	DiskUsage     float64 `json:"disk_usage"`
	DiskTotal     uint64  `json:"disk_total"`
	DiskUsed      uint64  `json:"disk_used"`
	DiskTotalText string  `json:"disk_total_text"`
	DiskUsedText  string  `json:"disk_used_text"`
}

// GetSystemInfo 获取系统资源信息
func (ss *SystemService) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	info := &SystemInfo{
		ProcessUptime: utils.FormatUptime(time.Since(ss.startTime)),
		DiskPath:      ss.diskPath,
	}

	// 主机信息
	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取主机信息失败: %w", err)
	}
	info.Hostname = hostInfo.Hostname
	info.Platform = hostInfo.Platform
	info.PlatformVersion = hostInfo.PlatformVersion
	info.KernelVersion = hostInfo.KernelVersion
	info.HostUptime = utils.FormatUptime(time.Duration(hostInfo.Uptime) * time.Second)

	// 获取CPU使用率
	cpuPercent, err := cpu.PercentWithContext(ctx, cpuSampleInterval, false)
	if err != nil {
		return nil, fmt.Errorf("获取CPU使用率失败: %w", err)
	}
	if len(cpuPercent) > 0 {
		info.CPUUsage = cpuPercent[0]
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUCount = n
	}

	// 负载在部分平台上不可用
	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.Load1, info.Load5, info.Load15 = avg.Load1, avg.Load5, avg.Load15
	}

	// 获取内存信息
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取内存信息失败: %w", err)
	}
	info.MemoryUsage = memInfo.UsedPercent
	info.MemoryTotal = memInfo.Total
	info.MemoryUsed = memInfo.Used
	info.MemoryTotalText = utils.FormatBytes(memInfo.Total)
	info.MemoryUsedText = utils.FormatBytes(memInfo.Used)

	// 获取磁盘信息
	diskInfo, err := disk.UsageWithContext(ctx, ss.diskPath)
	if err != nil {
		return nil, fmt.Errorf("获取磁盘信息失败: %w", err)
	}
	info.DiskUsage = diskInfo.UsedPercent
	info.DiskTotal = diskInfo.Total
	info.DiskUsed = diskInfo.Used
	info.DiskTotalText = utils.FormatBytes(diskInfo.Total)
	info.DiskUsedText = utils.FormatBytes(diskInfo.Used)

	return info, nil
}

// ProcessUptime 进程运行时长
func (ss *SystemService) ProcessUptime() time.Duration {
	return time.Since(ss.startTime)
}
