package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"knotstats/internal/server/metrics"
	"knotstats/internal/server/models"
	"knotstats/internal/shared/hostsfile"
	"knotstats/internal/shared/logging"
	"knotstats/internal/shared/utils"

	"github.com/facebookgo/atomicfile"
)

var hostsLog = logging.Logger("hosts")

// ErrInvalidHosts 提交的hosts记录无效
var ErrInvalidHosts = errors.New("hosts记录无效")

// 提示信息
const (
	MsgHostsMissing  = "hosts文件尚不存在，添加记录后会自动创建"
	MsgHostsEmpty    = "hosts文件中没有任何记录"
	MsgHostsSaved    = "hosts文件已更新"
	MsgReloadFailed  = "，但重新加载 Knot Resolver 失败"
	MsgReloadSkipped = "（未配置自动重新加载）"
)

const hostsFileMode = 0644

// HostsList 读取结果
type HostsList struct {
	Hosts   []hostsfile.Entry `json:"hosts"`
	Message string            `json:"message,omitempty"`
}

// SaveResult 保存结果
type SaveResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Reload  ReloadResult `json:"reload"`
}

// HostsService hosts文件服务
type HostsService struct {
	path     string
	reloader Reloader
	journal  *JournalService
	metrics  *metrics.Metrics
}

// NewHostsService 创建hosts文件服务
func NewHostsService(path string, reloader Reloader, journal *JournalService, m *metrics.Metrics) *HostsService {
	if reloader == nil {
		reloader = NoopReloader{}
	}
	return &HostsService{
		path:     path,
		reloader: reloader,
		journal:  journal,
		metrics:  m,
	}
}

// Path 返回hosts文件路径
func (hs *HostsService) Path() string {
	return hs.path
}

// List 读取并解析hosts文件
func (hs *HostsService) List() (*HostsList, error) {
	data, err := os.ReadFile(hs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &HostsList{Hosts: []hostsfile.Entry{}, Message: MsgHostsMissing}, nil
		}
		return nil, fmt.Errorf("读取hosts文件失败: %w", err)
	}

	entries, err := hostsfile.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	list := &HostsList{Hosts: entries}
	if len(entries) == 0 {
		list.Message = MsgHostsEmpty
	}
	return list, nil
}

// Save 校验后整体覆盖hosts文件，然后通知解析器重新加载
// 校验失败时返回 ErrInvalidHosts，文件保持不变
func (hs *HostsService) Save(ctx context.Context, entries []hostsfile.Entry, clientIP string) (*SaveResult, error) {
	if err := hostsfile.Validate(entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHosts, err)
	}
	entries = hostsfile.Normalize(entries)

	if err := hs.write(hostsfile.Format(entries)); err != nil {
		return nil, err
	}
	hostsLog.Infow("hosts文件已写入", "path", hs.path, "entries", len(entries), "client", clientIP)

	// 客户端断开不应中断重新加载
	reload := hs.reloader.Reload(context.WithoutCancel(ctx))
	if reload.Status == models.ReloadStatusFailed {
		hostsLog.Warnw("重新加载 Knot Resolver 失败", "error", reload.Error)
	}
	hs.metrics.ObserveHostsSave(reload.Status)

	if hs.journal != nil {
		change := &models.HostsChange{
			EntryCount:   len(entries),
			ReloadStatus: reload.Status,
			ReloadError:  reload.Error,
			ClientIP:     clientIP,
		}
		if err := hs.journal.Record(change); err != nil {
			hostsLog.Errorw("记录hosts保存失败", "error", err)
		}
	}

	message := MsgHostsSaved
	switch reload.Status {
	case models.ReloadStatusFailed:
		message += MsgReloadFailed
	case models.ReloadStatusSkipped:
		message += MsgReloadSkipped
	}

	return &SaveResult{Success: true, Message: message, Reload: reload}, nil
}

// write 先写临时文件再重命名，避免解析器读到半个文件
func (hs *HostsService) write(content []byte) error {
	if err := utils.EnsureDirForFile(hs.path); err != nil {
		return fmt.Errorf("创建hosts目录失败: %w", err)
	}

	f, err := atomicfile.New(hs.path, hostsFileMode)
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		f.Abort()
		return fmt.Errorf("写入hosts文件失败: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("保存hosts文件失败: %w", err)
	}
	return nil
}
