package services

import (
	"fmt"
	"time"

	"knotstats/internal/server/models"

	"gorm.io/gorm"
)

// 历史记录查询条数
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// JournalService hosts保存记录服务
type JournalService struct {
	db *gorm.DB
}

// NewJournalService 创建保存记录服务，db为nil时不记录
func NewJournalService(db *gorm.DB) *JournalService {
	return &JournalService{db: db}
}

// Enabled 是否有可用的数据库
func (js *JournalService) Enabled() bool {
	return js.db != nil
}

// Record 写入一条保存记录
func (js *JournalService) Record(change *models.HostsChange) error {
	if js.db == nil {
		return nil
	}
	if err := js.db.Create(change).Error; err != nil {
		return fmt.Errorf("写入保存记录失败: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近的记录
func (js *JournalService) Recent(limit int) ([]models.HostsChange, error) {
	changes := make([]models.HostsChange, 0)
	if js.db == nil {
		return changes, nil
	}

	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	if err := js.db.Order("created_at DESC, id DESC").Limit(limit).Find(&changes).Error; err != nil {
		return nil, fmt.Errorf("查询保存记录失败: %w", err)
	}
	return changes, nil
}

// Prune 删除早于保留期限的记录，返回删除条数
func (js *JournalService) Prune(retention time.Duration) (int64, error) {
	if js.db == nil || retention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-retention)
	result := js.db.Where("created_at < ?", cutoff).Delete(&models.HostsChange{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理保存记录失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Ping 检查数据库连接
func (js *JournalService) Ping() error {
	if js.db == nil {
		return nil
	}
	return js.db.Exec("SELECT 1").Error
}
