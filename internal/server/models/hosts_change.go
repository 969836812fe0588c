package models

import (
	"time"
)

// 重新加载状态
const (
	ReloadStatusOK      = "ok"
	ReloadStatusFailed  = "failed"
	ReloadStatusSkipped = "skipped"
)

// HostsChange 一次已接受的hosts文件保存记录
type HostsChange struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	EntryCount   int       `json:"entry_count" gorm:"not null"`
	ReloadStatus string    `json:"reload_status" gorm:"size:16;not null"`
	ReloadError  string    `json:"reload_error,omitempty" gorm:"size:1000"`
	ClientIP     string    `json:"client_ip" gorm:"size:64"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// TableName 指定表名
func (HostsChange) TableName() string {
	return "hosts_changes"
}
