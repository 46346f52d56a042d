package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// 同步结果常量
const (
	SyncOutcomeSuccess    = "success"
	SyncOutcomeFailure    = "failure"
	SyncOutcomeInProgress = "in_progress"
)

// CategoryRecord 类目缓存表
// 同步时按页批量覆盖写入，单条记录从不单独修改
type CategoryRecord struct {
	BaseModel

	Marketplace string `gorm:"size:20;uniqueIndex:idx_marketplace_category;not null;default:'EBAY_US'"`
	CategoryID  string `gorm:"size:32;uniqueIndex:idx_marketplace_category;not null"` // eBay 类目 ID
	Path        string `gorm:"type:text"`                                             // 如 "Clothing > Men > Shoes"
	Leaf        bool   `gorm:"default:false"`

	// 物品属性要求，只存名称列表（保持插入顺序，允许为空）
	// 缓存不含值类型元数据，读取时统一降级为自由文本
	RequiredAspects  pq.StringArray `gorm:"type:text[]"`
	SuggestedAspects pq.StringArray `gorm:"type:text[]"`
}

func (CategoryRecord) TableName() string {
	return "category_records"
}

// SyncState 每个市场范围一条的同步元数据
type SyncState struct {
	Marketplace    string         `gorm:"primaryKey;size:20"`
	RecordCount    int64          `gorm:"default:0;comment:已缓存类目数"`
	LastFullSyncAt *time.Time     `gorm:"comment:最近一次全量同步完成时间"`
	Outcome        string         `gorm:"size:20;default:''"` // success / failure / in_progress
	LastError      string         `gorm:"type:text"`          // 最近失败详情
	LastCursor     string         `gorm:"size:255"`           // 失败页游标，便于排查/续传
	Stats          datatypes.JSON `gorm:"type:jsonb"`         // 本轮统计
	UpdatedAt      time.Time
}

func (SyncState) TableName() string {
	return "sync_states"
}
