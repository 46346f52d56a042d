package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 业务表共用的主键与时间戳字段
// 账号、用户等实体删除均走软删除，方便排查授权历史
type BaseModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
