package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ebay_link_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// CatalogRepository 类目缓存仓储接口
// 写入以页为粒度，一页要么全部可见要么完全不可见
type CatalogRepository interface {
	GetByCategoryID(ctx context.Context, marketplace, categoryID string) (*model.CategoryRecord, error)
	Count(ctx context.Context, marketplace string) (int64, error)
	WritePage(ctx context.Context, marketplace string, records []model.CategoryRecord) error

	GetSyncState(ctx context.Context, marketplace string) (*model.SyncState, error)
	MarkInProgress(ctx context.Context, marketplace string) error
	MarkFailure(ctx context.Context, marketplace, detail, cursor string) error
	MarkSuccess(ctx context.Context, marketplace string, count int64, stats datatypes.JSON) error
}

// ==================== 仓储实现 ====================

type catalogRepo struct {
	db *gorm.DB
}

// NewCatalogRepository 创建类目仓储
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) GetByCategoryID(ctx context.Context, marketplace, categoryID string) (*model.CategoryRecord, error) {
	var record model.CategoryRecord
	err := r.db.WithContext(ctx).
		Where("marketplace = ? AND category_id = ?", marketplace, categoryID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *catalogRepo) Count(ctx context.Context, marketplace string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.CategoryRecord{}).
		Where("marketplace = ?", marketplace).
		Count(&count).Error
	return count, err
}

// WritePage 单事务写入一页
// 按 category_id 幂等覆盖，并在同一事务内刷新 SyncState.record_count
// 事务失败整页回滚，不会暴露撕裂的属性列表
func (r *catalogRepo) WritePage(ctx context.Context, marketplace string, records []model.CategoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "marketplace"}, {Name: "category_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"path", "leaf", "required_aspects", "suggested_aspects", "updated_at",
			}),
		}).Create(&records).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.CategoryRecord{}).
			Where("marketplace = ?", marketplace).
			Count(&count).Error; err != nil {
			return err
		}

		return tx.Model(&model.SyncState{}).
			Where("marketplace = ?", marketplace).
			Update("record_count", count).Error
	})
}

func (r *catalogRepo) GetSyncState(ctx context.Context, marketplace string) (*model.SyncState, error) {
	var state model.SyncState
	err := r.db.WithContext(ctx).
		Where("marketplace = ?", marketplace).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 还未同步过：返回零值状态，不算错误
		return &model.SyncState{Marketplace: marketplace}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// MarkInProgress 标记同步开始（不存在则创建）
func (r *catalogRepo) MarkInProgress(ctx context.Context, marketplace string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "marketplace"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"outcome": model.SyncOutcomeInProgress}),
		}).
		Create(&model.SyncState{
			Marketplace: marketplace,
			Outcome:     model.SyncOutcomeInProgress,
		}).Error
}

// MarkFailure 记录失败详情与失败页游标，已写入的页保持原样
func (r *catalogRepo) MarkFailure(ctx context.Context, marketplace, detail, cursor string) error {
	return r.db.WithContext(ctx).
		Model(&model.SyncState{}).
		Where("marketplace = ?", marketplace).
		Updates(map[string]interface{}{
			"outcome":     model.SyncOutcomeFailure,
			"last_error":  detail,
			"last_cursor": cursor,
		}).Error
}

func (r *catalogRepo) MarkSuccess(ctx context.Context, marketplace string, count int64, stats datatypes.JSON) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.SyncState{}).
		Where("marketplace = ?", marketplace).
		Updates(map[string]interface{}{
			"record_count":      count,
			"last_full_sync_at": &now,
			"outcome":           model.SyncOutcomeSuccess,
			"last_error":        "",
			"last_cursor":       "",
			"stats":             stats,
		}).Error
}
