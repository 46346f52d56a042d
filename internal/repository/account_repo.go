package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ebay_link_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// AccountRepository eBay 账号凭证仓储接口 (Token Store)
// 无业务逻辑；保证单条凭证的写入是全有或全无的
type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*model.EbayAccount, error)
	GetBySysUser(ctx context.Context, sysUserID int64, marketplace string) (*model.EbayAccount, error)
	Upsert(ctx context.Context, account *model.EbayAccount) error
	Clear(ctx context.Context, id int64) error
	UpdateTokenStatus(ctx context.Context, id int64, tokenStatus string) error
	FindExpiring(ctx context.Context, within time.Duration) ([]model.EbayAccount, error)
	ListBySysUser(ctx context.Context, sysUserID int64) ([]model.EbayAccount, error)
}

// ==================== 仓储实现 ====================

type accountRepo struct {
	db *gorm.DB
}

// NewAccountRepository 创建账号仓储
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) GetByID(ctx context.Context, id int64) (*model.EbayAccount, error) {
	var account model.EbayAccount
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) GetBySysUser(ctx context.Context, sysUserID int64, marketplace string) (*model.EbayAccount, error) {
	var account model.EbayAccount
	err := r.db.WithContext(ctx).
		Where("sys_user_id = ? AND marketplace = ?", sysUserID, marketplace).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Upsert 保存凭证
// 按 (sys_user_id, marketplace) 冲突时整行覆盖，不存在半写状态
func (r *accountRepo) Upsert(ctx context.Context, account *model.EbayAccount) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "sys_user_id"}, {Name: "marketplace"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"ebay_user_id", "ebay_username",
				"token_status", "access_token", "refresh_token", "token_expires_at", "scopes",
				"fulfillment_policy_id", "payment_policy_id", "return_policy_id",
				"updated_at",
			}),
		}).
		Create(account).Error
}

// Clear 显式断开：删除凭证记录
func (r *accountRepo) Clear(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.EbayAccount{}, id).Error
}

func (r *accountRepo) UpdateTokenStatus(ctx context.Context, id int64, tokenStatus string) error {
	return r.db.WithContext(ctx).
		Model(&model.EbayAccount{}).
		Where("id = ?", id).
		Update("token_status", tokenStatus).Error
}

// FindExpiring 查找即将过期且仍可刷新的账号 (保活任务用)
func (r *accountRepo) FindExpiring(ctx context.Context, within time.Duration) ([]model.EbayAccount, error) {
	var accounts []model.EbayAccount
	deadline := time.Now().Add(within)
	err := r.db.WithContext(ctx).
		Model(&model.EbayAccount{}).
		Where("token_status <> ?", model.TokenStatusInvalid).
		Where("refresh_token <> ''").
		Where("token_expires_at < ?", deadline).
		Find(&accounts).Error
	return accounts, err
}

func (r *accountRepo) ListBySysUser(ctx context.Context, sysUserID int64) ([]model.EbayAccount, error) {
	var accounts []model.EbayAccount
	err := r.db.WithContext(ctx).
		Where("sys_user_id = ?", sysUserID).
		Find(&accounts).Error
	return accounts, err
}
