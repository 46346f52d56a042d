package model

import (
	"time"

	"github.com/lib/pq"
)

// Token 状态常量
const (
	TokenStatusValid   = "valid"        // 有效
	TokenStatusExpired = "expired"      // 已过期，可尝试 refresh
	TokenStatusInvalid = "auth_invalid" // refresh token 失效，需重新授权
)

// 市场范围常量
const (
	DefaultMarketplace = "EBAY_US"
)

// EbayAccount eBay 授权账号表
// 每个 (系统用户, 市场) 组合最多一条记录，连接状态由 Token 派生，不单独落库
type EbayAccount struct {
	BaseModel

	// 1. 核心身份
	SysUserID   int64  `gorm:"index;uniqueIndex:idx_user_marketplace;not null"` // 关联系统用户
	Marketplace string `gorm:"size:20;uniqueIndex:idx_user_marketplace;not null;default:'EBAY_US'"`

	// eBay 平台身份
	EbayUserID   string `gorm:"size:64;index"`  // 对应 eBay 平台的 user_id
	EbayUsername string `gorm:"size:100"`       // 授权成功后通过 identity API 回填

	// 2. OAuth Token
	// 周期检测 token 是否过期
	TokenStatus    string         `gorm:"index;size:20;default:'auth_invalid'"`
	AccessToken    string         `gorm:"type:text"`
	RefreshToken   string         `gorm:"type:text"`
	TokenExpiresAt time.Time      // Token 具体的过期时间点
	Scopes         pq.StringArray `gorm:"type:text[]"` // 授权 scope 集合

	// 3. 刊登用业务策略 ID (可选，刊登前在 eBay 后台配置)
	FulfillmentPolicyID string `gorm:"size:64"`
	PaymentPolicyID     string `gorm:"size:64"`
	ReturnPolicyID      string `gorm:"size:64"`
}

func (EbayAccount) TableName() string {
	return "ebay_accounts"
}

// IsConnected 派生连接状态
// 规则：access token 未过期，或持有可用的 refresh token
func (a *EbayAccount) IsConnected(now time.Time) bool {
	if a.TokenStatus == TokenStatusInvalid {
		return false
	}
	if a.AccessToken != "" && a.TokenExpiresAt.After(now) {
		return true
	}
	return a.RefreshToken != ""
}
