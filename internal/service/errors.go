package service

import "fmt"

// ServiceError 业务错误 (字符串常量即错误)
type ServiceError string

func (e ServiceError) Error() string { return string(e) }

const (
	// ErrAuthRequest 调用方未登录宿主系统，无法发起授权
	ErrAuthRequest ServiceError = "caller is not authenticated to this system"
	// ErrAuthExchange 授权码被 eBay 拒绝，该 code 作废，需重新发起授权
	ErrAuthExchange ServiceError = "ebay rejected the authorization code"
	// ErrRefresh refresh token 已失效，账号降级为未连接
	ErrRefresh ServiceError = "refresh token is invalid, account must be reconnected"
	// ErrNotConnected 账号无可用凭证
	ErrNotConnected ServiceError = "account has no usable ebay credential"
	// ErrSyncConflict 已有同步在进行中
	ErrSyncConflict ServiceError = "a catalog sync is already in flight for this marketplace"
	// ErrStateExpired 授权 state 过期或无效
	ErrStateExpired ServiceError = "authorization state expired or unknown"
)

// SyncError 同步失败，记录失败页游标便于下次续传
// 已写入的页不回滚（按 category_id 幂等覆盖，重跑安全）
type SyncError struct {
	Cursor string // 失败页的游标，空串表示首页
	Page   int    // 失败页序号，从 1 开始
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("catalog sync failed at page %d (cursor %q): %v", e.Page, e.Cursor, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
