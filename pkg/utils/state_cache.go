package utils

import (
	"sync"
	"time"
)

// 授权 state 的存活时间，足够用户在 eBay 侧完成授权
const stateTTL = 10 * time.Minute

// 使用 sync.Map 保证并发安全
var stateCache sync.Map

// stateEntry 内部结构，包含载荷和过期时间
type stateEntry struct {
	payload    string
	expiration int64
}

// StoreState 暂存授权 state
// key: state
// payload: "sys_user_id:return_origin"
func StoreState(key string, payload string) {
	stateCache.Store(key, stateEntry{
		payload:    payload,
		expiration: time.Now().Add(stateTTL).Unix(),
	})
}

// LoadState 取回 state 载荷并验证是否过期
func LoadState(key string) (string, bool) {
	val, ok := stateCache.Load(key)
	if !ok {
		return "", false
	}

	entry := val.(stateEntry)

	// 检查是否过期
	if time.Now().Unix() > entry.expiration {
		stateCache.Delete(key) // 懒删除
		return "", false
	}

	return entry.payload, true
}

// DeleteState 删除 state (用完即焚)
func DeleteState(key string) {
	stateCache.Delete(key)
}
