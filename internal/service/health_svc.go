package service

import (
	"context"
	"fmt"
	"net/http"

	"ebay_link_v1_202608/internal/repository"
	"ebay_link_v1_202608/pkg/ebay"
)

// ProbeResult 探活结果
// OK=false 不是 error：鉴权失败要和网络故障区分开，
// 前端据此决定提示“重新授权”还是“稍后重试”
type ProbeResult struct {
	OK         bool   `json:"ok"`
	HTTPStatus int    `json:"http_status"`
	Detail     string `json:"detail,omitempty"`
}

// HealthService 连接健康探测
// 只读：探测失败不会改动 Token Store（只有 refresh 失败才会标记失效）
type HealthService struct {
	AccountRepo repository.AccountRepository
	client      *ebay.Client
}

// NewHealthService 工厂方法
func NewHealthService(accountRepo repository.AccountRepository, client *ebay.Client) *HealthService {
	return &HealthService{
		AccountRepo: accountRepo,
		client:      client,
	}
}

// Probe 用存储的 token 发一次无副作用的 getUser 调用
// 即使 token 名义上未过期，也以实际 API 结果为准
func (s *HealthService) Probe(ctx context.Context, accountID int64) (*ProbeResult, error) {
	account, err := s.AccountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.AccessToken == "" {
		return &ProbeResult{OK: false, Detail: "no access token stored"}, nil
	}

	user, status, err := s.client.GetUser(ctx, account.AccessToken)
	if err != nil {
		// 网络层错误：向上抛，调用方可重试
		return nil, err
	}

	if status != http.StatusOK {
		return &ProbeResult{
			OK:         false,
			HTTPStatus: status,
			Detail:     fmt.Sprintf("ebay returned status %d", status),
		}, nil
	}

	return &ProbeResult{
		OK:         true,
		HTTPStatus: status,
		Detail:     "authenticated as " + user.Username,
	}, nil
}
