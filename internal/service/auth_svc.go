package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"ebay_link_v1_202608/internal/model"
	"ebay_link_v1_202608/internal/repository"
	"ebay_link_v1_202608/pkg/ebay"
	"ebay_link_v1_202608/pkg/utils"
)

// 申请的 scope 集合：刊登 + 身份读取
var defaultScopes = []string{
	"https://api.ebay.com/oauth/api_scope",
	"https://api.ebay.com/oauth/api_scope/sell.inventory",
	"https://api.ebay.com/oauth/api_scope/sell.account.readonly",
	"https://api.ebay.com/oauth/api_scope/commerce.identity.readonly",
}

// AuthService OAuth 连接器
// 状态机：Disconnected -> AuthorizationRequested -> Connected -> Expired -> Disconnected
type AuthService struct {
	AccountRepo repository.AccountRepository
	client      *ebay.Client

	// 按账号串行化 refresh：并发调用共享同一次交换结果
	// eBay 同类平台会在 refresh token 单次使用后作废，重复提交有风险
	refreshGroup singleflight.Group
}

// NewAuthService 工厂方法
func NewAuthService(accountRepo repository.AccountRepository, client *ebay.Client) *AuthService {
	return &AuthService{
		AccountRepo: accountRepo,
		client:      client,
	}
}

// GenerateConsentURL 生成授权链接
// sysUserID 必须是已登录的系统用户；returnOrigin 授权完成后的回跳来源
func (s *AuthService) GenerateConsentURL(ctx context.Context, sysUserID int64, returnOrigin string) (string, error) {
	if sysUserID == 0 {
		return "", ErrAuthRequest
	}

	// 1. 生成安全参数
	state, err := utils.GenerateRandomString(32)
	if err != nil {
		return "", err
	}

	// 2. 缓存 state (格式为 key=state, value="sys_user_id:return_origin")
	cacheValue := fmt.Sprintf("%d:%s", sysUserID, returnOrigin)
	utils.StoreState(state, cacheValue)

	// 3. 拼接 eBay 官方授权 URL
	return s.client.ConsentURL(defaultScopes, state), nil
}

// HandleCallback 处理 eBay 回调 -> 换 Token
// code 被拒即作废（不重试），调用方需重新发起授权
func (s *AuthService) HandleCallback(ctx context.Context, code, state string) (*model.EbayAccount, error) {
	// 1. 校验 State 取缓存
	cachedVal, exists := utils.LoadState(state)
	if !exists {
		return nil, ErrStateExpired
	}
	utils.DeleteState(state) // 用完即焚

	// 2. 解析缓存 "sys_user_id:return_origin"
	parts := strings.SplitN(cachedVal, ":", 2)
	sysUserID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("缓存中的用户 ID 无效: %v", err)
	}

	// 3. 向 eBay 换取 Token
	token, err := s.client.ExchangeCode(ctx, code)
	if err != nil {
		var apiErr *ebay.APIError
		if errors.As(err, &apiErr) {
			// eBay 明确拒绝：code 失效/已用
			log.Printf("[Auth] code exchange rejected: status %d", apiErr.StatusCode)
			return nil, fmt.Errorf("%w: %v", ErrAuthExchange, err)
		}
		return nil, fmt.Errorf("换取 Token 失败: %v", err)
	}

	// 4. 组装凭证
	account := &model.EbayAccount{
		SysUserID:      sysUserID,
		Marketplace:    model.DefaultMarketplace,
		TokenStatus:    model.TokenStatusValid,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
		Scopes:         defaultScopes,
	}

	// 5. 回填 eBay 用户名（失败不阻塞授权）
	if user, status, uerr := s.client.GetUser(ctx, token.AccessToken); uerr == nil && status == 200 {
		account.EbayUserID = user.UserID
		account.EbayUsername = user.Username
	}

	// 6. 入库保存（整行写入，无半写状态）
	if err = s.AccountRepo.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("账号入库失败: %v", err)
	}

	return account, nil
}

// RefreshAccessToken 刷新 Token
// singleflight 保证同一账号并发刷新只向 eBay 提交一次
func (s *AuthService) RefreshAccessToken(ctx context.Context, accountID int64) (*model.EbayAccount, error) {
	key := strconv.FormatInt(accountID, 10)
	v, err, _ := s.refreshGroup.Do(key, func() (interface{}, error) {
		return s.doRefresh(ctx, accountID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.EbayAccount), nil
}

func (s *AuthService) doRefresh(ctx context.Context, accountID int64) (*model.EbayAccount, error) {
	account, err := s.AccountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.RefreshToken == "" || account.TokenStatus == model.TokenStatusInvalid {
		return nil, ErrNotConnected
	}

	token, err := s.client.RefreshToken(ctx, account.RefreshToken, account.Scopes)
	if err != nil {
		var apiErr *ebay.APIError
		if errors.As(err, &apiErr) && (apiErr.IsAuthError() || apiErr.StatusCode == 400) {
			// refresh token 本身失效：账号转为未连接，需重新授权
			if uerr := s.AccountRepo.UpdateTokenStatus(ctx, account.ID, model.TokenStatusInvalid); uerr != nil {
				log.Printf("[Auth] 标记账号 %d 失效出错: %v", account.ID, uerr)
			}
			return nil, fmt.Errorf("%w: %v", ErrRefresh, err)
		}
		// 网络层错误：保持现状，调用方可稍后重试
		return nil, err
	}

	// 成功：覆盖保存（eBay 可能返回新的 refresh token）
	account.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		account.RefreshToken = token.RefreshToken
	}
	account.TokenExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	account.TokenStatus = model.TokenStatusValid

	if err = s.AccountRepo.Upsert(ctx, account); err != nil {
		return nil, fmt.Errorf("刷新后入库失败: %v", err)
	}
	return account, nil
}

// Disconnect 显式断开授权，清除凭证
func (s *AuthService) Disconnect(ctx context.Context, accountID int64) error {
	return s.AccountRepo.Clear(ctx, accountID)
}

// ResolveCredential 刊登方入口：返回可用凭证
// access token 临期时先走一次串行化刷新
func (s *AuthService) ResolveCredential(ctx context.Context, accountID int64) (*model.EbayAccount, error) {
	account, err := s.AccountRepo.GetByID(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotConnected
	}
	if err != nil {
		return nil, err
	}

	if !account.IsConnected(time.Now()) {
		return nil, ErrNotConnected
	}

	// 还有 2 分钟以上有效期就直接用
	if account.AccessToken != "" && time.Until(account.TokenExpiresAt) > 2*time.Minute {
		return account, nil
	}
	return s.RefreshAccessToken(ctx, accountID)
}

// IsConnected 查询派生连接状态
func (s *AuthService) IsConnected(ctx context.Context, accountID int64) bool {
	account, err := s.AccountRepo.GetByID(ctx, accountID)
	if err != nil {
		return false
	}
	return account.IsConnected(time.Now())
}
