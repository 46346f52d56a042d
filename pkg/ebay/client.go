package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// 环境常量
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// APIError eBay 明确拒绝的请求 (区别于网络层错误)
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ebay api error: status %d, body: %s", e.StatusCode, e.Body)
}

// IsAuthError 401/403 视为鉴权失败
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// Client eBay API 客户端
// 覆盖：OAuth 换取/刷新、identity 探活、taxonomy 分页抓取、刊登提交
type Client struct {
	http *resty.Client

	clientID     string
	clientSecret string
	ruName       string // eBay 后台配置的 redirect_uri 标识

	authBase string // 授权页
	apiBase  string // API 网关
}

// NewClient 工厂方法
func NewClient(clientID, clientSecret, ruName, env string) *Client {
	authBase := "https://auth.sandbox.ebay.com"
	apiBase := "https://api.sandbox.ebay.com"
	if env == EnvProduction {
		authBase = "https://auth.ebay.com"
		apiBase = "https://api.ebay.com"
	}

	client := resty.New()
	// 设置超时和重试，防止网络波动
	client.SetTimeout(30 * time.Second)

	return &Client{
		http:         client,
		clientID:     clientID,
		clientSecret: clientSecret,
		ruName:       ruName,
		authBase:     authBase,
		apiBase:      apiBase,
	}
}

// SetBaseURL 测试用：指向 httptest 服务器
func (c *Client) SetBaseURL(base string) {
	c.authBase = base
	c.apiBase = base
}

// ==================== OAuth ====================

// ConsentURL 拼接 eBay 官方授权 URL
/*
	ebay 官网案例：
	   https://auth.ebay.com/oauth2/authorize?
	     client_id=YourClientID
	     &response_type=code
	     &redirect_uri=YourRuName
	     &scope=https://api.ebay.com/oauth/api_scope/sell.inventory
	     &state=superstate
*/
func (c *Client) ConsentURL(scopes []string, state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.ruName)
	q.Set("scope", joinScopes(scopes))
	q.Set("state", state)
	return c.authBase + "/oauth2/authorize?" + q.Encode()
}

// ExchangeCode 授权码换 Token
// eBay 要求 Basic Auth (client_id:client_secret)，表单提交
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResp, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type":   "authorization_code",
			"code":         code,
			"redirect_uri": c.ruName,
		}).
		Post(c.apiBase + "/identity/v1/oauth2/token")
	if err != nil {
		return nil, fmt.Errorf("token exchange network error: %v", err)
	}
	if resp.StatusCode() != 200 {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var token TokenResp
	if err = json.Unmarshal(resp.Body(), &token); err != nil {
		return nil, fmt.Errorf("token json decode failed: %v", err)
	}
	return &token, nil
}

// RefreshToken 刷新 Access Token
// 注意：eBay 的 refresh 不轮换 refresh token，但响应里带了也要覆盖保存
func (c *Client) RefreshToken(ctx context.Context, refreshToken string, scopes []string) (*TokenResp, error) {
	form := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}
	if len(scopes) > 0 {
		form["scope"] = joinScopes(scopes)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(form).
		Post(c.apiBase + "/identity/v1/oauth2/token")
	if err != nil {
		return nil, fmt.Errorf("refresh network error: %v", err)
	}
	if resp.StatusCode() != 200 {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var token TokenResp
	if err = json.Unmarshal(resp.Body(), &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// ==================== Identity (探活) ====================

// GetUser 低开销的 whoami 接口，无副作用
// 返回 http 状态码，探活方需要区分 401 与网络错误
func (c *Client) GetUser(ctx context.Context, accessToken string) (*UserResp, int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		Get(c.apiBase + "/commerce/identity/v1/user/")
	if err != nil {
		return nil, 0, fmt.Errorf("getUser network error: %v", err)
	}
	if resp.StatusCode() != 200 {
		return nil, resp.StatusCode(), nil
	}

	var user UserResp
	if err = json.Unmarshal(resp.Body(), &user); err != nil {
		return nil, resp.StatusCode(), fmt.Errorf("getUser json decode failed: %v", err)
	}
	return &user, resp.StatusCode(), nil
}

// ==================== Taxonomy (分页抓取) ====================

// FetchCategoryPage 按游标抓取一页类目及属性要求
// cursor 为空表示第一页；返回的 NextCursor 为空表示已到末页
func (c *Client) FetchCategoryPage(ctx context.Context, accessToken, marketplace, cursor string, pageSize int) (*CategoryPage, error) {
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParam("marketplace_id", marketplace).
		SetQueryParam("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}

	resp, err := req.Get(c.apiBase + "/commerce/taxonomy/v1/category_tree/0/fetch_item_aspects")
	if err != nil {
		return nil, fmt.Errorf("taxonomy fetch network error: %v", err)
	}
	if resp.StatusCode() != 200 {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var page CategoryPage
	if err = json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("taxonomy page decode failed: %v", err)
	}
	return &page, nil
}

// ==================== Listing (刊登) ====================

// PublishListing 提交刊登
// 薄封装：payload 组装由上层 PublishService 负责
func (c *Client) PublishListing(ctx context.Context, accessToken string, req *PublishListingReq) (*PublishListingResp, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.apiBase + "/sell/inventory/v1/offer_with_item")
	if err != nil {
		return nil, fmt.Errorf("publish network error: %v", err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var out PublishListingResp
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("publish resp decode failed: %v", err)
	}
	return &out, nil
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
