package controller

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ebay_link_v1_202608/internal/middleware"
	"ebay_link_v1_202608/internal/service"
)

type AuthController struct {
	authService   *service.AuthService
	healthService *service.HealthService
}

func NewAuthController(auth *service.AuthService, health *service.HealthService) *AuthController {
	return &AuthController{authService: auth, healthService: health}
}

// Connect
// @Summary 获取 eBay 授权链接
// @Description 为当前登录用户生成 eBay OAuth 授权跳转链接
// @Tags Auth (授权模块)
// @Accept json
// @Produce json
// @Param return_origin query string false "授权完成后的回跳来源"
// @Success 200 {object} map[string]interface{} "auth_url"
// @Failure 401 {object} map[string]string "未登录"
// @Router /oauth/login [get]
func (ctrl *AuthController) Connect(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextKeyUserID)
	returnOrigin := c.Query("return_origin")

	url, err := ctrl.authService.GenerateConsentURL(c.Request.Context(), userID, returnOrigin)
	if err != nil {
		if errors.Is(err, service.ErrAuthRequest) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "请先登录系统"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "生成失败",
			"detail": err.Error(),
		})
		return
	}

	// 返回 JSON 给前端，由前端跳转到 eBay 授权页
	c.JSON(http.StatusOK, gin.H{
		"message":  "获取成功",
		"auth_url": url,
	})
}

// Callback
// @Summary eBay 授权回调
// @Description 接收 eBay 返回的 code 和 state，换取 Token 并入库
// @Tags Auth (授权模块)
// @Accept json
// @Produce json
// @Param code query string true "授权码"
// @Param state query string true "安全校验码"
// @Success 200 {object} map[string]interface{} "授权成功信息"
// @Failure 400 {object} map[string]string "拒绝授权/参数错误"
// @Router /oauth/callback [get]
func (ctrl *AuthController) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	errParam := c.Query("error")

	if errParam != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "用户拒绝了授权", "ebay_msg": errParam})
		return
	}

	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少必要参数 code 或 state"})
		return
	}

	account, err := ctrl.authService.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrStateExpired) || errors.Is(err, service.ErrAuthExchange) {
			// 需要重新走授权流程，不是服务端故障
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":  "授权失败",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "账号绑定成功",
		"username":  account.EbayUsername,
		"expire_at": account.TokenExpiresAt,
	})
}

// Refresh 手动强制刷新 Token
// @Summary 刷新账号 Token
// @Tags Auth (授权模块)
// @Accept json
// @Produce json
// @Param account_id query int true "账号 ID (Database Primary Key)"
// @Success 200 {object} map[string]interface{} "成功消息+下一次过期时间"
// @Failure 400 {string} string "错误信息"
// @Router /oauth/refresh [post]
func (ctrl *AuthController) Refresh(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	account, err := ctrl.authService.RefreshAccessToken(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRefresh) {
			// refresh token 失效，前端应引导重新授权
			c.JSON(http.StatusConflict, gin.H{"error": "授权已失效，请重新连接 eBay", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "刷新失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Token 刷新成功",
		"new_expiry": account.TokenExpiresAt.Format("2006-01-02 15:04:05"),
	})
}

// Disconnect 断开授权
// @Summary 断开 eBay 连接并清除凭证
// @Tags Auth (授权模块)
// @Param account_id query int true "账号 ID"
// @Success 200 {object} map[string]string
// @Router /oauth/disconnect [post]
func (ctrl *AuthController) Disconnect(c *gin.Context) {
	id, ok := parseAccountID(c)
	if !ok {
		return
	}

	if err := ctrl.authService.Disconnect(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "断开失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已断开连接"})
}

// Probe 连接健康探测
// @Summary 探测存储的 Token 是否仍可访问 eBay API
// @Description 只读探测，不会修改 Token 记录
// @Tags Auth (授权模块)
// @Param id path int true "账号 ID"
// @Success 200 {object} service.ProbeResult
// @Router /accounts/{id}/probe [get]
func (ctrl *AuthController) Probe(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id 必须是数字"})
		return
	}

	result, err := ctrl.healthService.Probe(c.Request.Context(), id)
	if err != nil {
		// 网络层错误，区别于鉴权失败 (ok=false)
		log.Printf("account %d probe transport error: %v", id, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "探测请求失败，请稍后重试", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// parseAccountID 公共参数解析
func parseAccountID(c *gin.Context) (int64, bool) {
	idStr := c.Query("account_id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 account_id 参数"})
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id 必须是数字"})
		return 0, false
	}
	return id, true
}
