package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ebay_link_v1_202608/internal/model"
	"ebay_link_v1_202608/internal/service"
)

type CatalogController struct {
	catalogService *service.CatalogService
}

func NewCatalogController(catalog *service.CatalogService) *CatalogController {
	return &CatalogController{catalogService: catalog}
}

// Status
// @Summary 类目缓存状态
// @Description 返回缓存条数、最近同步时间、是否需要重新同步
// @Tags Catalog (类目模块)
// @Produce json
// @Param marketplace query string false "市场范围，默认 EBAY_US"
// @Success 200 {object} map[string]interface{}
// @Router /catalog/status [get]
func (ctrl *CatalogController) Status(c *gin.Context) {
	marketplace := c.DefaultQuery("marketplace", model.DefaultMarketplace)

	state, err := ctrl.catalogService.SyncStatus(c.Request.Context(), marketplace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询同步状态失败", "detail": err.Error()})
		return
	}
	needsSync, err := ctrl.catalogService.NeedsSync(c.Request.Context(), marketplace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询同步状态失败", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"marketplace":       marketplace,
		"record_count":      state.RecordCount,
		"last_full_sync_at": state.LastFullSyncAt,
		"outcome":           state.Outcome,
		"last_error":        state.LastError,
		"needs_sync":        needsSync,
	})
}

// Sync 手动触发全量同步 (重新同步按钮)
// @Summary 触发类目全量同步
// @Description 同一市场同时只允许一个同步；冲突时返回 409
// @Tags Catalog (类目模块)
// @Produce json
// @Param marketplace query string false "市场范围"
// @Param account_id query int true "用于 API 调用的账号 ID"
// @Success 200 {object} service.SyncReport
// @Failure 409 {object} map[string]string "已有同步在进行"
// @Router /catalog/sync [post]
func (ctrl *CatalogController) Sync(c *gin.Context) {
	marketplace := c.DefaultQuery("marketplace", model.DefaultMarketplace)
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}

	report, err := ctrl.catalogService.Sync(c.Request.Context(), marketplace, accountID)
	if err != nil {
		if errors.Is(err, service.ErrSyncConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "已有同步在进行中，请稍后查询状态"})
			return
		}
		var syncErr *service.SyncError
		if errors.As(err, &syncErr) {
			// 已写入的页保留，重新触发即可续传
			c.JSON(http.StatusBadGateway, gin.H{
				"error":  "同步失败，可重新触发",
				"page":   syncErr.Page,
				"cursor": syncErr.Cursor,
				"detail": syncErr.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "同步失败", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Aspects
// @Summary 查询类目的物品属性要求
// @Description 未命中缓存时返回兜底属性集 (source=generated)
// @Tags Catalog (类目模块)
// @Produce json
// @Param category_id query string true "eBay 类目 ID"
// @Param marketplace query string false "市场范围"
// @Success 200 {object} map[string]interface{}
// @Router /catalog/aspects [get]
func (ctrl *CatalogController) Aspects(c *gin.Context) {
	categoryID := c.Query("category_id")
	if categoryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 category_id 参数"})
		return
	}
	if _, err := strconv.ParseInt(categoryID, 10, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category_id 必须是数字"})
		return
	}
	marketplace := c.DefaultQuery("marketplace", model.DefaultMarketplace)

	aspects, source, err := ctrl.catalogService.LookupAspects(c.Request.Context(), marketplace, categoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category_id": categoryID,
		"source":      source,
		"aspects":     aspects,
	})
}
