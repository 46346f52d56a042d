package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ebay_link_v1_202608/internal/service"
)

type PublishController struct {
	publishService *service.PublishService
}

func NewPublishController(publish *service.PublishService) *PublishController {
	return &PublishController{publishService: publish}
}

// publishReq 请求体
type publishReq struct {
	AccountID int64                `json:"account_id" binding:"required"`
	Draft     service.ListingDraft `json:"draft" binding:"required"`
}

// Publish
// @Summary 提交刊登
// @Description 取凭证 + 校验类目必填属性 + 提交 eBay
// @Tags Listing (刊登模块)
// @Accept json
// @Produce json
// @Param body body publishReq true "刊登请求"
// @Success 200 {object} service.PublishResult
// @Failure 422 {object} map[string]interface{} "缺少必填属性"
// @Router /listings/publish [post]
func (ctrl *PublishController) Publish(c *gin.Context) {
	var req publishReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误", "detail": err.Error()})
		return
	}

	result, err := ctrl.publishService.PublishListing(c.Request.Context(), req.AccountID, &req.Draft)
	if err != nil {
		if errors.Is(err, service.ErrNotConnected) {
			c.JSON(http.StatusConflict, gin.H{"error": "账号未连接 eBay，请先授权"})
			return
		}
		if result != nil && len(result.MissingFields) > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":          "缺少必填属性",
				"missing_fields": result.MissingFields,
				"aspects_source": result.AspectsSource,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "刊登失败", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
