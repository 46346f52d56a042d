package service

import (
	"context"
	"fmt"
	"log"

	"ebay_link_v1_202608/pkg/ebay"
)

// PublishService 刊登门面
// 薄封装：取凭证 + 补全属性 + 组装 payload + 提交
// 图片上传、变体、运费模板等细节归独立的刊登管理组件，不在本服务范围
type PublishService struct {
	Auth    *AuthService
	Catalog *CatalogService
	client  *ebay.Client
}

// NewPublishService 工厂方法
func NewPublishService(auth *AuthService, catalog *CatalogService, client *ebay.Client) *PublishService {
	return &PublishService{
		Auth:    auth,
		Catalog: catalog,
		client:  client,
	}
}

// ListingDraft 待刊登草稿
type ListingDraft struct {
	SKU         string            `json:"sku" binding:"required"`
	Title       string            `json:"title" binding:"required,max=80"`
	Description string            `json:"description" binding:"required"`
	CategoryID  string            `json:"category_id" binding:"required"`
	Price       float64           `json:"price" binding:"required,gt=0"`
	Currency    string            `json:"currency"`
	Quantity    int               `json:"quantity" binding:"required,min=1"`
	ImageURLs   []string          `json:"image_urls"`
	Aspects     map[string]string `json:"aspects"` // 用户已填的属性值
}

// PublishResult 刊登结果
type PublishResult struct {
	ListingID     string   `json:"listing_id"`
	OfferID       string   `json:"offer_id"`
	AspectsSource string   `json:"aspects_source"` // cached / generated
	MissingFields []string `json:"missing_fields,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// PublishListing 提交刊登
// 必填属性未提供值时直接拒绝，不把半成品提交给 eBay
func (s *PublishService) PublishListing(ctx context.Context, accountID int64, draft *ListingDraft) (*PublishResult, error) {
	// 1. 取凭证（必要时内部串行刷新）
	account, err := s.Auth.ResolveCredential(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// 2. 补全类目属性要求
	aspects, source, err := s.Catalog.LookupAspects(ctx, account.Marketplace, draft.CategoryID)
	if err != nil {
		return nil, err
	}
	if source == "generated" {
		log.Printf("[Publish] 类目 %s 未命中缓存，使用兜底属性集(低置信度)", draft.CategoryID)
	}

	// 3. 必填校验
	var missing []string
	for _, a := range aspects {
		if a.Required {
			if _, ok := draft.Aspects[a.Name]; !ok {
				missing = append(missing, a.Name)
			}
		}
	}
	if len(missing) > 0 {
		return &PublishResult{AspectsSource: source, MissingFields: missing},
			fmt.Errorf("缺少必填属性: %v", missing)
	}

	// 4. 组装并提交
	currency := draft.Currency
	if currency == "" {
		currency = "USD"
	}
	resp, err := s.client.PublishListing(ctx, account.AccessToken, &ebay.PublishListingReq{
		SKU:         draft.SKU,
		Title:       draft.Title,
		Description: draft.Description,
		CategoryID:  draft.CategoryID,
		Price:       draft.Price,
		Currency:    currency,
		Quantity:    draft.Quantity,
		ImageURLs:   draft.ImageURLs,
		Aspects:     draft.Aspects,

		FulfillmentPolicyID: account.FulfillmentPolicyID,
		PaymentPolicyID:     account.PaymentPolicyID,
		ReturnPolicyID:      account.ReturnPolicyID,
	})
	if err != nil {
		return nil, fmt.Errorf("刊登提交失败: %w", err)
	}

	return &PublishResult{
		ListingID:     resp.ListingID,
		OfferID:       resp.OfferID,
		AspectsSource: source,
		Warnings:      resp.Warnings,
	}, nil
}
