package ebay

// TokenResp OAuth Token 响应 DTO
type TokenResp struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int    `json:"expires_in"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in"`
	TokenType             string `json:"token_type"`
	Error                 string `json:"error,omitempty"`
	ErrorDescription      string `json:"error_description,omitempty"`
}

// UserResp identity getUser 响应 (轻量探活接口)
type UserResp struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Status   string `json:"status,omitempty"`
}

// CategoryNode 分类树节点
type CategoryNode struct {
	CategoryID       string   `json:"category_id"`
	CategoryPath     string   `json:"category_path"` // 如 "Clothing > Men > Shoes"
	Leaf             bool     `json:"leaf"`
	RequiredAspects  []string `json:"required_aspects"`
	SuggestedAspects []string `json:"suggested_aspects"`
}

// CategoryPage 分类分页响应
// eBay 的批量 aspects 接口按游标翻页，游标为空表示最后一页
type CategoryPage struct {
	Nodes      []CategoryNode `json:"category_aspects"`
	NextCursor string         `json:"next_cursor"`
	Total      int            `json:"total"`
}

// PublishListingReq 刊登请求 DTO (薄封装，细节由刊登方负责)
type PublishListingReq struct {
	SKU         string   `json:"sku"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CategoryID  string   `json:"category_id"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	Quantity    int      `json:"quantity"`
	ImageURLs   []string `json:"image_urls"`

	// 物品属性 {"Brand": "Nike"}
	Aspects map[string]string `json:"aspects"`

	// 业务策略
	FulfillmentPolicyID string `json:"fulfillment_policy_id"`
	PaymentPolicyID     string `json:"payment_policy_id"`
	ReturnPolicyID      string `json:"return_policy_id"`
}

// PublishListingResp 刊登响应
type PublishListingResp struct {
	ListingID string   `json:"listingId"`
	OfferID   string   `json:"offerId"`
	Warnings  []string `json:"warnings,omitempty"`
}
