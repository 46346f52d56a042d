package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ebay_link_v1_202608/internal/model"
	"ebay_link_v1_202608/internal/repository"
	"ebay_link_v1_202608/pkg/ebay"
)

// TokenSource 给同步器/刊登器提供 API 凭证
// 由 AuthService.ResolveCredential 满足
type TokenSource interface {
	ResolveCredential(ctx context.Context, accountID int64) (*model.EbayAccount, error)
}

// SyncReport 一轮全量同步的结果
type SyncReport struct {
	RunID          string `json:"run_id"`
	RecordsWritten int64  `json:"records_written"`
	PagesWritten   int    `json:"pages_written"`
	DurationMs     int64  `json:"duration_ms"`
}

// CatalogService 类目同步器
// 负责：判断缓存是否可用、分页全量抓取、属性查询（含兜底降级）
type CatalogService struct {
	CatalogRepo repository.CatalogRepository
	tokens      TokenSource
	client      *ebay.Client

	stalenessThreshold int64
	pageSize           int

	// 每个市场范围最多一个在途同步
	inflight sync.Map // marketplace -> *sync.Mutex
}

// NewCatalogService 工厂方法
func NewCatalogService(catalogRepo repository.CatalogRepository, tokens TokenSource, client *ebay.Client, stalenessThreshold int64, pageSize int) *CatalogService {
	if stalenessThreshold <= 0 {
		stalenessThreshold = 1000
	}
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &CatalogService{
		CatalogRepo:        catalogRepo,
		tokens:             tokens,
		client:             client,
		stalenessThreshold: stalenessThreshold,
		pageSize:           pageSize,
	}
}

// NeedsSync 缓存是否需要全量同步
// 唯一判据：缓存条数低于阈值。类目变更频率极低，不做时间过期；
// 运营可通过手动触发接口强制重刷
func (s *CatalogService) NeedsSync(ctx context.Context, marketplace string) (bool, error) {
	state, err := s.CatalogRepo.GetSyncState(ctx, marketplace)
	if err != nil {
		return false, err
	}
	return state.RecordCount < s.stalenessThreshold, nil
}

// Sync 全量同步
// 分页抓取 -> 逐页事务写入。读取方在 outcome=in_progress 期间可以看到
// 增长中的计数，但不应视为权威数据。
// 任何一页失败：保留已写入的页（幂等覆盖，下次重跑不浪费），标记 failure 并返回 *SyncError。
// 内部不重试，重试策略归调用方。
func (s *CatalogService) Sync(ctx context.Context, marketplace string, accountID int64) (*SyncReport, error) {
	// 1. 同一市场范围只允许一个在途同步
	muVal, _ := s.inflight.LoadOrStore(marketplace, &sync.Mutex{})
	mu := muVal.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, ErrSyncConflict
	}
	defer mu.Unlock()

	start := time.Now()
	report := &SyncReport{RunID: uuid.NewString()}

	// 2. 取 API 凭证
	account, err := s.tokens.ResolveCredential(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// 3. 标记开始
	if err = s.CatalogRepo.MarkInProgress(ctx, marketplace); err != nil {
		return nil, err
	}
	log.Printf("[Catalog] 开始全量同步 %s (run %s)", marketplace, report.RunID)

	// 4. 分页抓取循环
	cursor := ""
	page := 0
	for {
		page++

		// 取消检查：半页数据不落库，停在最后一个完整页
		select {
		case <-ctx.Done():
			_ = s.CatalogRepo.MarkFailure(context.WithoutCancel(ctx), marketplace, "cancelled: "+ctx.Err().Error(), cursor)
			return nil, &SyncError{Cursor: cursor, Page: page, Err: ctx.Err()}
		default:
		}

		pageResp, err := s.client.FetchCategoryPage(ctx, account.AccessToken, marketplace, cursor, s.pageSize)
		if err != nil {
			detail := fmt.Sprintf("page fetch failed: %v", err)
			if merr := s.CatalogRepo.MarkFailure(context.WithoutCancel(ctx), marketplace, detail, cursor); merr != nil {
				log.Printf("[Catalog] 记录失败状态出错: %v", merr)
			}
			return nil, &SyncError{Cursor: cursor, Page: page, Err: err}
		}

		records := make([]model.CategoryRecord, 0, len(pageResp.Nodes))
		for _, node := range pageResp.Nodes {
			records = append(records, model.CategoryRecord{
				Marketplace:      marketplace,
				CategoryID:       node.CategoryID,
				Path:             node.CategoryPath,
				Leaf:             node.Leaf,
				RequiredAspects:  node.RequiredAspects,
				SuggestedAspects: node.SuggestedAspects,
			})
		}

		// 整页单事务写入
		if err = s.CatalogRepo.WritePage(ctx, marketplace, records); err != nil {
			detail := fmt.Sprintf("page write failed: %v", err)
			if merr := s.CatalogRepo.MarkFailure(context.WithoutCancel(ctx), marketplace, detail, cursor); merr != nil {
				log.Printf("[Catalog] 记录失败状态出错: %v", merr)
			}
			return nil, &SyncError{Cursor: cursor, Page: page, Err: err}
		}

		report.RecordsWritten += int64(len(records))
		report.PagesWritten++
		log.Printf("[Catalog] %s 第 %d 页写入 %d 条", marketplace, page, len(records))

		if pageResp.NextCursor == "" {
			break
		}
		cursor = pageResp.NextCursor
	}

	// 5. 收尾
	count, err := s.CatalogRepo.Count(ctx, marketplace)
	if err != nil {
		return nil, err
	}
	report.DurationMs = time.Since(start).Milliseconds()

	stats, _ := json.Marshal(map[string]interface{}{
		"run_id":          report.RunID,
		"pages":           report.PagesWritten,
		"records_written": report.RecordsWritten,
		"duration_ms":     report.DurationMs,
	})
	if err = s.CatalogRepo.MarkSuccess(ctx, marketplace, count, datatypes.JSON(stats)); err != nil {
		return nil, err
	}

	log.Printf("[Catalog] %s 同步完成: %d 页 %d 条, 耗时 %dms",
		marketplace, report.PagesWritten, report.RecordsWritten, report.DurationMs)
	return report, nil
}

// LookupAspects 查询类目的物品属性要求
// 命中缓存：必填名称 -> required 文本属性，建议名称 -> 可选文本属性
// （缓存只存名称，值类型元数据缺失，统一降级为自由文本，已知保真度限制）
// 未命中：按类目族返回版本化的兜底属性集，source 标记为 generated，
// 调用方应视为低置信度答案。对格式合法的类目 ID 此方法不会失败。
func (s *CatalogService) LookupAspects(ctx context.Context, marketplace, categoryID string) ([]ItemAspect, string, error) {
	record, err := s.CatalogRepo.GetByCategoryID(ctx, marketplace, categoryID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			// 存储层异常也走兜底，保证查询永不失败
			log.Printf("[Catalog] 查询类目 %s 出错，使用兜底属性: %v", categoryID, err)
		}
		return resolveFallbackAspects(categoryID), "generated", nil
	}

	aspects := make([]ItemAspect, 0, len(record.RequiredAspects)+len(record.SuggestedAspects))
	for _, name := range record.RequiredAspects {
		aspects = append(aspects, ItemAspect{Name: name, Required: true, ValueType: AspectTypeText})
	}
	for _, name := range record.SuggestedAspects {
		aspects = append(aspects, ItemAspect{Name: name, Required: false, ValueType: AspectTypeText})
	}
	return aspects, "cached", nil
}

// SyncStatus 查询同步状态
func (s *CatalogService) SyncStatus(ctx context.Context, marketplace string) (*model.SyncState, error) {
	return s.CatalogRepo.GetSyncState(ctx, marketplace)
}
