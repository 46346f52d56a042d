package task

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"ebay_link_v1_202608/internal/model"
	"ebay_link_v1_202608/internal/service"
)

// CatalogTask 类目缓存巡检任务
// 每天凌晨检查一次：缓存不足阈值时自动发起全量同步
type CatalogTask struct {
	CatalogService *service.CatalogService
	Cron           *cron.Cron

	// 用于 API 调用的账号 ID (0 表示未配置，任务空转)
	syncAccountID int64
}

func NewCatalogTask(catalogService *service.CatalogService, syncAccountID int64) *CatalogTask {
	return &CatalogTask{
		CatalogService: catalogService,
		Cron:           cron.New(cron.WithSeconds()),
		syncAccountID:  syncAccountID,
	}
}

// Start 启动定时任务
func (t *CatalogTask) Start() {
	// 每天 03:30 巡检
	_, err := t.Cron.AddFunc("0 30 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		t.checkJob(ctx)
	})
	if err != nil {
		log.Fatalf("无法启动类目巡检任务: %v", err)
	}

	t.Cron.Start()
	log.Println("类目巡检任务已启动 (每天 03:30 检查一次)")
}

// Stop 停止定时任务
func (t *CatalogTask) Stop() {
	t.Cron.Stop()
}

func (t *CatalogTask) checkJob(ctx context.Context) {
	if t.syncAccountID == 0 {
		log.Println("[Cron] 未配置同步账号，跳过类目巡检")
		return
	}

	marketplace := model.DefaultMarketplace
	needsSync, err := t.CatalogService.NeedsSync(ctx, marketplace)
	if err != nil {
		log.Printf("[Cron] 类目缓存状态查询失败: %v", err)
		return
	}
	if !needsSync {
		return
	}

	log.Printf("[Cron] %s 类目缓存低于阈值，发起全量同步", marketplace)
	report, err := t.CatalogService.Sync(ctx, marketplace, t.syncAccountID)
	if err != nil {
		if errors.Is(err, service.ErrSyncConflict) {
			// 运营手动触发的同步在跑，下一轮再看
			log.Println("[Cron] 已有同步在进行，本轮跳过")
			return
		}
		log.Printf("[Cron] 类目同步失败: %v", err)
		return
	}
	log.Printf("[Cron] 类目同步完成: %d 条, 耗时 %dms", report.RecordsWritten, report.DurationMs)
}
