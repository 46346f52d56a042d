package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ebay_link_v1_202608/internal/model"
)

func setupCatalogRepoTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	// 内存库按连接隔离，限制为单连接
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.CategoryRecord{}, &model.SyncState{}); err != nil {
		t.Fatalf("建表失败: %v", err)
	}
	return db
}

func makePage(marketplace string, start, count int) []model.CategoryRecord {
	records := make([]model.CategoryRecord, 0, count)
	for i := start; i < start+count; i++ {
		records = append(records, model.CategoryRecord{
			Marketplace:     marketplace,
			CategoryID:      fmt.Sprintf("%d", i),
			Path:            fmt.Sprintf("Root > Cat%d", i),
			Leaf:            true,
			RequiredAspects: []string{"Brand"},
		})
	}
	return records
}

func TestCatalogRepo_WritePageUpdatesCount(t *testing.T) {
	db := setupCatalogRepoTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	if err := repo.MarkInProgress(ctx, model.DefaultMarketplace); err != nil {
		t.Fatalf("MarkInProgress 失败: %v", err)
	}

	if err := repo.WritePage(ctx, model.DefaultMarketplace, makePage(model.DefaultMarketplace, 1000, 50)); err != nil {
		t.Fatalf("写入第一页失败: %v", err)
	}
	if err := repo.WritePage(ctx, model.DefaultMarketplace, makePage(model.DefaultMarketplace, 2000, 30)); err != nil {
		t.Fatalf("写入第二页失败: %v", err)
	}

	count, err := repo.Count(ctx, model.DefaultMarketplace)
	if err != nil {
		t.Fatalf("Count 失败: %v", err)
	}
	if count != 80 {
		t.Errorf("count = %d, want 80", count)
	}

	// record_count 与每页写入同事务刷新
	state, err := repo.GetSyncState(ctx, model.DefaultMarketplace)
	if err != nil {
		t.Fatalf("GetSyncState 失败: %v", err)
	}
	if state.RecordCount != 80 {
		t.Errorf("state.record_count = %d, want 80", state.RecordCount)
	}
}

// 页内原子性：事务中任一步失败，整页一条都不落库
func TestCatalogRepo_WritePageAtomicRollback(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	// 内存库按连接隔离，限制为单连接
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	// 故意只建 category_records：事务内刷新 record_count 时必然失败
	if err := db.AutoMigrate(&model.CategoryRecord{}); err != nil {
		t.Fatalf("建表失败: %v", err)
	}

	repo := NewCatalogRepository(db)
	ctx := context.Background()

	if err := repo.WritePage(ctx, model.DefaultMarketplace, makePage(model.DefaultMarketplace, 1000, 40)); err == nil {
		t.Fatal("WritePage 应失败")
	}

	// 回滚后整页不可见
	count, err := repo.Count(ctx, model.DefaultMarketplace)
	if err != nil {
		t.Fatalf("Count 失败: %v", err)
	}
	if count != 0 {
		t.Errorf("回滚后残留 %d 条记录, want 0", count)
	}
	if _, err := repo.GetByCategoryID(ctx, model.DefaultMarketplace, "1000"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("回滚后仍可读到首条记录: %v", err)
	}
}

// 覆盖写入按 (marketplace, category_id) 幂等：重跑不产生重复行
func TestCatalogRepo_WritePageIdempotent(t *testing.T) {
	db := setupCatalogRepoTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	if err := repo.MarkInProgress(ctx, model.DefaultMarketplace); err != nil {
		t.Fatalf("MarkInProgress 失败: %v", err)
	}
	if err := repo.WritePage(ctx, model.DefaultMarketplace, makePage(model.DefaultMarketplace, 1000, 20)); err != nil {
		t.Fatalf("首次写入失败: %v", err)
	}

	// 同一页重写，属性内容有变化
	updated := makePage(model.DefaultMarketplace, 1000, 20)
	for i := range updated {
		updated[i].Path = "Root > Renamed"
		updated[i].RequiredAspects = []string{"Brand", "Condition"}
	}
	if err := repo.WritePage(ctx, model.DefaultMarketplace, updated); err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}

	count, _ := repo.Count(ctx, model.DefaultMarketplace)
	if count != 20 {
		t.Errorf("覆盖后 count = %d, want 20", count)
	}

	record, err := repo.GetByCategoryID(ctx, model.DefaultMarketplace, "1005")
	if err != nil {
		t.Fatalf("回读失败: %v", err)
	}
	if record.Path != "Root > Renamed" {
		t.Errorf("path 未覆盖: %s", record.Path)
	}
	if len(record.RequiredAspects) != 2 {
		t.Errorf("required_aspects 未覆盖: %v", record.RequiredAspects)
	}
}

// 不同市场范围的缓存互不干扰
func TestCatalogRepo_MarketplaceScoped(t *testing.T) {
	db := setupCatalogRepoTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	_ = repo.MarkInProgress(ctx, "EBAY_US")
	_ = repo.MarkInProgress(ctx, "EBAY_GB")
	if err := repo.WritePage(ctx, "EBAY_US", makePage("EBAY_US", 1000, 10)); err != nil {
		t.Fatalf("写入 US 失败: %v", err)
	}
	if err := repo.WritePage(ctx, "EBAY_GB", makePage("EBAY_GB", 1000, 5)); err != nil {
		t.Fatalf("写入 GB 失败: %v", err)
	}

	usCount, _ := repo.Count(ctx, "EBAY_US")
	gbCount, _ := repo.Count(ctx, "EBAY_GB")
	if usCount != 10 || gbCount != 5 {
		t.Errorf("count US=%d GB=%d, want 10/5", usCount, gbCount)
	}

	// 同一 category_id 在两个市场是两条独立记录
	if _, err := repo.GetByCategoryID(ctx, "EBAY_GB", "1003"); err != nil {
		t.Errorf("GB 市场记录缺失: %v", err)
	}
}

func TestCatalogRepo_GetByCategoryIDNotFound(t *testing.T) {
	db := setupCatalogRepoTestDB(t)
	repo := NewCatalogRepository(db)

	_, err := repo.GetByCategoryID(context.Background(), model.DefaultMarketplace, "404404")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

// 未同步过的市场：返回零值状态而非错误
func TestCatalogRepo_GetSyncStateZeroValue(t *testing.T) {
	db := setupCatalogRepoTestDB(t)
	repo := NewCatalogRepository(db)

	state, err := repo.GetSyncState(context.Background(), model.DefaultMarketplace)
	if err != nil {
		t.Fatalf("GetSyncState 失败: %v", err)
	}
	if state.RecordCount != 0 || state.LastFullSyncAt != nil || state.Outcome != "" {
		t.Errorf("零值状态异常: %+v", state)
	}
}

func TestCatalogRepo_StateTransitions(t *testing.T) {
	db := setupCatalogRepoTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	if err := repo.MarkInProgress(ctx, model.DefaultMarketplace); err != nil {
		t.Fatalf("MarkInProgress 失败: %v", err)
	}
	state, _ := repo.GetSyncState(ctx, model.DefaultMarketplace)
	if state.Outcome != model.SyncOutcomeInProgress {
		t.Errorf("outcome = %s, want in_progress", state.Outcome)
	}

	if err := repo.MarkFailure(ctx, model.DefaultMarketplace, "page fetch failed", "p7"); err != nil {
		t.Fatalf("MarkFailure 失败: %v", err)
	}
	state, _ = repo.GetSyncState(ctx, model.DefaultMarketplace)
	if state.Outcome != model.SyncOutcomeFailure || state.LastError == "" || state.LastCursor != "p7" {
		t.Errorf("失败状态异常: %+v", state)
	}

	stats := datatypes.JSON([]byte(`{"pages":3}`))
	if err := repo.MarkSuccess(ctx, model.DefaultMarketplace, 2500, stats); err != nil {
		t.Fatalf("MarkSuccess 失败: %v", err)
	}
	state, _ = repo.GetSyncState(ctx, model.DefaultMarketplace)
	if state.Outcome != model.SyncOutcomeSuccess {
		t.Errorf("outcome = %s, want success", state.Outcome)
	}
	if state.RecordCount != 2500 {
		t.Errorf("record_count = %d, want 2500", state.RecordCount)
	}
	if state.LastFullSyncAt == nil {
		t.Error("last_full_sync_at 未设置")
	}
	// 成功后清空失败痕迹
	if state.LastError != "" || state.LastCursor != "" {
		t.Errorf("失败痕迹未清理: %+v", state)
	}
}
