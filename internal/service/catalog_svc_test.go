package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ebay_link_v1_202608/internal/model"
	"ebay_link_v1_202608/internal/repository"
	"ebay_link_v1_202608/pkg/ebay"
)

// ==================== 测试辅助 ====================

func setupCatalogTestDB(t *testing.T) *gorm.DB {
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

// staticTokenSource 测试用凭证源，不走 HTTP
type staticTokenSource struct{}

func (staticTokenSource) ResolveCredential(ctx context.Context, accountID int64) (*model.EbayAccount, error) {
	return &model.EbayAccount{
		BaseModel:      model.BaseModel{ID: accountID},
		Marketplace:    model.DefaultMarketplace,
		TokenStatus:    model.TokenStatusValid,
		AccessToken:    "app-token",
		TokenExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

// recordingCatalogRepo 记录页写入事件顺序
type recordingCatalogRepo struct {
	repository.CatalogRepository
	pageSizes []int
}

func (r *recordingCatalogRepo) WritePage(ctx context.Context, marketplace string, records []model.CategoryRecord) error {
	if err := r.CatalogRepository.WritePage(ctx, marketplace, records); err != nil {
		return err
	}
	r.pageSizes = append(r.pageSizes, len(records))
	return nil
}

// taxonomyPageSpec 一页的行为：条数，或一个 HTTP 错误
type taxonomyPageSpec struct {
	count    int
	failWith int // 非 0 时返回该状态码

	// 响应前回调（取消測試用）
	beforeServe func()
}

// fakeTaxonomyServer 按页规格构造分页响应
// 游标格式 "p2" "p3"...，末页 next_cursor 为空
func fakeTaxonomyServer(t *testing.T, pages []taxonomyPageSpec) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		pageIdx := 0
		if cursor != "" {
			n, err := strconv.Atoi(cursor[1:])
			if err != nil {
				t.Errorf("意外的游标: %s", cursor)
			}
			pageIdx = n - 1
		}
		if pageIdx >= len(pages) {
			t.Errorf("请求了不存在的页: %d", pageIdx+1)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		spec := pages[pageIdx]
		if spec.beforeServe != nil {
			spec.beforeServe()
		}
		if spec.failWith != 0 {
			w.WriteHeader(spec.failWith)
			_, _ = w.Write([]byte(`{"errors":[{"message":"internal"}]}`))
			return
		}

		page := ebay.CategoryPage{Nodes: make([]ebay.CategoryNode, 0, spec.count)}
		for i := 0; i < spec.count; i++ {
			id := pageIdx*100000 + i
			page.Nodes = append(page.Nodes, ebay.CategoryNode{
				CategoryID:       strconv.Itoa(id),
				CategoryPath:     fmt.Sprintf("Root > Page%d > Cat%d", pageIdx+1, i),
				Leaf:             true,
				RequiredAspects:  []string{"Brand", "Condition"},
				SuggestedAspects: []string{"Color"},
			})
		}
		if pageIdx+1 < len(pages) {
			page.NextCursor = fmt.Sprintf("p%d", pageIdx+2)
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
}

func newTestCatalogService(t *testing.T, db *gorm.DB, srv *httptest.Server, threshold int64) (*CatalogService, *recordingCatalogRepo) {
	client := ebay.NewClient("test-client-id", "test-secret", "ruName", ebay.EnvSandbox)
	if srv != nil {
		client.SetBaseURL(srv.URL)
	}
	repo := &recordingCatalogRepo{CatalogRepository: repository.NewCatalogRepository(db)}
	svc := NewCatalogService(repo, staticTokenSource{}, client, threshold, 1000)
	return svc, repo
}

// ==================== 单元测试 ====================

func TestCatalogService_NeedsSync(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, _ := newTestCatalogService(t, db, nil, 1000)
	ctx := context.Background()

	cases := []struct {
		count int64
		want  bool
	}{
		{0, true},
		{999, true},
		{1000, false},
		{30000, false},
	}
	for _, c := range cases {
		db.Where("1=1").Delete(&model.SyncState{})
		if c.count > 0 {
			db.Create(&model.SyncState{Marketplace: model.DefaultMarketplace, RecordCount: c.count})
		}

		got, err := svc.NeedsSync(ctx, model.DefaultMarketplace)
		if err != nil {
			t.Fatalf("NeedsSync(count=%d) err: %v", c.count, err)
		}
		if got != c.want {
			t.Errorf("NeedsSync(count=%d) = %v, want %v", c.count, got, c.want)
		}
	}
}

func TestCatalogService_SyncFull(t *testing.T) {
	db := setupCatalogTestDB(t)
	// 3 页共 2500 条
	srv := fakeTaxonomyServer(t, []taxonomyPageSpec{
		{count: 1000}, {count: 1000}, {count: 500},
	})
	defer srv.Close()
	svc, repo := newTestCatalogService(t, db, srv, 1000)
	ctx := context.Background()

	report, err := svc.Sync(ctx, model.DefaultMarketplace, 1)
	if err != nil {
		t.Fatalf("全量同步失败: %v", err)
	}

	if report.RecordsWritten != 2500 {
		t.Errorf("records_written = %d, want 2500", report.RecordsWritten)
	}
	if report.PagesWritten != 3 {
		t.Errorf("pages_written = %d, want 3", report.PagesWritten)
	}
	if report.RunID == "" {
		t.Error("run_id 不应为空")
	}

	// 页写入事件按顺序发生
	wantPages := []int{1000, 1000, 500}
	if len(repo.pageSizes) != len(wantPages) {
		t.Fatalf("页写入次数 = %d, want %d", len(repo.pageSizes), len(wantPages))
	}
	for i, n := range wantPages {
		if repo.pageSizes[i] != n {
			t.Errorf("第 %d 页写入 %d 条, want %d", i+1, repo.pageSizes[i], n)
		}
	}

	// 终态
	state, err := svc.SyncStatus(ctx, model.DefaultMarketplace)
	if err != nil {
		t.Fatalf("查询状态失败: %v", err)
	}
	if state.RecordCount != 2500 {
		t.Errorf("record_count = %d, want 2500", state.RecordCount)
	}
	if state.Outcome != model.SyncOutcomeSuccess {
		t.Errorf("outcome = %s, want success", state.Outcome)
	}
	if state.LastFullSyncAt == nil {
		t.Error("last_full_sync_at 未设置")
	}

	// 同步后 NeedsSync 归 false
	needsSync, _ := svc.NeedsSync(ctx, model.DefaultMarketplace)
	if needsSync {
		t.Error("同步完成后不应再需要同步")
	}
}

func TestCatalogService_SyncFailurePreservesPages(t *testing.T) {
	db := setupCatalogTestDB(t)
	ctx := context.Background()

	// 预置 500 条旧记录
	old := make([]model.CategoryRecord, 0, 500)
	for i := 0; i < 500; i++ {
		old = append(old, model.CategoryRecord{
			Marketplace: model.DefaultMarketplace,
			CategoryID:  fmt.Sprintf("old-%d", i),
			Path:        "Old > Cat",
		})
	}
	if err := db.CreateInBatches(&old, 200).Error; err != nil {
		t.Fatalf("预置旧记录失败: %v", err)
	}

	// 5 页计划，第 3 页抛 500
	srv := fakeTaxonomyServer(t, []taxonomyPageSpec{
		{count: 400}, {count: 400}, {failWith: http.StatusInternalServerError}, {count: 400}, {count: 400},
	})
	defer srv.Close()
	svc, _ := newTestCatalogService(t, db, srv, 1000)

	_, err := svc.Sync(ctx, model.DefaultMarketplace, 1)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("err = %v, want *SyncError", err)
	}
	if syncErr.Page != 3 {
		t.Errorf("失败页 = %d, want 3", syncErr.Page)
	}
	if syncErr.Cursor != "p3" {
		t.Errorf("失败游标 = %s, want p3", syncErr.Cursor)
	}

	// 旧记录和已写入的两页都保留（不回滚）
	var count int64
	db.Model(&model.CategoryRecord{}).Count(&count)
	if count != 500+800 {
		t.Errorf("失败后缓存条数 = %d, want 1300", count)
	}
	var oldCount int64
	db.Model(&model.CategoryRecord{}).Where("category_id LIKE 'old-%'").Count(&oldCount)
	if oldCount != 500 {
		t.Errorf("旧记录丢失: %d, want 500", oldCount)
	}

	// 状态标记 failure，带失败详情
	state, _ := svc.SyncStatus(ctx, model.DefaultMarketplace)
	if state.Outcome != model.SyncOutcomeFailure {
		t.Errorf("outcome = %s, want failure", state.Outcome)
	}
	if state.LastError == "" {
		t.Error("失败详情未记录")
	}
	if state.LastCursor != "p3" {
		t.Errorf("失败游标未记录: %s", state.LastCursor)
	}
}

func TestCatalogService_SyncConflict(t *testing.T) {
	db := setupCatalogTestDB(t)

	firstPageStarted := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	srv := fakeTaxonomyServer(t, []taxonomyPageSpec{
		{count: 10, beforeServe: func() {
			startedOnce.Do(func() { close(firstPageStarted) })
			<-release
		}},
	})
	defer srv.Close()
	svc, _ := newTestCatalogService(t, db, srv, 1000)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Sync(ctx, model.DefaultMarketplace, 1)
		done <- err
	}()

	// 等第一个同步进入抓取阶段，再发起第二个
	<-firstPageStarted
	_, err := svc.Sync(ctx, model.DefaultMarketplace, 1)
	if !errors.Is(err, ErrSyncConflict) {
		t.Errorf("并发同步 err = %v, want ErrSyncConflict", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("第一个同步不应失败: %v", err)
	}

	// 在途同步结束后可以再次发起
	if _, err := svc.Sync(ctx, model.DefaultMarketplace, 1); err != nil {
		t.Errorf("同步结束后再次发起失败: %v", err)
	}
}

func TestCatalogService_SyncCancelled(t *testing.T) {
	db := setupCatalogTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	// 第 2 页响应前取消：第 1 页保持完整写入
	srv := fakeTaxonomyServer(t, []taxonomyPageSpec{
		{count: 300},
		{count: 300, beforeServe: func() {
			cancel()
			// 等取消传播到客户端再响应
			time.Sleep(50 * time.Millisecond)
		}},
		{count: 300},
	})
	defer srv.Close()
	svc, _ := newTestCatalogService(t, db, srv, 1000)

	_, err := svc.Sync(ctx, model.DefaultMarketplace, 1)
	if err == nil {
		t.Fatal("取消后的同步应返回错误")
	}

	// 最后一个完整页保留，没有半页数据
	var count int64
	db.Model(&model.CategoryRecord{}).Count(&count)
	if count != 300 {
		t.Errorf("取消后缓存条数 = %d, want 300", count)
	}
	state, _ := svc.SyncStatus(context.Background(), model.DefaultMarketplace)
	if state.Outcome != model.SyncOutcomeFailure {
		t.Errorf("outcome = %s, want failure", state.Outcome)
	}
}

func TestCatalogService_LookupAspects_Cached(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, _ := newTestCatalogService(t, db, nil, 1000)
	ctx := context.Background()

	db.Create(&model.CategoryRecord{
		Marketplace:      model.DefaultMarketplace,
		CategoryID:       "12345",
		Path:             "Clothing > Men > Shirts",
		Leaf:             true,
		RequiredAspects:  []string{"Brand", "Size"},
		SuggestedAspects: []string{"Color", "Material"},
	})

	aspects, source, err := svc.LookupAspects(ctx, model.DefaultMarketplace, "12345")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if source != "cached" {
		t.Errorf("source = %s, want cached", source)
	}
	if len(aspects) != 4 {
		t.Fatalf("属性条数 = %d, want 4", len(aspects))
	}

	// 必填在前且保持插入顺序；缓存属性统一降级为文本类型
	if aspects[0].Name != "Brand" || !aspects[0].Required {
		t.Errorf("aspects[0] = %+v, want required Brand", aspects[0])
	}
	if aspects[1].Name != "Size" || !aspects[1].Required {
		t.Errorf("aspects[1] = %+v, want required Size", aspects[1])
	}
	for _, a := range aspects {
		if a.ValueType != AspectTypeText {
			t.Errorf("缓存属性 %s 类型 = %s, want text", a.Name, a.ValueType)
		}
	}
}

func TestCatalogService_LookupAspects_Generated(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc, _ := newTestCatalogService(t, db, nil, 1000)
	ctx := context.Background()

	// 未命中缓存：兜底属性，永不报错
	for _, categoryID := range []string{"15709123", "11450999", "77777777"} {
		aspects, source, err := svc.LookupAspects(ctx, model.DefaultMarketplace, categoryID)
		if err != nil {
			t.Fatalf("LookupAspects(%s) err: %v", categoryID, err)
		}
		if source != "generated" {
			t.Errorf("source = %s, want generated", source)
		}
		if len(aspects) == 0 {
			t.Fatalf("兜底属性集不应为空 (category %s)", categoryID)
		}

		// 至少包含 Brand 或 Condition 必填项
		hasCore := false
		for _, a := range aspects {
			if a.Required && (a.Name == "Brand" || a.Name == "Condition") {
				hasCore = true
			}
		}
		if !hasCore {
			t.Errorf("category %s 兜底属性缺少必填 Brand/Condition: %+v", categoryID, aspects)
		}
	}
}

func TestCatalogService_FallbackFamilies(t *testing.T) {
	// 鞋类前缀命中鞋类兜底集
	aspects := resolveFallbackAspects("15709001")
	found := false
	for _, a := range aspects {
		if a.Name == "US Shoe Size" {
			found = true
		}
	}
	if !found {
		t.Error("鞋类兜底集缺少 US Shoe Size")
	}

	// 未知前缀回落到通用集
	generic := resolveFallbackAspects("99999999")
	if len(generic) == 0 {
		t.Fatal("通用兜底集不应为空")
	}
}
