package task

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ebay_link_v1_202608/internal/model"
	"ebay_link_v1_202608/internal/repository"
	"ebay_link_v1_202608/internal/service"
)

type TokenTask struct {
	AccountRepo repository.AccountRepository
	AuthService *service.AuthService
	Cron        *cron.Cron

	// 控制并发刷新的数量，防止触发 eBay 限流
	concurrencyLimit int
	sleepTime        time.Duration
}

func NewTokenTask(accountRepo repository.AccountRepository, authService *service.AuthService) *TokenTask {
	return &TokenTask{
		AccountRepo:      accountRepo,
		AuthService:      authService,
		Cron:             cron.New(cron.WithSeconds()), // 支持秒级控制
		concurrencyLimit: 20,
		sleepTime:        50 * time.Millisecond, // 每个协程启动间隔，平滑波峰
	}
}

// Start 启动定时任务
func (t *TokenTask) Start() {
	// 首次执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		log.Println("[Task] 服务启动，正在执行首次 Token 检查...")
		t.refreshJob(ctx)
	}()

	// 定时策略：每 40 分钟一轮
	_, err := t.Cron.AddFunc("0 0/40 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		t.refreshJob(ctx)
	})

	if err != nil {
		log.Fatalf("无法启动 Token 定时任务: %v", err)
	}

	t.Cron.Start()
	log.Println("Token 保活任务已启动 (每40分钟检查一次)")
}

// Stop 停止定时任务
func (t *TokenTask) Stop() {
	t.Cron.Stop()
}

// refreshJob 自动刷新逻辑
// 只挑 30 分钟内到期且仍可刷新的账号
func (t *TokenTask) refreshJob(ctx context.Context) {
	accounts, err := t.AccountRepo.FindExpiring(ctx, 30*time.Minute)
	if err != nil {
		log.Printf("[Cron] 账号过期状态查询失败: %v", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	// 信号量通道，容量即为并发上限
	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup

	log.Printf("[Cron] 开始处理 %d 个账号的 Token 刷新，并发上限: %d", len(accounts), t.concurrencyLimit)

	for _, account := range accounts {
		// 检查上下文是否已取消（超时处理）
		select {
		case <-ctx.Done():
			log.Println("[Cron] 任务超时停止")
			return
		default:
		}

		// 获取信号量（如果已满则阻塞在此，起到限流作用）
		sem <- struct{}{}
		wg.Add(1)

		// 平滑波峰
		time.Sleep(t.sleepTime)

		go func(a model.EbayAccount) {
			defer wg.Done()
			defer func() { <-sem }() // 任务结束释放信号量

			if _, err := t.AuthService.RefreshAccessToken(ctx, a.ID); err != nil {
				// 日志仅记录，不中断其他协程
				log.Printf("[Cron] 账号 [%s] 刷新失败: %v", a.EbayUsername, err)
			}
		}(account)
	}

	wg.Wait()
	log.Println("[Cron] 本轮 Token 刷新任务完成")
}
