package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"ebay_link_v1_202608/internal/controller"
	"ebay_link_v1_202608/internal/middleware"
	"ebay_link_v1_202608/internal/model"
	"ebay_link_v1_202608/internal/repository"
	"ebay_link_v1_202608/internal/router"
	"ebay_link_v1_202608/internal/service"
	"ebay_link_v1_202608/internal/task"
	"ebay_link_v1_202608/pkg/config"
	"ebay_link_v1_202608/pkg/database"
	"ebay_link_v1_202608/pkg/ebay"
)

func main() {
	// 1. 加载配置
	cfg := config.Load()
	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:      cfg.JWTSecret,
		AccessTokenTTL: 2 * time.Hour,
		Issuer:         "ebay-link",
	})

	// 2. 初始化数据库
	db := initDatabase(cfg)

	// 3. 初始化依赖
	deps := initDependencies(db, cfg)

	// 4. 启动定时任务
	initTasks(deps)

	// 5. 初始化路由并启动服务
	r := router.SetupRouter(deps.Controllers)
	startServer(r, cfg.ServerPort)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers *router.Controllers
	Config      *config.Config
}

// Repositories 仓库集合
type Repositories struct {
	User    repository.UserRepository
	Account repository.AccountRepository
	Catalog repository.CatalogRepository
}

// Services 服务集合
type Services struct {
	User    *service.UserService
	Auth    *service.AuthService
	Health  *service.HealthService
	Catalog *service.CatalogService
	Publish *service.PublishService
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase(cfg *config.Config) *gorm.DB {
	return database.InitDB(cfg.DatabaseDSN,
		// Manager
		&model.SysUser{},
		// Account
		&model.EbayAccount{},
		// Catalog
		&model.CategoryRecord{}, &model.SyncState{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB, cfg *config.Config) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		User:    repository.NewUserRepository(db),
		Account: repository.NewAccountRepository(db),
		Catalog: repository.NewCatalogRepository(db),
	}

	// -------- eBay 客户端 --------
	client := ebay.NewClient(cfg.EbayClientID, cfg.EbayClientSecret, cfg.EbayRuName, cfg.EbayEnv)

	// -------- 业务服务 --------
	services := &Services{}
	services.User = service.NewUserService(repos.User)
	services.Auth = service.NewAuthService(repos.Account, client)
	services.Health = service.NewHealthService(repos.Account, client)
	services.Catalog = service.NewCatalogService(
		repos.Catalog, services.Auth, client,
		cfg.CatalogStalenessThreshold, cfg.CatalogPageSize,
	)
	services.Publish = service.NewPublishService(services.Auth, services.Catalog, client)

	// -------- Controller 层 --------
	controllers := &router.Controllers{
		User:    controller.NewUserController(services.User),
		Auth:    controller.NewAuthController(services.Auth, services.Health),
		Catalog: controller.NewCatalogController(services.Catalog),
		Publish: controller.NewPublishController(services.Publish),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
		Config:      cfg,
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) {
	// Token 保活
	tokenTask := task.NewTokenTask(deps.Repos.Account, deps.Services.Auth)
	tokenTask.Start()

	// 类目巡检（同步账号由配置指定，0 则空转）
	catalogTask := task.NewCatalogTask(deps.Services.Catalog, deps.Config.CatalogSyncAccountID)
	catalogTask.Start()

	log.Println("定时任务已启动")
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r http.Handler, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}
