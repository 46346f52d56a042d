package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置
// 来源优先级：环境变量 > config.yaml > 默认值
type Config struct {
	ServerPort  string
	DatabaseDSN string
	JWTSecret   string

	// eBay 开发者应用配置
	EbayClientID     string
	EbayClientSecret string
	EbayRuName       string // eBay 的 redirect_uri 标识
	EbayEnv          string // sandbox / production

	// 类目缓存配置
	CatalogStalenessThreshold int64 // 低于该条数视为缓存不可用
	CatalogPageSize           int   // 分页抓取每页条数
	CatalogSyncAccountID      int64 // 巡检任务用哪个账号同步，0 表示不启用
}

// Load 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// 默认值
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DATABASE_DSN", "host=localhost user=ebay_admin password=1234 dbname=ebay_link port=5432 sslmode=disable")
	viper.SetDefault("JWT_SECRET", "ebay-link-secret-key-change-in-production")
	viper.SetDefault("EBAY_ENV", "sandbox")
	viper.SetDefault("CATALOG_STALENESS_THRESHOLD", 1000)
	viper.SetDefault("CATALOG_PAGE_SIZE", 1000)
	viper.SetDefault("CATALOG_SYNC_ACCOUNT_ID", 0)

	if err := viper.ReadInConfig(); err != nil {
		// 没有配置文件不算错误，全部走环境变量/默认值
		log.Printf("未找到配置文件，使用环境变量: %v", err)
	}

	return &Config{
		ServerPort:  viper.GetString("SERVER_PORT"),
		DatabaseDSN: viper.GetString("DATABASE_DSN"),
		JWTSecret:   viper.GetString("JWT_SECRET"),

		EbayClientID:     viper.GetString("EBAY_CLIENT_ID"),
		EbayClientSecret: viper.GetString("EBAY_CLIENT_SECRET"),
		EbayRuName:       viper.GetString("EBAY_RUNAME"),
		EbayEnv:          viper.GetString("EBAY_ENV"),

		CatalogStalenessThreshold: viper.GetInt64("CATALOG_STALENESS_THRESHOLD"),
		CatalogPageSize:           viper.GetInt("CATALOG_PAGE_SIZE"),
		CatalogSyncAccountID:      viper.GetInt64("CATALOG_SYNC_ACCOUNT_ID"),
	}
}
