package router

import (
	"github.com/gin-gonic/gin"

	"ebay_link_v1_202608/internal/controller"
	"ebay_link_v1_202608/internal/middleware"
)

// Controllers 控制器集合
type Controllers struct {
	User    *controller.UserController
	Auth    *controller.AuthController
	Catalog *controller.CatalogController
	Publish *controller.PublishController
}

// SetupRouter 注册所有路由
func SetupRouter(ctrls *Controllers) *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		// 用户组（登录无需鉴权）
		users := api.Group("/users")
		{
			users.POST("/login", ctrls.User.Login)
		}

		// auth 授权组
		oauth := api.Group("/oauth")
		{
			// eBay 回调不经过本系统 JWT，由 state 校验身份
			oauth.GET("/callback", ctrls.Auth.Callback)

			authed := oauth.Group("", middleware.JWTAuth())
			{
				authed.GET("/login", ctrls.Auth.Connect)
				authed.POST("/refresh", ctrls.Auth.Refresh)
				authed.POST("/disconnect", ctrls.Auth.Disconnect)
			}
		}

		// 账号组
		accounts := api.Group("/accounts", middleware.JWTAuth())
		{
			accounts.GET("/:id/probe", ctrls.Auth.Probe)
		}

		// 类目组
		catalog := api.Group("/catalog", middleware.JWTAuth())
		{
			catalog.GET("/status", ctrls.Catalog.Status)
			catalog.GET("/aspects", ctrls.Catalog.Aspects)
			// 全量同步开销大，仅管理员可手动触发
			catalog.POST("/sync", middleware.RequireRole("admin"), ctrls.Catalog.Sync)
		}

		// 刊登组
		listings := api.Group("/listings", middleware.JWTAuth())
		{
			listings.POST("/publish", ctrls.Publish.Publish)
		}
	}

	return r
}
