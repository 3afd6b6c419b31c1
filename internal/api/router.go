package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AhmedAbubaker98/GitInsight/config"
	"github.com/AhmedAbubaker98/GitInsight/internal/api/handler"
	"github.com/AhmedAbubaker98/GitInsight/internal/api/middleware"
)

type Router struct {
	authHandler     *handler.AuthHandler
	analysisHandler *handler.AnalysisHandler
	userHandler     *handler.UserHandler
	cfg             *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	analysisHandler *handler.AnalysisHandler,
	userHandler *handler.UserHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:     authHandler,
		analysisHandler: analysisHandler,
		userHandler:     userHandler,
		cfg:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	{
		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.GET("/github", r.authHandler.GithubAuth)
			auth.GET("/github/callback", r.authHandler.GithubCallback)
		}

		// 提交与轮询对游客开放，登录用户自动关联历史
		analyses := api.Group("/analyses")
		analyses.Use(middleware.OptionalAuth(r.cfg.JWT.Secret))
		{
			analyses.POST("", r.analysisHandler.Submit)
			analyses.GET("/:id", r.analysisHandler.GetStatus)
		}

		// 历史记录需要登录
		history := api.Group("/history")
		history.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			history.GET("", r.analysisHandler.History)
			history.GET("/:id", r.analysisHandler.HistoryDetail)
		}

		// 当前用户信息
		user := api.Group("/user")
		user.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			user.GET("/me", r.userHandler.Me)
		}
	}

	return engine
}
