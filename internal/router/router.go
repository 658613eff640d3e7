package router

import (
	"github.com/blues/trustfunds/internal/auth"
	"github.com/blues/trustfunds/internal/chain"
	"github.com/blues/trustfunds/internal/config"
	"github.com/blues/trustfunds/internal/handler"
	"github.com/blues/trustfunds/internal/logic"
	"github.com/blues/trustfunds/internal/metrics"
	"github.com/blues/trustfunds/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps 路由依赖，全部在 main 中构造后注入
type Deps struct {
	DB          *gorm.DB
	Bridge      chain.Bridge
	Credentials *auth.Credentials
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	Config      *config.Config
}

func Setup(deps Deps) *gin.Engine {
	handler.RegisterValidators()

	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics(deps.Metrics))

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(deps.Config.RateLimit.RequestsPerSecond, deps.Config.RateLimit.Burst)
	}
	session := middleware.Session(deps.Credentials)

	campaignLogic := logic.NewCampaignLogic(deps.DB, deps.Bridge, deps.Config)
	userHandler := handler.NewUserHandler(logic.NewUserLogic(deps.DB, deps.Credentials), deps.Config.Auth)
	campaignHandler := handler.NewCampaignHandler(campaignLogic)
	forumHandler := handler.NewForumHandler(logic.NewForumLogic(deps.DB))
	healthHandler := handler.NewHealthHandler(deps.DB, deps.Bridge)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)
		if deps.Metrics != nil {
			v1.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
		}

		// 用户相关路由
		users := v1.Group("/users")
		{
			users.POST("/register", limiter.Handler(), userHandler.Register)
			users.POST("/login", limiter.Handler(), userHandler.Login)
			users.GET("/logout", session, userHandler.Logout)
			users.GET("/me", session, userHandler.Me)
		}

		// 众筹相关路由
		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("/create", session, campaignHandler.CreateCampaign)
			campaigns.GET("/all", campaignHandler.GetCampaigns)
			campaigns.GET("/causes", campaignHandler.GetCauses)
			campaigns.GET("/search", campaignHandler.SearchCampaigns)
			campaigns.GET("/user", session, campaignHandler.GetUserCampaigns)
			campaigns.GET("/user/:id", session, campaignHandler.GetUserCampaign)
			campaigns.POST("/actions/:actionId/retry", session, campaignHandler.RetryAction)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.GET("/:id/actions", campaignHandler.GetCampaignActions)
			campaigns.PUT("/:id", session, campaignHandler.UpdateCampaign)
			campaigns.DELETE("/:id", session, campaignHandler.DeleteCampaign)
			campaigns.POST("/:id/retry", session, campaignHandler.RetryCampaign)
			campaigns.POST("/:id/donate", session, campaignHandler.Donate)
			campaigns.POST("/:id/vote", session, campaignHandler.Vote)
			campaigns.POST("/:id/finalize", session, campaignHandler.FinalizeMilestone)
		}

		// 论坛相关路由
		forum := v1.Group("/forum")
		{
			forum.GET("/:id", forumHandler.GetMessages)
			forum.POST("/:id/send", session, forumHandler.SendMessage)
		}
	}

	return r
}
