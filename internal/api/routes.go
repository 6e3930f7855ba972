package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobgenie/internal/api/middleware"
	"jobgenie/internal/auth"
	"jobgenie/internal/billing"
	"jobgenie/internal/config"
	"jobgenie/internal/documents"
	"jobgenie/internal/jobs"
	"jobgenie/internal/linkedin"
	"jobgenie/internal/profile"
	"jobgenie/internal/quota"
	"jobgenie/internal/resources"
	"jobgenie/internal/skills"
	"jobgenie/internal/storage"
	"jobgenie/internal/tasks"
)

// Services 汇总路由需要的全部依赖，由 cmd/api 在启动时构造。
type Services struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Queue     tasks.Enqueuer
	Auth      *auth.AuthService
	Sessions  *auth.SessionNotifier
	Profiles  *profile.Service
	Objects   *storage.Client
	Scanner   VirusScanner
	JobSearch JobSearcher
	SavedJobs *jobs.Store
	Skills    *skills.Store
	Resources *resources.Cache
	Documents *documents.Service
	Quota     *quota.Gate
	LinkedIn  *linkedin.Optimizer
	Billing   *billing.Service
}

// RegisterRoutes 注册业务路由。
func RegisterRoutes(router *gin.Engine, cfg *config.Config, svc Services, logger *slog.Logger) {
	authHandler := NewAuthHandler(svc.DB, svc.Auth, svc.Redis, svc.Sessions, logger, cfg.Auth)
	wsHandler := NewWsHandler(svc.Redis, svc.Auth, logger, cfg.API.Origins())
	profileHandler := NewProfileHandler(svc.Profiles, svc.Objects, svc.Scanner, logger)
	jobsHandler := NewJobsHandler(svc.JobSearch, svc.SavedJobs, logger)
	skillsHandler := NewSkillsHandler(svc.Skills, svc.Resources, svc.Queue, logger)
	documentsHandler := NewDocumentsHandler(svc.Documents, svc.Quota, logger)
	linkedinHandler := NewLinkedInHandler(svc.LinkedIn, logger)
	billingHandler := NewBillingHandler(svc.Billing, logger)
	internalHandler := NewInternalHandler(svc.Resources, logger)
	authMiddleware := middleware.AuthMiddleware(svc.Auth)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.SignUp)
			authGroup.POST("/signin", authHandler.SignIn)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/signout", authMiddleware, authHandler.SignOut)
			authGroup.GET("/session", authMiddleware, authHandler.Session)
		}

		profileGroup := v1.Group("/profile", authMiddleware)
		{
			profileGroup.GET("", profileHandler.Get)
			profileGroup.PUT("", profileHandler.Update)
			profileGroup.POST("/onboarding/complete", profileHandler.CompleteOnboarding)
			profileGroup.POST("/avatar", profileHandler.UploadAvatar)
			profileGroup.GET("/avatar", profileHandler.Avatar)
		}

		jobsGroup := v1.Group("/jobs", authMiddleware)
		{
			jobsGroup.GET("/search", jobsHandler.Search)
			jobsGroup.GET("/saved", jobsHandler.ListSaved)
			jobsGroup.POST("/saved", jobsHandler.Save)
			jobsGroup.PATCH("/saved/:id", jobsHandler.UpdateStatus)
			jobsGroup.DELETE("/saved/:id", jobsHandler.Delete)
		}

		skillsGroup := v1.Group("/skills", authMiddleware)
		{
			skillsGroup.GET("/progress", skillsHandler.ListProgress)
			skillsGroup.POST("/progress", skillsHandler.RecordProgress)
			skillsGroup.DELETE("/progress/:id", skillsHandler.DeleteProgress)
			skillsGroup.GET("/resources", skillsHandler.Resources)
			skillsGroup.POST("/resources/prewarm", skillsHandler.Prewarm)
		}

		docsGroup := v1.Group("/documents", authMiddleware)
		{
			docsGroup.GET("", documentsHandler.List)
			docsGroup.POST("", documentsHandler.Generate)
			docsGroup.GET("/usage", documentsHandler.Usage)
			docsGroup.GET("/:id", documentsHandler.Get)
			docsGroup.PUT("/:id", documentsHandler.Update)
			docsGroup.DELETE("/:id", documentsHandler.Delete)
			docsGroup.POST("/:id/chat", documentsHandler.Chat)
			docsGroup.POST("/:id/export", documentsHandler.RequestExport)
			docsGroup.GET("/:id/export", documentsHandler.ExportLink)
		}

		v1.POST("/linkedin/optimize", authMiddleware, linkedinHandler.Optimize)

		// webhook 由 Stripe 签名校验，不走 bearer。
		v1.POST("/billing/webhook", billingHandler.Webhook)
		billingGroup := v1.Group("/billing", authMiddleware)
		{
			billingGroup.GET("", billingHandler.Summary)
			billingGroup.POST("/checkout", billingHandler.Checkout)
			billingGroup.POST("/portal", billingHandler.Portal)
		}
	}

	internal := router.Group("/internal", middleware.InternalSecretMiddleware(cfg.API.InternalSecret))
	{
		internal.DELETE("/resources/cache", internalHandler.ClearResourceCache)
	}
}
