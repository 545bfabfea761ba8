package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobBoard/internal/analytics"
	"jobBoard/internal/api/middleware"
	"jobBoard/internal/application"
	"jobBoard/internal/auth"
	"jobBoard/internal/content"
	"jobBoard/internal/jobs"
)

// Dependencies 汇总路由需要的服务。
type Dependencies struct {
	DB            *gorm.DB
	Redis         redis.UniversalClient
	AuthService   *auth.AuthService
	Revocations   *auth.RevocationList
	Catalog       *jobs.Catalog
	Workflow      *application.Workflow
	Content       *content.Store
	Analytics     *analytics.Aggregator
	Signer        URLSigner
	LoginPolicy   LoginPolicy
	CookieName    string
	CookieDomain  string
	DocumentTTL   time.Duration
	MaxBytes      int64
	MaxAdditional int
}

// RegisterRoutes 在 /api 下注册公开接口与管理员接口。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	jobHandler := NewJobHandler(deps.Catalog)
	appHandler := NewApplicationHandler(deps.Workflow, deps.Signer, deps.DocumentTTL, deps.MaxBytes, deps.MaxAdditional)
	contentHandler := NewContentHandler(deps.Content, deps.Signer, deps.DocumentTTL)
	analyticsHandler := NewAnalyticsHandler(deps.Analytics)
	authHandler := NewAuthHandler(deps.DB, deps.AuthService, deps.Revocations, deps.Redis, deps.LoginPolicy, deps.CookieName, deps.CookieDomain)

	sessionMiddleware := middleware.AdminSessionMiddleware(deps.AuthService, deps.Revocations, deps.CookieName)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	api := router.Group("/api")
	{
		api.GET("/jobs", jobHandler.ListJobs)
		api.GET("/jobs/:id", jobHandler.GetJob)
		api.POST("/applications", appHandler.Submit)
		api.GET("/check-application/:jobId/:email", appHandler.CheckApplication)
		api.GET("/content", contentHandler.GetContent)
		api.GET("/theme", contentHandler.GetTheme)

		admin := api.Group("/admin")
		admin.POST("/login", authHandler.Login)

		session := admin.Group("")
		session.Use(sessionMiddleware)
		{
			session.POST("/logout", authHandler.Logout)
			session.GET("/check", authHandler.Check)
			session.POST("/change-password", authHandler.ChangePassword)
		}

		gated := admin.Group("")
		gated.Use(sessionMiddleware, passwordGate)
		{
			gated.GET("/applications", appHandler.ListApplications)
			gated.GET("/applications/:id", appHandler.GetApplication)
			gated.PATCH("/applications/:id", appHandler.ReviewApplication)
			gated.POST("/applications/status", appHandler.BulkStatus)

			gated.POST("/jobs", jobHandler.CreateJob)
			gated.PUT("/jobs/:id", jobHandler.UpdateJob)
			gated.DELETE("/jobs/:id", jobHandler.DeleteJob)

			gated.PUT("/content/:key", contentHandler.UpdateContent)
			gated.POST("/content/logo", contentHandler.UploadLogo)

			gated.GET("/analytics", analyticsHandler.GetAnalytics)

			gated.PUT("/theme", contentHandler.UpdateTheme)
			gated.GET("/presets", contentHandler.ListPresets)
			gated.POST("/presets", contentHandler.CreatePreset)
			gated.POST("/presets/:id/apply", contentHandler.ApplyPreset)
		}
	}
}
