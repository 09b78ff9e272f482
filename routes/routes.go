package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/reunite-app/api-go/config"
	"github.com/reunite-app/api-go/controllers"
	"github.com/reunite-app/api-go/jobs"
	"github.com/reunite-app/api-go/matching"
	"github.com/reunite-app/api-go/middleware"
	"gorm.io/gorm"
)

func SetupRoutes(r *gin.Engine, db *gorm.DB, queue *jobs.Queue, processor *matching.Processor, resolver *matching.Resolver, extractor *matching.Extractor, matchCfg *config.MatchingConfig) {
	// Initialize controllers
	authController := controllers.NewAuthController(db)
	uploadController := controllers.NewUploadController(db)
	reportController := controllers.NewReportController(db, queue, processor, resolver)
	matchController := controllers.NewMatchController(db)
	notificationController := controllers.NewNotificationController(db)
	systemController := controllers.NewSystemController(db, queue, extractor, matchCfg)

	r.GET("/health", systemController.Health)

	// Public routes
	public := r.Group("/api")
	{
		public.POST("/register", authController.Register)
		public.POST("/login", authController.Login)
	}

	// Protected routes
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.POST("/logout", authController.Logout)
		protected.POST("/refresh-token", authController.RefreshToken)
		// User routes
		protected.GET("/profile", authController.GetProfile)
		protected.PUT("/profile", authController.UpdateProfile)

		// Setup other routes within the protected group
		SetupUploadRoutes(protected, uploadController)
		SetupReportRoutes(protected, reportController)
		SetupMatchRoutes(protected, matchController)
		SetupNotificationRoutes(protected, notificationController)

		admin := protected.Group("")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.GET("/queue/stats", systemController.QueueStats)
		}
	}
}
