package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/crisha-app/crisha-backend/config"
	"github.com/crisha-app/crisha-backend/controllers"
	"github.com/crisha-app/crisha-backend/middleware"
	"github.com/crisha-app/crisha-backend/services"
	"github.com/crisha-app/crisha-backend/ws"
)

func SetupRouter(r *gin.Engine, db *gorm.DB, cfg config.Config, pipeline *services.Pipeline, robokassa *services.RobokassaClient) *gin.Engine {
	r.Use(
		middleware.DBMiddleware(db),
		middleware.ConfigMiddleware(cfg),
		middleware.PipelineMiddleware(pipeline),
		middleware.RobokassaMiddleware(robokassa),
	)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", controllers.HealthCheck)

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)
	}

	user := api.Group("/user")
	{
		user.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		user.GET("/info", controllers.UserInfo)
		user.POST("/change-password", controllers.ChangePassword)
	}

	// Analysis and document reads run with optional auth: anonymous
	// uploads are allowed and bypass the quota.
	optional := middleware.OptionalAuthMiddleware(cfg.JWTSecret)
	api.POST("/analyze", optional, controllers.AnalyzeContract)
	api.GET("/documents", optional, controllers.GetDocuments)
	api.GET("/documents/:id", optional, controllers.GetDocumentDetail)
	api.GET("/documents/:id/download", optional, controllers.DownloadImprovedDocument)

	payment := api.Group("/payment")
	{
		payment.POST("/create", middleware.AuthMiddleware(cfg.JWTSecret), controllers.CreatePayment)
		payment.POST("/webhook", controllers.PaymentWebhook)
	}

	r.GET("/ws/document/:id", ws.HandleDocumentWebSocket(cfg.JWTSecret))
	r.GET("/ws/status", ws.HandleGlobalWebSocket(cfg.JWTSecret))

	return r
}
