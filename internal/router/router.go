// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/javajoker/library-backend/internal/config"
	"github.com/javajoker/library-backend/internal/handlers"
	"github.com/javajoker/library-backend/internal/middleware"
	"github.com/javajoker/library-backend/internal/repository"
	"github.com/javajoker/library-backend/internal/services"
	"github.com/javajoker/library-backend/internal/utils"
)

func Initialize(cfg *config.Config, store repository.Store, log logrus.FieldLogger) *gin.Engine {
	// Initialize services
	authService := services.NewAuthService(store, cfg.JWT, log)
	borrowingService := services.NewBorrowingService(store, cfg.Borrowing, log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	borrowingHandler := handlers.NewBorrowingHandler(borrowingService)
	adminHandler := handlers.NewAdminHandler(borrowingService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	generalLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	loginLimiter := middleware.NewLoginRateLimiter(cfg.RateLimit.LoginsPerMinute)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(generalLimiter.Middleware())
	r.Use(middleware.AuditLog(store, log))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		{
			auth.POST("/login", loginLimiter.Middleware(), authHandler.Login)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		// Book routes
		books := v1.Group("/books")
		books.Use(middleware.AuthRequired())
		{
			books.GET("/:id/availability", borrowingHandler.GetBookAvailability)
		}

		// Borrowing routes
		borrowing := v1.Group("/borrowing-requests")
		borrowing.Use(middleware.AuthRequired())
		{
			borrowing.POST("", borrowingHandler.CreateRequest)
			borrowing.GET("/my", borrowingHandler.GetMyRequests)
			borrowing.GET("/:id", borrowingHandler.GetRequest)
			borrowing.POST("/:id/cancel", borrowingHandler.CancelRequest)
			borrowing.POST("/items/:itemId/extend", borrowingHandler.ExtendDueDate)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/borrowing-requests", adminHandler.GetBorrowingRequests)
			admin.PUT("/borrowing-requests/:id/approve", adminHandler.ApproveBorrowingRequest)
			admin.PUT("/borrowing-requests/:id/reject", adminHandler.RejectBorrowingRequest)
			admin.PUT("/borrowing-items/:itemId/return", adminHandler.ReturnBorrowingItem)
		}
	}

	return r
}
