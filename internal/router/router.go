package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/handler"
	"github.com/stemsi/exstem-delivery/internal/middleware"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stemsi/exstem-delivery/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	Admin   *handler.AdminHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// limiter may be nil to disable rate limiting.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition", "X-RateLimit-Remaining"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally; exports are skipped.
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	limit := func(action string) gin.HandlerFunc {
		if limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return limiter.Middleware(action)
	}

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(auth))
	{
		studentAPI.POST("/templates/:template_id/attempts", limit("start"), handlers.Attempt.StartAttempt)
		studentAPI.GET("/attempts", handlers.Attempt.ListAttempts)
		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		studentAPI.POST("/attempts/:attempt_id/submit", limit("submit"), handlers.Attempt.SubmitAttempt)
		studentAPI.GET("/attempts/:attempt_id/review", handlers.Attempt.GetReview)
		studentAPI.GET("/attempts/:attempt_id/export", handlers.Attempt.ExportReview)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(auth))
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth))
	{
		adminAPI.GET("/attempts/:attempt_id/review",
			middleware.RequirePermission(string(model.PermissionAttemptsReview)),
			handlers.Admin.ReviewAttempt,
		)
		adminAPI.GET("/attempts/:attempt_id/export",
			middleware.RequirePermission(string(model.PermissionAttemptsReview)),
			handlers.Admin.ExportAttempt,
		)
		adminAPI.POST("/templates/:template_id/refresh-cache",
			middleware.RequirePermission(string(model.PermissionTemplatesRefresh)),
			handlers.Admin.RefreshTemplateCache,
		)
	}

	return router
}
