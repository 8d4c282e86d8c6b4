package routes

import (
	"log/slog"
	"net/http"
	"time"

	adminapi "acessonucleo-hub/internal/api/admin"
	authapi "acessonucleo-hub/internal/api/auth"
	"acessonucleo-hub/internal/api/members"
	"acessonucleo-hub/internal/api/paymentwebhook"
	"acessonucleo-hub/internal/api/plans"
	"acessonucleo-hub/internal/app/http/middleware"
	"acessonucleo-hub/internal/authn"
	"acessonucleo-hub/internal/domain/access"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Deps struct {
	Auth     *authapi.Handler
	Members  *members.Handler
	Admin    *adminapi.Handler
	Webhooks *paymentwebhook.Handler

	Verifier authn.Verifier
	Gate     middleware.Evaluator

	CORSOrigin string
	// AuthRate limits login, registration and password reset per client IP.
	AuthRate  rate.Limit
	AuthBurst int
	Log       *slog.Logger
}

func preflight(c *gin.Context) { c.Status(http.StatusNoContent) }

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowOrigins:     []string{d.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	api.OPTIONS("/*path", preflight)
	api.GET("/plans", plans.ListPlans)

	// Sanitize public inputs
	public := api.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	limited := public.Group("/")
	limited.Use(middleware.RateLimit(d.AuthRate, d.AuthBurst, d.Log))
	limited.POST("/register", d.Auth.Register)
	limited.POST("/login", d.Auth.Login)
	limited.POST("/password/forgot", d.Auth.RequestPasswordReset)
	limited.POST("/password/reset", d.Auth.ResetPassword)

	public.GET("/auth/google", d.Auth.GoogleStart)
	public.GET("/auth/google/callback", d.Auth.GoogleCallback)

	// Authenticated
	auth := api.Group("/")
	auth.Use(middleware.AuthMiddleware(d.Verifier))
	auth.GET("/me", d.Members.Me)
	auth.POST("/logout", d.Members.Logout)
	auth.POST("/password/change", middleware.SanitizeAndCleanInputMiddleware(), d.Auth.ChangePassword)

	// Active subscribers
	member := auth.Group("/")
	member.Use(middleware.RequireAccess(d.Gate, access.ActiveMember))
	member.GET("/credential", d.Members.Credential)

	// Admin routes
	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAccess(d.Gate, access.AdminOnly), middleware.SanitizeAndCleanInputMiddleware())
	admin.GET("/subscribers", d.Admin.ListSubscribers)
	admin.GET("/subscribers/:id", d.Admin.GetSubscriber)
	admin.PATCH("/subscribers/:id/status", d.Admin.UpdateStatus)
	admin.PUT("/subscribers/:id/plan", d.Admin.UpdatePlan)
	admin.PUT("/subscribers/:id/expiration", d.Admin.UpdateExpiration)
	admin.GET("/credential", d.Admin.GetCredential)
	admin.PUT("/credential", d.Admin.UpdateCredential)
	admin.GET("/stats", d.Admin.Stats)
	admin.GET("/logs", d.Admin.Logs)
	admin.POST("/notifications/approval", d.Admin.SendApproval)

	// Payment providers call from anywhere
	hooks := r.Group("/webhooks")
	hooks.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", "X-Webhook-Token", "Idempotency-Key", "X-Delivery-Id"},
	}))
	hooks.OPTIONS("/*path", preflight)
	hooks.POST("/lastlink", d.Webhooks.Lastlink)
	hooks.POST("/payment", d.Webhooks.Payment)
	hooks.POST("/stripe", d.Webhooks.Stripe)
}
