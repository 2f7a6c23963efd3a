package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/config"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/transport/http/handlers"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/transport/http/middleware"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	PasswordReset *usecase.PasswordResetService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config     *config.AppConfig
	Logger     *zap.Logger
	Services   ServiceSet
	Validator  middleware.AccessTokenAuthenticator
	Authorizer port.Authorizer
	Throttle   *middleware.Throttle
	Metrics    *middleware.HTTPMetrics
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Database Pinger
	KV       Pinger
}

// Pinger exposes readiness behaviour for a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	var trustedProxies []string
	if deps.Config != nil {
		trustedProxies = deps.Config.HTTP.TrustedProxies
	}
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		_ = r.SetTrustedProxies(nil)
		if deps.Logger != nil {
			deps.Logger.Error("invalid trusted proxies, ignoring forwarding headers", zap.Error(err))
		}
	}

	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.KV != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("kv", deps.KV.Ping))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(metricsHandler(deps.Gatherer)))

	authorizer := deps.Authorizer
	if authorizer == nil {
		authorizer = usecase.NewRoleAuthorizer()
	}

	api := r.Group("/api/v1")
	api.Use(middleware.Authenticate(deps.Validator, deps.Logger))

	authGroup := api.Group("/auth")
	if deps.Throttle != nil {
		authGroup.Use(deps.Throttle.Handler())
	}

	requireAuth := middleware.RequireAuthenticated()

	if deps.Services.Auth != nil {
		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", requireAuth, authHandler.Logout)
		authGroup.POST("/logout-all", requireAuth, authHandler.LogoutAll)
		authGroup.GET("/me", requireAuth, authHandler.Me)
		authGroup.POST("/users/:id/revoke-sessions",
			middleware.RequireRoles(authorizer, domain.RoleAdmin), authHandler.RevokeUserSessions)
	}

	if deps.Services.Registration != nil {
		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration)
		authGroup.POST("/register", registrationHandler.Register)
	}

	if deps.Services.PasswordReset != nil {
		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset)
		resetGroup := authGroup.Group("/password-reset")
		resetGroup.POST("/request", passwordHandler.RequestReset)
		resetGroup.POST("/confirm", passwordHandler.ConfirmReset)
	}

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
