// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, authentication, idempotency, rate limiting, CORS and security
// headers.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/config"
	"github.com/tbourn/go-recipe-backend/internal/http/handlers"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/media"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// Deps are the runtime collaborators the router needs besides config.
type Deps struct {
	DB     *gorm.DB
	Images media.ImageStore
	// Redis switches rate limiting to the shared fixed-window limiter; nil
	// keeps the in-process token bucket.
	Redis redis.Cmdable
}

var (
	corsMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
		middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
	}
	corsExpose = []string{"X-Request-ID", "Content-Length", "Content-Disposition", "ETag", "Retry-After", "Idempotency-Replayed"}
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication,
// idempotency and rate limiting, CORS and security headers, health, docs and
// media endpoints, and then mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip (metrics endpoint excluded)
//  8. Authenticate: resolve the caller (never rejects anonymous requests)
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP, bypass on replay)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (base64 images travel inline)
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 8) Caller identity
	r.Use(middleware.Authenticate(middleware.AuthOptions{
		Secret:      []byte(cfg.Auth.JWTSecret),
		TrustHeader: cfg.Auth.TrustHeader,
	}))

	// 9) Idempotency validation (before rate limiting)
	apiBase := cfg.APIBasePath
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{ScopeFor: idempotencyScope(apiBase)},
		func(ctx context.Context, userID uint, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 10) Rate limiting per user/IP
	if rl := newLimiter(deps.Redis, cfg); rl != nil {
		r.Use(rl.Handler())
	}

	// 11) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    corsExpose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", healthHandler(db))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Locally stored recipe images
	if cfg.Media.Backend == "local" && strings.HasPrefix(cfg.Media.BaseURL, "/") {
		r.Static(cfg.Media.BaseURL, cfg.Media.Dir)
	}

	// Dependency injection: services ← repo/db/media
	recipeSvc := services.NewRecipeService(db, deps.Images)
	if cfg.Media.MaxBytes > 0 {
		recipeSvc.MaxImageBytes = cfg.Media.MaxBytes
	}
	if cfg.IdempotencyTTL > 0 {
		recipeSvc.IdempotencyTTL = cfg.IdempotencyTTL
	}

	h := handlers.New(
		recipeSvc,
		services.NewRelationService(db),
		services.NewCartService(db),
		services.NewCatalogService(db),
	)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Catalog
		api.GET("/tags", h.ListTags)
		api.GET("/tags/:id", h.GetTag)
		api.GET("/ingredients", h.ListIngredients)
		api.GET("/ingredients/:id", h.GetIngredient)

		// Recipes (read)
		api.GET("/recipes", h.ListRecipes)
		api.GET("/recipes/:id", h.GetRecipe)

		// Users (read)
		api.GET("/users/:id", h.GetUser)
	}

	authed := api.Group("", middleware.RequireAuth())
	{
		// Recipes (write)
		authed.POST("/recipes", h.CreateRecipe)
		authed.PUT("/recipes/:id", h.ReplaceRecipe)
		authed.PATCH("/recipes/:id", h.PatchRecipe)
		authed.DELETE("/recipes/:id", h.DeleteRecipe)

		// Relations
		authed.POST("/recipes/:id/favorite", h.AddFavorite)
		authed.DELETE("/recipes/:id/favorite", h.RemoveFavorite)
		authed.POST("/recipes/:id/shopping_cart", h.AddToCart)
		authed.DELETE("/recipes/:id/shopping_cart", h.RemoveFromCart)
		authed.GET("/recipes/download_shopping_cart", h.DownloadShoppingCart)

		authed.GET("/users/subscriptions", h.ListSubscriptions)
		authed.POST("/users/:id/subscribe", h.Subscribe)
		authed.DELETE("/users/:id/subscribe", h.Unsubscribe)
	}
}

// idempotencyScope maps requests that honor Idempotency-Key to the scope
// their records are stored under. Other routes get no lookup.
func idempotencyScope(apiBase string) func(*gin.Context) string {
	createPath := strings.TrimRight(apiBase, "/") + "/recipes"
	return func(c *gin.Context) string {
		if c.Request.Method == http.MethodPost && c.FullPath() == createPath {
			return services.IdempotencyScopeCreate
		}
		return ""
	}
}

// newLimiter picks the shared Redis limiter when a client is configured and
// the in-process token bucket otherwise. RATE_RPS=0 disables limiting.
func newLimiter(rdb redis.Cmdable, cfg config.Config) middleware.Limiter {
	if cfg.RateRPS <= 0 {
		return nil
	}
	if rdb != nil {
		// The fixed window admits up to a full burst per second.
		return middleware.NewRedisLimiter(rdb, cfg.RateBurst, time.Second, middleware.KeyByUserOrIP())
	}
	return middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
}

// healthHandler reports liveness plus whether the store answers a ping.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error. A non-positive cap disables it.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
