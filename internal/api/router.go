// Package api wires together all HTTP routes for the supervision portal backend.
//
// Route grouping philosophy:
//   - /health, /ready and /version are unauthenticated so that load balancers
//     and deployment tooling can probe the service without credentials.
//   - POST /api/v1/auth/login is public but sits behind a strict rate limiter;
//     it is the only way to obtain a session token.
//   - Everything else under /api/v1/ requires a valid JWT and the appropriate
//     role. Administrators see everything, Supervisors handle day-to-day
//     casework, and Entity users are confined to their own institution.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supervision-portal/supervision-portal/internal/api/portal"
	"github.com/supervision-portal/supervision-portal/internal/audit"
	"github.com/supervision-portal/supervision-portal/internal/config"
	"github.com/supervision-portal/supervision-portal/internal/db/models"
	"github.com/supervision-portal/supervision-portal/internal/jobs"
	"github.com/supervision-portal/supervision-portal/internal/middleware"
	"github.com/supervision-portal/supervision-portal/internal/performance"
	"github.com/supervision-portal/supervision-portal/internal/registry"
	"github.com/supervision-portal/supervision-portal/internal/risk"
	"github.com/supervision-portal/supervision-portal/internal/safego"
	"github.com/supervision-portal/supervision-portal/internal/store"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	auditQueue     *audit.Queue
	dueNotifier    *jobs.FindingDueNotifier
	sessionSweeper *jobs.SessionSweeper
	rateLimiters   []*middleware.RateLimiter
	redisLimiter   *middleware.RedisRateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first. The
// audit queue is stopped last so that audit entries emitted by the other jobs
// on their way down still reach the chain.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.dueNotifier != nil {
		bg.dueNotifier.Stop()
	}
	if bg.sessionSweeper != nil {
		bg.sessionSweeper.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.redisLimiter != nil {
		if err := bg.redisLimiter.Close(); err != nil {
			slog.Warn("closing redis rate limiter", "error", err)
		}
	}
	if bg.auditQueue != nil {
		bg.auditQueue.Stop(5 * time.Second)
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg *config.Config, st store.Store) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	// Domain services. The registry keeps a warm in-memory view of the
	// institution register, so it loads before the first request arrives.
	regService := registry.NewService(st)
	if err := regService.Load(context.Background()); err != nil {
		return nil, nil, err
	}
	riskEngine := risk.NewEngine(st)
	perfAnalyzer := performance.NewAnalyzer(st)

	auditQueue, err := audit.NewQueue(st, cfg.Audit.QueueSize, cfg.Audit.RetryBudget)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Audit.Shipping.Enabled {
		shipper, shipErr := audit.NewMultiShipper(shipperConfigs(&cfg.Audit.Shipping))
		if shipErr != nil {
			return nil, nil, shipErr
		}
		auditQueue.SetShipper(shipper)
		slog.Info("audit shipping enabled", "type", cfg.Audit.Shipping.Type)
	}

	// Background jobs.
	dueNotifier := jobs.NewFindingDueNotifier(st, &cfg.Notifications)
	safego.Go(func() { dueNotifier.Start(context.Background()) })

	sessionSweeper := jobs.NewSessionSweeper(st, &cfg.Auth)
	safego.Go(func() { sessionSweeper.Start(context.Background()) })

	// Middleware stack. Order matters: the request ID must exist before the
	// logger reads it, and metrics observe the final status after recovery.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	router.GET("/health", healthCheckHandler(st))
	router.GET("/ready", readinessHandler(st, regService))
	router.GET("/version", versionHandler())

	// Handlers.
	authHandlers := portal.NewAuthHandlers(st, &cfg.Auth)
	institutionHandlers := portal.NewInstitutionHandlers(regService, st)
	riskHandlers := portal.NewRiskProfileHandlers(st, riskEngine)
	surveillanceHandlers := portal.NewSurveillanceHandlers(st)
	inspectionHandlers := portal.NewInspectionHandlers(st)
	complianceHandlers := portal.NewComplianceHandlers(st)
	auditLogHandlers := portal.NewAuditLogHandlers(st, auditQueue)
	supervisorHandlers := portal.NewSupervisorHandlers(st, perfAnalyzer)
	dashboardHandlers := portal.NewDashboardHandlers(st)

	bg := &BackgroundServices{
		auditQueue:     auditQueue,
		dueNotifier:    dueNotifier,
		sessionSweeper: sessionSweeper,
	}

	apiV1 := router.Group("/api/v1")

	// Public authentication endpoint. Strictly rate limited so credential
	// stuffing burns out long before the bcrypt comparisons do.
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	bg.rateLimiters = append(bg.rateLimiters, authRateLimiter)
	apiV1.POST("/auth/login",
		middleware.RateLimitMiddleware(authRateLimiter),
		authHandlers.LoginHandler())

	// Everything below requires a valid session token.
	authed := apiV1.Group("")
	authed.Use(middleware.AuthMiddleware(st))

	if cfg.Security.RateLimiting.Enabled {
		limitCfg := middleware.RateLimitConfigFrom(cfg.Security.RateLimiting)
		if cfg.Security.RateLimiting.RedisURL != "" {
			redisLimiter, rlErr := middleware.NewRedisRateLimiter(cfg.Security.RateLimiting.RedisURL, limitCfg)
			if rlErr != nil {
				slog.Error("redis rate limiter unavailable, falling back to in-process limiter",
					"error", rlErr)
			} else {
				bg.redisLimiter = redisLimiter
				authed.Use(middleware.RedisRateLimitMiddleware(redisLimiter))
			}
		}
		if bg.redisLimiter == nil {
			generalRateLimiter := middleware.NewRateLimiter(limitCfg)
			bg.rateLimiters = append(bg.rateLimiters, generalRateLimiter)
			authed.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		}
	}

	if cfg.Audit.Enabled {
		authed.Use(middleware.AuditMiddleware(auditQueue, &cfg.Audit))
	}

	staff := []string{models.RoleAdministrator, models.RoleSupervisor}

	// Institution registry. Entity users may view their own institution;
	// registration and licensing actions are administrator-only.
	institutions := authed.Group("/institutions")
	{
		institutions.GET("", middleware.RequireRole(staff...), institutionHandlers.ListHandler())
		institutions.GET("/statistics", middleware.RequireRole(staff...), institutionHandlers.StatisticsHandler())
		institutions.GET("/:id", middleware.RequireInstitutionAccess("id"), institutionHandlers.GetHandler())
		institutions.POST("", middleware.RequireRole(models.RoleAdministrator), institutionHandlers.CreateHandler())
		institutions.PUT("/:id", middleware.RequireRole(models.RoleAdministrator), institutionHandlers.UpdateHandler())
		institutions.DELETE("/:id", middleware.RequireRole(models.RoleAdministrator), institutionHandlers.DeleteHandler())
		institutions.POST("/:id/license-actions", middleware.RequireRole(models.RoleAdministrator), institutionHandlers.LicenseActionHandler())

		// Compliance ledger and interventions. Entity users may read their
		// own institution's; writes are staff casework.
		institutions.GET("/:id/compliance", middleware.RequireInstitutionAccess("id"), complianceHandlers.ListHandler())
		institutions.PUT("/:id/compliance", middleware.RequireRole(staff...), complianceHandlers.UpsertHandler())
		institutions.GET("/:id/interventions", middleware.RequireInstitutionAccess("id"), complianceHandlers.ListInterventionsHandler())
		institutions.POST("/:id/interventions", middleware.RequireRole(staff...), complianceHandlers.CreateInterventionHandler())
	}

	// Risk scoring.
	riskGroup := authed.Group("")
	riskGroup.Use(middleware.RequireRole(staff...))
	{
		riskGroup.GET("/risk-profiles", riskHandlers.ListHandler())
		riskGroup.POST("/risk-profiles", riskHandlers.CreateHandler())
		riskGroup.PUT("/risk-profiles/:id", riskHandlers.UpdateHandler())
		riskGroup.POST("/risk-assessment", riskHandlers.AssessHandler())
	}

	// Surveillance logs and inspection findings are staff casework.
	casework := authed.Group("")
	casework.Use(middleware.RequireRole(staff...))
	{
		casework.GET("/surveillance", surveillanceHandlers.ListHandler())
		casework.POST("/surveillance", surveillanceHandlers.CreateHandler())
		casework.GET("/inspections", inspectionHandlers.ListHandler())
		casework.POST("/inspections", inspectionHandlers.CreateHandler())
		casework.PUT("/inspections/:id/status", inspectionHandlers.StatusHandler())
	}

	// Audit trail. Reads and chain verification are administrator-only;
	// any authenticated client may record an event.
	auditLogs := authed.Group("/audit-logs")
	{
		auditLogs.GET("", middleware.RequireRole(models.RoleAdministrator), auditLogHandlers.ListHandler())
		auditLogs.GET("/verify", middleware.RequireRole(models.RoleAdministrator), auditLogHandlers.VerifyHandler())
		auditLogs.POST("", auditLogHandlers.CreateHandler())
	}

	// Supervisor performance analytics. Static siblings are registered
	// before the :id routes so gin does not treat them as supervisor IDs.
	supervisors := authed.Group("/supervisors")
	supervisors.Use(middleware.RequireRole(staff...))
	{
		supervisors.GET("", supervisorHandlers.ListHandler())
		supervisors.GET("/anomalies", supervisorHandlers.AnomaliesHandler())
		supervisors.GET("/caseload", supervisorHandlers.CaseLoadHandler())
		supervisors.GET("/:id", supervisorHandlers.GetHandler())
		supervisors.GET("/:id/performance", supervisorHandlers.PerformanceHandler())
	}

	// Dashboard aggregates.
	dashboard := authed.Group("/dashboard")
	dashboard.Use(middleware.RequireRole(staff...))
	{
		dashboard.POST("/analytics", dashboardHandlers.AnalyticsHandler())
		dashboard.POST("/trends", dashboardHandlers.TrendsHandler())
	}

	return router, bg, nil
}

// shipperConfigs maps the audit shipping settings onto shipper destinations.
func shipperConfigs(cfg *config.AuditShippingConfig) []audit.ShipperConfig {
	sc := audit.ShipperConfig{
		Enabled: cfg.Enabled,
		Type:    cfg.Type,
	}
	switch cfg.Type {
	case "webhook":
		sc.Webhook = &audit.WebhookConfig{
			URL:     cfg.WebhookURL,
			Timeout: cfg.WebhookTimeout,
		}
	case "file":
		sc.File = &audit.FileConfig{
			Path:       cfg.FilePath,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}
	return []audit.ShipperConfig{sc}
}

// @Summary      Health check
// @Description  Returns the health status of the service, including store connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: store connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service.
func healthCheckHandler(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "store connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks store connectivity and registry warm-up.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: reason"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also reports whether the
// institution registry has finished its initial load, so a readiness gate
// holds traffic until listing and search return complete results.
func readinessHandler(st store.Store, reg *registry.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := st.Ping(c.Request.Context()); err != nil {
			checks["store"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "store not ready",
			})
			return
		}
		checks["store"] = "healthy"

		if reg.Loading() {
			checks["registry"] = "loading"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "institution registry still loading",
			})
			return
		}
		checks["registry"] = "ready"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version.
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", requestIDString(requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

func requestIDString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// CORSMiddleware handles CORS.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
