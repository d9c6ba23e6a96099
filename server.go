package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/gsheets"
	"bitbucket.org/pushfeedback/feedback_backend/middlewares"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/notifier"
	"bitbucket.org/pushfeedback/feedback_backend/tracking"
	"bitbucket.org/pushfeedback/feedback_backend/utils"
	"bitbucket.org/pushfeedback/feedback_backend/wbsync"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	engine := wbsync.NewEngine(notifier.LogNotifier{})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.SessionMiddleware())
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	// Chat-gateway API
	r.POST("/api/users", wbsync.RegisterUserHandler())
	r.GET("/api/users/status", wbsync.StatusHandler())
	r.POST("/api/users/kick", wbsync.KickUserHandler())
	r.POST("/api/users/stars", wbsync.SetStarsHandler())

	r.POST("/api/auth/request-code", wbsync.RequestCodeHandler())
	r.POST("/api/auth/verify-code", wbsync.VerifyCodeHandler())
	r.POST("/api/auth/cancel", wbsync.CancelLoginHandler())
	r.POST("/api/auth/logout", wbsync.LogoutHandler())

	r.GET("/api/suppliers", wbsync.SuppliersHandler())

	r.GET("/api/tracking/articles", tracking.TrackedArticlesHandler())
	r.GET("/api/tracking/export", tracking.ExportTrackedHandler())
	r.GET("/api/tracking/catalog", tracking.ExportCatalogHandler())
	r.POST("/api/tracking/import-add", tracking.ImportAddHandler())
	r.POST("/api/tracking/import-remove", tracking.ImportRemoveHandler())

	r.POST("/api/ingest/user", wbsync.TriggerIngestHandler(engine))
	r.POST("/api/ingest/all", wbsync.TriggerIngestAllHandler(engine))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	go runPollLoop(sigCtx, engine, logger)
	go runSheetsLoop(sigCtx, logger)

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

// runPollLoop is the periodic batch trigger: it fans ingestion out across
// all eligible users on a fixed interval.
func runPollLoop(ctx context.Context, engine *wbsync.Engine, logger *logrus.Logger) {
	interval := time.Duration(config.IntFromEnv("POLL_INTERVAL_SECONDS", 300)) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.IngestForAllEligibleUsers(ctx); err != nil {
				config.LogError(logger, "main", "runPollLoop", "batch ingestion", nil, err)
			}
		}
	}
}

// runSheetsLoop periodically mirrors tracked articles into the shared
// Google spreadsheet. Disabled unless the spreadsheet env vars are set.
func runSheetsLoop(ctx context.Context, logger *logrus.Logger) {
	if strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")) == "" {
		return
	}
	interval := time.Duration(config.IntFromEnv("SHEETS_REFRESH_INTERVAL_SECONDS", 3600)) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service, err := gsheets.NewService(ctx)
			if err != nil {
				config.LogError(logger, "main", "runSheetsLoop", "sheets service", nil, err)
				continue
			}
			if err := service.RefreshTrackedSheets(ctx); err != nil {
				config.LogError(logger, "main", "runSheetsLoop", "sheets refresh", nil, err)
			}
		}
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
