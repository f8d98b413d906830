package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/config"
	"bitbucket.org/mmdatafocus/stockverify_backend/erp"
	"bitbucket.org/mmdatafocus/stockverify_backend/middlewares"
	"bitbucket.org/mmdatafocus/stockverify_backend/models"
	"bitbucket.org/mmdatafocus/stockverify_backend/stocksync"
	"bitbucket.org/mmdatafocus/stockverify_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("STOCK_SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// The engine is built only after the backing stores are connected, but all
	// routes must be registered before the server starts listening. Handlers go
	// through this holder and answer 503 until the engine exists.
	var enginePtr atomic.Pointer[stocksync.Engine]
	withEngine := func(h func(*stocksync.Engine) gin.HandlerFunc) gin.HandlerFunc {
		return func(c *gin.Context) {
			e := enginePtr.Load()
			if e == nil {
				c.AbortWithStatus(http.StatusServiceUnavailable)
				return
			}
			h(e)(c)
		}
	}

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
		if config.GetErpDB() == nil || config.GetMongoDB() == nil || config.GetRedisDB() == nil {
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
			corsConfig.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "warehouse", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(func(c *gin.Context) {
		if c.GetHeader("token") == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token := strings.TrimSpace(auth[7:])
				if token != "" {
					c.Request.Header.Set("token", token)
				}
			}
		}
		c.Next()
	})
	r.Use(middlewares.SessionMiddleware())
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	// API endpoints (stock sync admin)
	r.GET("/api/sync/status", withEngine(stocksync.StatusHandler))
	r.POST("/api/sync/now", withEngine(stocksync.SyncNowHandler))
	r.POST("/api/sync/changes/now", withEngine(stocksync.SyncChangesNowHandler))
	r.POST("/api/sync/interval", withEngine(stocksync.SetIntervalHandler))
	r.POST("/api/sync/enable", withEngine(stocksync.EnableHandler))
	r.POST("/api/sync/disable", withEngine(stocksync.DisableHandler))
	r.GET("/api/items/:itemCode/realtime-qty", withEngine(stocksync.RealtimeQuantityHandler))

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

	config.ConnectErpDatabaseWithRetry()
	config.ConnectMongoWithRetry()
	config.ConnectRedisWithRetry()
	defer config.DisconnectMongo()

	sqlDB, _ := config.GetErpDB().DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	mapping := erp.MappingFromEnv()
	if err := mapping.Validate(); err != nil {
		config.LogError(logger, "main", "main", "erp table mapping", mapping, err)
		os.Exit(1)
	}
	source := erp.NewAdapter(config.GetErpDB(), mapping, utils.DefaultRetryPolicy(), 30*time.Second)

	if topic := strings.TrimSpace(os.Getenv("STOCKSYNC_TOPIC")); topic != "" {
		client, err := config.GetPubSubClient(sigCtx)
		if err == nil {
			_, err = config.CreateTopicIfNotExists(client, topic)
		}
		if err != nil {
			config.LogError(logger, "main", "main", "pubsub topic", topic, err)
			os.Exit(1)
		}
	}

	engine := stocksync.NewEngine(stocksync.Config{
		Source: source,
		Items:  stocksync.NewMongoItemStore(config.GetMongoDB(), 15*time.Second),
		Meta:   stocksync.NewMongoMetaStore(config.GetMongoDB(), 15*time.Second),
		Events: stocksync.NewPubSubPublisherFromEnv(),
		Locker: stocksync.NewRedisCycleLocker(config.GetRedisLock()),
		Cache:  stocksync.NewRedisResultCache(utils.DurationFromEnvSeconds("REALTIME_CACHE_TTL_SECONDS", 5*time.Second)),
		Logger: logger,

		BatchSize:               utils.IntFromEnv("SYNC_BATCH_SIZE", 100),
		QuantityInterval:        utils.DurationFromEnvSeconds("QTY_SYNC_INTERVAL_SECONDS", 5*time.Minute),
		ChangeDetectionInterval: utils.DurationFromEnvSeconds("CHANGE_SYNC_INTERVAL_SECONDS", 15*time.Minute),
	})
	if !utils.EnvBoolDefault("QTY_SYNC_ENABLED", true) {
		_ = engine.Disable(models.SyncTypeQuantity)
	}
	if !utils.EnvBoolDefault("CHANGE_SYNC_ENABLED", true) {
		_ = engine.Disable(models.SyncTypeChangeDetection)
	}
	engine.Start(sigCtx)
	enginePtr.Store(engine)

	select {
	case <-sigCtx.Done():
		engine.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
		engine.Stop()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		fields := logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}
		if username, ok := utils.GetUsernameFromContext(c.Request.Context()); ok {
			fields["username"] = username
		}
		if warehouse, ok := utils.GetWarehouseFromContext(c.Request.Context()); ok {
			fields["warehouse"] = warehouse
		}
		logger.WithFields(fields).Info("request")
	}
}
