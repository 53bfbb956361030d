// Package bootstrap assembles the application: configuration, infrastructure,
// the in-memory workspace store, the broadcast hub, services, handlers, the
// HTTP server and the background worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/pandeypooja21/code-sync/internal/handler/http"
	wsHandler "github.com/pandeypooja21/code-sync/internal/handler/websocket"
	"github.com/pandeypooja21/code-sync/internal/hub"
	gormpersistence "github.com/pandeypooja21/code-sync/internal/infra/persistence/gorm"
	"github.com/pandeypooja21/code-sync/internal/infra/setup"
	"github.com/pandeypooja21/code-sync/internal/middleware"
	"github.com/pandeypooja21/code-sync/internal/presence"
	"github.com/pandeypooja21/code-sync/internal/service"
	"github.com/pandeypooja21/code-sync/internal/store"
	"github.com/pandeypooja21/code-sync/internal/tasks"
	"github.com/pandeypooja21/code-sync/internal/worker"
)

// Config holds everything loaded from environment variables.
type Config struct {
	DBUser          string
	DBPassword      string
	DBHost          string
	DBPort          string
	DBName          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	ServerPort      string
	LogLevel        string
	AppEnv          string
	CORSOrigin      string
	RateLimitMax    int
	RateLimitWindow time.Duration
	LockWait        time.Duration
	CursorStale     time.Duration
	SweepInterval   time.Duration
	PublishInterval time.Duration
}

// LoadConfig reads configuration from the environment, with a .env file as a
// convenience for local development.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        os.Getenv("DB_NAME"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		CORSOrigin:    os.Getenv("CORS_ALLOWED_ORIGIN"),

		RateLimitMax:    100,
		RateLimitWindow: 1 * time.Second,
		LockWait:        store.DefaultLockWait,
		CursorStale:     presence.DefaultStaleAfter,
		SweepInterval:   presence.DefaultSweepInterval,
		PublishInterval: presence.DefaultMinPublishInterval,
	}

	redisDBStr := os.Getenv("REDIS_DB")
	cfg.RedisDB, _ = strconv.Atoi(redisDBStr)

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "http://localhost:3000"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App owns every component of the running service.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Store       *store.Store
	Tracker     *presence.Tracker
	Hub         *hub.Hub
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	sweepCancel    context.CancelFunc
}

// NewApp creates and wires all components.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Info("Configuration loaded successfully")

	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database initialized")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	workspaceRepo := gormpersistence.NewGormWorkspaceRepository(db)

	// The store, tracker and hub reference each other: the hub fans events
	// out for both, while it reads workspace and cursor state from them when
	// building connect snapshots. Build the state holders first and attach
	// the hub as their notifier afterwards.
	st := store.New(
		store.WithRepository(workspaceRepo),
		store.WithLockWait(cfg.LockWait),
		store.WithPersistHook(func(workspaceID string) {
			payload, err := tasks.NewWorkspacePersistTask(workspaceID)
			if err != nil {
				log.WithField("workspace_id", workspaceID).Errorf("Failed to build persist task: %v", err)
				return
			}
			task := asynq.NewTask(tasks.TypeWorkspacePersist, payload)
			if _, err := asynqClient.Enqueue(task, asynq.Queue("default"), asynq.MaxRetry(5)); err != nil {
				log.WithField("workspace_id", workspaceID).Errorf("Failed to enqueue persist task: %v", err)
			}
		}),
	)
	tracker := presence.NewTracker(nil,
		presence.WithStaleAfter(cfg.CursorStale),
		presence.WithSweepInterval(cfg.SweepInterval),
		presence.WithMinPublishInterval(cfg.PublishInterval),
	)
	hubInstance := hub.NewHub(st, tracker)
	st.SetNotifier(hubInstance)
	tracker.SetNotifier(hubInstance)
	log.Info("Store, presence tracker and hub initialized")

	log.Info("Initializing services...")
	workspaceService := service.NewWorkspaceService(st, hubInstance, tracker)
	inviteService := service.NewInviteService(st)
	memberService := service.NewMemberService(st)
	treeService := service.NewTreeService(st)
	log.Info("Services initialized")

	log.Info("Initializing handlers...")
	workspaceHandler := httpHandler.NewWorkspaceHandler(workspaceService)
	inviteHandler := httpHandler.NewInviteHandler(inviteService)
	memberHandler := httpHandler.NewMemberHandler(memberService)
	treeHandler := httpHandler.NewTreeHandler(treeService)
	presenceHandler := httpHandler.NewPresenceHandler(tracker, st)
	subscribeHandler := wsHandler.NewHandler(hubInstance, tracker, cfg.CORSOrigin)
	log.Info("Handlers initialized")

	workerServer := worker.NewWorkerServer(redisClientOpt, st, workspaceRepo, log)
	log.Info("Worker server initialized")

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	router.Use(middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api").Use(middleware.Auth(cfg.JWTSecret))
	{
		api.POST("/workspaces", workspaceHandler.Create)
		api.GET("/workspaces/:id", workspaceHandler.Get)
		api.DELETE("/workspaces/:id", workspaceHandler.Delete)

		api.POST("/workspaces/:id/invites", inviteHandler.Create)
		api.POST("/workspaces/:id/invites/accept", inviteHandler.Accept)
		api.POST("/workspaces/:id/invites/decline", inviteHandler.Decline)
		api.DELETE("/workspaces/:id/invites/:userId", inviteHandler.Revoke)
		api.GET("/users/me/invites", inviteHandler.ListMine)

		api.GET("/workspaces/:id/members", memberHandler.List)
		api.DELETE("/workspaces/:id/members/:userId", memberHandler.Remove)

		api.POST("/workspaces/:id/nodes", treeHandler.Create)
		api.GET("/workspaces/:id/nodes", treeHandler.List)
		api.PATCH("/workspaces/:id/nodes/:nodeId", treeHandler.Rename)
		api.POST("/workspaces/:id/nodes/:nodeId/move", treeHandler.Move)
		api.DELETE("/workspaces/:id/nodes/:nodeId", treeHandler.Delete)

		api.POST("/workspaces/:id/cursor", presenceHandler.Report)
	}
	wsRoutes := router.Group("/ws").Use(middleware.Auth(cfg.JWTSecret))
	{
		wsRoutes.GET("/workspace/:id", subscribeHandler.Subscribe)
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	app := &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Store:          st,
		Tracker:        tracker,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// Start launches the background routines and the HTTP server.
func (a *App) Start() {
	sweepCtx, cancel := context.WithCancel(context.Background())
	a.sweepCancel = cancel
	go a.Tracker.Run(sweepCtx)
	a.Log.Info("Presence sweeper started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening")
	}()
}

// registerPeriodicTasks schedules the recurring flush of all live workspaces.
// The per-mutation persist task is the primary durability path; this catches
// anything it missed.
func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	payload, err := tasks.NewWorkspaceFlushAllTask()
	if err != nil {
		a.Log.Errorf("Failed to build flush_all task payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeWorkspaceFlushAll, payload)

	schedule := "@every 5m"
	entryID, err := scheduler.Register(schedule, task, asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("Could not register periodic flush task: %v", err)
	} else {
		a.Log.Infof("Periodic flush task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	}

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil {
			if !errors.Is(err, asynq.ErrServerClosed) {
				a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			} else {
				a.Log.Info("Asynq scheduler stopped")
			}
		}
	}()
}

// Shutdown stops the application gracefully.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.sweepCancel != nil {
		a.sweepCancel()
	}

	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete")
}

// LoggerMiddleware logs every request with status, latency and client info.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request handled")
		}
	}
}
