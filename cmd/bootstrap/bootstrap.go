package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-medical-chat-booking/config"
	deliveryHttp "go-medical-chat-booking/internal/delivery/http"
	"go-medical-chat-booking/internal/delivery/http/handler"
	"go-medical-chat-booking/internal/delivery/http/middleware"
	"go-medical-chat-booking/internal/domain/repository"
	"go-medical-chat-booking/internal/infrastructure/cache"
	"go-medical-chat-booking/internal/infrastructure/database"
	"go-medical-chat-booking/internal/integrations/llm"
	"go-medical-chat-booking/internal/observability/metrics"
	repoImpl "go-medical-chat-booking/internal/repository"
	"go-medical-chat-booking/internal/service"
	"go-medical-chat-booking/internal/usecase"
	"go-medical-chat-booking/pkg/jwt"
	"go-medical-chat-booking/pkg/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server

	// closers run on shutdown after the server stops, in order
	closers []func()
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		setupLogger("info")
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Setup logger
	setupLogger(cfg.App.LogLevel)
	logrus.Info("Configuration loaded successfully")

	// Initialize database
	db, err := database.NewConnection(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	if err := database.Migrate(db); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logrus.Infof("Database (%s) connected successfully", cfg.DB.Driver)

	// Initialize Redis (optional)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		app.RedisClient = redisClient
		logrus.Info("Redis connected successfully")
	}

	// Initialize understanding provider transport
	cfg.LLM.Model = resolveModel(cfg.LLM)
	llmClient, closeLLM, err := newLLMClient(context.Background(), cfg.LLM)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize %s client: %w", cfg.LLM.Provider, err)
	}
	if closeLLM != nil {
		app.closers = append(app.closers, closeLLM)
	}
	logrus.Infof("Understanding provider %s initialized", cfg.LLM.Provider)

	// Initialize all layers
	app.Server = app.initializeServer(cfg, db, llmClient)

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

// initializeServer creates and configures the HTTP server
func (app *App) initializeServer(cfg *config.Config, db *gorm.DB, llmClient llm.Client) *http.Server {
	// Initialize logger
	log := logrus.StandardLogger()

	// Initialize session service
	sessionService := jwt.NewSessionService(cfg.Session)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize metrics
	chatMetrics := metrics.NewChatMetrics(prometheus.DefaultRegisterer)

	// Initialize repositories and slot locking
	appointmentRepo := repoImpl.NewAppointmentRepository()

	var conversationRepo repository.ConversationRepository
	var slotLocker service.SlotLocker
	if app.RedisClient != nil {
		conversationRepo = repoImpl.NewRedisConversationRepository(app.RedisClient, cfg.Session.StateTTL)
		slotLocker = service.NewRedisSlotLocker(app.RedisClient, log, cfg.Booking.LockTTL)
	} else {
		conversationRepo = repoImpl.NewMemoryConversationRepository()
		localLocker := service.NewLocalSlotLocker(log)
		app.closers = append(app.closers, localLocker.Stop)
		slotLocker = localLocker
	}

	// Initialize services
	auditService := service.NewAuditService(log)

	// Initialize usecases
	ledgerUsecase := usecase.NewAppointmentLedgerUsecase(db, log, customValidator, appointmentRepo, slotLocker, auditService, chatMetrics)
	appointmentUsecase := usecase.NewAppointmentUsecase(db, log, appointmentRepo)
	provider := usecase.NewUnderstandingProvider(llmClient, cfg.LLM)
	// A turn can outlast the slot lock TTL while the provider answers, so
	// session turns are serialized in-process only
	sessionLocker := service.NewLocalSlotLocker(log)
	app.closers = append(app.closers, sessionLocker.Stop)
	chatUsecase := usecase.NewChatUsecase(log, conversationRepo, provider, ledgerUsecase, sessionLocker, chatMetrics, usecase.ChatOptions{
		CancelKeyword:   cfg.Booking.CancelKeyword,
		ProviderTimeout: cfg.LLM.Timeout,
	})

	// Initialize handlers
	chatHandler := handler.NewChatHandler(chatUsecase, customValidator)
	appointmentHandler := handler.NewAppointmentHandler(appointmentUsecase, customValidator)

	// Initialize middleware
	sessionMiddleware := middleware.NewSessionMiddleware(sessionService, cfg.Booking.DefaultPatientName, log)
	requestLoggerMiddleware := middleware.NewRequestLoggerMiddleware(log)
	corsMiddleware := middleware.NewCORSMiddleware()

	// Initialize router
	router := deliveryHttp.NewRouter(chatHandler, appointmentHandler, sessionMiddleware, requestLoggerMiddleware, corsMiddleware, prometheus.DefaultGatherer)
	httpRouter := router.Setup()

	// Create server
	serverAddr := fmt.Sprintf(":%s", cfg.App.Port)
	return &http.Server{
		Addr:              serverAddr,
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	// Start server in goroutine
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Close connections
	app.Close()

	logrus.Info("Server shutdown complete")
}

// Close closes all connections (database, redis, provider clients, lock cleanup)
func (app *App) Close() {
	for _, closeFn := range app.closers {
		closeFn()
	}
	app.closers = nil

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
