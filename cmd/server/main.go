// cardiopredict/cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/api/handlers"
	"github.com/minhvu-dev/cardiopredict/internal/config"
	"github.com/minhvu-dev/cardiopredict/internal/database"
	"github.com/minhvu-dev/cardiopredict/internal/health"
	"github.com/minhvu-dev/cardiopredict/internal/middleware"
	"github.com/minhvu-dev/cardiopredict/internal/registry"
	"github.com/minhvu-dev/cardiopredict/internal/repository"
	"github.com/minhvu-dev/cardiopredict/internal/services"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	utils.InitLogger()
	logger := utils.GetLogger()

	logger.Info("Starting cardiopredict API server...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}

	dbConfig := &database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}

	dbManager, err := database.NewManager(dbConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database manager")
	}
	defer dbManager.Close()

	if err := dbManager.Migrate(); err != nil {
		logger.WithError(err).Fatal("Database migration failed")
	}

	repoManager := repository.NewRepositoryManager(dbManager.DB)
	cache := database.NewCache(dbManager.Redis, logger)

	reg := registry.New(cfg.Models.Dir, logger)
	if err := reg.Load(); err != nil {
		logger.WithError(err).Fatal("Failed to load model registry")
	}
	if err := reg.Verify(); err != nil {
		// The server still starts so that examinations can accumulate, but
		// prediction endpoints will return errors for the affected space.
		logger.WithError(err).Warn("Model registry is incomplete")
	}
	modelCount, scalerCount := reg.Counts()
	logger.WithFields(logrus.Fields{
		"models":  modelCount,
		"scalers": scalerCount,
		"dir":     reg.Dir(),
	}).Info("Model registry loaded")

	predictor := services.NewPredictionService(reg, logger)
	examService := services.NewExaminationService(repoManager, predictor, logger)
	retrainer := services.NewRetrainerService(repoManager, reg, cfg.Training.MinSamples, cfg.Training.CVFolds, logger)

	checker := health.NewHealthChecker(dbManager, repoManager.SystemHealth, reg, logger)

	router := setupRouter(cfg, reg, predictor, examService, retrainer, repoManager, cache, checker, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // Synchronous retrains can be slow
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go checker.PeriodicHealthCheck(ctx, 30*time.Second)

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	logger.Info("Server stopped")
}

func setupRouter(
	cfg *config.Config,
	reg *registry.Registry,
	predictor *services.PredictionService,
	examService *services.ExaminationService,
	retrainer *services.RetrainerService,
	repoManager *repository.RepositoryManager,
	cache *database.Cache,
	checker *health.HealthChecker,
	logger *logrus.Logger,
) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-Request-ID")
	router.Use(cors.New(corsConfig))

	rateLimiter := middleware.NewRateLimiter(120)
	router.Use(rateLimiter.RateLimit())

	predictHandler := handlers.NewPredictHandler(predictor, cache, logger)
	patientHandler := handlers.NewPatientHandler(repoManager, logger)
	examHandler := handlers.NewExaminationHandler(examService, cache, logger)
	trainingHandler := handlers.NewTrainingHandler(examService, retrainer, logger)
	adminHandler := handlers.NewAdminHandler(reg, cache, logger)
	healthHandler := handlers.NewHealthHandler(checker, logger)

	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/health/detailed", healthHandler.HandleHealthDetailed)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/predict/:space", predictHandler.HandlePredict)
		v1.POST("/predict/:space/compare", predictHandler.HandleCompare)
		v1.POST("/predict/:space/explain", predictHandler.HandleExplain)

		v1.GET("/patients", patientHandler.HandleList)
		v1.POST("/patients", patientHandler.HandleCreate)
		v1.GET("/patients/:id", patientHandler.HandleGet)
		v1.PUT("/patients/:id", patientHandler.HandleUpdate)
		v1.DELETE("/patients/:id", patientHandler.HandleDelete)

		v1.GET("/examinations/:space", examHandler.HandleList)
		v1.POST("/examinations/:space", examHandler.HandleCreate)
		v1.PUT("/examinations/:space/:id/diagnosis", examHandler.HandleDiagnosis)
		v1.GET("/examinations/:space/training-ready", examHandler.HandleTrainingReady)
		v1.GET("/examinations/:space/stats", examHandler.HandleStats)
		v1.POST("/examinations/:space/mark-trained", examHandler.HandleMarkTrained)

		v1.GET("/training/export/:space", trainingHandler.HandleExport)
		v1.GET("/training/stats", trainingHandler.HandleCombinedStats)
		v1.POST("/training/retrain/:space", trainingHandler.HandleRetrain)

		admin := v1.Group("/admin")
		{
			admin.GET("/models", adminHandler.HandleModels)
			admin.GET("/metrics", adminHandler.HandleMetrics)
			admin.GET("/confusion", adminHandler.HandleConfusion)
			admin.GET("/cache", adminHandler.HandleCacheStats)
			admin.DELETE("/cache", adminHandler.HandleClearCache)
		}
	}

	return router
}
