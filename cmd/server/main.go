package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storybook-server/internal/analysis"
	"storybook-server/internal/config"
	"storybook-server/internal/database"
	"storybook-server/internal/generation"
	"storybook-server/internal/handler"
	"storybook-server/internal/interfaces"
	"storybook-server/internal/jobstore"
	"storybook-server/internal/logger"
	"storybook-server/internal/messaging"
	appMiddleware "storybook-server/internal/middleware"
	"storybook-server/internal/repository"
	"storybook-server/internal/service"
)

func main() {
	_ = godotenv.Load()
	log.Println("Запуск Character Service...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// Подключение к PostgreSQL и миграции
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbPool, err := database.NewPool(ctx, cfg, zapLogger)
	cancel()
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к БД", zap.Error(err))
	}
	defer dbPool.Close()

	if err := database.ApplyMigrations(dbPool); err != nil {
		zapLogger.Fatal("Не удалось применить миграции", zap.Error(err))
	}
	zapLogger.Info("Database migrations applied")

	// Redis — реестр задач генерации
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		zapLogger.Fatal("Не удалось подключиться к Redis", zap.Error(err))
	}
	pingCancel()
	defer redisClient.Close()
	jobs := jobstore.NewRedisJobStore(redisClient, cfg.JobTTL, zapLogger)

	// RabbitMQ опционален: без него уведомления о ходе генерации не шлются
	var updatePublisher interfaces.JobUpdatePublisher
	if cfg.RabbitMQURL != "" {
		rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
		}
		defer rabbitConn.Close()

		updatePublisher, err = messaging.NewRabbitMQJobUpdatePublisher(rabbitConn, cfg.JobUpdatesQueue, zapLogger)
		if err != nil {
			zapLogger.Fatal("Не удалось создать JobUpdatePublisher", zap.Error(err))
		}
	} else {
		zapLogger.Warn("RabbitMQ URL не задан, уведомления о задачах отключены")
	}

	// Внешние сервисы
	genClient, err := generation.NewHTTPGenerationClient(cfg.GenerationAPIURL, cfg.GenerationTimeout, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать клиент генерации", zap.Error(err))
	}
	analyzer, err := analysis.NewHTTPPhotoAnalyzer(cfg.PhotoAnalyzerURL, cfg.PhotoAnalyzerTimeout, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать клиент анализа фото", zap.Error(err))
	}

	// Репозитории и сервисы
	charRepo := repository.NewPgCharacterRepository(dbPool, zapLogger)
	slotRepo := repository.NewPgPageSlotRepository(dbPool, zapLogger)

	supervisor := generation.NewSupervisor(charRepo, jobs, genClient, updatePublisher, zapLogger, generation.Config{
		LookupAttempts: cfg.LookupRetryAttempts,
		LookupDelay:    cfg.LookupRetryDelay,
	})

	characterService := service.NewCharacterService(charRepo, jobs, supervisor, analyzer, zapLogger)
	pageService := service.NewPageService(slotRepo, zapLogger)
	characterHandler := handler.NewCharacterHandler(characterService, pageService, zapLogger)

	// Настройка Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(appMiddleware.EchoZapLogger(zapLogger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	characterHandler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Ошибка запуска HTTP сервера", zap.Error(err))
		}
	}()
	zapLogger.Info("Character Service started", zap.String("port", cfg.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Ошибка при graceful shutdown Echo", zap.Error(err))
	}

	log.Println("Character Service успешно остановлен")
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Попытка подключения к RabbitMQ не удалась",
			zap.Int("attempt", i+1),
			zap.Int("maxRetries", maxRetries),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
