package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию Storybook Character Service
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"CHARACTER_SERVER_PORT" default:"8085"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки Redis (реестр задач генерации)
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	JobTTL        time.Duration `envconfig:"GENERATION_JOB_TTL" default:"24h"`

	// Настройки RabbitMQ (опционально: уведомления о ходе генерации)
	RabbitMQURL     string `envconfig:"RABBITMQ_URL" default:""`
	JobUpdatesQueue string `envconfig:"JOB_UPDATES_QUEUE" default:"character_job_updates"`

	// Внешний сервис генерации изображений
	GenerationAPIURL  string        `envconfig:"GENERATION_API_URL" required:"true"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"120s"`

	// Внешний сервис анализа фотографий
	PhotoAnalyzerURL     string        `envconfig:"PHOTO_ANALYZER_URL" required:"true"`
	PhotoAnalyzerTimeout time.Duration `envconfig:"PHOTO_ANALYZER_TIMEOUT" default:"60s"`

	// Политика поиска персонажа супервизором после генерации: запись может
	// еще не успеть сохраниться клиентским save
	LookupRetryAttempts int           `envconfig:"LOOKUP_RETRY_ATTEMPTS" default:"10"`
	LookupRetryDelay    time.Duration `envconfig:"LOOKUP_RETRY_DELAY" default:"2s"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// ReadSecret читает секрет из файла в стандартном пути Docker Secrets.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		// Без fallback на env var, чтобы поведение было консистентным
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации character-service: %w", err)
	}

	cfg.DBPassword, err = ReadSecret("db_password")
	if err != nil {
		return nil, err
	}

	log.Printf("Конфигурация Character Service загружена (секреты из файлов):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  Redis Addr: %s", cfg.RedisAddr)
	log.Printf("  Job TTL: %v", cfg.JobTTL)
	if cfg.RabbitMQURL != "" {
		log.Printf("  RabbitMQ URL: [SET], Job Updates Queue: %s", cfg.JobUpdatesQueue)
	} else {
		log.Printf("  RabbitMQ: disabled")
	}
	log.Printf("  Generation API URL: %s (timeout %v)", cfg.GenerationAPIURL, cfg.GenerationTimeout)
	log.Printf("  Photo Analyzer URL: %s (timeout %v)", cfg.PhotoAnalyzerURL, cfg.PhotoAnalyzerTimeout)
	log.Printf("  Lookup Retry: %d x %v", cfg.LookupRetryAttempts, cfg.LookupRetryDelay)

	return &cfg, nil
}
