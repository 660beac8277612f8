// Пакет config — загрузка и валидация конфигурации confighost
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// DefaultAllowedExtensions — расширения файлов, разрешённые к загрузке
// по умолчанию (конфигурационные текстовые форматы).
const DefaultAllowedExtensions = "txt,json,conf,config,yaml,yml,xml,ini,cfg,properties"

// Config содержит все параметры конфигурации confighost.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Базовый публичный URL сервиса (для построения raw/download ссылок)
	PublicBaseURL string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Хранилище ---

	// Корневая директория хранения файлов
	DataDir string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Разрешённые расширения файлов (нижний регистр, без точки)
	AllowedExtensions []string

	// --- Аутентификация загрузки ---

	// Секрет HS256 для проверки bearer-токена на upload endpoint.
	// Пустая строка — проверка отключена.
	UploadJWTSecret string

	// --- Telegram-бот ---

	// Токен бота. Пустая строка — бот отключён.
	BotToken string
	// ID чата администратора — единственного пользователя бота
	BotAdminID int64
	// Таймаут long polling getUpdates
	BotPollTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CH_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("CH_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("CH_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CH_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// CH_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CH_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CH_LOG_LEVEL: %w", err)
	}

	// CH_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CH_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CH_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// CH_PUBLIC_BASE_URL — базовый URL сервиса (по умолчанию из порта)
	cfg.PublicBaseURL = getEnvDefault("CH_PUBLIC_BASE_URL",
		fmt.Sprintf("http://localhost:%d", cfg.Port))
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	// --- PostgreSQL ---

	// CH_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("CH_DB_HOST")
	if err != nil {
		return nil, err
	}

	// CH_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("CH_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("CH_DB_PORT: %w", err)
	}

	// CH_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("CH_DB_NAME")
	if err != nil {
		return nil, err
	}

	// CH_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("CH_DB_USER")
	if err != nil {
		return nil, err
	}

	// CH_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("CH_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// CH_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("CH_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("CH_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Хранилище ---

	// CH_DATA_DIR — директория данных (по умолчанию ./uploads)
	cfg.DataDir = getEnvDefault("CH_DATA_DIR", "uploads")

	// CH_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 10 MiB)
	maxSize, err := getEnvInt("CH_MAX_FILE_SIZE", 10*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("CH_MAX_FILE_SIZE: %w", err)
	}
	if maxSize < 1 {
		return nil, fmt.Errorf("CH_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = int64(maxSize)

	// CH_ALLOWED_EXTENSIONS — разрешённые расширения через запятую
	cfg.AllowedExtensions = parseCSV(strings.ToLower(
		getEnvDefault("CH_ALLOWED_EXTENSIONS", DefaultAllowedExtensions)))
	if len(cfg.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("CH_ALLOWED_EXTENSIONS: список расширений пуст")
	}

	// --- Аутентификация загрузки ---

	// CH_UPLOAD_JWT_SECRET — секрет HS256 (опционально, пусто = без проверки)
	cfg.UploadJWTSecret = getEnvDefault("CH_UPLOAD_JWT_SECRET", "")

	// --- Telegram-бот ---

	// CH_BOT_TOKEN — токен бота (опционально, пусто = бот отключён)
	cfg.BotToken = getEnvDefault("CH_BOT_TOKEN", "")

	// CH_BOT_ADMIN_ID — ID чата администратора (обязателен при включённом боте)
	adminID, err := getEnvInt("CH_BOT_ADMIN_ID", 0)
	if err != nil {
		return nil, fmt.Errorf("CH_BOT_ADMIN_ID: %w", err)
	}
	cfg.BotAdminID = int64(adminID)
	if cfg.BotToken != "" && cfg.BotAdminID == 0 {
		return nil, fmt.Errorf("CH_BOT_ADMIN_ID: обязателен при заданном CH_BOT_TOKEN")
	}

	// CH_BOT_POLL_TIMEOUT — таймаут long polling (по умолчанию 30s)
	cfg.BotPollTimeout, err = getEnvDuration("CH_BOT_POLL_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CH_BOT_POLL_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	// CH_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("CH_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CH_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
