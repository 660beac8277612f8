// confighost — сервис хостинга конфигурационных файлов:
// загрузка по HTTP, хранение на диске, каталог в PostgreSQL,
// стабильные raw/download URL и административный Telegram-бот.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/confighost/internal/api/handlers"
	"github.com/bigkaa/confighost/internal/bot"
	"github.com/bigkaa/confighost/internal/config"
	"github.com/bigkaa/confighost/internal/database"
	"github.com/bigkaa/confighost/internal/repository"
	"github.com/bigkaa/confighost/internal/server"
	"github.com/bigkaa/confighost/internal/service"
	"github.com/bigkaa/confighost/internal/storage/blobstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "confighost: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Запуск confighost",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Миграции до открытия пула: схема должна быть готова
	if err := database.Migrate(cfg, logger); err != nil {
		return fmt.Errorf("ошибка миграций: %w", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	blobs, err := blobstore.New(cfg.DataDir, cfg.MaxFileSize, cfg.AllowedExtensions)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}

	catalog := repository.NewCatalog(pool)

	uploadSvc := service.NewUploadService(blobs, catalog, cfg.PublicBaseURL, logger)
	downloadSvc := service.NewDownloadService(blobs, catalog, logger)
	querySvc := service.NewQueryService(catalog, logger)
	statsSvc := service.NewStatsService(blobs, catalog, logger)

	h := handlers.New(uploadSvc, downloadSvc, querySvc, statsSvc, cfg.MaxFileSize, logger)
	health := handlers.NewHealthHandler(database.NewReadinessChecker(pool))

	if cfg.BotToken != "" {
		poller := bot.NewPoller(
			bot.NewClient(cfg.BotToken, cfg.BotPollTimeout),
			cfg.BotAdminID,
			cfg.BotPollTimeout,
			querySvc,
			statsSvc,
			logger.With(slog.String("component", "bot")),
		)
		go poller.Run(ctx)
	} else {
		logger.Info("Telegram-бот отключён: CH_BOT_TOKEN не задан")
	}

	srv := server.New(cfg, h, health, logger)
	return srv.Run(ctx)
}
