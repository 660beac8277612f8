package service

import (
	"context"
	"log/slog"

	"github.com/bigkaa/confighost/internal/api/middleware"
	"github.com/bigkaa/confighost/internal/domain/model"
	"github.com/bigkaa/confighost/internal/repository"
	"github.com/bigkaa/confighost/internal/storage/blobstore"
)

// StatsReport — статистика каталога плюс живой учёт диска.
// TotalSize (из каталога) и DiskUsageBytes (обход диска) — две разные
// цифры: расхождение указывает на осиротевшие файлы или записи.
type StatsReport struct {
	// Catalog — агрегаты из каталога
	Catalog model.Statistics
	// DiskUsageBytes — суммарный размер файлов на диске
	DiskUsageBytes int64
	// DiskFileCount — количество файлов на диске
	DiskFileCount int64
}

// StatsService — сбор статистики для операторского endpoint и бота.
type StatsService struct {
	blobs   *blobstore.BlobStore
	catalog repository.Catalog
	logger  *slog.Logger
}

// NewStatsService создаёт сервис статистики.
func NewStatsService(blobs *blobstore.BlobStore, catalog repository.Catalog, logger *slog.Logger) *StatsService {
	return &StatsService{
		blobs:   blobs,
		catalog: catalog,
		logger:  logger,
	}
}

// Report собирает агрегаты каталога и выполняет обход директории данных.
// Обход O(n) по количеству файлов — endpoint операторский, не горячий.
// Попутно обновляет gauge-метрики занятости хранилища.
func (s *StatsService) Report(ctx context.Context) (*StatsReport, error) {
	stats, err := s.catalog.Statistics(ctx)
	if err != nil {
		return nil, persistenceErr("Не удалось получить статистику каталога", err)
	}

	usage, err := s.blobs.ComputeUsage()
	if err != nil {
		return nil, internalErr("Не удалось вычислить занятость диска", err)
	}

	middleware.StorageBytes.Set(float64(usage.TotalBytes))
	middleware.StorageFiles.Set(float64(usage.FileCount))

	return &StatsReport{
		Catalog:        *stats,
		DiskUsageBytes: usage.TotalBytes,
		DiskFileCount:  usage.FileCount,
	}, nil
}
