package service

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/bigkaa/confighost/internal/api/middleware"
	"github.com/bigkaa/confighost/internal/domain/model"
	"github.com/bigkaa/confighost/internal/repository"
	"github.com/bigkaa/confighost/internal/storage/blobstore"
)

// AccessInfo — сведения о клиенте для журнала доступа.
type AccessInfo struct {
	// IPAddress — адрес клиента
	IPAddress string
	// UserAgent — User-Agent клиента
	UserAgent string
	// Referrer — Referer клиента
	Referrer string
}

// DownloadService — отдача содержимого файлов по имени хранения
// и учёт доступа в журнале.
type DownloadService struct {
	blobs   *blobstore.BlobStore
	catalog repository.Catalog
	logger  *slog.Logger
}

// NewDownloadService создаёт сервис отдачи файлов.
func NewDownloadService(blobs *blobstore.BlobStore, catalog repository.Catalog, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		blobs:   blobs,
		catalog: catalog,
		logger:  logger,
	}
}

// OpenContent находит запись по имени хранения и открывает содержимое
// на диске. Вызывающий код обязан закрыть файл.
//
// Запись без файла на диске (осиротевшая запись) — 404 для клиента
// плюс WARN в лог: расхождение каталога и диска требует внимания
// оператора, но не 500.
func (s *DownloadService) OpenContent(ctx context.Context, storageName string) (*model.FileRecord, *os.File, error) {
	record, err := s.catalog.GetByStorageName(ctx, storageName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, notFoundErr("Файл не найден", err)
		}
		return nil, nil, persistenceErr("Не удалось получить запись файла", err)
	}

	f, err := s.blobs.Open(record.StorageName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.logger.Warn("Запись каталога без файла на диске",
				slog.Int64("id", record.ID),
				slog.String("storage_name", record.StorageName),
			)
			return nil, nil, notFoundErr("Файл не найден", err)
		}
		return nil, nil, internalErr("Не удалось открыть файл", err)
	}

	return record, f, nil
}

// RecordDownload фиксирует скачивание: атомарно увеличивает счётчик
// и пишет строку журнала. Вызывается после успешной отдачи содержимого;
// отказ учёта не влияет на уже отданный ответ и только логируется.
func (s *DownloadService) RecordDownload(ctx context.Context, fileID int64, access AccessInfo) {
	err := s.catalog.RecordDownload(ctx, fileID, access.IPAddress, access.UserAgent, access.Referrer)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("download", "failed").Inc()
		s.logger.Error("Не удалось зафиксировать скачивание",
			slog.Int64("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return
	}
	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()
}

// RecordView фиксирует просмотр информации о файле в журнале доступа.
// Счётчик скачиваний не меняется. Отказ только логируется.
func (s *DownloadService) RecordView(ctx context.Context, fileID int64, access AccessInfo) {
	err := s.catalog.RecordView(ctx, fileID, access.IPAddress, access.UserAgent, access.Referrer)
	if err != nil {
		s.logger.Error("Не удалось зафиксировать просмотр",
			slog.Int64("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}
}
