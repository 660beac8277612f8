package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/bigkaa/confighost/internal/api/middleware"
	"github.com/bigkaa/confighost/internal/domain/model"
	"github.com/bigkaa/confighost/internal/repository"
	"github.com/bigkaa/confighost/internal/storage/blobstore"
)

// DefaultVersion — версионная метка по умолчанию для загрузок без версии.
const DefaultVersion = "1.0.0"

// UploadRequest — параметры загрузки файла.
type UploadRequest struct {
	// Reader — содержимое файла
	Reader io.Reader
	// Filename — имя файла, заданное клиентом
	Filename string
	// DeclaredSize — размер из multipart заголовка (-1 если неизвестен)
	DeclaredSize int64
	// Version — версионная метка (пусто — подставится DefaultVersion)
	Version string
	// ReleaseNotes — примечания к версии (опционально)
	ReleaseNotes string
	// UploaderID — идентификатор загрузившего
	UploaderID int64
	// UploaderName — имя загрузившего
	UploaderName string
}

// UploadService — пайплайн загрузки файла: валидация, запись на диск,
// регистрация в каталоге. Единственный компонент, создающий записи.
type UploadService struct {
	blobs   *blobstore.BlobStore
	catalog repository.Catalog
	baseURL string
	logger  *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
// baseURL — публичный базовый URL для построения ссылок, без завершающего слэша.
func NewUploadService(blobs *blobstore.BlobStore, catalog repository.Catalog, baseURL string, logger *slog.Logger) *UploadService {
	return &UploadService{
		blobs:   blobs,
		catalog: catalog,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Upload выполняет полный пайплайн загрузки:
//  1. валидация имени и заявленного размера;
//  2. streaming-запись на диск с подсчётом SHA-256;
//  3. регистрация в каталоге (files + file_versions в одной транзакции).
//
// При отказе регистрации записанный файл удаляется с диска —
// осиротевших файлов после неудачной загрузки не остаётся.
// Дедупликации нет: повторная загрузка того же содержимого создаёт
// новую запись с новым именем хранения.
func (s *UploadService) Upload(ctx context.Context, req *UploadRequest) (*model.FileRecord, error) {
	filename := sanitizeFilename(req.Filename)
	if filename == "" {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, validationErr("Имя файла не задано", nil)
	}

	if req.DeclaredSize > s.blobs.MaxSize() {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, tooLargeErr(
			fmt.Sprintf("Файл превышает максимальный размер %d байт", s.blobs.MaxSize()), nil)
	}

	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = DefaultVersion
	}

	saved, err := s.blobs.Save(req.Reader, filename)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		switch {
		case errors.Is(err, blobstore.ErrExtensionNotAllowed):
			return nil, validationErr("Недопустимый тип файла", err)
		case errors.Is(err, blobstore.ErrFileTooLarge):
			return nil, tooLargeErr(
				fmt.Sprintf("Файл превышает максимальный размер %d байт", s.blobs.MaxSize()), err)
		default:
			return nil, internalErr("Не удалось сохранить файл", err)
		}
	}

	if saved.Size == 0 {
		// Пустой файл отклоняется после записи: размер узнаётся
		// только по факту чтения потока.
		_ = s.blobs.Delete(saved.StorageName)
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, validationErr("Пустой файл не принимается", nil)
	}

	record := &model.FileRecord{
		StorageName:      saved.StorageName,
		OriginalFilename: filename,
		FileType:         strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")),
		Size:             saved.Size,
		Version:          version,
		StoragePath:      saved.FullPath,
		// Формат /file/{name} сохранён для совместимости ссылок,
		// HTML-страница файла сервисом не отдаётся
		PublicURL:        s.baseURL + "/file/" + saved.StorageName,
		RawURL:           s.baseURL + "/raw/" + saved.StorageName,
		DownloadURL:      s.baseURL + "/download/" + saved.StorageName,
		ReleaseNotes:     req.ReleaseNotes,
		Checksum:         saved.Checksum,
		UploaderID:       req.UploaderID,
		UploaderName:     req.UploaderName,
	}

	if _, err := s.catalog.Register(ctx, record); err != nil {
		// Компенсация: файл без записи каталога недостижим и бесполезен
		if delErr := s.blobs.Delete(saved.StorageName); delErr != nil {
			s.logger.Error("Не удалось удалить файл после отказа регистрации",
				slog.String("storage_name", saved.StorageName),
				slog.String("error", delErr.Error()),
			)
		}
		middleware.OperationsTotal.WithLabelValues("upload", "failed").Inc()
		return nil, persistenceErr("Не удалось зарегистрировать файл в каталоге", err)
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	s.logger.Info("Файл загружен",
		slog.Int64("id", record.ID),
		slog.String("storage_name", record.StorageName),
		slog.String("original_filename", record.OriginalFilename),
		slog.Int64("size", record.Size),
		slog.String("version", record.Version),
		slog.String("checksum", record.Checksum),
	)

	return record, nil
}

// sanitizeFilename убирает путь из имени файла и обрезает пробелы.
// Защита от path traversal: остаётся только базовое имя.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	// Windows-клиенты присылают обратные слэши
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
