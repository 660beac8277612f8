// Пакет handlers — HTTP-обработчики confighost.
// Handlers тонкие: разбор запроса, вызов сервисного слоя,
// сериализация ответа. Вся бизнес-логика — в internal/service.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/confighost/internal/api/errors"
	"github.com/bigkaa/confighost/internal/domain/model"
	"github.com/bigkaa/confighost/internal/service"
)

// Handler — HTTP-обработчики API confighost.
type Handler struct {
	upload    *service.UploadService
	download  *service.DownloadService
	query     *service.QueryService
	stats     *service.StatsService
	maxUpload int64
	logger    *slog.Logger
}

// New создаёт Handler.
// maxUpload — лимит размера тела upload-запроса в байтах.
func New(
	upload *service.UploadService,
	download *service.DownloadService,
	query *service.QueryService,
	stats *service.StatsService,
	maxUpload int64,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		upload:    upload,
		download:  download,
		query:     query,
		stats:     stats,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// writeJSON сериализует ответ в JSON со статус-кодом.
func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Ошибка сериализации ответа", slog.String("error", err.Error()))
	}
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Типизированная ошибка несёт статус и код сама; всё остальное — 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		if svcErr.StatusCode >= 500 {
			h.logger.Error("Ошибка обработки запроса",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	h.logger.Error("Неожиданная ошибка обработки запроса",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, "Внутренняя ошибка сервера")
}

// accessInfo извлекает сведения о клиенте для журнала доступа.
func accessInfo(r *http.Request) service.AccessInfo {
	return service.AccessInfo{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	}
}

// clientIP возвращает адрес клиента: первый элемент X-Forwarded-For
// (за reverse proxy) или host-часть RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --- DTO ответов ---

// fileResponse — представление записи файла в JSON API.
type fileResponse struct {
	ID               int64      `json:"id"`
	Filename         string     `json:"filename"`
	OriginalFilename string     `json:"original_filename"`
	FileType         string     `json:"file_type"`
	FileSize         int64      `json:"file_size"`
	Version          string     `json:"version"`
	PublicURL        string     `json:"public_url"`
	RawURL           string     `json:"raw_url"`
	DownloadURL      string     `json:"download_url"`
	ReleaseNotes     string     `json:"release_notes,omitempty"`
	Checksum         string     `json:"checksum"`
	UploaderName     string     `json:"uploader_name,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	IsActive         bool       `json:"is_active"`
	DownloadCount    int64      `json:"download_count"`
	LastDownload     *time.Time `json:"last_download,omitempty"`
}

// toFileResponse переводит доменную запись в DTO ответа.
// Абсолютный путь на диске наружу не отдаётся.
func toFileResponse(f *model.FileRecord) fileResponse {
	return fileResponse{
		ID:               f.ID,
		Filename:         f.StorageName,
		OriginalFilename: f.OriginalFilename,
		FileType:         f.FileType,
		FileSize:         f.Size,
		Version:          f.Version,
		PublicURL:        f.PublicURL,
		RawURL:           f.RawURL,
		DownloadURL:      f.DownloadURL,
		ReleaseNotes:     f.ReleaseNotes,
		Checksum:         f.Checksum,
		UploaderName:     f.UploaderName,
		CreatedAt:        f.CreatedAt,
		ExpiresAt:        f.ExpiresAt,
		IsActive:         f.IsActive,
		DownloadCount:    f.DownloadCount,
		LastDownload:     f.LastDownload,
	}
}

// toFileResponses переводит срез записей в DTO.
// Пустой результат сериализуется как [], не null.
func toFileResponses(files []*model.FileRecord) []fileResponse {
	result := make([]fileResponse, 0, len(files))
	for _, f := range files {
		result = append(result, toFileResponse(f))
	}
	return result
}

// versionResponse — представление строки истории версий.
type versionResponse struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Version     string    `json:"version"`
	StoragePath string    `json:"storage_path"`
	RawURL      string    `json:"raw_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// statsResponse — представление статистики.
type statsResponse struct {
	TotalFiles     int64 `json:"total_files"`
	ActiveFiles    int64 `json:"active_files"`
	TotalDownloads int64 `json:"total_downloads"`
	DailyDownloads int64 `json:"daily_downloads"`
	TotalSize      int64 `json:"total_size"`
	DiskUsageBytes int64 `json:"disk_usage_bytes"`
	DiskFileCount  int64 `json:"disk_file_count"`
}
