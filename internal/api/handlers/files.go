package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/confighost/internal/api/errors"
	"github.com/bigkaa/confighost/internal/api/middleware"
	"github.com/bigkaa/confighost/internal/service"
)

// multipartOverhead — запас к лимиту тела запроса на multipart-обвязку
// (boundary, заголовки частей, текстовые поля формы).
const multipartOverhead = 1 << 20

// UploadFile обрабатывает POST /api/v1/files/upload.
// Принимает multipart/form-data: file (обязательно), version,
// release_notes (опционально). Возвращает 201 с записью файла.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w,
				fmt.Sprintf("Файл превышает максимальный размер %d байт", h.maxUpload))
			return
		}
		apierrors.ValidationError(w, "Поле file обязательно (multipart/form-data)")
		return
	}
	defer file.Close()

	record, err := h.upload.Upload(r.Context(), &service.UploadRequest{
		Reader:       file,
		Filename:     header.Filename,
		DeclaredSize: header.Size,
		Version:      r.FormValue("version"),
		ReleaseNotes: r.FormValue("release_notes"),
		UploaderName: middleware.SubjectFromContext(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toFileResponse(record))
}

// ListFiles обрабатывает GET /api/v1/files.
// Возвращает все записи каталога, новые первыми.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.query.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toFileResponses(files))
}

// SearchFiles обрабатывает GET /api/v1/files/search?q=...
// Пустой q возвращает все активные записи.
func (h *Handler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.query.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toFileResponses(files))
}

// GetFile обрабатывает GET /api/v1/files/{id}.
// Просмотр фиксируется в журнале доступа.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apierrors.ValidationError(w, "Идентификатор файла должен быть целым числом")
		return
	}

	record, err := h.query.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.download.RecordView(r.Context(), record.ID, accessInfo(r))
	h.writeJSON(w, http.StatusOK, toFileResponse(record))
}

// ListVersions обрабатывает GET /api/v1/versions/{filename}.
// Неизвестное имя — пустой список, не 404.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" {
		apierrors.ValidationError(w, "Имя файла не задано")
		return
	}

	versions, err := h.query.ListVersions(r.Context(), filename)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		result = append(result, versionResponse{
			ID:          v.ID,
			Filename:    v.Filename,
			Version:     v.Version,
			StoragePath: v.StoragePath,
			RawURL:      v.RawURL,
			CreatedAt:   v.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

// GetStats обрабатывает GET /api/v1/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	report, err := h.stats.Report(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, statsResponse{
		TotalFiles:     report.Catalog.TotalFiles,
		ActiveFiles:    report.Catalog.ActiveFiles,
		TotalDownloads: report.Catalog.TotalDownloads,
		DailyDownloads: report.Catalog.DailyDownloads,
		TotalSize:      report.Catalog.TotalSize,
		DiskUsageBytes: report.DiskUsageBytes,
		DiskFileCount:  report.DiskFileCount,
	})
}

// RawFile обрабатывает GET /raw/{storage_name}.
// Содержимое отдаётся inline как text/plain (конфигурационные форматы —
// текст). Скачивание фиксируется после отдачи содержимого.
func (h *Handler) RawFile(w http.ResponseWriter, r *http.Request) {
	h.serveContent(w, r, false)
}

// DownloadFile обрабатывает GET /download/{storage_name}.
// Содержимое отдаётся как attachment с оригинальным именем файла.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	h.serveContent(w, r, true)
}

// serveContent — общий путь отдачи содержимого для raw и download.
// http.ServeContent даёт поддержку Range и If-Modified-Since.
func (h *Handler) serveContent(w http.ResponseWriter, r *http.Request, asAttachment bool) {
	storageName := chi.URLParam(r, "storage_name")

	record, f, err := h.download.OpenContent(r.Context(), storageName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	if asAttachment {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", record.OriginalFilename))
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", "inline")
	}
	w.Header().Set("X-Checksum-Sha256", record.Checksum)

	http.ServeContent(w, r, record.OriginalFilename, record.CreatedAt, f)

	// Учёт после отдачи: обрыв клиента не должен отменить запись журнала
	h.download.RecordDownload(context.WithoutCancel(r.Context()), record.ID, accessInfo(r))
}
