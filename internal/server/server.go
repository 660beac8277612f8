// Пакет server — HTTP-сервер confighost: маршрутизация chi,
// цепочка middleware, graceful shutdown по SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/confighost/internal/api/handlers"
	"github.com/bigkaa/confighost/internal/api/middleware"
	"github.com/bigkaa/confighost/internal/config"
)

// Server — HTTP-сервер confighost.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New создаёт Server с настроенным маршрутизатором.
func New(cfg *config.Config, h *handlers.Handler, health *handlers.HealthHandler, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	// Порядок важен: request id до логирования, метрики снаружи
	r.Use(middleware.RequestID())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogger(logger))

	// Служебные endpoints
	r.Get("/health/live", health.Live)
	r.Get("/health/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// JSON API
	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.UploadAuth(cfg.UploadJWTSecret, logger)).
			Post("/files/upload", h.UploadFile)
		r.Get("/files", h.ListFiles)
		r.Get("/files/search", h.SearchFiles)
		r.Get("/files/{id}", h.GetFile)
		r.Get("/versions/{filename}", h.ListVersions)
		r.Get("/stats", h.GetStats)
	})

	// Отдача содержимого
	r.Get("/raw/{storage_name}", h.RawFile)
	r.Get("/download/{storage_name}", h.DownloadFile)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			// Таймаут записи не ставим: отдача больших файлов
			// медленным клиентам не должна обрываться
			IdleTimeout: 120 * time.Second,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Run запускает HTTP-сервер и блокируется до SIGINT/SIGTERM
// или отмены контекста, затем выполняет graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ошибка HTTP-сервера: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Получен сигнал завершения, останавливаем сервер",
		slog.Duration("timeout", s.shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
