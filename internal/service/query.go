package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bigkaa/confighost/internal/domain/model"
	"github.com/bigkaa/confighost/internal/repository"
)

// QueryService — операции чтения каталога: списки, поиск,
// карточки файлов и история версий.
type QueryService struct {
	catalog repository.Catalog
	logger  *slog.Logger
}

// NewQueryService создаёт сервис чтения каталога.
func NewQueryService(catalog repository.Catalog, logger *slog.Logger) *QueryService {
	return &QueryService{
		catalog: catalog,
		logger:  logger,
	}
}

// GetByID возвращает запись файла по числовому идентификатору.
func (s *QueryService) GetByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	record, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr("Файл не найден", err)
		}
		return nil, persistenceErr("Не удалось получить запись файла", err)
	}
	return record, nil
}

// ListAll возвращает все записи каталога, новые первыми.
func (s *QueryService) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	records, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, persistenceErr("Не удалось получить список файлов", err)
	}
	return records, nil
}

// Search — регистронезависимый поиск подстроки по имени файла,
// версии и примечаниям. Возвращает только активные записи.
func (s *QueryService) Search(ctx context.Context, query string) ([]*model.FileRecord, error) {
	records, err := s.catalog.Search(ctx, query)
	if err != nil {
		return nil, persistenceErr("Не удалось выполнить поиск", err)
	}
	return records, nil
}

// ListVersions возвращает историю версий для оригинального имени файла,
// новые первыми. Неизвестное имя — пустая история, не ошибка.
func (s *QueryService) ListVersions(ctx context.Context, filename string) ([]*model.VersionEntry, error) {
	versions, err := s.catalog.ListVersions(ctx, filename)
	if err != nil {
		return nil, persistenceErr("Не удалось получить историю версий", err)
	}
	return versions, nil
}
