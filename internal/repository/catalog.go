package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/confighost/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `id, filename, original_filename, file_type, file_size, version,
	storage_path, public_url, raw_url, download_url, release_notes, checksum,
	uploader_id, uploader_name, created_at, expires_at, is_active,
	download_count, last_download`

// Catalog — учёт файлов, версий и статистики доступа.
// Единственный владелец таблиц files, file_versions и access_logs:
// никакой другой компонент их не изменяет.
type Catalog interface {
	// Register создаёт запись файла и начальную запись истории версий
	// в одной транзакции. Возвращает назначенный id.
	// Нарушение уникальности имени хранения — ErrConflict.
	Register(ctx context.Context, f *model.FileRecord) (int64, error)
	// GetByID возвращает файл по числовому id или ErrNotFound.
	// Не фильтрует по is_active.
	GetByID(ctx context.Context, id int64) (*model.FileRecord, error)
	// GetByStorageName возвращает файл по имени хранения или ErrNotFound.
	GetByStorageName(ctx context.Context, storageName string) (*model.FileRecord, error)
	// ListAll возвращает все записи, новые первыми.
	ListAll(ctx context.Context) ([]*model.FileRecord, error)
	// Search — регистронезависимый поиск подстроки по имени, версии
	// или примечаниям. Только активные записи, новые первыми.
	// Пустой запрос возвращает все активные записи.
	Search(ctx context.Context, query string) ([]*model.FileRecord, error)
	// ListVersions возвращает историю версий для оригинального имени
	// (точное совпадение), новые первыми.
	ListVersions(ctx context.Context, filename string) ([]*model.VersionEntry, error)
	// RecordDownload атомарно увеличивает счётчик скачиваний,
	// обновляет last_download и добавляет строку журнала доступа.
	RecordDownload(ctx context.Context, fileID int64, ip, userAgent, referrer string) error
	// RecordView добавляет строку журнала с действием view.
	// Счётчик скачиваний не трогает.
	RecordView(ctx context.Context, fileID int64, ip, userAgent, referrer string) error
	// Statistics возвращает агрегированную статистику каталога.
	Statistics(ctx context.Context) (*model.Statistics, error)
}

// catalog — реализация Catalog через pgx.
type catalog struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewCatalog создаёт каталог поверх пула подключений.
func NewCatalog(pool *pgxpool.Pool) Catalog {
	return &catalog{
		pool: pool,
		tx:   NewTxRunner(pool),
	}
}

// Register вставляет запись файла и строку истории версий в одной
// транзакции: читатель никогда не видит файл без его версии.
func (c *catalog) Register(ctx context.Context, f *model.FileRecord) (int64, error) {
	err := c.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		insertFile := `
			INSERT INTO files (filename, original_filename, file_type, file_size, version,
				storage_path, public_url, raw_url, download_url, release_notes, checksum,
				uploader_id, uploader_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id, created_at, expires_at, is_active, download_count`

		err := tx.QueryRow(ctx, insertFile,
			f.StorageName, f.OriginalFilename, f.FileType, f.Size, f.Version,
			f.StoragePath, f.PublicURL, f.RawURL, f.DownloadURL, f.ReleaseNotes,
			f.Checksum, f.UploaderID, f.UploaderName,
		).Scan(&f.ID, &f.CreatedAt, &f.ExpiresAt, &f.IsActive, &f.DownloadCount)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: имя хранения %s уже зарегистрировано", ErrConflict, f.StorageName)
			}
			return fmt.Errorf("ошибка регистрации файла: %w", err)
		}

		insertVersion := `
			INSERT INTO file_versions (filename, version, storage_path, raw_url, created_at)
			VALUES ($1, $2, $3, $4, $5)`

		if _, err := tx.Exec(ctx, insertVersion,
			f.OriginalFilename, f.Version, f.StorageName, f.RawURL, f.CreatedAt,
		); err != nil {
			return fmt.Errorf("ошибка записи истории версий: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}
	return f.ID, nil
}

func (c *catalog) GetByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)
	return c.scanOne(c.pool.QueryRow(ctx, query, id))
}

func (c *catalog) GetByStorageName(ctx context.Context, storageName string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE filename = $1`, fileColumns)
	return c.scanOne(c.pool.QueryRow(ctx, query, storageName))
}

// ListAll возвращает все записи: created_at DESC, при равенстве — id DESC
// (стабильный порядок вставки).
func (c *catalog) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM files
		ORDER BY created_at DESC, id DESC`, fileColumns)

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	return c.scanAll(rows)
}

// Search: ILIKE-подстрока по трём полям через OR, только is_active.
// Пустой запрос совпадает со всеми активными записями (любая строка
// содержит пустую подстроку).
func (c *catalog) Search(ctx context.Context, query string) ([]*model.FileRecord, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM files
		WHERE is_active = TRUE
			AND (original_filename ILIKE $1 OR version ILIKE $1 OR release_notes ILIKE $1)
		ORDER BY created_at DESC, id DESC`, fileColumns)

	rows, err := c.pool.Query(ctx, sql, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска файлов: %w", err)
	}
	defer rows.Close()

	return c.scanAll(rows)
}

func (c *catalog) ListVersions(ctx context.Context, filename string) ([]*model.VersionEntry, error) {
	query := `
		SELECT id, filename, version, storage_path, raw_url, created_at
		FROM file_versions
		WHERE filename = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := c.pool.Query(ctx, query, filename)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории версий: %w", err)
	}
	defer rows.Close()

	var result []*model.VersionEntry
	for rows.Next() {
		v := &model.VersionEntry{}
		if err := rows.Scan(&v.ID, &v.Filename, &v.Version, &v.StoragePath, &v.RawURL, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования версии: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// RecordDownload: инкремент счётчика и строка журнала в одной транзакции.
// Читатель никогда не видит увеличенный счётчик без строки журнала
// и наоборот.
func (c *catalog) RecordDownload(ctx context.Context, fileID int64, ip, userAgent, referrer string) error {
	return c.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE files
			SET download_count = download_count + 1,
				last_download = now()
			WHERE id = $1`, fileID)
		if err != nil {
			return fmt.Errorf("ошибка обновления счётчика скачиваний: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO access_logs (file_id, ip_address, user_agent, referrer, action)
			VALUES ($1, $2, $3, $4, $5)`,
			fileID, ip, userAgent, referrer, model.ActionDownload,
		); err != nil {
			return fmt.Errorf("ошибка записи журнала доступа: %w", err)
		}
		return nil
	})
}

func (c *catalog) RecordView(ctx context.Context, fileID int64, ip, userAgent, referrer string) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO access_logs (file_id, ip_address, user_agent, referrer, action)
		VALUES ($1, $2, $3, $4, $5)`,
		fileID, ip, userAgent, referrer, model.ActionView,
	)
	if err != nil {
		return fmt.Errorf("ошибка записи журнала доступа: %w", err)
	}
	return nil
}

// Statistics: total_downloads — сумма счётчиков записей (не количество
// строк журнала); daily_downloads — строки журнала за скользящие 24 часа.
func (c *catalog) Statistics(ctx context.Context) (*model.Statistics, error) {
	stats := &model.Statistics{}

	err := c.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COALESCE(SUM(download_count), 0),
			COALESCE(SUM(file_size), 0)
		FROM files`).Scan(
		&stats.TotalFiles, &stats.ActiveFiles, &stats.TotalDownloads, &stats.TotalSize,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка агрегации по файлам: %w", err)
	}

	err = c.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM access_logs
		WHERE action = $1 AND accessed_at > $2`,
		model.ActionDownload, time.Now().UTC().Add(-24*time.Hour),
	).Scan(&stats.DailyDownloads)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта скачиваний за сутки: %w", err)
	}

	return stats, nil
}

// scanOne сканирует одну запись файла; pgx.ErrNoRows → ErrNotFound.
func (c *catalog) scanOne(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(
		&f.ID, &f.StorageName, &f.OriginalFilename, &f.FileType, &f.Size, &f.Version,
		&f.StoragePath, &f.PublicURL, &f.RawURL, &f.DownloadURL, &f.ReleaseNotes,
		&f.Checksum, &f.UploaderID, &f.UploaderName, &f.CreatedAt, &f.ExpiresAt,
		&f.IsActive, &f.DownloadCount, &f.LastDownload,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// scanAll сканирует набор записей файлов.
func (c *catalog) scanAll(rows pgx.Rows) ([]*model.FileRecord, error) {
	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.StorageName, &f.OriginalFilename, &f.FileType, &f.Size, &f.Version,
			&f.StoragePath, &f.PublicURL, &f.RawURL, &f.DownloadURL, &f.ReleaseNotes,
			&f.Checksum, &f.UploaderID, &f.UploaderName, &f.CreatedAt, &f.ExpiresAt,
			&f.IsActive, &f.DownloadCount, &f.LastDownload,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}
