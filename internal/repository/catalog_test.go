package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/confighost/internal/config"
	"github.com/bigkaa/confighost/internal/database"
	"github.com/bigkaa/confighost/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; контейнер и пул закрываются через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("confighost_test"),
		postgres.WithUsername("confighost"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("CH_DB_HOST", host)
	os.Setenv("CH_DB_PORT", port.Port())
	os.Setenv("CH_DB_NAME", "confighost_test")
	os.Setenv("CH_DB_USER", "confighost")
	os.Setenv("CH_DB_PASSWORD", "test-password")
	os.Setenv("CH_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newTestRecord возвращает запись файла с уникальным именем хранения.
func newTestRecord(storageName, originalFilename, version string) *model.FileRecord {
	return &model.FileRecord{
		StorageName:      storageName,
		OriginalFilename: originalFilename,
		FileType:         "json",
		Size:             42,
		Version:          version,
		StoragePath:      "/data/" + storageName,
		PublicURL:        "http://localhost:8080/file/" + storageName,
		RawURL:           "http://localhost:8080/raw/" + storageName,
		DownloadURL:      "http://localhost:8080/download/" + storageName,
		Checksum:         "deadbeef",
		UploaderName:     "tester",
	}
}

// TestRegisterAndGet проверяет регистрацию и чтение записи.
func TestRegisterAndGet(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	record := newTestRecord("1756080000_aaaa0001.json", "config.json", "1.0.0")
	record.ReleaseNotes = "первая версия"

	id, err := catalog.Register(ctx, record)
	if err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	if id == 0 {
		t.Fatal("id должен быть назначен базой")
	}

	// Серверные значения по умолчанию заполнены после вставки
	if !record.IsActive {
		t.Error("новая запись должна быть активной")
	}
	if record.DownloadCount != 0 {
		t.Errorf("счётчик скачиваний новой записи: ожидалось 0, получено %d", record.DownloadCount)
	}
	if record.CreatedAt.IsZero() {
		t.Error("created_at должен быть заполнен")
	}
	// expires_at = created_at + 365 дней (информационное поле)
	wantExpiry := record.CreatedAt.Add(365 * 24 * time.Hour)
	if diff := record.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expires_at: ожидалось около %v, получено %v", wantExpiry, record.ExpiresAt)
	}

	byID, err := catalog.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("ошибка GetByID: %v", err)
	}
	if byID.StorageName != record.StorageName {
		t.Errorf("имя хранения: ожидалось %s, получено %s", record.StorageName, byID.StorageName)
	}
	if byID.ReleaseNotes != "первая версия" {
		t.Errorf("release_notes: получено %q", byID.ReleaseNotes)
	}

	byName, err := catalog.GetByStorageName(ctx, record.StorageName)
	if err != nil {
		t.Fatalf("ошибка GetByStorageName: %v", err)
	}
	if byName.ID != id {
		t.Errorf("id: ожидалось %d, получено %d", id, byName.ID)
	}
}

// TestRegister_Conflict проверяет ErrConflict при дубликате имени хранения.
func TestRegister_Conflict(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	record := newTestRecord("1756080000_aaaa0002.json", "config.json", "1.0.0")
	if _, err := catalog.Register(ctx, record); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}

	duplicate := newTestRecord("1756080000_aaaa0002.json", "other.json", "2.0.0")
	duplicate.RawURL = "http://localhost:8080/raw/other"
	duplicate.PublicURL = "http://localhost:8080/file/other"
	_, err := catalog.Register(ctx, duplicate)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("ожидалась ErrConflict, получено: %v", err)
	}
}

// TestRegister_VersionHistory проверяет, что регистрация пишет строку
// истории версий в той же транзакции.
func TestRegister_VersionHistory(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	// Две загрузки под одним оригинальным именем
	first := newTestRecord("1756080000_aaaa0003.json", "service.json", "1.0.0")
	if _, err := catalog.Register(ctx, first); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	second := newTestRecord("1756080001_aaaa0004.json", "service.json", "1.1.0")
	if _, err := catalog.Register(ctx, second); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}

	versions, err := catalog.ListVersions(ctx, "service.json")
	if err != nil {
		t.Fatalf("ошибка ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("ожидалось 2 версии, получено %d", len(versions))
	}
	// Новые первыми
	if versions[0].Version != "1.1.0" || versions[1].Version != "1.0.0" {
		t.Errorf("порядок версий: получено %s, %s", versions[0].Version, versions[1].Version)
	}

	// Неизвестное имя — пустая история, не ошибка
	empty, err := catalog.ListVersions(ctx, "unknown.json")
	if err != nil {
		t.Fatalf("ошибка ListVersions: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ожидалась пустая история, получено %d", len(empty))
	}
}

// TestGet_NotFound проверяет ErrNotFound для отсутствующих записей.
func TestGet_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	if _, err := catalog.GetByID(ctx, 999999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID: ожидалась ErrNotFound, получено: %v", err)
	}
	if _, err := catalog.GetByStorageName(ctx, "no_such.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByStorageName: ожидалась ErrNotFound, получено: %v", err)
	}
}

// TestSearch проверяет регистронезависимый поиск по трём полям.
func TestSearch(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	nginx := newTestRecord("1756080000_aaaa0005.json", "Nginx-Main.json", "1.0.0")
	if _, err := catalog.Register(ctx, nginx); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	postgres := newTestRecord("1756080001_aaaa0006.json", "db.json", "2.5.0-nginx-compat")
	if _, err := catalog.Register(ctx, postgres); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	notes := newTestRecord("1756080002_aaaa0007.json", "app.json", "3.0.0")
	notes.ReleaseNotes = "переход с NGINX на caddy"
	if _, err := catalog.Register(ctx, notes); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}

	// Подстрока находится в имени, версии и примечаниях, без учёта регистра
	found, err := catalog.Search(ctx, "nginx")
	if err != nil {
		t.Fatalf("ошибка поиска: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("ожидалось 3 результата, получено %d", len(found))
	}

	// Пустой запрос возвращает все активные записи
	all, err := catalog.Search(ctx, "")
	if err != nil {
		t.Fatalf("ошибка поиска: %v", err)
	}
	if len(all) < 3 {
		t.Errorf("пустой запрос должен вернуть все активные записи, получено %d", len(all))
	}

	// Несовпадающий запрос — пустой результат
	none, err := catalog.Search(ctx, "подстрока-которой-нет")
	if err != nil {
		t.Fatalf("ошибка поиска: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ожидался пустой результат, получено %d", len(none))
	}
}

// TestListAll_Ordering проверяет порядок: новые первыми.
func TestListAll_Ordering(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	var ids []int64
	for i := 0; i < 3; i++ {
		r := newTestRecord(fmt.Sprintf("1756080000_order%03d.json", i), "ordered.json", "1.0.0")
		id, err := catalog.Register(ctx, r)
		if err != nil {
			t.Fatalf("ошибка регистрации: %v", err)
		}
		ids = append(ids, id)
	}

	all, err := catalog.ListAll(ctx)
	if err != nil {
		t.Fatalf("ошибка ListAll: %v", err)
	}
	if len(all) < 3 {
		t.Fatalf("ожидалось минимум 3 записи, получено %d", len(all))
	}

	// Последняя зарегистрированная — первая в списке
	// (created_at с точностью до микросекунд может совпасть, id решает)
	if all[0].ID != ids[2] {
		t.Errorf("первая запись: ожидался id %d, получен %d", ids[2], all[0].ID)
	}
}

// TestRecordDownload проверяет атомарность учёта скачивания:
// N конкурентных вызовов дают счётчик N и N строк журнала.
func TestRecordDownload(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	record := newTestRecord("1756080000_aaaa0008.json", "hot.json", "1.0.0")
	id, err := catalog.Register(ctx, record)
	if err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errCh <- catalog.RecordDownload(ctx, id,
				fmt.Sprintf("10.0.0.%d", n), "curl/8.0", "")
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("ошибка RecordDownload: %v", err)
		}
	}

	after, err := catalog.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("ошибка GetByID: %v", err)
	}
	if after.DownloadCount != workers {
		t.Errorf("счётчик скачиваний: ожидалось %d, получено %d", workers, after.DownloadCount)
	}
	if after.LastDownload == nil {
		t.Error("last_download должен быть заполнен")
	}

	var logRows int64
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM access_logs WHERE file_id = $1 AND action = $2`,
		id, model.ActionDownload,
	).Scan(&logRows)
	if err != nil {
		t.Fatalf("ошибка подсчёта журнала: %v", err)
	}
	if logRows != workers {
		t.Errorf("строк журнала: ожидалось %d, получено %d", workers, logRows)
	}
}

// TestRecordDownload_NotFound проверяет ErrNotFound для чужого id:
// строка журнала при этом не создаётся.
func TestRecordDownload_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	err := catalog.RecordDownload(ctx, 999999, "10.0.0.1", "curl/8.0", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено: %v", err)
	}

	var logRows int64
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM access_logs WHERE file_id = 999999`,
	).Scan(&logRows); err != nil {
		t.Fatalf("ошибка подсчёта журнала: %v", err)
	}
	if logRows != 0 {
		t.Errorf("журнал не должен содержать строк для несуществующего файла, получено %d", logRows)
	}
}

// TestRecordView проверяет запись просмотра без изменения счётчика.
func TestRecordView(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	record := newTestRecord("1756080000_aaaa0009.json", "viewed.json", "1.0.0")
	id, err := catalog.Register(ctx, record)
	if err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}

	if err := catalog.RecordView(ctx, id, "10.0.0.1", "Mozilla/5.0", "http://example.com"); err != nil {
		t.Fatalf("ошибка RecordView: %v", err)
	}

	after, err := catalog.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("ошибка GetByID: %v", err)
	}
	if after.DownloadCount != 0 {
		t.Errorf("просмотр не должен менять счётчик скачиваний, получено %d", after.DownloadCount)
	}

	var logRows int64
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM access_logs WHERE file_id = $1 AND action = $2`,
		id, model.ActionView,
	).Scan(&logRows); err != nil {
		t.Fatalf("ошибка подсчёта журнала: %v", err)
	}
	if logRows != 1 {
		t.Errorf("строк журнала view: ожидалось 1, получено %d", logRows)
	}
}

// TestStatistics проверяет агрегаты каталога.
func TestStatistics(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)

	before, err := catalog.Statistics(ctx)
	if err != nil {
		t.Fatalf("ошибка Statistics: %v", err)
	}

	record := newTestRecord("1756080000_aaaa0010.json", "stat.json", "1.0.0")
	record.Size = 100
	id, err := catalog.Register(ctx, record)
	if err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
	if err := catalog.RecordDownload(ctx, id, "10.0.0.1", "curl/8.0", ""); err != nil {
		t.Fatalf("ошибка RecordDownload: %v", err)
	}

	after, err := catalog.Statistics(ctx)
	if err != nil {
		t.Fatalf("ошибка Statistics: %v", err)
	}

	if after.TotalFiles != before.TotalFiles+1 {
		t.Errorf("total_files: ожидалось %d, получено %d", before.TotalFiles+1, after.TotalFiles)
	}
	if after.ActiveFiles != before.ActiveFiles+1 {
		t.Errorf("active_files: ожидалось %d, получено %d", before.ActiveFiles+1, after.ActiveFiles)
	}
	if after.TotalDownloads != before.TotalDownloads+1 {
		t.Errorf("total_downloads: ожидалось %d, получено %d", before.TotalDownloads+1, after.TotalDownloads)
	}
	if after.DailyDownloads != before.DailyDownloads+1 {
		t.Errorf("daily_downloads: ожидалось %d, получено %d", before.DailyDownloads+1, after.DailyDownloads)
	}
	if after.TotalSize != before.TotalSize+100 {
		t.Errorf("total_size: ожидалось %d, получено %d", before.TotalSize+100, after.TotalSize)
	}
}
