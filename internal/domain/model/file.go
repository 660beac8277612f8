// Пакет model — доменные структуры confighost.
package model

import "time"

// Действия в журнале доступа (таблица access_logs).
const (
	// ActionView — просмотр информации о файле.
	ActionView = "view"
	// ActionDownload — скачивание содержимого файла.
	ActionDownload = "download"
)

// FileRecord — запись загруженного файла в каталоге.
// Хранится в таблице files. Одна строка на каждую загрузку:
// два идентичных файла получают две разные записи (дедупликации нет).
type FileRecord struct {
	// ID — числовой идентификатор, назначается базой при вставке
	ID int64
	// StorageName — уникальное имя файла на диске и в публичных URL
	// (формат {epoch}_{rand8}.{ext})
	StorageName string
	// OriginalFilename — очищенное имя файла, заданное пользователем.
	// Только для отображения, может повторяться между записями.
	OriginalFilename string
	// FileType — расширение файла в нижнем регистре (json, yaml, ...)
	FileType string
	// Size — размер содержимого в байтах на момент загрузки
	Size int64
	// Version — произвольная версионная метка загрузки (по умолчанию "1.0.0").
	// Не проверяется и не сравнивается как semver.
	Version string
	// StoragePath — абсолютный путь файла на диске
	StoragePath string
	// PublicURL — URL страницы файла
	PublicURL string
	// RawURL — URL прямого доступа к содержимому
	RawURL string
	// DownloadURL — URL скачивания как attachment
	DownloadURL string
	// ReleaseNotes — примечания к версии (опционально)
	ReleaseNotes string
	// Checksum — SHA-256 hex содержимого, вычисляется один раз при загрузке
	Checksum string
	// UploaderID — идентификатор загрузившего
	UploaderID int64
	// UploaderName — имя загрузившего
	UploaderName string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// ExpiresAt — время истечения (создание + 365 дней).
	// Только информационное поле, не принуждается.
	ExpiresAt time.Time
	// IsActive — флаг активности (зарезервирован под soft delete,
	// ни один компонент не переводит его в false)
	IsActive bool
	// DownloadCount — счётчик скачиваний, только растёт
	DownloadCount int64
	// LastDownload — время последнего скачивания
	LastDownload *time.Time
}

// VersionEntry — строка истории версий (таблица file_versions).
// Ключ — оригинальное имя файла, не ID: несколько записей делят
// одно имя по мере загрузки новых версий. Журнал append-only,
// никогда не обновляется и не удаляется.
type VersionEntry struct {
	// ID — числовой идентификатор записи
	ID int64
	// Filename — оригинальное имя файла (логическое имя версии)
	Filename string
	// Version — версионная метка загрузки
	Version string
	// StoragePath — имя хранения, использованное этой версией
	StoragePath string
	// RawURL — URL прямого доступа на момент загрузки
	RawURL string
	// CreatedAt — время загрузки
	CreatedAt time.Time
}

// AccessLogEntry — строка журнала доступа (таблица access_logs).
// Пишется при каждом просмотре или скачивании, читается только
// агрегатами статистики.
type AccessLogEntry struct {
	// ID — числовой идентификатор записи
	ID int64
	// FileID — ссылка на files.id
	FileID int64
	// IPAddress — адрес клиента
	IPAddress string
	// UserAgent — User-Agent клиента
	UserAgent string
	// Referrer — Referer клиента (опционально)
	Referrer string
	// Action — вид доступа: view или download
	Action string
	// AccessedAt — время доступа
	AccessedAt time.Time
}

// Statistics — агрегированная статистика каталога.
type Statistics struct {
	// TotalFiles — общее количество записей
	TotalFiles int64
	// ActiveFiles — количество записей с is_active = true
	ActiveFiles int64
	// TotalDownloads — сумма download_count по всем записям
	// (не количество строк журнала)
	TotalDownloads int64
	// DailyDownloads — скачивания за последние 24 часа по журналу доступа
	DailyDownloads int64
	// TotalSize — сумма file_size по всем записям. Кэшированная цифра,
	// не обязана совпадать с живым обходом диска.
	TotalSize int64
}
