// Пакет blobstore — операции с физическими файлами на диске.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету,
// чтение, идемпотентное удаление и обход директории для учёта ёмкости.
// Пакет ничего не знает о каталоге: единственный ключ — имя хранения.
package blobstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Ошибки хранилища.
var (
	// ErrNotFound — файл с таким именем хранения отсутствует на диске.
	ErrNotFound = errors.New("файл не найден в хранилище")
	// ErrFileTooLarge — содержимое превышает максимальный размер.
	ErrFileTooLarge = errors.New("файл превышает максимальный размер")
	// ErrExtensionNotAllowed — расширение файла вне списка разрешённых.
	ErrExtensionNotAllowed = errors.New("расширение файла не разрешено")
)

// tokenAlphabet — алфавит случайной части имени хранения (62 символа).
const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// tokenLength — длина случайной части имени хранения.
const tokenLength = 8

// nameAttempts — число попыток генерации при коллизии имени.
// Пространство 62^8 на секунду делает коллизию практически невозможной,
// но молчаливая перезапись недопустима.
const nameAttempts = 5

// BlobStore — управление физическими файлами под корневой директорией.
type BlobStore struct {
	// dataDir — корневая директория хранения (CH_DATA_DIR)
	dataDir string
	// maxSize — максимальный размер файла в байтах
	maxSize int64
	// allowedExts — разрешённые расширения (нижний регистр, без точки)
	allowedExts map[string]bool
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StorageName — имя файла в dataDir, ключ для Open/Delete
	StorageName string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 hex содержимого
	Checksum string
}

// Usage — занятость хранилища по результату обхода директории.
type Usage struct {
	// FileCount — количество обычных файлов
	FileCount int64
	// TotalBytes — суммарный размер в байтах
	TotalBytes int64
}

// New создаёт BlobStore. Проверяет и создаёт директорию данных,
// если она не существует.
func New(dataDir string, maxSize int64, allowedExtensions []string) (*BlobStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	exts := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		exts[strings.ToLower(ext)] = true
	}

	return &BlobStore{
		dataDir:     dataDir,
		maxSize:     maxSize,
		allowedExts: exts,
	}, nil
}

// Save записывает данные из reader на диск с подсчётом SHA-256 на лету.
// Расширение оригинального имени проверяется по списку разрешённых до
// записи первого байта; превышение maxSize обрывает запись.
//
// Формат имени хранения: {epoch}_{rand8}.{ext}, случайная часть — из
// криптографического источника. Существующий путь вызывает повторную
// генерацию, не перезапись.
//
// Паттерн записи: temp файл → запись + SHA-256 → fsync → atomic rename.
// При любой ошибке temp файл удаляется, частичных файлов не остаётся.
func (bs *BlobStore) Save(reader io.Reader, originalFilename string) (*SaveResult, error) {
	ext, err := bs.checkExtension(originalFilename)
	if err != nil {
		return nil, err
	}

	storageName, fullPath, err := bs.reserveStorageName(ext)
	if err != nil {
		return nil, err
	}
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256.
	// Лимит maxSize+1: лишний байт означает превышение.
	hasher := sha256.New()
	tee := io.TeeReader(io.LimitReader(reader, bs.maxSize+1), hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if size > bs.maxSize {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: лимит %d байт", ErrFileTooLarge, bs.maxSize)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StorageName: storageName,
		FullPath:    fullPath,
		Size:        size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл для чтения и возвращает *os.File.
// Директория или иной не-обычный файл по этому пути — ErrNotFound.
// Вызывающий код обязан закрыть файл.
func (bs *BlobStore) Open(storageName string) (*os.File, error) {
	fullPath := filepath.Join(bs.dataDir, storageName)

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storageName)
		}
		return nil, fmt.Errorf("ошибка stat файла %s: %w", storageName, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s не является обычным файлом", ErrNotFound, storageName)
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storageName, err)
	}
	return f, nil
}

// Delete удаляет файл с диска.
// Возвращает nil если файл уже не существует.
func (bs *BlobStore) Delete(storageName string) error {
	fullPath := filepath.Join(bs.dataDir, storageName)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storageName, err)
	}
	return nil
}

// Exists проверяет существование файла на диске.
func (bs *BlobStore) Exists(storageName string) bool {
	info, err := os.Stat(filepath.Join(bs.dataDir, storageName))
	return err == nil && info.Mode().IsRegular()
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (bs *BlobStore) FullPath(storageName string) string {
	return filepath.Join(bs.dataDir, storageName)
}

// DataDir возвращает путь к директории данных.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

// MaxSize возвращает максимальный размер файла в байтах.
func (bs *BlobStore) MaxSize() int64 {
	return bs.maxSize
}

// ComputeUsage рекурсивно обходит директорию данных, суммируя размеры
// обычных файлов. O(n) по количеству файлов — для низкочастотного
// операторского endpoint, не для горячего пути.
func (bs *BlobStore) ComputeUsage() (*Usage, error) {
	usage := &Usage{}

	err := filepath.WalkDir(bs.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		usage.FileCount++
		usage.TotalBytes += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода директории данных: %w", err)
	}

	return usage, nil
}

// checkExtension извлекает расширение (подстрока после последней точки,
// регистронезависимо) и проверяет его по списку разрешённых.
// Возвращает расширение в нижнем регистре.
func (bs *BlobStore) checkExtension(filename string) (string, error) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "", fmt.Errorf("%w: имя %q без расширения", ErrExtensionNotAllowed, filename)
	}
	ext := strings.ToLower(filename[idx+1:])
	if !bs.allowedExts[ext] {
		return "", fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext)
	}
	return ext, nil
}

// reserveStorageName генерирует имя хранения и проверяет, что путь
// свободен. После nameAttempts неудач возвращает ошибку — молчаливая
// перезапись существующего файла недопустима.
func (bs *BlobStore) reserveStorageName(ext string) (storageName, fullPath string, err error) {
	for i := 0; i < nameAttempts; i++ {
		name, err := generateStorageName(ext)
		if err != nil {
			return "", "", err
		}
		path := filepath.Join(bs.dataDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return name, path, nil
		}
	}
	return "", "", fmt.Errorf("не удалось подобрать свободное имя хранения за %d попыток", nameAttempts)
}

// generateStorageName генерирует имя файла для хранения на диске.
// Формат: {epoch}_{rand8}.{ext}, пример: 1756080000_a1B2c3D4.json.
// Случайная часть — 8 символов [a-zA-Z0-9] из crypto/rand.
func generateStorageName(ext string) (string, error) {
	token, err := randomToken(tokenLength)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации случайного токена: %w", err)
	}
	return fmt.Sprintf("%d_%s.%s", time.Now().UTC().Unix(), token, ext), nil
}

// randomToken возвращает строку длины n из tokenAlphabet.
// Выборка через rejection sampling — без смещения по модулю.
func randomToken(n int) (string, error) {
	result := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(result) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			// 248 = 62*4 — ближайшее кратное размеру алфавита
			if b >= 248 {
				continue
			}
			result = append(result, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(result) == n {
				break
			}
		}
	}
	return string(result), nil
}
