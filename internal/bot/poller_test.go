package bot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/confighost/internal/domain/model"
	"github.com/bigkaa/confighost/internal/service"
	"github.com/bigkaa/confighost/internal/storage/blobstore"
)

// memCatalog — каталог в памяти для тестов бота.
type memCatalog struct {
	files []*model.FileRecord
}

func (c *memCatalog) Register(_ context.Context, f *model.FileRecord) (int64, error) {
	f.ID = int64(len(c.files) + 1)
	c.files = append(c.files, f)
	return f.ID, nil
}

func (c *memCatalog) GetByID(_ context.Context, _ int64) (*model.FileRecord, error) {
	return nil, nil
}

func (c *memCatalog) GetByStorageName(_ context.Context, _ string) (*model.FileRecord, error) {
	return nil, nil
}

func (c *memCatalog) ListAll(_ context.Context) ([]*model.FileRecord, error) {
	return c.files, nil
}

func (c *memCatalog) Search(_ context.Context, _ string) ([]*model.FileRecord, error) {
	return c.files, nil
}

func (c *memCatalog) ListVersions(_ context.Context, _ string) ([]*model.VersionEntry, error) {
	return nil, nil
}

func (c *memCatalog) RecordDownload(_ context.Context, _ int64, _, _, _ string) error {
	return nil
}

func (c *memCatalog) RecordView(_ context.Context, _ int64, _, _, _ string) error {
	return nil
}

func (c *memCatalog) Statistics(_ context.Context) (*model.Statistics, error) {
	return &model.Statistics{TotalFiles: int64(len(c.files)), ActiveFiles: int64(len(c.files))}, nil
}

// newTestPoller создаёт Poller с сервером, перехватывающим sendMessage.
// Возвращает Poller и указатель на срез отправленных текстов.
func newTestPoller(t *testing.T, adminID int64) (*Poller, *[]string) {
	t.Helper()

	var sent []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			if err := r.ParseForm(); err != nil {
				t.Fatalf("ошибка разбора формы: %v", err)
			}
			sent = append(sent, r.FormValue("text"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-token", time.Second)
	client.baseURL = server.URL

	catalog := &memCatalog{}
	if _, err := catalog.Register(context.Background(), &model.FileRecord{
		OriginalFilename: "nginx.conf",
		Version:          "1.2.0",
		Size:             2048,
		DownloadCount:    5,
	}); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}

	blobs, err := blobstore.New(t.TempDir(), 1024, []string{"conf"})
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	query := service.NewQueryService(catalog, logger)
	stats := service.NewStatsService(blobs, catalog, logger)

	return NewPoller(client, adminID, time.Second, query, stats, logger), &sent
}

func adminMessage(text string) Update {
	return Update{
		UpdateID: 1,
		Message: &Message{
			MessageID: 1,
			Chat:      Chat{ID: 42},
			From:      &User{ID: 42, Username: "admin"},
			Text:      text,
		},
	}
}

// TestHandleUpdate_IgnoresStrangers проверяет, что посторонний чат
// не получает ответа.
func TestHandleUpdate_IgnoresStrangers(t *testing.T) {
	poller, sent := newTestPoller(t, 99)

	poller.handleUpdate(context.Background(), adminMessage("/files"))

	if len(*sent) != 0 {
		t.Errorf("посторонний чат не должен получать ответ, отправлено %d сообщений", len(*sent))
	}
}

// TestHandleUpdate_Files проверяет ответ на /files.
func TestHandleUpdate_Files(t *testing.T) {
	poller, sent := newTestPoller(t, 42)

	poller.handleUpdate(context.Background(), adminMessage("/files"))

	if len(*sent) != 1 {
		t.Fatalf("ожидалось 1 сообщение, отправлено %d", len(*sent))
	}
	reply := (*sent)[0]
	if !strings.Contains(reply, "nginx.conf") {
		t.Errorf("ответ должен содержать имя файла: %q", reply)
	}
	if !strings.Contains(reply, "1.2.0") {
		t.Errorf("ответ должен содержать версию: %q", reply)
	}
}

// TestHandleUpdate_Stats проверяет ответ на /stats.
func TestHandleUpdate_Stats(t *testing.T) {
	poller, sent := newTestPoller(t, 42)

	poller.handleUpdate(context.Background(), adminMessage("/stats"))

	if len(*sent) != 1 {
		t.Fatalf("ожидалось 1 сообщение, отправлено %d", len(*sent))
	}
	if !strings.Contains((*sent)[0], "Файлов: 1") {
		t.Errorf("ответ должен содержать количество файлов: %q", (*sent)[0])
	}
}

// TestHandleUpdate_UnknownCommand проверяет ответ на неизвестную команду.
func TestHandleUpdate_UnknownCommand(t *testing.T) {
	poller, sent := newTestPoller(t, 42)

	poller.handleUpdate(context.Background(), adminMessage("/restart"))

	if len(*sent) != 1 {
		t.Fatalf("ожидалось 1 сообщение, отправлено %d", len(*sent))
	}
	if !strings.Contains((*sent)[0], "/help") {
		t.Errorf("ответ должен предлагать /help: %q", (*sent)[0])
	}
}

// TestHandleUpdate_CommandWithBotName проверяет разбор /cmd@botname.
func TestHandleUpdate_CommandWithBotName(t *testing.T) {
	poller, sent := newTestPoller(t, 42)

	poller.handleUpdate(context.Background(), adminMessage("/help@confighost_bot"))

	if len(*sent) != 1 {
		t.Fatalf("ожидалось 1 сообщение, отправлено %d", len(*sent))
	}
	if !strings.Contains((*sent)[0], "/files") {
		t.Errorf("ожидалась справка: %q", (*sent)[0])
	}
}

// TestFormatSize проверяет человекочитаемый формат размера.
func TestFormatSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, c := range cases {
		if got := formatSize(c.bytes); got != c.want {
			t.Errorf("formatSize(%d): ожидалось %s, получено %s", c.bytes, c.want, got)
		}
	}
}
