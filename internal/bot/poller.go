package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/bigkaa/confighost/internal/service"
)

// filesLimit — максимум записей в ответе на /files.
const filesLimit = 10

// errorBackoff — пауза перед повтором после ошибки getUpdates.
const errorBackoff = 5 * time.Second

// Poller — цикл long polling и обработка команд администратора.
type Poller struct {
	client      *Client
	adminID     int64
	pollTimeout time.Duration
	query       *service.QueryService
	stats       *service.StatsService
	logger      *slog.Logger
}

// NewPoller создаёт Poller.
// adminID — единственный чат, которому бот отвечает.
func NewPoller(
	client *Client,
	adminID int64,
	pollTimeout time.Duration,
	query *service.QueryService,
	stats *service.StatsService,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		client:      client,
		adminID:     adminID,
		pollTimeout: pollTimeout,
		query:       query,
		stats:       stats,
		logger:      logger,
	}
}

// Run запускает цикл long polling до отмены контекста.
// Ошибки getUpdates логируются, цикл продолжается после паузы —
// временная недоступность Telegram не роняет сервис.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Telegram-бот запущен", slog.Int64("admin_id", p.adminID))

	var offset int64
	for {
		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				p.logger.Info("Telegram-бот остановлен")
				return
			}
			p.logger.Error("Ошибка getUpdates", slog.String("error", err.Error()))
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				p.logger.Info("Telegram-бот остановлен")
				return
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			p.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate обрабатывает одно обновление.
// Сообщения не от администратора молча игнорируются.
func (p *Poller) handleUpdate(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	if msg.Chat.ID != p.adminID {
		p.logger.Warn("Сообщение от постороннего чата проигнорировано",
			slog.Int64("chat_id", msg.Chat.ID),
		)
		return
	}

	command := msg.Text
	if idx := strings.Index(command, " "); idx >= 0 {
		command = command[:idx]
	}
	// Команды в группах приходят как /cmd@botname
	if idx := strings.Index(command, "@"); idx >= 0 {
		command = command[:idx]
	}

	var reply string
	var err error
	switch command {
	case "/start":
		reply = p.startReply()
	case "/files":
		reply, err = p.filesReply(ctx)
	case "/stats":
		reply, err = p.statsReply(ctx)
	case "/help":
		reply = p.helpReply()
	default:
		reply = "Неизвестная команда. Используйте /help."
	}
	if err != nil {
		p.logger.Error("Ошибка обработки команды",
			slog.String("command", command),
			slog.String("error", err.Error()),
		)
		reply = "Ошибка выполнения команды, подробности в логах сервиса."
	}

	if err := p.client.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
		p.logger.Error("Ошибка отправки сообщения", slog.String("error", err.Error()))
	}
}

func (p *Poller) startReply() string {
	return "<b>confighost</b> — хостинг конфигурационных файлов.\n" +
		"Доступные команды: /files /stats /help"
}

func (p *Poller) helpReply() string {
	return "/files — последние загруженные файлы\n" +
		"/stats — статистика сервиса\n" +
		"/help — эта справка"
}

// filesReply — последние filesLimit записей каталога.
func (p *Poller) filesReply(ctx context.Context) (string, error) {
	files, err := p.query.ListAll(ctx)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "Файлов пока нет.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Файлы</b> (всего %d):\n", len(files))
	for i, f := range files {
		if i == filesLimit {
			fmt.Fprintf(&b, "… и ещё %d", len(files)-filesLimit)
			break
		}
		fmt.Fprintf(&b, "%d. <b>%s</b> v%s — %s, скачиваний: %d\n",
			f.ID,
			html.EscapeString(f.OriginalFilename),
			html.EscapeString(f.Version),
			formatSize(f.Size),
			f.DownloadCount,
		)
	}
	return b.String(), nil
}

// statsReply — агрегированная статистика сервиса.
func (p *Poller) statsReply(ctx context.Context) (string, error) {
	report, err := p.stats.Report(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<b>Статистика confighost</b>\n")
	fmt.Fprintf(&b, "Файлов: %d (активных: %d)\n", report.Catalog.TotalFiles, report.Catalog.ActiveFiles)
	fmt.Fprintf(&b, "Скачиваний всего: %d\n", report.Catalog.TotalDownloads)
	fmt.Fprintf(&b, "Скачиваний за сутки: %d\n", report.Catalog.DailyDownloads)
	fmt.Fprintf(&b, "Объём по каталогу: %s\n", formatSize(report.Catalog.TotalSize))
	fmt.Fprintf(&b, "На диске: %s в %d файлах", formatSize(report.DiskUsageBytes), report.DiskFileCount)
	return b.String(), nil
}

// formatSize — человекочитаемый размер в двоичных единицах.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
