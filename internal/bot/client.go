// Пакет bot — административный Telegram-бот confighost.
// Long polling через Bot API, единственный допущенный пользователь —
// администратор из конфигурации. Бот — read-only потребитель каталога.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// telegramAPIBase — базовый URL Telegram Bot API.
const telegramAPIBase = "https://api.telegram.org"

// Update — входящее обновление Bot API.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message — сообщение Telegram.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User — отправитель сообщения.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Chat — чат, из которого пришло сообщение.
type Chat struct {
	ID int64 `json:"id"`
}

// apiResponse — конверт ответа Bot API.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// Client — минимальный HTTP-клиент Telegram Bot API.
// Используются только getUpdates и sendMessage.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент Bot API.
// pollTimeout — таймаут long polling; HTTP-таймаут берётся с запасом.
func NewClient(token string, pollTimeout time.Duration) *Client {
	return &Client{
		baseURL: telegramAPIBase,
		token:   token,
		httpClient: &http.Client{
			Timeout: pollTimeout + 10*time.Second,
		},
	}
}

// GetUpdates выполняет long polling getUpdates.
// offset — идентификатор, с которого запрашивать обновления
// (последний обработанный update_id + 1).
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.FormatInt(int64(timeout.Seconds()), 10))
	params.Set("allowed_updates", `["message"]`)

	raw, err := c.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("ошибка разбора getUpdates: %w", err)
	}
	return updates, nil
}

// SendMessage отправляет текстовое сообщение в чат.
// parse_mode HTML: ответы бота содержат простую разметку.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	params.Set("parse_mode", "HTML")
	params.Set("disable_web_page_preview", "true")

	_, err := c.call(ctx, "sendMessage", params)
	return err
}

// call выполняет POST к методу Bot API и возвращает поле result.
func (c *Client) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		bytes.NewBufferString(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа %s: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа %s (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("Bot API %s: HTTP %d: %s", method, resp.StatusCode, envelope.Description)
	}

	return envelope.Result, nil
}
