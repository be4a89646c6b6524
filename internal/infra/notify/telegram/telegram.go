// Package telegram delivers alerts through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/infra/notify"
)

const defaultBaseURL = "https://api.telegram.org"

// Config holds Telegram bot configuration.
type Config struct {
	BotToken string        `yaml:"bot_token"`
	ChatID   string        `yaml:"chat_id"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Enabled reports whether a bot token was configured.
func (c Config) Enabled() bool {
	return c.BotToken != ""
}

// Notifier sends Markdown messages to one chat.
type Notifier struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

var _ notify.Notifier = (*Notifier)(nil)

// New creates a Telegram notifier.
func New(cfg Config) *Notifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    slog.Default().With("component", "telegram"),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func (n *Notifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.cfg.BaseURL, n.cfg.BotToken, method)
}

// Notify sends alert.Text with Markdown parsing.
func (n *Notifier) Notify(ctx context.Context, alert notify.Alert) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                n.cfg.ChatID,
		Text:                  alert.Text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := n.do(req); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	n.log.Debug("telegram message sent", "kind", alert.Kind)
	return nil
}

// Ping calls getMe and returns the bot username.
func (n *Notifier) Ping(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint("getMe"), nil)
	if err != nil {
		return "", err
	}
	result, err := n.do(req)
	if err != nil {
		return "", fmt.Errorf("telegram getMe: %w", err)
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(result, &me); err != nil {
		return "", fmt.Errorf("telegram getMe: decode: %w", err)
	}
	return me.Username, nil
}

func (n *Notifier) do(req *http.Request) (json.RawMessage, error) {
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("status %d: invalid response", resp.StatusCode)
	}
	if !out.OK {
		desc := out.Description
		if desc == "" {
			desc = "Unknown error"
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, desc)
	}
	return out.Result, nil
}
