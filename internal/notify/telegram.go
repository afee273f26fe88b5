package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramChannel delivers through the Telegram bot API. Messages go to the
// student's chat when one is registered, otherwise to the configured default
// chat.
type TelegramChannel struct {
	cfg        *config.Config
	httpClient *http.Client
	baseURL    string
}

func NewTelegramChannel(cfg *config.Config) *TelegramChannel {
	return &TelegramChannel{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Notify.Telegram.Timeout,
		},
		baseURL: telegramAPIBase,
	}
}

func (t *TelegramChannel) Name() string {
	return "telegram"
}

func (t *TelegramChannel) Send(ctx context.Context, student *model.Student, msg Message) error {
	if t.cfg.Notify.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token not configured")
	}

	chatID := student.TelegramChatID
	if chatID == "" {
		chatID = t.cfg.Notify.Telegram.DefaultChatID
	}
	if chatID == "" {
		return fmt.Errorf("no telegram chat configured for %s", student.RegNo)
	}

	payload := map[string]string{
		"chat_id": chatID,
		"text":    msg.Text,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.cfg.Notify.Telegram.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram API error: %s", apiResp.Description)
	}

	return nil
}
