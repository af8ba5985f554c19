// Package notify delivers outbound messages to a single configured
// chat destination. Delivery is fire-and-forget: a failed send is
// returned to the caller to log, never retried here.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 10 * time.Second

// TelegramSink posts messages to a Telegram bot chat.
type TelegramSink struct {
	baseURL string
	token   string
	chatID  string
	http    *http.Client
}

// NewTelegramSink creates a sink for the given bot token and chat.
// baseURL defaults to the public bot API when empty.
func NewTelegramSink(baseURL, token, chatID string) *TelegramSink {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramSink{
		baseURL: baseURL,
		token:   token,
		chatID:  chatID,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers one message. A non-OK API response is an error; the
// caller decides whether the message is lost or retried.
func (s *TelegramSink) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: s.chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var apiResp sendMessageResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("delivery rejected: %s", apiResp.Description)
	}
	return nil
}

// LogSink writes messages to a logger instead of the network. Used when
// no chat destination is configured.
type LogSink struct {
	Printf func(format string, v ...interface{})
}

// Send logs the message and always succeeds.
func (s *LogSink) Send(_ context.Context, text string) error {
	s.Printf("notification: %s", text)
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
