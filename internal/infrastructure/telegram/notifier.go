package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"FeedIngestor/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// maxMessageRunes is the sendMessage text limit.
	maxMessageRunes = 4096
	truncMarker     = "…"
)

// ErrMisconfigured is returned when the token or chat id is missing.
var ErrMisconfigured = errors.New("telegram notifier misconfigured")

// Notifier sends job outcome messages to a Telegram chat via bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// botReply is the envelope every bot API method answers with.
type botReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify posts message as plain text, cut to the Telegram length limit.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if n.botToken == "" || n.chatID == "" {
		return ErrMisconfigured
	}

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", truncate(message, maxMessageRunes))
	form.Set("disable_web_page_preview", "true")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var reply botReply
	decodeErr := json.NewDecoder(resp.Body).Decode(&reply)
	if resp.StatusCode != http.StatusOK || (decodeErr == nil && !reply.OK) {
		if reply.Description != "" {
			return fmt.Errorf("telegram %s: %s", resp.Status, reply.Description)
		}
		return fmt.Errorf("telegram %s", resp.Status)
	}
	return nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-utf8.RuneCountInString(truncMarker)]) + truncMarker
}
