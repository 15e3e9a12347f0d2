package deliver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/srinivasgumdelli/moat/config"
	"github.com/srinivasgumdelli/moat/internal/retry"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends digests to a chat through the Bot API. Messages longer than
// the configured limit are split at line boundaries; attachments go out as
// documents with the message as caption.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	maxLen   int
	client   *http.Client
	logger   *log.Logger
}

func NewTelegram(cfg config.TelegramConfig, logger *log.Logger) *Telegram {
	maxLen := cfg.MaxMessageLength
	if maxLen <= 0 {
		maxLen = 4096
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = telegramAPIBase
	}
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  baseURL,
		maxLen:   maxLen,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, message string, attachment []byte, attachmentName string) error {
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("telegram bot_token and chat_id must be configured")
	}

	if len(attachment) > 0 {
		return t.sendDocument(ctx, message, attachment, attachmentName)
	}

	chunks := splitMessage(message, t.maxLen)
	for _, chunk := range chunks {
		if err := t.sendMessage(ctx, chunk); err != nil {
			return err
		}
	}
	if t.logger != nil {
		t.logger.Printf("telegram: sent %d message(s)", len(chunks))
	}
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	_, err := retry.Do(ctx, retry.DefaultOptions(), t.logger, func(ctx context.Context) (struct{}, error) {
		endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return struct{}{}, t.do(req)
	})
	return err
}

func (t *Telegram) sendDocument(ctx context.Context, caption string, attachment []byte, name string) error {
	if name == "" {
		name = "digest.txt"
	}
	if len(caption) > 1024 {
		caption = caption[:1024]
	}

	_, err := retry.Do(ctx, retry.DefaultOptions(), t.logger, func(ctx context.Context) (struct{}, error) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		if err := w.WriteField("chat_id", t.chatID); err != nil {
			return struct{}{}, err
		}
		if err := w.WriteField("caption", caption); err != nil {
			return struct{}{}, err
		}
		part, err := w.CreateFormFile("document", name)
		if err != nil {
			return struct{}{}, err
		}
		if _, err := part.Write(attachment); err != nil {
			return struct{}{}, err
		}
		if err := w.Close(); err != nil {
			return struct{}{}, err
		}

		endpoint := fmt.Sprintf("%s/bot%s/sendDocument", t.baseURL, t.botToken)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return struct{}{}, t.do(req)
	})
	if err == nil && t.logger != nil {
		t.logger.Printf("telegram: sent document %q", name)
	}
	return err
}

func (t *Telegram) do(req *http.Request) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return retry.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.StatusError{Code: resp.StatusCode, Body: string(body), RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	return nil
}

// splitMessage breaks text into chunks no longer than maxLen, preferring
// line boundaries. A single line longer than maxLen is hard-split.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	current := ""
	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxLen {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			chunks = append(chunks, line[:maxLen])
			line = line[maxLen:]
		}
		switch {
		case current == "":
			current = line
		case len(current)+len(line)+1 > maxLen:
			chunks = append(chunks, current)
			current = line
		default:
			current += "\n" + line
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
