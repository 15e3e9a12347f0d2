package deliver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/srinivasgumdelli/moat/config"
)

func newTestTelegram(srvURL string, maxLen int) *Telegram {
	return NewTelegram(config.TelegramConfig{
		Enabled:          true,
		BotToken:         "token",
		ChatID:           "42",
		BaseURL:          srvURL,
		MaxMessageLength: maxLen,
	}, nil)
}

func TestTelegramSendShortMessage(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		r.ParseForm()
		if r.Form.Get("chat_id") != "42" {
			t.Errorf("chat_id: got %q", r.Form.Get("chat_id"))
		}
		texts = append(texts, r.Form.Get("text"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := newTestTelegram(srv.URL, 4096)
	if err := tg.Send(context.Background(), "hello digest", nil, ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(texts) != 1 || texts[0] != "hello digest" {
		t.Fatalf("unexpected messages: %v", texts)
	}
}

func TestTelegramSendChunksLongMessage(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		texts = append(texts, r.Form.Get("text"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	message := strings.Join([]string{
		strings.Repeat("a", 30),
		strings.Repeat("b", 30),
		strings.Repeat("c", 30),
	}, "\n")

	tg := newTestTelegram(srv.URL, 40)
	if err := tg.Send(context.Background(), message, nil, ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(texts) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(texts), texts)
	}
	for _, chunk := range texts {
		if len(chunk) > 40 {
			t.Fatalf("chunk exceeds limit: %d chars", len(chunk))
		}
	}
}

func TestTelegramSendDocument(t *testing.T) {
	var caption, fileName string
	var fileBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendDocument") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		r.ParseMultipartForm(1 << 20)
		caption = r.FormValue("caption")
		file, header, err := r.FormFile("document")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.Write([]byte(`{"ok":true}`))
			return
		}
		defer file.Close()
		fileName = header.Filename
		buf := make([]byte, header.Size)
		file.Read(buf)
		fileBody = buf
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := newTestTelegram(srv.URL, 4096)
	err := tg.Send(context.Background(), "the caption", []byte("pdf bytes"), "digest.pdf")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if caption != "the caption" || fileName != "digest.pdf" || string(fileBody) != "pdf bytes" {
		t.Fatalf("document upload wrong: caption=%q name=%q body=%q", caption, fileName, fileBody)
	}
}

func TestTelegramMisconfigured(t *testing.T) {
	tg := NewTelegram(config.TelegramConfig{Enabled: true}, nil)
	if err := tg.Send(context.Background(), "m", nil, ""); err == nil {
		t.Fatalf("missing token must error")
	}
}

func TestSplitMessageLineBoundaries(t *testing.T) {
	text := "one\ntwo\nthree"
	chunks := splitMessage(text, 8)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %v", chunks)
	}
	if chunks[0] != "one\ntwo" || chunks[1] != "three" {
		t.Fatalf("chunks wrong: %v", chunks)
	}
}

func TestSplitMessageHardSplitsOversizedLine(t *testing.T) {
	chunks := splitMessage(strings.Repeat("x", 25), 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %v", chunks)
	}
}
