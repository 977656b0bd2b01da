package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/pkg/message"
)

const testToken = "123456:TEST-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBotAPI serves getMe, getUpdates and sendMessage. Queued updates are
// returned once by the next getUpdates call.
type fakeBotAPI struct {
	t *testing.T

	mu      sync.Mutex
	updates []map[string]any
	sent    []map[string]any
	sendErr bool
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	t.Helper()
	f := &fakeBotAPI{t: t}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBotAPI) queue(update map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
}

func (f *fakeBotAPI) sentMessages() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.sent...)
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	var params map[string]any
	_ = json.NewDecoder(r.Body).Decode(&params)

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		f.reply(w, map[string]any{"id": 42, "is_bot": true, "first_name": "Almond", "username": "almond_bot"})
	case "getUpdates":
		f.mu.Lock()
		updates := f.updates
		f.updates = nil
		f.mu.Unlock()
		if len(updates) == 0 {
			time.Sleep(10 * time.Millisecond)
			updates = []map[string]any{}
		}
		f.reply(w, updates)
	case "sendMessage":
		f.mu.Lock()
		fail := f.sendErr
		if !fail {
			f.sent = append(f.sent, params)
		}
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		f.reply(w, map[string]any{
			"message_id": len(f.sentMessages()) + 100,
			"date":       1700000000,
			"chat":       map[string]any{"id": -100, "type": "group"},
			"text":       params["text"],
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func (f *fakeBotAPI) reply(w http.ResponseWriter, result any) {
	if err := json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result}); err != nil {
		f.t.Errorf("encode response: %v", err)
	}
}

// newTestTelegram builds a provisioned module pointed at apiURL.
func newTestTelegram(t *testing.T, apiURL string, cfg Config) *Telegram {
	t.Helper()
	cfg.Token = testToken
	cfg.APIURL = apiURL
	cfg.defaults()
	cfg.PollingTimeout = time.Second

	tg := &Telegram{config: cfg}
	if err := tg.Provision(core.NewAppContext(discardLogger(), t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := tg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return tg
}

// inboxRecorder collects delivered messages.
type inboxRecorder struct {
	mu   sync.Mutex
	msgs []message.InboundMessage
	ch   chan message.InboundMessage
	err  error
}

func newInboxRecorder() *inboxRecorder {
	return &inboxRecorder{ch: make(chan message.InboundMessage, 16)}
}

func (r *inboxRecorder) push(msg message.InboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	r.ch <- msg
	return nil
}

func (r *inboxRecorder) received() []message.InboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.InboundMessage(nil), r.msgs...)
}
