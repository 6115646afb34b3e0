package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/tbonnaves/chat-relay/internal/middleware"
	"github.com/tbonnaves/chat-relay/internal/model/chat"
	chatservice "github.com/tbonnaves/chat-relay/internal/service/chat"
	"github.com/tbonnaves/chat-relay/internal/service/relay"
)

type fixedUpstream struct {
	reply string
	err   error
}

func (u fixedUpstream) Complete(_ context.Context, _ []*schema.Message) (string, error) {
	return u.reply, u.err
}

type noRules struct{}

func (noRules) Rules() string { return "" }

func setupRouter(t *testing.T, upstream relay.Upstream) (*chi.Mux, string) {
	t.Helper()
	dir := t.TempDir()
	store := chatservice.NewStore(dir)
	relaySvc := relay.NewService(store, upstream, noRules{}, "secret")

	r := chi.NewRouter()
	r.Use(middleware.CORS)
	New(relaySvc).RegisterRoutes(r)
	return r, dir
}

func postJSON(r http.Handler, path string, body map[string]any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSendMessage(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{reply: "Hi there!"})

	resp := postJSON(r, "/messaging/s1", map[string]any{"prompt": "Hello", "key": "secret"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["response"] != "Hi there!" {
		t.Fatalf("unexpected reply: %q", body["response"])
	}
}

func TestSendThenFetchHistory(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{reply: "Hi there!"})

	if resp := postJSON(r, "/messaging/s1", map[string]any{"prompt": "Hello", "key": "secret"}); resp.Code != http.StatusOK {
		t.Fatalf("POST failed: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/messaging/s1?key=secret", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Name    *string        `json:"name"`
		History []chat.Message `json:"history"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Name != nil {
		t.Fatalf("expected null name, got %q", *body.Name)
	}
	if len(body.History) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(body.History))
	}
	if body.History[0].Role != chat.RoleUser || body.History[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected roles: %s, %s", body.History[0].Role, body.History[1].Role)
	}
	// Prefixes come back intact on the read path.
	for _, msg := range body.History {
		if !strings.Contains(msg.Content, "] : ") {
			t.Fatalf("missing timestamp prefix: %q", msg.Content)
		}
	}
}

func TestSendMessageInvalidKey(t *testing.T) {
	r, dir := setupRouter(t, fixedUpstream{reply: "unused"})

	resp := postJSON(r, "/messaging/s1", map[string]any{"prompt": "Hello", "key": "wrong"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected request touched storage: %d entries", len(entries))
	}
}

func TestSendMessageInvalidBody(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{reply: "unused"})

	req := httptest.NewRequest(http.MethodPost, "/messaging/s1", strings.NewReader("{not json"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendMessageEmptyPrompt(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{reply: "unused"})

	resp := postJSON(r, "/messaging/s1", map[string]any{"prompt": "", "key": "secret"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSendMessageUpstreamFailure(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{err: context.DeadlineExceeded})

	resp := postJSON(r, "/messaging/s1", map[string]any{"prompt": "Hello", "key": "secret"})
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestHistoryInvalidKey(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{})

	req := httptest.NewRequest(http.MethodGet, "/messaging/s1?key=wrong", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestHistoryCorruptedTranscript(t *testing.T) {
	r, dir := setupRouter(t, fixedUpstream{})

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/messaging/bad?key=secret", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `\"bad\"`) && !strings.Contains(resp.Body.String(), "bad") {
		t.Fatalf("error should name the session: %s", resp.Body.String())
	}
}

func TestListSessions(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{reply: "ok"})

	postJSON(r, "/messaging/s1", map[string]any{"prompt": "Hello", "key": "secret", "name": "Alice"})
	postJSON(r, "/messaging/s2", map[string]any{"prompt": "Hello", "key": "secret"})

	req := httptest.NewRequest(http.MethodGet, "/messaging?key=secret", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Chats []chat.SessionInfo `json:"chats"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(body.Chats))
	}

	names := map[string]*string{}
	for _, info := range body.Chats {
		names[info.ID] = info.Name
	}
	if names["s1"] == nil || *names["s1"] != "Alice" {
		t.Fatalf("expected s1 named Alice, got %v", names["s1"])
	}
	if names["s2"] != nil {
		t.Fatalf("expected s2 unnamed, got %q", *names["s2"])
	}
}

func TestListSessionsInvalidKey(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{})

	req := httptest.NewRequest(http.MethodGet, "/messaging?key=wrong", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestOptionsPreflight(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{})

	req := httptest.NewRequest(http.MethodOptions, "/messaging/s1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if origin := resp.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("unexpected allow-origin: %q", origin)
	}
	if methods := resp.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "POST") {
		t.Fatalf("unexpected allow-methods: %q", methods)
	}
}

func TestCORSHeadersOnRegularResponses(t *testing.T) {
	r, _ := setupRouter(t, fixedUpstream{reply: "ok"})

	resp := postJSON(r, "/messaging/s1", map[string]any{"prompt": "Hello", "key": "secret"})
	if origin := resp.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("unexpected allow-origin: %q", origin)
	}
}
