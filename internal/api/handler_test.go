package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mhutchinson/chatrelay/internal/api"
	"github.com/mhutchinson/chatrelay/internal/chat"
	"github.com/mhutchinson/chatrelay/internal/models"
	"github.com/mhutchinson/chatrelay/internal/store"
)

type mockGenerator struct {
	reply string
	err   error
}

func (m *mockGenerator) Generate(context.Context, string) (string, error) {
	return m.reply, m.err
}

func newTestRouter(t *testing.T, gen *mockGenerator) (http.Handler, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := zap.NewNop()
	handler := api.NewHandler(st, chat.New(st, gen, logger), logger)
	return api.NewRouter(handler, logger, []string{"http://localhost:3000"}), st
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestCreateConversationEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &mockGenerator{})

	first := doJSON(t, router, http.MethodPost, "/api/conversations", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", first.Code)
	}
	second := doJSON(t, router, http.MethodPost, "/api/conversations", nil)

	a := decode[models.Conversation](t, first)
	b := decode[models.Conversation](t, second)
	if a.ID == b.ID {
		t.Errorf("conversation ids not distinct: %d", a.ID)
	}
	if a.SessionID == b.SessionID {
		t.Errorf("session ids not distinct: %s", a.SessionID)
	}
}

func TestChatRoundTrip(t *testing.T) {
	router, st := newTestRouter(t, &mockGenerator{reply: "Hello there"})

	conv, err := st.CreateConversation(context.Background())
	if err != nil {
		t.Fatalf("CreateConversation() = %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/chat", map[string]any{
		"message":         "Hi",
		"conversation_id": conv.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	reply := decode[chat.Reply](t, rec)
	if reply.Response != "Hello there" {
		t.Errorf("response = %q, want %q", reply.Response, "Hello there")
	}
	if reply.MessageID == 0 {
		t.Error("message_id missing from response")
	}

	list := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", conv.ID), nil)
	if list.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", list.Code)
	}
	msgs := decode[[]models.Message](t, list)
	if len(msgs) != 2 {
		t.Fatalf("conversation has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("roles = %s, %s, want user, assistant", msgs[0].Role, msgs[1].Role)
	}
}

func TestChatUnknownConversation(t *testing.T) {
	router, _ := newTestRouter(t, &mockGenerator{reply: "never"})

	rec := doJSON(t, router, http.MethodPost, "/api/chat", map[string]any{
		"message":         "Hi",
		"conversation_id": 12345,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	router, _ := newTestRouter(t, &mockGenerator{})

	rec := doJSON(t, router, http.MethodPost, "/api/chat", map[string]any{
		"message":         "",
		"conversation_id": 1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteConversationEndpoint(t *testing.T) {
	router, st := newTestRouter(t, &mockGenerator{})

	conv, err := st.CreateConversation(context.Background())
	if err != nil {
		t.Fatalf("CreateConversation() = %v", err)
	}
	if _, err := st.AppendMessage(context.Background(), conv.ID, models.RoleUser, "Hi"); err != nil {
		t.Fatalf("AppendMessage() = %v", err)
	}

	path := fmt.Sprintf("/api/conversations/%d", conv.ID)
	rec := doJSON(t, router, http.MethodDelete, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, path, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	list := doJSON(t, router, http.MethodGet, path+"/messages", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", list.Code)
	}
	if msgs := decode[[]models.Message](t, list); len(msgs) != 0 {
		t.Errorf("deleted conversation lists %d messages, want 0", len(msgs))
	}
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &mockGenerator{})

	for _, path := range []string{"/", "/api/health"} {
		if rec := doJSON(t, router, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, &mockGenerator{})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unlisted origin = %q, want empty", got)
	}
}
