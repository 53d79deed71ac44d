package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// newTestServer は指定メソッドへのリクエストを検証し、resultを返すテストサーバーを構築する。
func newTestServer(t *testing.T, wantPath string, result any, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("request path = %q, want %q", r.URL.Path, wantPath)
		}
		if capture != nil {
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, capture); err != nil {
				t.Errorf("request body is not valid JSON: %v", err)
			}
		}
		resultJSON, _ := json.Marshal(result)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true, "result": ` + string(resultJSON) + `}`))
	}))
}

// TestClient_SendMessage は送信リクエストの形式とレスポンスのパースを検証する。
func TestClient_SendMessage(t *testing.T) {
	var captured map[string]any
	server := newTestServer(t, "/bottest-token/sendMessage",
		Message{MessageID: 99, Chat: Chat{ID: 42}}, &captured)
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), server.URL, "test-token")

	msg, err := client.SendMessage(context.Background(), 42, "hello", &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{{{Text: "OK", CallbackData: "ok"}}},
	})
	if err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if msg.MessageID != 99 {
		t.Errorf("MessageID = %d, want 99", msg.MessageID)
	}
	if captured["chat_id"] != float64(42) {
		t.Errorf("chat_id = %v, want 42", captured["chat_id"])
	}
	if captured["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %v, want HTML", captured["parse_mode"])
	}
	if _, ok := captured["reply_markup"]; !ok {
		t.Error("expected reply_markup in request body")
	}
}

// TestClient_CopyMessage は複製リクエストと新メッセージIDの取得を検証する。
func TestClient_CopyMessage(t *testing.T) {
	var captured map[string]any
	server := newTestServer(t, "/bottest-token/copyMessage",
		map[string]int64{"message_id": 777}, &captured)
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), server.URL, "test-token")

	newID, err := client.CopyMessage(context.Background(), 42, -100123, 555)
	if err != nil {
		t.Fatalf("CopyMessage returned error: %v", err)
	}
	if newID != 777 {
		t.Errorf("new message ID = %d, want 777", newID)
	}
	if captured["from_chat_id"] != float64(-100123) {
		t.Errorf("from_chat_id = %v, want -100123", captured["from_chat_id"])
	}
	if captured["message_id"] != float64(555) {
		t.Errorf("message_id = %v, want 555", captured["message_id"])
	}
}

// TestClient_GetUpdates は更新取得とallowed_updatesの指定を検証する。
func TestClient_GetUpdates(t *testing.T) {
	var captured map[string]any
	server := newTestServer(t, "/bottest-token/getUpdates",
		[]Update{{UpdateID: 10}, {UpdateID: 11}}, &captured)
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), server.URL, "test-token")

	updates, err := client.GetUpdates(context.Background(), 10, 30*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates returned error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("len(updates) = %d, want 2", len(updates))
	}
	if captured["offset"] != float64(10) {
		t.Errorf("offset = %v, want 10", captured["offset"])
	}
	if captured["timeout"] != float64(30) {
		t.Errorf("timeout = %v, want 30", captured["timeout"])
	}
}

// TestClient_APIError はBot APIのエラーレスポンスがエラーとして返ることを検証する。
func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "error_code": 400, "description": "Bad Request: message to delete not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), server.URL, "test-token")

	err := client.DeleteMessage(context.Background(), 42, 1)
	if err == nil {
		t.Fatal("expected error for ok=false response, got nil")
	}
}

// TestMessage_IsForwarded は転送判定を検証する。
func TestMessage_IsForwarded(t *testing.T) {
	if (&Message{}).IsForwarded() {
		t.Error("plain message should not be forwarded")
	}
	if !(&Message{ForwardDate: 1700000000}).IsForwarded() {
		t.Error("message with forward_date should be forwarded")
	}
	if !(&Message{ForwardOrigin: map[string]any{"type": "user"}}).IsForwarded() {
		t.Error("message with forward_origin should be forwarded")
	}
}

// TestMessage_MediaKind はメディア種別の判定を検証する。
func TestMessage_MediaKind(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
		ok   bool
	}{
		{"photo", Message{Photo: []PhotoSize{{FileID: "p1"}}}, "photo", true},
		{"video", Message{Video: &FileRef{FileID: "v1"}}, "video", true},
		{"document", Message{Document: &FileRef{FileID: "d1"}}, "document", true},
		{"animation", Message{Animation: &FileRef{FileID: "a1"}}, "animation", true},
		{"text only", Message{Text: "hi"}, "", false},
	}

	for _, tt := range tests {
		kind, ok := tt.msg.MediaKind()
		if kind != tt.want || ok != tt.ok {
			t.Errorf("%s: MediaKind() = (%q, %v), want (%q, %v)", tt.name, kind, ok, tt.want, tt.ok)
		}
	}
}

// TestMessage_LargestPhotoFileID は最大解像度の写真選択を検証する。
func TestMessage_LargestPhotoFileID(t *testing.T) {
	msg := Message{Photo: []PhotoSize{
		{FileID: "small", Width: 90, Height: 90},
		{FileID: "large", Width: 800, Height: 600},
		{FileID: "medium", Width: 320, Height: 240},
	}}
	if got := msg.LargestPhotoFileID(); got != "large" {
		t.Errorf("LargestPhotoFileID() = %q, want %q", got, "large")
	}
}
