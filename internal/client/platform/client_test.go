package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestSignInStoresTokenAndMapsUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.fr" {
			t.Errorf("expected email in body, got %v", body)
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u1","name":"Alice","role":"buyer","created_at":"2026-01-01T00:00:00Z"},"token":"tok","expires_at":"2026-02-01T00:00:00Z"}`))
	})
	mux.HandleFunc("/api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","name":"Alice","role":"buyer"}`))
	})
	c := newTestClient(t, mux)

	auth, err := c.SignIn(context.Background(), "a@b.fr", "secret123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if auth.Token != "tok" || c.Token() != "tok" {
		t.Fatalf("expected token stored, got %q", c.Token())
	}
	if !strings.Contains(auth.User.Avatar, "Alice") {
		t.Fatalf("expected generated avatar, got %q", auth.User.Avatar)
	}
	me, err := c.Me(context.Background())
	if err != nil || me.ID != "u1" {
		t.Fatalf("expected profile u1, got %+v %v", me, err)
	}
}

func TestErrorsAreClassified(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	})
	mux.HandleFunc("/api/v1/listings", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"upload refused by storage: check the bucket policy allows writes for this service"}`))
	})
	mux.HandleFunc("/api/v1/chats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newTestClient(t, mux)
	c.SetToken("tok")

	_, err := c.SignIn(context.Background(), "a@b.fr", "bad")
	if KindOf(err) != KindAuth {
		t.Fatalf("expected auth kind, got %v", err)
	}
	_, err = c.Listings(context.Background(), nil)
	if KindOf(err) != KindStorage {
		t.Fatalf("expected storage kind, got %v", err)
	}
	_, _, err = c.Chats(context.Background())
	if KindOf(err) != KindTransient {
		t.Fatalf("expected transient kind, got %v", err)
	}
}

func TestMarkReadReturnsServerCount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chats/c1/read", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"chat_id":"c1","unread_count":2,"last_read_at":"2026-01-01T00:00:00Z"}`))
	})
	c := newTestClient(t, mux)
	c.SetToken("tok")
	n, err := c.MarkRead(context.Background(), "c1")
	if err != nil || n != 2 {
		t.Fatalf("expected 2, got %d %v", n, err)
	}
}

func TestSubscribeDeliversChanges(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/realtime", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok" || len(r.URL.Query()["filter"]) != 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"e1","table":"messages","type":"INSERT","record":{"id":"m1","chat_id":"c1"},"at":"2026-01-01T00:00:00Z"}`))
		_, _, _ = conn.ReadMessage()
	})
	c := newTestClient(t, mux)

	if _, err := c.Subscribe(context.Background(), nil, "messages"); KindOf(err) != KindAuth {
		t.Fatalf("expected no-session error, got %v", err)
	}
	c.SetToken("tok")
	stream, err := c.Subscribe(context.Background(), nil, "messages", "chats")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stream.Close()
	select {
	case ch := <-stream.Events():
		if ch.ID != "e1" || ch.Table != "messages" || ch.Record["chat_id"] != "c1" {
			t.Fatalf("unexpected change %+v", ch)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a change")
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
