package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func TestBroadcastReachesConsole(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	h := NewHandler(hub, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, uuid.New())
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("console never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := hub.Broadcast(context.Background(), "action.outcome", map[string]string{"outcome": "success"}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != "action.outcome" || !strings.Contains(string(env.Data), "success") {
		t.Fatalf("unexpected frame %s", data)
	}
	if sent, _ := hub.Stats(); sent != 1 {
		t.Fatalf("expected 1 sent frame, got %d", sent)
	}
}

func TestBroadcastWithoutConsoles(t *testing.T) {
	hub := NewHub(nil)
	if err := hub.Broadcast(context.Background(), "action.outcome", struct{}{}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
}

func TestRegisterAfterStop(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if hub.Register(&Client{Send: make(chan []byte, 1)}) {
		t.Fatal("register must fail after the hub stopped")
	}
}
