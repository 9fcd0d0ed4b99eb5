package history

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/TETRIX8/anime/internal/auth"
	feed "github.com/TETRIX8/anime/internal/sync"
)

func TestFeedEventsKeepRequestOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	hub := feed.NewHub(log)
	r := gin.New()
	r.GET("/ws", feed.WSHandler(hub, nil))
	NewHandler(newTestRepo(t), hub, auth.Guard{}, log).RegisterRoutes(r.Group("/api/history"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?user_id=u1", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.Stats().Connections != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	for i := 0; i < 5; i++ {
		if w := send(r, http.MethodPost, "/api/history", gin.H{"user_id": "u1", "anime_id": "a1", "progress": i}); w.Code != http.StatusOK {
			t.Fatalf("post: %d %s", w.Code, w.Body.String())
		}
		if w := send(r, http.MethodDelete, "/api/history/u1/a1", nil); w.Code != http.StatusOK {
			t.Fatalf("delete: %d", w.Code)
		}
	}

	for i := 0; i < 10; i++ {
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		var ev feed.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatal(err)
		}
		want := feed.EventHistoryUpdate
		if i%2 == 1 {
			want = feed.EventHistoryDelete
		}
		if ev.Type != want {
			t.Fatalf("event %d = %s, want %s", i, ev.Type, want)
		}
		if want == feed.EventHistoryUpdate && (ev.Progress == nil || *ev.Progress != i/2) {
			t.Fatalf("event %d progress = %v", i, ev.Progress)
		}
	}
}
