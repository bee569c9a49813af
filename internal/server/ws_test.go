package server_test

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

type wsTestEvent struct {
	Stage  string         `json:"stage"`
	Detail string         `json:"detail"`
	Error  string         `json:"error"`
	Result *generatedJSON `json:"result"`
}

// dialWS opens a websocket against the generation stream route.
func dialWS(t *testing.T, ctx context.Context, httpURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/api/generate/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket.Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func sendWS(t *testing.T, ctx context.Context, conn *websocket.Conn, body any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func readWS(t *testing.T, ctx context.Context, conn *websocket.Conn) wsTestEvent {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var evt wsTestEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return evt
}

func TestGenerateWS_StreamsProgress(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, srv.URL)
	sendWS(t, ctx, conn, map[string]any{"text": "I want the book"})

	var stages []string
	var final wsTestEvent
	for {
		evt := readWS(t, ctx, conn)
		if evt.Error != "" {
			t.Fatalf("error frame: %s (stages so far: %v)", evt.Error, stages)
		}
		if evt.Result != nil {
			final = evt
			break
		}
		stages = append(stages, evt.Stage)
	}

	if want := []string{"gloss", "select", "encode", "done"}; !slices.Equal(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}
	if final.Result.Status != "ok" {
		t.Errorf("result status = %q, want ok", final.Result.Status)
	}
	if !strings.HasPrefix(final.Result.VideoURL, "/videos/") {
		t.Errorf("video_url = %q, want a /videos/ path", final.Result.VideoURL)
	}
	if want := []string{"i", "want", "book"}; !slices.Equal(final.Result.Gloss, want) {
		t.Errorf("gloss = %v, want %v", final.Result.Gloss, want)
	}
}

func TestGenerateWS_RejectsBlankText(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, srv.URL)
	sendWS(t, ctx, conn, map[string]any{"text": "   "})

	evt := readWS(t, ctx, conn)
	if evt.Error != "text is required" {
		t.Errorf("error = %q, want %q", evt.Error, "text is required")
	}
}

func TestGenerateWS_ReportsNoClips(t *testing.T) {
	t.Parallel()

	srv := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, srv.URL)
	sendWS(t, ctx, conn, map[string]any{"text": "zebra quantum"})

	var final wsTestEvent
	for {
		evt := readWS(t, ctx, conn)
		if evt.Error != "" || evt.Result != nil {
			final = evt
			break
		}
	}
	if !strings.Contains(final.Error, "no sign clips") {
		t.Errorf("error = %q, want a no-clips failure", final.Error)
	}
}