package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/signloom/signloom/internal/observe"
	"github.com/signloom/signloom/internal/pipeline"
)

// wsRequestTimeout bounds how long the server waits for the client to send
// its generation request after the upgrade.
const wsRequestTimeout = 30 * time.Second

// wsEvent is one frame on the generation stream. Progress frames carry a
// stage (and sometimes a detail); the stream ends with either a result
// frame or an error frame.
type wsEvent struct {
	Stage  string            `json:"stage,omitempty"`
	Detail string            `json:"detail,omitempty"`
	Error  string            `json:"error,omitempty"`
	Result *generateResponse `json:"result,omitempty"`
}

// handleGenerateWS runs one generation per connection. The client sends a
// single JSON request (the same shape as the POST body) and receives
// progress events while the run advances, then a final result frame.
func (s *Server) handleGenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "generation aborted")

	ctx := r.Context()

	if s.metrics != nil {
		s.metrics.ActiveStreams.Add(ctx, 1)
		defer s.metrics.ActiveStreams.Add(ctx, -1)
	}

	req, err := readGenerateRequest(ctx, conn)
	if err != nil {
		_ = writeEvent(ctx, conn, wsEvent{Error: err.Error()})
		conn.Close(websocket.StatusUnsupportedData, "bad request")
		return
	}

	preq := pipeline.Request{
		Text:           req.Text,
		Transitions:    req.Transitions,
		Resize:         req.Resize,
		DetectHomonyms: req.DetectHomonyms,
		OnProgress: func(stage pipeline.Stage, detail string) {
			// Best effort: a client that stopped reading must not
			// abort the run.
			_ = writeEvent(ctx, conn, wsEvent{Stage: string(stage), Detail: detail})
		},
	}

	res, err := s.pipe.Generate(ctx, preq)
	if err != nil {
		var noClips *pipeline.NoClipsError
		if !errors.As(err, &noClips) {
			observe.Logger(ctx).Error("generation failed", slog.Any("error", err))
		}
		_ = writeEvent(ctx, conn, wsEvent{Error: err.Error()})
		conn.Close(websocket.StatusNormalClosure, "failed")
		return
	}

	resp := s.finishRun(r, req.Text, res)
	if err := writeEvent(ctx, conn, wsEvent{Result: &resp}); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "done")
}

// readGenerateRequest reads and validates the single client frame that
// starts a run.
func readGenerateRequest(ctx context.Context, conn *websocket.Conn) (generateRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, wsRequestTimeout)
	defer cancel()

	var req generateRequest
	_, data, err := conn.Read(ctx)
	if err != nil {
		return req, errors.New("no generation request received")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, errors.New("invalid generation request")
	}
	if strings.TrimSpace(req.Text) == "" {
		return req, errors.New("text is required")
	}
	return req, nil
}

// writeEvent marshals evt and writes it as a text frame.
func writeEvent(ctx context.Context, conn *websocket.Conn, evt wsEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
