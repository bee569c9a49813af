// Package server exposes the generation pipeline over HTTP.
//
// The API is JSON over Go 1.22 method+path routes. One route upgrades to a
// WebSocket so interactive clients can watch a generation run advance stage
// by stage instead of waiting on a single blocking response.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signloom/signloom/internal/health"
	"github.com/signloom/signloom/internal/history"
	"github.com/signloom/signloom/internal/observe"
	"github.com/signloom/signloom/internal/pipeline"
	"github.com/signloom/signloom/pkg/provider/recognizer"
)

const (
	defaultMaxUploadBytes = 64 << 20
	defaultRecognizeTopK  = 5

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server serves the HTTP API around a generation pipeline.
type Server struct {
	addr      string
	outputDir string
	maxUpload int64
	topK      int
	certFile  string
	keyFile   string

	pipe    *pipeline.Pipeline
	source  pipeline.IndexSource
	store   *history.Store
	rec     recognizer.Provider
	health  *health.Handler
	metrics *observe.Metrics

	httpSrv *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithHistory records finished generation runs in the given store and
// serves them back on the history endpoint.
func WithHistory(store *history.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithRecognizer enables the recognition endpoints. topK caps how many
// predictions a request may ask for; values below one keep the default.
func WithRecognizer(p recognizer.Provider, topK int) Option {
	return func(s *Server) {
		s.rec = p
		if topK > 0 {
			s.topK = topK
		}
	}
}

// WithHealth mounts the liveness and readiness routes of h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics records request telemetry on the given instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMaxUploadBytes caps the size of recognition uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithTLS serves HTTPS using the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// New creates a Server listening on addr and serving finished videos out
// of outputDir.
func New(addr, outputDir string, pipe *pipeline.Pipeline, source pipeline.IndexSource, opts ...Option) (*Server, error) {
	if addr == "" {
		return nil, fmt.Errorf("server: listen address must not be empty")
	}
	if outputDir == "" {
		return nil, fmt.Errorf("server: output dir must not be empty")
	}
	if pipe == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("server: index source must not be nil")
	}

	s := &Server{
		addr:      addr,
		outputDir: outputDir,
		maxUpload: defaultMaxUploadBytes,
		topK:      defaultRecognizeTopK,
		pipe:      pipe,
		source:    source,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler builds the full route table. Observe middleware wraps every
// route so each request carries a span and shows up in the duration
// histogram under its route pattern.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/generate/ws", s.handleGenerateWS)
	mux.HandleFunc("POST /api/recognize", s.handleRecognize)
	mux.HandleFunc("GET /api/random-clip", s.handleRandomClip)
	mux.HandleFunc("GET /api/words/{word}", s.handleWord)
	mux.HandleFunc("GET /api/corpus-info", s.handleCorpusInfo)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /videos/{name}", s.handleVideo)

	if s.health != nil {
		s.health.Register(mux)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.metrics != nil {
		return observe.Middleware(s.metrics)(mux)
	}
	return mux
}

// Run starts the listener and blocks until ctx is cancelled or serving
// fails. On cancellation, in-flight requests are drained for up to
// shutdownTimeout before the server gives up on them.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if s.certFile != "" {
			errCh <- s.httpSrv.ListenAndServeTLS(s.certFile, s.keyFile)
			return
		}
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
