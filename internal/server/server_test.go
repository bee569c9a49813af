package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/signloom/signloom/internal/corpus"
	"github.com/signloom/signloom/internal/gloss"
	"github.com/signloom/signloom/internal/history"
	"github.com/signloom/signloom/internal/pipeline"
	"github.com/signloom/signloom/internal/server"
	"github.com/signloom/signloom/internal/video"
	"github.com/signloom/signloom/pkg/provider/recognizer"
	recmock "github.com/signloom/signloom/pkg/provider/recognizer/mock"
)

const serverMetadata = `[
  {"gloss": "book", "instances": [
    {"video_id": "00001", "signer_id": 1, "variation_id": 0, "fps": 25, "split": "train", "bbox": [0, 0, 100, 100]},
    {"video_id": "00002", "signer_id": 2, "variation_id": 1, "fps": 25, "split": "train", "bbox": [0, 0, 100, 100]}
  ]},
  {"gloss": "want", "instances": [
    {"video_id": "00003", "signer_id": 1, "variation_id": 0, "fps": 25, "split": "train", "bbox": [0, 0, 100, 100]}
  ]},
  {"gloss": "bat", "instances": [
    {"video_id": "00004", "signer_id": 3, "variation_id": 0, "fps": 25, "split": "train", "bbox": [0, 0, 100, 100]}
  ]}
]`

// buildIndex writes a corpus fixture with real clip files and indexes it.
func buildIndex(t *testing.T) *corpus.Index {
	t.Helper()
	dir := t.TempDir()
	metadataPath := filepath.Join(dir, "corpus.json")
	if err := os.WriteFile(metadataPath, []byte(serverMetadata), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	videosDir := filepath.Join(dir, "videos")
	if err := os.Mkdir(videosDir, 0o755); err != nil {
		t.Fatalf("create videos dir: %v", err)
	}
	for _, id := range []string{"00001", "00002", "00003", "00004"} {
		if err := os.WriteFile(filepath.Join(videosDir, id+".mp4"), []byte("clip"), 0o644); err != nil {
			t.Fatalf("create clip %s: %v", id, err)
		}
	}

	ix, err := corpus.Build(context.Background(), metadataPath, videosDir)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return ix
}

// fakeEncoder answers ffprobe calls with a fixed duration and writes the
// requested output file instead of running ffmpeg.
func fakeEncoder() video.CommandRunner {
	var mu sync.Mutex
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if strings.Contains(name, "ffprobe") {
			return []byte(`{"format":{"duration":"2.000000"}}`), nil
		}
		return nil, os.WriteFile(args[len(args)-1], []byte("assembled"), 0o644)
	}
}

// startServer wires a real pipeline over the fixture corpus and serves the
// full route table through httptest.
func startServer(t *testing.T, opts ...server.Option) *httptest.Server {
	t.Helper()

	ix := buildIndex(t)
	source := pipeline.StaticIndex{Index: ix}
	outputDir := filepath.Join(t.TempDir(), "out")
	asm := video.New(video.WithRunner(fakeEncoder()))
	pipe, err := pipeline.New(source, gloss.NewTranslator(nil), asm, outputDir)
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}

	s, err := server.New("127.0.0.1:0", outputDir, pipe, source, opts...)
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type generatedJSON struct {
	ID           string              `json:"id"`
	Status       string              `json:"status"`
	VideoPath    string              `json:"video_path"`
	VideoURL     string              `json:"video_url"`
	Gloss        []string            `json:"gloss"`
	Clips        []map[string]any    `json:"clips"`
	MissingWords []string            `json:"missing_words"`
	Suggestions  map[string][]string `json:"suggestions"`
	Warnings     []string            `json:"warnings"`
}

func TestGenerate_ProducesVideo(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	resp := postJSON(t, srv.URL+"/api/generate", map[string]any{"text": "I want the book"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got generatedJSON
	decodeBody(t, resp, &got)

	if got.Status != "ok" {
		t.Errorf("status = %q, want ok", got.Status)
	}
	if want := []string{"i", "want", "book"}; !slices.Equal(got.Gloss, want) {
		t.Errorf("gloss = %v, want %v", got.Gloss, want)
	}
	if want := []string{"i"}; !slices.Equal(got.MissingWords, want) {
		t.Errorf("missing_words = %v, want %v", got.MissingWords, want)
	}
	if len(got.Clips) != 2 {
		t.Errorf("clips = %d, want 2", len(got.Clips))
	}
	if !strings.HasPrefix(got.VideoURL, "/videos/") {
		t.Fatalf("video_url = %q, want a /videos/ path", got.VideoURL)
	}

	download, err := http.Get(srv.URL + got.VideoURL)
	if err != nil {
		t.Fatalf("GET %s: %v", got.VideoURL, err)
	}
	defer download.Body.Close()
	if download.StatusCode != http.StatusOK {
		t.Fatalf("video status = %d, want %d", download.StatusCode, http.StatusOK)
	}
	data, err := io.ReadAll(download.Body)
	if err != nil {
		t.Fatalf("read video: %v", err)
	}
	if string(data) != "assembled" {
		t.Errorf("video body = %q, want the encoded bytes", data)
	}
}

func TestGenerate_ValidatesBody(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	resp, err := http.Post(srv.URL+"/api/generate", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp = postJSON(t, srv.URL+"/api/generate", map[string]any{"text": "   "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank text status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestGenerate_NoClipsIs422(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	resp := postJSON(t, srv.URL+"/api/generate", map[string]any{"text": "zebra quantum"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
	var got struct {
		Error        string   `json:"error"`
		MissingWords []string `json:"missing_words"`
	}
	decodeBody(t, resp, &got)
	if got.Error == "" {
		t.Error("error message missing")
	}
	if want := []string{"zebra", "quantum"}; !slices.Equal(got.MissingWords, want) {
		t.Errorf("missing_words = %v, want %v", got.MissingWords, want)
	}
}

func TestGenerate_RecordsHistory(t *testing.T) {
	t.Parallel()

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := startServer(t, server.WithHistory(store))

	resp := postJSON(t, srv.URL+"/api/generate", map[string]any{"text": "want book"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var run generatedJSON
	decodeBody(t, resp, &run)

	histResp, err := http.Get(srv.URL + "/api/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	var got struct {
		Runs []struct {
			ID        string   `json:"id"`
			Text      string   `json:"text"`
			Gloss     []string `json:"gloss"`
			ClipCount int      `json:"clip_count"`
		} `json:"runs"`
	}
	decodeBody(t, histResp, &got)

	if len(got.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(got.Runs))
	}
	if got.Runs[0].ID != run.ID {
		t.Errorf("recorded id = %q, want %q", got.Runs[0].ID, run.ID)
	}
	if got.Runs[0].Text != "want book" {
		t.Errorf("recorded text = %q, want %q", got.Runs[0].Text, "want book")
	}
	if got.Runs[0].ClipCount != 2 {
		t.Errorf("recorded clip_count = %d, want 2", got.Runs[0].ClipCount)
	}

	badLimit, err := http.Get(srv.URL + "/api/history?limit=zero")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	badLimit.Body.Close()
	if badLimit.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want %d", badLimit.StatusCode, http.StatusBadRequest)
	}
}

func TestHistory_EmptyWithoutStore(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	resp, err := http.Get(srv.URL + "/api/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got struct {
		Runs []any `json:"runs"`
	}
	decodeBody(t, resp, &got)
	if got.Runs == nil || len(got.Runs) != 0 {
		t.Errorf("runs = %v, want an empty list", got.Runs)
	}
}

func TestWords_LookupAndSuggestions(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	resp, err := http.Get(srv.URL + "/api/words/Book")
	if err != nil {
		t.Fatalf("GET words: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var found struct {
		Word  string `json:"word"`
		Clips []struct {
			ClipID string `json:"clip_id"`
		} `json:"clips"`
	}
	decodeBody(t, resp, &found)
	if found.Word != "book" {
		t.Errorf("word = %q, want book", found.Word)
	}
	if len(found.Clips) != 2 {
		t.Errorf("clips = %d, want 2", len(found.Clips))
	}

	resp, err = http.Get(srv.URL + "/api/words/bok")
	if err != nil {
		t.Fatalf("GET words: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown word status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	var missing struct {
		Error       string              `json:"error"`
		Suggestions map[string][]string `json:"suggestions"`
	}
	decodeBody(t, resp, &missing)
	if !slices.Contains(missing.Suggestions["bok"], "book") {
		t.Errorf("suggestions = %v, want book offered for bok", missing.Suggestions)
	}
}

func TestCorpusInfo(t *testing.T) {
	t.Parallel()

	srv := startServer(t, server.WithRecognizer(&recmock.Provider{}, 0))

	resp, err := http.Get(srv.URL + "/api/corpus-info")
	if err != nil {
		t.Fatalf("GET corpus-info: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got struct {
		WordCount   int      `json:"word_count"`
		ClipCount   int      `json:"clip_count"`
		SampleWords []string `json:"sample_words"`
		Recognizer  string   `json:"recognizer"`
	}
	decodeBody(t, resp, &got)

	if got.WordCount != 3 {
		t.Errorf("word_count = %d, want 3", got.WordCount)
	}
	if got.ClipCount != 4 {
		t.Errorf("clip_count = %d, want 4", got.ClipCount)
	}
	if want := []string{"bat", "book", "want"}; !slices.Equal(got.SampleWords, want) {
		t.Errorf("sample_words = %v, want %v", got.SampleWords, want)
	}
	if got.Recognizer != "mock" {
		t.Errorf("recognizer = %q, want mock", got.Recognizer)
	}
}

func TestRandomClip(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	resp, err := http.Get(srv.URL + "/api/random-clip")
	if err != nil {
		t.Fatalf("GET random-clip: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got struct {
		Word     string `json:"word"`
		ClipID   string `json:"clip_id"`
		VideoURL string `json:"video_url"`
	}
	decodeBody(t, resp, &got)

	if got.Word == "" || got.ClipID == "" {
		t.Errorf("random clip = %+v, want word and clip_id", got)
	}
	if !strings.HasPrefix(got.VideoURL, "/videos/") {
		t.Fatalf("video_url = %q, want a /videos/ path", got.VideoURL)
	}

	clip, err := http.Get(srv.URL + got.VideoURL)
	if err != nil {
		t.Fatalf("GET %s: %v", got.VideoURL, err)
	}
	defer clip.Body.Close()
	if clip.StatusCode != http.StatusOK {
		t.Errorf("clip status = %d, want %d", clip.StatusCode, http.StatusOK)
	}
}

func TestRandomClip_WithRecognition(t *testing.T) {
	t.Parallel()

	rec := &recmock.Provider{Candidates: []recognizer.Candidate{
		{Word: "book", Confidence: 0.9},
		{Word: "bat", Confidence: 0.1},
	}}
	srv := startServer(t, server.WithRecognizer(rec, 2))

	resp, err := http.Get(srv.URL + "/api/random-clip?recognize=1")
	if err != nil {
		t.Fatalf("GET random-clip: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got struct {
		Predictions []struct {
			Word       string  `json:"word"`
			Confidence float64 `json:"confidence"`
		} `json:"predictions"`
	}
	decodeBody(t, resp, &got)

	if len(got.Predictions) != 2 || got.Predictions[0].Word != "book" {
		t.Errorf("predictions = %v, want the mocked ranking", got.Predictions)
	}
	if rec.CallCount() != 1 {
		t.Errorf("recognizer calls = %d, want 1", rec.CallCount())
	}
}

func TestRecognize_Upload(t *testing.T) {
	t.Parallel()

	rec := &recmock.Provider{Candidates: []recognizer.Candidate{{Word: "want", Confidence: 0.75}}}
	srv := startServer(t, server.WithRecognizer(rec, 5))

	resp := postUpload(t, srv.URL+"/api/recognize", "clip.mp4", []byte("some video"), map[string]string{"top_k": "3"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got struct {
		File        string `json:"file"`
		Recognizer  string `json:"recognizer"`
		Predictions []struct {
			Word string `json:"word"`
		} `json:"predictions"`
	}
	decodeBody(t, resp, &got)

	if got.File != "clip.mp4" {
		t.Errorf("file = %q, want clip.mp4", got.File)
	}
	if got.Recognizer != "mock" {
		t.Errorf("recognizer = %q, want mock", got.Recognizer)
	}
	if len(got.Predictions) != 1 || got.Predictions[0].Word != "want" {
		t.Errorf("predictions = %v, want the mocked answer", got.Predictions)
	}

	if rec.CallCount() != 1 {
		t.Fatalf("recognizer calls = %d, want 1", rec.CallCount())
	}
	call := rec.RecognizeCalls[0]
	if call.TopK != 3 {
		t.Errorf("topK = %d, want 3 from the form field", call.TopK)
	}
	if filepath.Ext(call.Path) != ".mp4" {
		t.Errorf("staged upload = %q, want an .mp4 path", call.Path)
	}
	if _, err := os.Stat(call.Path); !os.IsNotExist(err) {
		t.Errorf("staged upload %q still exists, want it removed", call.Path)
	}
}

func TestRecognize_RejectsBadUploads(t *testing.T) {
	t.Parallel()

	srv := startServer(t, server.WithRecognizer(&recmock.Provider{}, 5), server.WithMaxUploadBytes(128))

	resp := postUpload(t, srv.URL+"/api/recognize", "notes.txt", []byte("text"), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("txt upload status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp = postUpload(t, srv.URL+"/api/recognize", "clip.mp4", bytes.Repeat([]byte("x"), 4096), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload status = %d, want %d", resp.StatusCode, http.StatusRequestEntityTooLarge)
	}

	resp = postUpload(t, srv.URL+"/api/recognize", "clip.mp4", []byte("ok"), map[string]string{"top_k": "zero"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad top_k status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRecognize_UnavailableWithoutProvider(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	resp := postUpload(t, srv.URL+"/api/recognize", "clip.mp4", []byte("some video"), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestVideos_UnknownFile(t *testing.T) {
	t.Parallel()

	srv := startServer(t)

	resp, err := http.Get(srv.URL + "/videos/nope.mp4")
	if err != nil {
		t.Fatalf("GET videos: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	asm := video.New(video.WithRunner(fakeEncoder()))
	src := pipeline.StaticIndex{Index: buildIndex(t)}
	pipe, err := pipeline.New(src, gloss.NewTranslator(nil), asm, t.TempDir())
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}

	if _, err := server.New("", "out", pipe, src); err == nil {
		t.Error("New(empty addr) error = nil, want error")
	}
	if _, err := server.New(":0", "", pipe, src); err == nil {
		t.Error("New(empty output dir) error = nil, want error")
	}
	if _, err := server.New(":0", "out", nil, src); err == nil {
		t.Error("New(nil pipeline) error = nil, want error")
	}
	if _, err := server.New(":0", "out", pipe, nil); err == nil {
		t.Error("New(nil source) error = nil, want error")
	}
}

// postUpload sends a multipart recognition request.
func postUpload(t *testing.T, url, filename string, content []byte, fields map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}
