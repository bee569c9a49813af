package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/signloom/signloom/internal/history"
	"github.com/signloom/signloom/internal/observe"
	"github.com/signloom/signloom/internal/pipeline"
	"github.com/signloom/signloom/pkg/provider/recognizer"
)

// uploadExtensions is the accepted set of recognition upload formats.
var uploadExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".webm": {},
}

type errorResponse struct {
	Error        string              `json:"error"`
	Gloss        []string            `json:"gloss,omitempty"`
	MissingWords []string            `json:"missing_words,omitempty"`
	Suggestions  map[string][]string `json:"suggestions,omitempty"`
}

type generateRequest struct {
	Text           string `json:"text"`
	Transitions    bool   `json:"transitions"`
	Resize         bool   `json:"resize"`
	DetectHomonyms bool   `json:"detect_homonyms"`
}

type hintJSON struct {
	Word       string `json:"word"`
	Occurrence int    `json:"occurrence"`
	Meaning    string `json:"meaning"`
}

type clipJSON struct {
	Word    string `json:"word"`
	ClipID  string `json:"clip_id"`
	Meaning string `json:"meaning,omitempty"`
}

type generateResponse struct {
	ID           string              `json:"id"`
	Status       string              `json:"status"`
	VideoPath    string              `json:"video_path"`
	VideoURL     string              `json:"video_url"`
	Gloss        []string            `json:"gloss"`
	Clips        []clipJSON          `json:"clips"`
	MissingWords []string            `json:"missing_words,omitempty"`
	Suggestions  map[string][]string `json:"suggestions,omitempty"`
	HomonymHints []hintJSON          `json:"homonym_hints,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
	DurationS    float64             `json:"duration_s"`
}

type predictionJSON struct {
	Word       string  `json:"word"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	res, err := s.pipe.Generate(r.Context(), pipeline.Request{
		Text:           req.Text,
		Transitions:    req.Transitions,
		Resize:         req.Resize,
		DetectHomonyms: req.DetectHomonyms,
	})
	if err != nil {
		var noClips *pipeline.NoClipsError
		if errors.As(err, &noClips) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:        noClips.Error(),
				Gloss:        noClips.Gloss,
				MissingWords: noClips.Missing,
				Suggestions:  noClips.Suggestions,
			})
			return
		}
		observe.Logger(r.Context()).Error("generation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	writeJSON(w, http.StatusOK, s.finishRun(r, req.Text, res))
}

// finishRun records a successful run in the history store and shapes the
// API response for it. History failures only log; the video exists, so
// the client still gets its result.
func (s *Server) finishRun(r *http.Request, text string, res *pipeline.Result) generateResponse {
	if s.store != nil {
		err := s.store.Record(r.Context(), history.Entry{
			ID:           res.ID,
			Text:         strings.TrimSpace(text),
			Gloss:        res.Gloss,
			VideoPath:    res.VideoPath,
			ClipCount:    len(res.Items),
			MissingWords: res.MissingWords,
			Warnings:     res.Warnings,
		})
		if err != nil {
			observe.Logger(r.Context()).Warn("history record failed", slog.Any("error", err))
		}
	}

	resp := generateResponse{
		ID:           res.ID,
		Status:       "ok",
		VideoPath:    res.VideoPath,
		VideoURL:     "/videos/" + filepath.Base(res.VideoPath),
		Gloss:        res.Gloss,
		Clips:        make([]clipJSON, 0, len(res.Items)),
		MissingWords: res.MissingWords,
		Suggestions:  res.Suggestions,
		Warnings:     res.Warnings,
		DurationS:    res.Elapsed.Seconds(),
	}
	for _, item := range res.Items {
		resp.Clips = append(resp.Clips, clipJSON{Word: item.Word, ClipID: item.ClipID, Meaning: item.Meaning})
	}
	for _, h := range res.Hints {
		resp.HomonymHints = append(resp.HomonymHints, hintJSON{Word: h.Word, Occurrence: h.Occurrence, Meaning: h.Meaning})
	}
	return resp
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	if s.rec == nil {
		writeError(w, http.StatusServiceUnavailable, "recognizer not configured")
		return
	}

	if r.ContentLength > s.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", s.maxUpload))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", s.maxUpload))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := uploadExtensions[ext]; !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported video format %q", ext))
		return
	}

	topK := s.topK
	if v := r.FormValue("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		topK = n
	}

	tmp, err := os.CreateTemp("", "signloom-upload-*"+ext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot stage upload")
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, "cannot stage upload")
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, "cannot stage upload")
		return
	}

	candidates, err := s.recognize(r, tmp.Name(), topK)
	if err != nil {
		observe.Logger(r.Context()).Error("recognition failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "recognition failed")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		File        string           `json:"file"`
		Recognizer  string           `json:"recognizer"`
		Predictions []predictionJSON `json:"predictions"`
	}{
		File:        header.Filename,
		Recognizer:  s.rec.Name(),
		Predictions: toPredictions(candidates),
	})
}

// recognize runs the provider with request telemetry around it.
func (s *Server) recognize(r *http.Request, path string, topK int) ([]recognizer.Candidate, error) {
	start := time.Now()
	candidates, err := s.rec.Recognize(r.Context(), path, topK)
	if s.metrics != nil {
		s.metrics.RecognizeDuration.Record(r.Context(), time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordProviderRequest(r.Context(), s.rec.Name(), "recognizer", status)
	}
	return candidates, err
}

func (s *Server) handleRandomClip(w http.ResponseWriter, r *http.Request) {
	sample, err := s.pipe.RandomClip(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	resp := struct {
		Word        string           `json:"word"`
		ClipID      string           `json:"clip_id"`
		VideoPath   string           `json:"video_path"`
		VideoURL    string           `json:"video_url"`
		Predictions []predictionJSON `json:"predictions,omitempty"`
	}{
		Word:      sample.Word,
		ClipID:    sample.ClipID,
		VideoPath: sample.Path,
		VideoURL:  "/videos/" + filepath.Base(sample.Path),
	}

	if wantRecognize(r) && s.rec != nil {
		candidates, err := s.recognize(r, sample.Path, s.topK)
		if err != nil {
			observe.Logger(r.Context()).Warn("recognition on random clip failed", slog.Any("error", err))
		} else {
			resp.Predictions = toPredictions(candidates)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWord(w http.ResponseWriter, r *http.Request) {
	rep, err := s.pipe.LookupWord(r.PathValue("word"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if len(rep.Clips) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:       fmt.Sprintf("word %q is not in the corpus", rep.Word),
			Suggestions: suggestionMap(rep.Word, rep.Suggestions),
		})
		return
	}

	type wordClipJSON struct {
		ClipID      string `json:"clip_id"`
		SignerID    int    `json:"signer_id"`
		VariationID int    `json:"variation_id"`
		FrameRate   int    `json:"frame_rate"`
		Split       string `json:"split"`
	}
	clips := make([]wordClipJSON, 0, len(rep.Clips))
	for _, c := range rep.Clips {
		clips = append(clips, wordClipJSON{
			ClipID:      c.ClipID,
			SignerID:    c.SignerID,
			VariationID: c.VariationID,
			FrameRate:   c.FrameRate,
			Split:       c.Split,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Word  string         `json:"word"`
		Clips []wordClipJSON `json:"clips"`
	}{Word: rep.Word, Clips: clips})
}

func (s *Server) handleCorpusInfo(w http.ResponseWriter, r *http.Request) {
	ix := s.source.Current()
	if ix == nil {
		writeError(w, http.StatusServiceUnavailable, "corpus index not available")
		return
	}
	stats := ix.Stats()

	words := ix.AllWords()
	if len(words) > 10 {
		words = words[:10]
	}

	recName := ""
	if s.rec != nil {
		recName = s.rec.Name()
	}

	writeJSON(w, http.StatusOK, struct {
		WordCount    int      `json:"word_count"`
		ClipCount    int      `json:"clip_count"`
		WordsDropped int      `json:"words_dropped"`
		ClipsMissing int      `json:"clips_missing"`
		SampleWords  []string `json:"sample_words"`
		Recognizer   string   `json:"recognizer,omitempty"`
	}{
		WordCount:    stats.Words,
		ClipCount:    stats.Clips,
		WordsDropped: stats.WordsDropped,
		ClipsMissing: stats.ClipsMissing,
		SampleWords:  words,
		Recognizer:   recName,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	type historyJSON struct {
		ID           string    `json:"id"`
		Text         string    `json:"text"`
		Gloss        []string  `json:"gloss"`
		VideoPath    string    `json:"video_path"`
		ClipCount    int       `json:"clip_count"`
		MissingWords []string  `json:"missing_words,omitempty"`
		Warnings     []string  `json:"warnings,omitempty"`
		CreatedAt    time.Time `json:"created_at"`
	}
	runs := []historyJSON{}

	if s.store == nil {
		writeJSON(w, http.StatusOK, struct {
			Runs []historyJSON `json:"runs"`
		}{Runs: runs})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		observe.Logger(r.Context()).Error("history query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	for _, e := range entries {
		runs = append(runs, historyJSON{
			ID:           e.ID,
			Text:         e.Text,
			Gloss:        e.Gloss,
			VideoPath:    e.VideoPath,
			ClipCount:    e.ClipCount,
			MissingWords: e.MissingWords,
			Warnings:     e.Warnings,
			CreatedAt:    e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Runs []historyJSON `json:"runs"`
	}{Runs: runs})
}

// handleVideo serves one finished video. The path value is reduced to its
// base name so the route cannot reach outside the output directory.
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("name"))
	if name == "." || name == string(filepath.Separator) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.outputDir, name))
}

func toPredictions(candidates []recognizer.Candidate) []predictionJSON {
	preds := make([]predictionJSON, 0, len(candidates))
	for _, c := range candidates {
		preds = append(preds, predictionJSON{Word: c.Word, Confidence: c.Confidence})
	}
	return preds
}

func wantRecognize(r *http.Request) bool {
	switch r.URL.Query().Get("recognize") {
	case "1", "true", "yes":
		return true
	}
	return false
}

func suggestionMap(word string, suggestions []string) map[string][]string {
	if len(suggestions) == 0 {
		return nil
	}
	return map[string][]string{word: suggestions}
}

// writeJSON sends v with the given status. The status line is already
// out when encoding runs, so a failure here (usually a dropped
// connection) can only be logged.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encoding failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
