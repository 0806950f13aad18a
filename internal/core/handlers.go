package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/formlab/squatview/internal/analysis"
	"github.com/formlab/squatview/internal/overlay"
	"github.com/formlab/squatview/internal/playback"
	"github.com/formlab/squatview/internal/store"
	"github.com/formlab/squatview/internal/types"
)

// Default surface size for replay and snapshots when the session has no
// recorded dimensions.
const (
	defaultSurfaceW = 1280
	defaultSurfaceH = 720
)

func (s *Service) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/replay", s.handleReplay)
	mux.HandleFunc("GET /sessions/{id}/frame", s.handleFrame)
	return mux
}

// bufferedVideo holds an upload in memory so a failed remote analysis can
// be retried against the local fallback without re-reading the request.
type bufferedVideo struct {
	Filename string
	data     []byte
}

func (v *bufferedVideo) Reader() io.Reader {
	return bytes.NewReader(v.data)
}

// handleCreateSession accepts a multipart video upload, analyzes it, and
// persists the resulting session.
func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing video form field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}
	video := &bufferedVideo{Filename: header.Filename, data: data}

	result, err := s.analyze(r.Context(), video)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("analysis failed: %v", err))
		return
	}
	doc := result.Document

	tracker := analysis.NewRepTracker()
	tracker.FeedDocument(doc)

	sess := &store.Session{
		Filename: header.Filename,
		Duration: formDuration(r, doc),
		Width:    formInt(r, "width"),
		Height:   formInt(r, "height"),
		Reps:     tracker.Count(),
		Document: doc,
	}
	if err := s.sessions.Save(sess); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save session: %v", err))
		return
	}

	if err := s.emitter.PublishSessionEvent("analyzed", sess); err != nil {
		slog.Warn("failed to publish session event", "error", err, "session_id", sess.ID)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       sess.ID,
		"frames":   len(doc.Frames),
		"reps":     sess.Reps,
		"duration": sess.Duration,
		"source":   doc.Source,
		"fallback": result.Fallback,
	})
}

func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.sessions.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": infos})
}

func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	if err := s.emitter.PublishSessionEvent("deleted", &store.Session{ID: id}); err != nil {
		slog.Warn("failed to publish session event", "error", err, "session_id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReplay drives a full headless playback of the session at the
// configured simulation rate and reports how it went.
func (s *Service) handleReplay(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	duration := sess.Duration
	if duration <= 0 {
		duration = sess.Document.LastTimestamp()
	}
	if duration <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "session has no duration to replay")
		return
	}
	width, height := surfaceSize(sess)

	media := playback.NewSimMedia(duration, width, height)
	media.SetRate(s.cfg.Playback.SimRate * 8) // headless, no need for real time
	media.SetTick(5 * time.Millisecond)

	surface := overlay.NewImageSurface(width, height)

	var drawTimes []float64
	driver, err := playback.NewDriver(playback.Config{
		Media:     media,
		Surface:   surface,
		Document:  sess.Document,
		DrawRate:  s.cfg.Playback.DrawRateHz,
		OnDraw:    func(t float64) { drawTimes = append(drawTimes, t) },
		StopOnEnd: true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		// The driver draws once when metadata lands; start playback then.
		for {
			switch driver.State() {
			case playback.StateIdle, playback.StateLoading:
				time.Sleep(time.Millisecond)
			case playback.StateReady:
				driver.Play()
				return
			default:
				return
			}
		}
	}()

	started := time.Now()
	if err := driver.Run(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("replay failed: %v", err))
		return
	}

	if err := s.emitter.PublishSessionEvent("replayed", sess); err != nil {
		slog.Warn("failed to publish session event", "error", err, "session_id", sess.ID)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sess.ID,
		"state":      driver.State().String(),
		"draws":      driver.Draws(),
		"duration":   duration,
		"elapsed_ms": time.Since(started).Milliseconds(),
		"last_draw":  lastDraw(drawTimes),
	})
}

// handleFrame renders the overlay for one moment of the session as a PNG.
func (s *Service) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil || t < 0 {
		writeError(w, http.StatusBadRequest, "query parameter t must be a non-negative number of seconds")
		return
	}

	width, height := surfaceSize(sess)
	duration := sess.Duration
	if duration <= 0 {
		duration = sess.Document.LastTimestamp()
	}

	surface := overlay.NewImageSurface(width, height)
	renderer := overlay.NewRenderer(sess.Document, duration, types.DetectOrientation(width, height))
	renderer.Draw(surface, t)

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, surface.Image()); err != nil {
		slog.Error("failed to encode frame png", "error", err, "session_id", sess.ID)
	}
}

func (s *Service) loadSession(w http.ResponseWriter, r *http.Request) (*store.Session, bool) {
	sess, err := s.sessions.Load(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return nil, false
	}
	return sess, true
}

func surfaceSize(sess *store.Session) (int, int) {
	if sess.Width > 0 && sess.Height > 0 {
		return sess.Width, sess.Height
	}
	return defaultSurfaceW, defaultSurfaceH
}

func formDuration(r *http.Request, doc *types.Document) float64 {
	if v, err := strconv.ParseFloat(r.FormValue("duration"), 64); err == nil && v > 0 {
		return v
	}
	return doc.LastTimestamp()
}

func formInt(r *http.Request, field string) int {
	v, err := strconv.Atoi(r.FormValue(field))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func lastDraw(times []float64) float64 {
	if len(times) == 0 {
		return 0
	}
	return times[len(times)-1]
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
