package channel

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"agriassist/internal/assistant"
	"agriassist/internal/domain"
	"agriassist/internal/metrics"
)

const (
	maxUploadSize     = 10 << 20 // multipart form cap, dominated by the image
	sessionCookieName = "agriassist_session"
	sessionMaxAge     = 86400 * 30 // 30 days
)

//go:embed web_templates/*.html
var templateFS embed.FS

// Web implements domain.Channel for the browser chat page and the JSON API.
//
// POST /ask takes a multipart form with optional `question` and optional
// `image` fields and responds {"answer": ...}. Conversations are scoped to
// a session cookie.
type Web struct {
	host    string
	port    int
	version string

	assistant *assistant.Assistant
	sessions  *assistant.Sessions

	// Which code paths have credentials. A missing credential disables the
	// dependent path with a 503 instead of attempting a doomed remote call.
	classifierReady bool
	narratorReady   bool
	narratorName    string

	logger *slog.Logger
	server *http.Server
	tmpl   *htmltemplate.Template
}

type WebConfig struct {
	Host            string
	Port            int
	Version         string
	Assistant       *assistant.Assistant
	Sessions        *assistant.Sessions
	ClassifierReady bool
	NarratorReady   bool
	NarratorName    string
	Logger          *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	tmpl := htmltemplate.Must(htmltemplate.ParseFS(templateFS, "web_templates/*.html"))

	return &Web{
		host:            cfg.Host,
		port:            cfg.Port,
		version:         cfg.Version,
		assistant:       cfg.Assistant,
		sessions:        cfg.Sessions,
		classifierReady: cfg.ClassifierReady,
		narratorReady:   cfg.NarratorReady,
		narratorName:    cfg.NarratorName,
		logger:          cfg.Logger,
		tmpl:            tmpl,
	}
}

func (w *Web) Name() string { return "web" }

// Handler returns the channel's HTTP handler. Exposed for tests.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", w.handleChatPage)
	mux.HandleFunc("POST /ask", w.handleAsk)
	mux.HandleFunc("POST /reset", w.handleReset)
	mux.HandleFunc("GET /status", w.handleStatus)
	mux.Handle("GET /metrics", metrics.Collector.Handler())
	return mux
}

// Start runs the HTTP server until the context is cancelled.
func (w *Web) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:    addr,
		Handler: w.Handler(),
	}

	w.logger.Info("web channel started", "addr", "http://"+addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

// getOrCreateSession returns a persistent session ID from cookies, creating
// one when absent.
func (w *Web) getOrCreateSession(r *http.Request, rw http.ResponseWriter) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	b := make([]byte, 16)
	var sessionID string
	if _, err := rand.Read(b); err != nil {
		sessionID = fmt.Sprintf("web_%d", time.Now().UnixNano())
		w.logger.Warn("rand.Read failed, using fallback session ID", "err", err)
	} else {
		sessionID = "web_" + hex.EncodeToString(b)
	}

	http.SetCookie(rw, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID
}

func (w *Web) handleChatPage(rw http.ResponseWriter, r *http.Request) {
	w.getOrCreateSession(r, rw)
	if err := w.tmpl.ExecuteTemplate(rw, "chat.html", map[string]any{
		"Title":    "Agri-Assistant",
		"Version":  w.version,
		"Greeting": domain.Greeting,
	}); err != nil {
		w.logger.Error("template error", "template", "chat", "err", err)
	}
}

// handleAsk is the JSON API: multipart form, optional `question` string and
// optional `image` file; at least one must be present.
func (w *Web) handleAsk(rw http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(rw, r.Body, maxUploadSize)
	// Support both multipart/form-data and x-www-form-urlencoded (text-only).
	_ = r.ParseMultipartForm(maxUploadSize)

	question := r.FormValue("question")

	var imageBytes []byte
	var imageName string
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		imageBytes, err = io.ReadAll(file)
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "could not read uploaded image"})
			return
		}
		imageName = header.Filename
	}

	if question == "" && len(imageBytes) == 0 {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "provide a question, an image, or both"})
		return
	}

	if len(imageBytes) > 0 && !w.classifierReady {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]string{"error": "image analysis is not configured on this server"})
		return
	}
	if !w.narratorReady {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]string{"error": "the AI assistant is not configured on this server"})
		return
	}

	sessionID := w.getOrCreateSession(r, rw)
	conv := w.sessions.GetOrCreate(sessionID)

	res, err := w.assistant.Respond(r.Context(), conv, assistant.TurnInput{
		Text:      question,
		Image:     imageBytes,
		ImageName: imageName,
	})
	if err != nil {
		if errors.Is(err, assistant.ErrEmptySubmission) {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if res.Classification != nil && res.Classification.Failed() {
		writeJSON(rw, http.StatusBadGateway, map[string]string{
			"error": "image analysis failed: " + res.Classification.Err,
		})
		return
	}
	if res.NarrationErr != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]string{
			"error": "answer generation failed: " + res.NarrationErr.Error(),
		})
		return
	}

	writeJSON(rw, http.StatusOK, map[string]string{"answer": res.Answer})
}

func (w *Web) handleReset(rw http.ResponseWriter, r *http.Request) {
	sessionID := w.getOrCreateSession(r, rw)
	w.sessions.Reset(sessionID)
	writeJSON(rw, http.StatusOK, map[string]string{"status": "reset"})
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":                "ok",
		"version":               w.version,
		"narrator":              w.narratorName,
		"narrator_configured":   w.narratorReady,
		"classifier_configured": w.classifierReady,
		"conversations":         w.sessions.Len(),
		"uptime_seconds":        int64(metrics.Collector.Uptime().Seconds()),
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
