// Package api exposes the relay over HTTP: the WebSocket endpoint, file
// upload and download, health and metrics.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chat-relay/contract"
	"chat-relay/errors"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// multipart framing on top of the file itself
const uploadOverhead = 1 << 20

type Config struct {
	MaxUploadBytes int64
	AllowedOrigin  string
}

type handlers struct {
	blobs contract.IBlobStore
	ready func() bool
	cfg   Config
	log   *slog.Logger
}

// NewRouter wires every route. ready reports whether the stores are open.
func NewRouter(ws http.Handler, blobs contract.IBlobStore, gatherer prometheus.Gatherer, ready func() bool, cfg Config, log *slog.Logger) *mux.Router {
	h := handlers{blobs: blobs, ready: ready, cfg: cfg, log: log}

	r := mux.NewRouter()
	r.Use(h.cors)
	r.Handle("/ws", ws).Methods(http.MethodGet)
	r.HandleFunc("/api/upload", h.upload).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/files/{name}", h.download).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (h handlers) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.AllowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", h.cfg.AllowedOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type uploadResponse struct {
	FilePath string `json:"filePath"`
	FileType string `json:"fileType"`
	FileName string `json:"fileName"`
}

func (h handlers) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+uploadOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, errors.ErrFileTooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No file uploaded."})
		return
	}
	defer file.Close()

	ref, err := h.blobs.Put(header.Filename, file)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("File uploaded", "url", ref.URL, "type", ref.MimeType)
	writeJSON(w, http.StatusOK, uploadResponse{FilePath: ref.URL, FileType: ref.MimeType, FileName: ref.Name})
}

func (h handlers) download(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	rc, err := h.blobs.Open(name)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Debug("Download interrupted", "name", name, "error", err)
	}
}

func (h handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	if h.ready != nil && !h.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h handlers) fail(w http.ResponseWriter, err error) {
	msg, classified := errors.ClientMessage(err)
	if !classified {
		h.log.Error("Request failed", "error", err)
	}
	writeJSON(w, statusOf(err), map[string]string{"message": msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errors.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrProtocolViolation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
