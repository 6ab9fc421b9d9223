package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sorvik/glossa/internal/config"
	"github.com/sorvik/glossa/internal/session"
	"github.com/sorvik/glossa/internal/storage/sqlite"
	"github.com/sorvik/glossa/internal/websocket"
	"github.com/sorvik/glossa/pkg/logger"
)

// StatusProvider reports the live state of the streaming session.
type StatusProvider interface {
	Status() session.Status
}

// Handler contains the API handlers
type Handler struct {
	status     StatusProvider
	recordings *sqlite.RecordingStorage
	config     *config.Config
	logger     *logger.Logger
	wsServer   *websocket.Server
}

// NewHandler creates a new API handler. recordings may be nil when the
// recording index is disabled.
func NewHandler(status StatusProvider, recordings *sqlite.RecordingStorage, config *config.Config, logger *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		status:     status,
		recordings: recordings,
		config:     config,
		logger:     logger.Named("api-handler"),
		wsServer:   wsServer,
	}
}

// GetStatus returns the current session state
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.status.Status()

	response := map[string]any{
		"timestamp": time.Now(),
		"session":   status,
		"clients":   h.wsServer.ClientCount(),
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetRecordings returns recording index rows with pagination
func (h *Handler) GetRecordings(w http.ResponseWriter, r *http.Request) {
	if h.recordings == nil {
		http.Error(w, "Recording is disabled", http.StatusNotFound)
		return
	}

	limit, offset := parsePaginationParams(r)

	recordings, err := h.recordings.GetRecordings(limit, offset)
	if err != nil {
		h.logger.Error("Failed to retrieve recordings", logger.Error(err))
		http.Error(w, "Failed to retrieve recordings", http.StatusInternalServerError)
		return
	}

	total, err := h.recordings.CountRecordings()
	if err != nil {
		h.logger.Error("Failed to count recordings", logger.Error(err))
		http.Error(w, "Failed to retrieve recordings", http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"timestamp":  time.Now(),
		"count":      len(recordings),
		"total":      total,
		"recordings": recordings,
	}

	WriteJSON(w, http.StatusOK, response)
}

// HandleWebSocket handles WebSocket connections
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("WebSocket connection request received")

	h.wsServer.HandleConnection(w, r)
}

// Helper functions
func parsePaginationParams(r *http.Request) (int, int) {
	limit := 100 // Default limit
	offset := 0  // Default offset

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
