package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fidotel/internal/platform/middleware"
	"fidotel/internal/platform/sentinel"
	"fidotel/internal/telemetry/pipeline"
	"fidotel/internal/telemetry/settings"
)

type handler struct {
	store     settings.Store
	provider  settings.Provider
	recorder  *pipeline.Recorder
	refresher Refresher
	logger    *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getSettings returns the committed settings document, not the cached view,
// so operators always see the latest version even during a cache outage.
func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Load(r.Context())
	if errors.Is(err, sentinel.ErrNotFound) {
		writeJSON(w, http.StatusOK, settings.Defaults())
		return
	}
	if err != nil {
		h.logError(r, "load settings", err)
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// updateRequest is the operator-editable settings document. Version and
// UpdatedAt are accepted so a GET-edit-PUT round trip works, but the store
// assigns both on save.
type updateRequest struct {
	MetricsEnabled              bool      `json:"metricsEnabled"`
	AsyncStorageEnabled         bool      `json:"asyncStorageEnabled"`
	BatchSize                   int       `json:"batchSize"`
	RetentionDays               int       `json:"retentionDays"`
	RegistrationEnabled         bool      `json:"registrationEnabled"`
	AuthenticationEnabled       bool      `json:"authenticationEnabled"`
	DeviceInfoCollectionEnabled bool      `json:"deviceInfoCollectionEnabled"`
	ErrorCategorizationEnabled  bool      `json:"errorCategorizationEnabled"`
	Version                     int64     `json:"version"`
	UpdatedAt                   time.Time `json:"updatedAt"`
}

func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed settings document")
		return
	}

	snap := settings.Snapshot{
		MetricsEnabled:              req.MetricsEnabled,
		AsyncStorageEnabled:         req.AsyncStorageEnabled,
		BatchSize:                   req.BatchSize,
		RetentionDays:               req.RetentionDays,
		RegistrationEnabled:         req.RegistrationEnabled,
		AuthenticationEnabled:       req.AuthenticationEnabled,
		DeviceInfoCollectionEnabled: req.DeviceInfoCollectionEnabled,
		ErrorCategorizationEnabled:  req.ErrorCategorizationEnabled,
	}
	if err := snap.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	saved, err := h.store.Save(r.Context(), snap)
	if err != nil {
		h.logError(r, "save settings", err)
		writeError(w, http.StatusInternalServerError, "settings update failed")
		return
	}

	if h.refresher != nil {
		if err := h.refresher.Refresh(r.Context()); err != nil {
			h.logError(r, "refresh settings cache", err)
		}
	}

	if h.logger != nil {
		h.logger.InfoContext(r.Context(), "telemetry settings updated",
			"request_id", middleware.GetRequestID(r.Context()),
			"operator", middleware.GetSubject(r.Context()),
			"version", saved.Version,
		)
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *handler) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.recorder.Stats())
}

func (h *handler) logError(r *http.Request, op string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(r.Context(), op+" failed",
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
