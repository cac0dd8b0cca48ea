package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JaragonCR/envoy/pkg/log"
	"github.com/JaragonCR/envoy/pkg/storage"
	"github.com/JaragonCR/envoy/pkg/types"
)

// PreferencesRes is the response type for GetPreferences
type PreferencesRes struct {
	types.Preferences
	Complete bool `json:"complete"`
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := s.getDeviceID(r)

	prefs, err := s.storage.GetPreferences(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			writeJSONError(w, "device not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get preferences", slog.Any("error", err))
		writeJSONError(w, "failed to get preferences", http.StatusInternalServerError)
		return
	}

	resp := PreferencesRes{
		Preferences: prefs,
		Complete:    prefs.Complete(),
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := s.getDeviceID(r)

	var req struct {
		types.Preferences
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode preferences", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Incomplete preferences are allowed, the poller just skips cycles until
	// the rest arrives.
	if err := s.storage.SetPreferences(ctx, deviceID, req.Preferences); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save preferences", slog.Any("error", err))
		writeJSONError(w, "failed to save preferences", http.StatusInternalServerError)
		return
	}

	s.pollers.Device(deviceID).NotifyPreferences(req.Preferences)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Success bool `json:"success"`
	}{Success: true}); err != nil {
		panic(http.ErrAbortHandler)
	}
}
