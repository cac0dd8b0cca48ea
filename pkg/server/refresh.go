package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JaragonCR/envoy/pkg/gateway"
	"github.com/JaragonCR/envoy/pkg/log"
	"github.com/JaragonCR/envoy/pkg/storage"
)

// handleRefresh runs a poll cycle for the device right now and returns the
// resulting reading. It waits for any in-flight cycle to finish, so the
// response always reflects a fetch that started at or after the request.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := s.getDeviceID(r)

	reading, err := s.pollers.Device(deviceID).Refresh(ctx)
	if err != nil {
		var se *gateway.StatusError
		var de *gateway.DecodeError
		switch {
		case errors.Is(err, storage.ErrDeviceNotFound):
			writeJSONError(w, "device not found", http.StatusNotFound)
		case errors.Is(err, gateway.ErrConfigurationIncomplete):
			writeJSONError(w, "gateway address and token must be configured", http.StatusConflict)
		case errors.As(err, &se):
			log.Ctx(ctx).WarnContext(ctx, "refresh fetch failed", slog.String("deviceID", deviceID), slog.Any("error", err))
			writeJSONError(w, "failed to fetch from gateway", http.StatusBadGateway)
		case errors.As(err, &de):
			log.Ctx(ctx).WarnContext(ctx, "refresh decode failed", slog.String("deviceID", deviceID), slog.Any("error", err))
			writeJSONError(w, "failed to decode gateway response", http.StatusBadGateway)
		default:
			log.Ctx(ctx).ErrorContext(ctx, "refresh failed", slog.String("deviceID", deviceID), slog.Any("error", err))
			writeJSONError(w, "refresh failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reading); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// handleGetReading returns the most recent reading without touching the
// gateway.
func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	deviceID := s.getDeviceID(r)

	reading, ok := s.pollers.Device(deviceID).LastReading()
	if !ok {
		writeJSONError(w, "no reading yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reading); err != nil {
		panic(http.ErrAbortHandler)
	}
}
