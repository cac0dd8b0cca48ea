package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JaragonCR/envoy/pkg/log"
	"github.com/JaragonCR/envoy/pkg/types"
)

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := s.storage.ListDevices(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list devices", slog.Any("error", err))
		writeJSONError(w, "failed to list devices", http.StatusInternalServerError)
		return
	}
	if devices == nil {
		devices = []types.Device{}
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Devices []types.Device `json:"devices"`
	}{Devices: devices}); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		DeviceID string `json:"deviceID"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode device", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DeviceID == "" {
		writeJSONError(w, "deviceID is required", http.StatusBadRequest)
		return
	}

	device := types.Device{ID: req.DeviceID, Name: req.Name}
	if err := s.storage.CreateDevice(ctx, device); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create device", slog.Any("error", err))
		writeJSONError(w, "failed to create device", http.StatusInternalServerError)
		return
	}

	// start polling the new device right away
	s.pollers.Device(device.ID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(device); err != nil {
		panic(http.ErrAbortHandler)
	}
}
