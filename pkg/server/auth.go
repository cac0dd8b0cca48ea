package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaragonCR/envoy/pkg/log"
	"github.com/JaragonCR/envoy/pkg/types"
)

// authMiddleware extracts the deviceID from the request and, when an OIDC
// audience is configured, requires a valid Bearer ID token on every API call.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		// extract deviceID
		var deviceID string
		if r.Method == http.MethodGet {
			deviceID = r.URL.Query().Get("deviceID")
		} else {
			// read body to find deviceID
			var bodyBytes []byte
			if r.Body != nil {
				// Limit body size to 1MB to prevent DoS
				r.Body = http.MaxBytesReader(w, r.Body, 1048576)
				var err error
				bodyBytes, err = io.ReadAll(r.Body)
				if err != nil {
					log.Ctx(ctx).ErrorContext(ctx, "failed to read request body", slog.Any("error", err))
					// since we failed to read, don't return JSON error
					http.Error(w, "invalid request", http.StatusBadRequest)
					return
				}
				// restore body for next handler
				r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			}

			if len(bodyBytes) > 0 {
				var justDeviceID struct {
					DeviceID string `json:"deviceID"`
				}
				if err := json.Unmarshal(bodyBytes, &justDeviceID); err != nil {
					log.Ctx(ctx).ErrorContext(ctx, "failed to unmarshal request body", slog.Any("error", err))
					http.Error(w, "invalid request", http.StatusBadRequest)
					return
				}
				deviceID = justDeviceID.DeviceID
			}
		}
		if deviceID == "" {
			deviceID = types.DeviceIDNone
		}
		ctx = context.WithValue(ctx, deviceIDContextKey, deviceID)

		if !s.bypassAuth {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeJSONError(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			if _, err := s.oidcVerifier(ctx, parts[1]); err != nil {
				log.Ctx(ctx).WarnContext(ctx, "failed to validate id token", slog.Any("error", err))
				writeJSONError(w, "invalid id token", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
