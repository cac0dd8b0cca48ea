package main

import (
	"context"
	"os"

	"github.com/levenlabs/go-lflag"

	"github.com/JaragonCR/envoy/pkg/log"
	"github.com/JaragonCR/envoy/pkg/storage"
	"github.com/JaragonCR/envoy/pkg/types"
)

// seeds a demo device into the firestore emulator for local development
func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	device := types.Device{
		ID:   "demo",
		Name: "Demo Envoy",
	}
	if err := s.CreateDevice(ctx, device); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create device", "error", err)
		os.Exit(1)
	}

	prefs := types.Preferences{
		Address:        "envoy.local",
		TokenFragmentA: "eyJhbGciOiJFUzI1NiIsInR5cCI6IkpXVCJ9.demo-",
		TokenFragmentB: "payload.demo-signature",
	}
	if err := s.SetPreferences(ctx, device.ID, prefs); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to set preferences", "error", err)
		os.Exit(1)
	}

	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "seeded device", "deviceID", device.ID)
}
