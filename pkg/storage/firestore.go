package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JaragonCR/envoy/pkg/log"
	"github.com/JaragonCR/envoy/pkg/types"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Each monitored gateway is one document in the "devices"
// collection; its preferences are stored alongside as a JSON string for
// portability.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID may be empty when it can be inferred from the environment.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) deviceDoc(deviceID string) (*firestore.DocumentRef, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("deviceID cannot be empty")
	}
	return f.client.Collection("devices").Doc(deviceID), nil
}

// ListDevices returns all registered devices.
func (f *FirestoreProvider) ListDevices(ctx context.Context) ([]types.Device, error) {
	iter := f.client.Collection("devices").Documents(ctx)
	defer iter.Stop()

	var devices []types.Device
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating devices: %w", err)
		}

		d := types.Device{ID: doc.Ref.ID}
		if v, err := doc.DataAt("name"); err == nil {
			if name, ok := v.(string); ok {
				d.Name = name
			}
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// CreateDevice registers a new device document.
func (f *FirestoreProvider) CreateDevice(ctx context.Context, device types.Device) error {
	doc, err := f.deviceDoc(device.ID)
	if err != nil {
		return err
	}
	_, err = doc.Set(ctx, map[string]interface{}{
		"name": device.Name,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// GetPreferences retrieves the preferences for the given device. A device
// document without preferences yields empty preferences, not an error; the
// poller reports that as a skipped cycle.
func (f *FirestoreProvider) GetPreferences(ctx context.Context, deviceID string) (types.Preferences, error) {
	doc, err := f.deviceDoc(deviceID)
	if err != nil {
		return types.Preferences{}, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Preferences{}, ErrDeviceNotFound
		}
		return types.Preferences{}, fmt.Errorf("failed to fetch device doc: %w", err)
	}

	val, err := snap.DataAt("preferences")
	if err != nil {
		// device exists but has never been configured
		return types.Preferences{}, nil
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "preferences field not a string", slog.String("deviceID", deviceID))
		return types.Preferences{}, fmt.Errorf("device 'preferences' field is not a string")
	}

	var p types.Preferences
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal preferences", slog.String("deviceID", deviceID), slog.Any("err", err))
		return types.Preferences{}, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	return p, nil
}

// SetPreferences saves the preferences for the given device as a JSON string
// for portability.
func (f *FirestoreProvider) SetPreferences(ctx context.Context, deviceID string, prefs types.Preferences) error {
	jsonBytes, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	doc, err := f.deviceDoc(deviceID)
	if err != nil {
		return err
	}
	_, err = doc.Set(ctx, map[string]interface{}{
		"preferences": string(jsonBytes),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
