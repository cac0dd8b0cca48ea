package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/JaragonCR/envoy/pkg/common"
	"github.com/JaragonCR/envoy/pkg/log"
)

// Webhook publishes channel events to a device-state service over HTTP. Each
// channel publish is one POST to {base}/devices/{deviceID}/events; the
// service answers 404 or 422 when the device's capability set does not
// declare the channel, which maps to ErrChannelUnsupported.
type Webhook struct {
	client  *http.Client
	baseURL string
	token   string
}

// configuredWebhook sets up the webhook sink. It registers flags for
// configuration.
func configuredWebhook() *Webhook {
	baseURL := lflag.String("sink-url", "", "Base URL of the device-state sink")
	token := lflag.String("sink-token", "", "Bearer token for the device-state sink")

	w := &Webhook{
		client: common.HTTPClient(30 * time.Second),
	}

	lflag.Do(func() {
		w.baseURL = *baseURL
		w.token = *token
	})

	return w
}

// Validate checks if the sink is properly configured.
func (w *Webhook) Validate() error {
	if w.baseURL == "" {
		return fmt.Errorf("sink-url is required")
	}
	if _, err := url.Parse(w.baseURL); err != nil {
		return fmt.Errorf("invalid sink-url: %w", err)
	}
	return nil
}

type channelEvent struct {
	Capability string      `json:"capability"`
	Value      interface{} `json:"value"`
	Unit       string      `json:"unit,omitempty"`
}

type publishRequest struct {
	Component string         `json:"component"`
	Events    []channelEvent `json:"events"`
}

// PublishProduction implements Sink.
func (w *Webhook) PublishProduction(ctx context.Context, deviceID string, powerW, energyKWH float64) error {
	return w.publish(ctx, deviceID, publishRequest{
		Component: "production",
		Events: []channelEvent{
			{Capability: "power", Value: powerW, Unit: "W"},
			{Capability: "energy", Value: energyKWH, Unit: "kWh"},
		},
	})
}

// PublishConsumption implements Sink.
func (w *Webhook) PublishConsumption(ctx context.Context, deviceID string, powerW, energyKWH float64) error {
	return w.publish(ctx, deviceID, publishRequest{
		Component: "consumption",
		Events: []channelEvent{
			{Capability: "power", Value: powerW, Unit: "W"},
			{Capability: "energy", Value: energyKWH, Unit: "kWh"},
		},
	})
}

// PublishGrid implements Sink.
func (w *Webhook) PublishGrid(ctx context.Context, deviceID string, powerW float64, exporting bool) error {
	direction := "import"
	if exporting {
		direction = "export"
	}
	return w.publish(ctx, deviceID, publishRequest{
		Component: "grid",
		Events: []channelEvent{
			{Capability: "power", Value: powerW, Unit: "W"},
			{Capability: "gridDirection", Value: direction},
		},
	})
}

func (w *Webhook) publish(ctx context.Context, deviceID string, pr publishRequest) error {
	u, err := url.JoinPath(w.baseURL, "devices", deviceID, "events")
	if err != nil {
		return err
	}

	body, err := json.Marshal(pr)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sink publish failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		log.Ctx(ctx).DebugContext(ctx, "published channel to sink",
			slog.String("deviceID", deviceID),
			slog.String("component", pr.Component),
		)
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%s channel: %w", pr.Component, ErrChannelUnsupported)
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sink publish failed: status %d: %s", resp.StatusCode, respBody)
	}
}
