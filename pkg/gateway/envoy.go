package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JaragonCR/envoy/pkg/common"
	"github.com/JaragonCR/envoy/pkg/log"
	"github.com/JaragonCR/envoy/pkg/types"
)

// productionPath is the only gateway resource we consume. The legacy
// /api/v1/production endpoint returns a flatter, incompatible shape and is
// not supported.
const productionPath = "/production.json"

// Envoy implements the Client interface against a local Enphase Envoy
// gateway. The gateway serves HTTPS with a self-signed certificate, so the
// client skips certificate verification.
type Envoy struct {
	client  *http.Client
	baseURL string
}

// NewEnvoy returns an Envoy client. The HTTP client carries a one minute
// timeout so a hung gateway cannot stall a poll cycle indefinitely.
func NewEnvoy() *Envoy {
	return &Envoy{
		client: common.InsecureHTTPClient(time.Minute),
	}
}

// AssembleToken reassembles the bearer token from its two stored fragments.
// Each fragment is trimmed of incidental whitespace before concatenation; a
// split token silently fails authentication with no distinguishing error, so
// this has to be exact.
func AssembleToken(a, b string) string {
	return strings.TrimSpace(a) + strings.TrimSpace(b)
}

// FetchProduction implements Client.
func (e *Envoy) FetchProduction(ctx context.Context, prefs types.Preferences) (ProductionDocument, error) {
	token := AssembleToken(prefs.TokenFragmentA, prefs.TokenFragmentB)
	if prefs.Address == "" || token == "" {
		return ProductionDocument{}, ErrConfigurationIncomplete
	}

	u := url.URL{
		Scheme: "https",
		Host:   prefs.Address,
		Path:   productionPath,
	}
	// tests point the client at an httptest server instead of a real address
	if e.baseURL != "" {
		parsed, err := url.Parse(e.baseURL)
		if err != nil {
			return ProductionDocument{}, err
		}
		u.Scheme = parsed.Scheme
		u.Host = parsed.Host
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return ProductionDocument{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.client.Do(req)
	if err != nil {
		return ProductionDocument{}, &StatusError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProductionDocument{}, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProductionDocument{}, &StatusError{cause: err}
	}

	var doc ProductionDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return ProductionDocument{}, &DecodeError{Body: body, cause: err}
	}

	log.Ctx(ctx).DebugContext(ctx, "fetched production document",
		slog.String("address", prefs.Address),
		slog.Int("productionEntries", len(doc.Production)),
		slog.Int("consumptionEntries", len(doc.Consumption)),
	)

	return doc, nil
}

// ProductionDocument is the decoded /production.json response. Both
// collections are unordered sequences of heterogeneous entries discriminated
// by type/measurementType; decoding is tolerant of extra fields and of
// entries in categories we do not recognize.
type ProductionDocument struct {
	Production  []Measurement `json:"production"`
	Consumption []Measurement `json:"consumption"`
}

// Measurement is one entry of either collection. Production entries carry the
// "type" discriminator ("eim" for the calibrated energy meter, "inverters"
// for the raw per-inverter estimate); consumption entries carry
// "measurementType". Numeric fields absent from the document decode to zero.
type Measurement struct {
	Type            string  `json:"type"`
	MeasurementType string  `json:"measurementType"`
	WNow            float64 `json:"wNow"`
	WhToday         float64 `json:"whToday"`
	WhLastSevenDays float64 `json:"whLastSevenDays"`
	WhLifetime      float64 `json:"whLifetime"`
}
