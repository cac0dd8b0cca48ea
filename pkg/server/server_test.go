package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JaragonCR/envoy/pkg/gateway"
	"github.com/JaragonCR/envoy/pkg/gateway/gatewaymock"
	"github.com/JaragonCR/envoy/pkg/poller"
	"github.com/JaragonCR/envoy/pkg/sink/sinkmock"
	"github.com/JaragonCR/envoy/pkg/storage"
	"github.com/JaragonCR/envoy/pkg/storage/storagemock"
	"github.com/JaragonCR/envoy/pkg/types"
)

var testPrefs = types.Preferences{
	Address:        "envoy.local",
	TokenFragmentA: "a",
	TokenFragmentB: "b",
}

var testDoc = gateway.ProductionDocument{
	Production: []gateway.Measurement{
		{Type: "eim", WNow: 4500, WhToday: 12000, WhLifetime: 5000000},
	},
	Consumption: []gateway.Measurement{
		{MeasurementType: "total-consumption", WNow: 1200, WhToday: 8000},
		{MeasurementType: "net-consumption", WNow: -3300},
	},
}

type testDeps struct {
	gateway *gatewaymock.MockClient
	sink    *sinkmock.MockSink
	storage *storagemock.MockDatabase
}

func newTestServer(t *testing.T) (*httptest.Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		gateway: &gatewaymock.MockClient{},
		sink:    &sinkmock.MockSink{},
		storage: &storagemock.MockDatabase{},
	}
	s := &Server{
		storage:    deps.storage,
		pollers:    poller.NewMap(deps.gateway, deps.sink, deps.storage),
		bypassAuth: true,
	}
	ts := httptest.NewServer(s.setupHandler())
	t.Cleanup(ts.Close)
	return ts, deps
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func TestHandleRefresh(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("GetPreferences", mock.Anything, "dev-1").Return(testPrefs, nil)
		deps.gateway.On("FetchProduction", mock.Anything, testPrefs).Return(testDoc, nil)
		deps.sink.On("PublishProduction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		deps.sink.On("PublishConsumption", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		deps.sink.On("PublishGrid", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		resp := postJSON(t, ts.URL+"/api/refresh", map[string]string{"deviceID": "dev-1"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var reading types.Reading
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&reading))
		assert.Equal(t, 4500.0, reading.Production.PowerW)
		assert.True(t, reading.Grid.Exporting)
		assert.False(t, reading.Timestamp.IsZero())
	})

	t.Run("NotConfigured", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("GetPreferences", mock.Anything, "dev-1").Return(types.Preferences{}, nil)
		deps.gateway.On("FetchProduction", mock.Anything, types.Preferences{}).
			Return(gateway.ProductionDocument{}, gateway.ErrConfigurationIncomplete)

		resp := postJSON(t, ts.URL+"/api/refresh", map[string]string{"deviceID": "dev-1"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("GatewayDown", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("GetPreferences", mock.Anything, "dev-1").Return(testPrefs, nil)
		deps.gateway.On("FetchProduction", mock.Anything, testPrefs).
			Return(gateway.ProductionDocument{}, &gateway.StatusError{Code: 503})

		resp := postJSON(t, ts.URL+"/api/refresh", map[string]string{"deviceID": "dev-1"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("DeviceNotFound", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("GetPreferences", mock.Anything, "dev-1").
			Return(types.Preferences{}, storage.ErrDeviceNotFound)

		resp := postJSON(t, ts.URL+"/api/refresh", map[string]string{"deviceID": "dev-1"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHandleGetReading(t *testing.T) {
	ts, deps := newTestServer(t)

	// no reading cached yet
	resp, err := http.Get(ts.URL + "/api/reading?deviceID=dev-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// refresh to populate the cache
	deps.storage.On("GetPreferences", mock.Anything, "dev-1").Return(testPrefs, nil)
	deps.gateway.On("FetchProduction", mock.Anything, testPrefs).Return(testDoc, nil)
	deps.sink.On("PublishProduction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	deps.sink.On("PublishConsumption", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	deps.sink.On("PublishGrid", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	refreshResp := postJSON(t, ts.URL+"/api/refresh", map[string]string{"deviceID": "dev-1"})
	refreshResp.Body.Close()
	require.Equal(t, http.StatusOK, refreshResp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/reading?deviceID=dev-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reading types.Reading
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reading))
	assert.Equal(t, 1200.0, reading.Consumption.PowerW)

	deps.gateway.AssertNumberOfCalls(t, "FetchProduction", 1)
}

func TestHandlePreferences(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("GetPreferences", mock.Anything, "dev-1").Return(testPrefs, nil)

		resp, err := http.Get(ts.URL + "/api/preferences?deviceID=dev-1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got PreferencesRes
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, testPrefs, got.Preferences)
		assert.True(t, got.Complete)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("GetPreferences", mock.Anything, "dev-1").
			Return(types.Preferences{}, storage.ErrDeviceNotFound)

		resp, err := http.Get(ts.URL + "/api/preferences?deviceID=dev-1")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Set", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("SetPreferences", mock.Anything, "dev-1", testPrefs).Return(nil)

		resp := postJSON(t, ts.URL+"/api/preferences", map[string]string{
			"deviceID":       "dev-1",
			"address":        testPrefs.Address,
			"tokenFragmentA": testPrefs.TokenFragmentA,
			"tokenFragmentB": testPrefs.TokenFragmentB,
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		deps.storage.AssertExpectations(t)
	})

	t.Run("SetInvalidBody", func(t *testing.T) {
		ts, _ := newTestServer(t)
		resp, err := http.Post(ts.URL+"/api/preferences", "application/json", bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandleDevices(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("ListDevices", mock.Anything).
			Return([]types.Device{{ID: "dev-1", Name: "Garage"}}, nil)

		resp, err := http.Get(ts.URL + "/api/devices")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Devices []types.Device `json:"devices"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		require.Len(t, got.Devices, 1)
		assert.Equal(t, "Garage", got.Devices[0].Name)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("ListDevices", mock.Anything).Return([]types.Device(nil), nil)

		resp, err := http.Get(ts.URL + "/api/devices")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Devices []types.Device `json:"devices"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.NotNil(t, got.Devices)
		assert.Empty(t, got.Devices)
	})

	t.Run("Create", func(t *testing.T) {
		ts, deps := newTestServer(t)
		deps.storage.On("CreateDevice", mock.Anything, types.Device{ID: "dev-2", Name: "Roof"}).Return(nil)

		resp := postJSON(t, ts.URL+"/api/devices", map[string]string{"deviceID": "dev-2", "name": "Roof"})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		deps.storage.AssertExpectations(t)
	})

	t.Run("CreateMissingID", func(t *testing.T) {
		ts, _ := newTestServer(t)
		resp := postJSON(t, ts.URL+"/api/devices", map[string]string{"name": "Roof"})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthMiddleware(t *testing.T) {
	deps := &testDeps{
		gateway: &gatewaymock.MockClient{},
		sink:    &sinkmock.MockSink{},
		storage: &storagemock.MockDatabase{},
	}
	s := &Server{
		storage: deps.storage,
		pollers: poller.NewMap(deps.gateway, deps.sink, deps.storage),
		// bypassAuth false and no verifier configured
		oidcVerifier: nil,
	}
	ts := httptest.NewServer(s.setupHandler())
	defer ts.Close()

	t.Run("MissingHeader", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/devices")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/devices", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Basic abc123")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("HealthzSkipsAuth", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
