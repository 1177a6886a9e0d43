package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ssargent/samplestore/pkg/metricdef"
	"github.com/ssargent/samplestore/pkg/sample"
	"github.com/ssargent/samplestore/pkg/storage"
	"github.com/ssargent/samplestore/pkg/store"
)

const testAPIKey = "test-key"

type testServer struct {
	server  *Server
	handler http.Handler
	store   *store.SampleStore
	metrics *Metrics
}

// setupTestServer creates a server backed by a sample store and, when
// withIndex is set, a pebble index in a temporary directory
func setupTestServer(t *testing.T, withIndex bool) *testServer {
	t.Helper()

	tmpDir := t.TempDir()

	sampleStore, err := store.NewSampleStore(store.SampleStoreConfig{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("Failed to create sample store: %v", err)
	}
	if _, err := sampleStore.Open(); err != nil {
		t.Fatalf("Failed to open sample store: %v", err)
	}
	t.Cleanup(func() { _ = sampleStore.Close() })

	var index ISampleIndex
	if withIndex {
		idx, err := storage.NewSampleIndex(filepath.Join(tmpDir, "index"))
		if err != nil {
			t.Fatalf("Failed to open sample index: %v", err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		index = idx
	}

	metrics := NewMetrics()
	server := NewServer(sampleStore, index, ServerConfig{APIKey: testAPIKey}, metrics)

	return &testServer{
		server:  server,
		handler: NewRouter(server),
		store:   sampleStore,
		metrics: metrics,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func fullSampleRequest(brokerID int32, topic string, partition int32, sampleTime int64) SampleRequest {
	req := SampleRequest{
		BrokerID:   brokerID,
		Topic:      topic,
		Partition:  partition,
		SampleTime: sampleTime,
		Metrics:    make(map[string]MetricValue),
	}
	for i, name := range sample.CurrentMetrics() {
		req.Metrics[name] = MetricValue(float64(i) + 0.25)
	}
	return req
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	return data
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, data interface{}) APIResponse {
	t.Helper()

	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("Failed to decode response data: %v", err)
		}
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

func TestRouter_Health(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do(t, "GET", "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var data map[string]string
	response := decodeResponse(t, w, &data)
	if !response.Success {
		t.Error("Expected success to be true")
	}
	if data["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", data)
	}
}

func TestRouter_RequiresAPIKey(t *testing.T) {
	ts := setupTestServer(t, false)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, false)

	w := ts.do(t, "POST", "/api/v1/samples/encode", mustJSON(t, fullSampleRequest(1, "orders", 0, 1)))
	if w.Code != http.StatusOK {
		t.Fatalf("Encode failed with status %d", w.Code)
	}

	// Unauthenticated, for scraping
	req := httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"samplestore_samples_encoded_total 1",
		`samplestore_http_requests_total{endpoint="/api/v1/samples/encode",method="POST",status_code="200"} 1`,
		"go_goroutines",
	} {
		if !bytes.Contains([]byte(body), []byte(want)) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}

func TestNewMetrics_Independent(t *testing.T) {
	// Each server owns its registry, so repeated construction must not panic
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.RecordEncode()

	families, err := m2.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "samplestore_samples_encoded_total" && f.GetMetric()[0].GetCounter().GetValue() != 0 {
			t.Error("Metrics leaked between registries")
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.RecordEncode()
	m.RecordDecode(decodeOK)
	m.RecordHealthCheck(true)
	m.RecordAuthRequest(false)
	m.UpdateStoreStats(&store.StoreStats{})

	called := false
	h := m.InstrumentHandler("GET", "/x", func(w http.ResponseWriter, r *http.Request) { called = true })
	h(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))
	if !called {
		t.Error("Handler was not called")
	}
}

func TestServer_Stats(t *testing.T) {
	ts := setupTestServer(t, true)

	w := ts.do(t, "POST", "/api/v1/samples", mustJSON(t, fullSampleRequest(1, "orders", 0, 1000)))
	if w.Code != http.StatusOK {
		t.Fatalf("Append failed with status %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, "GET", "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var stats StatsResponse
	decodeResponse(t, w, &stats)
	if stats.Store == nil || stats.Store.SamplesAppended != 1 {
		t.Errorf("Expected one appended sample, got %+v", stats.Store)
	}
	if stats.Store.Segments != 1 {
		t.Errorf("Expected one segment, got %d", stats.Store.Segments)
	}
	if !stats.IndexEnabled {
		t.Error("Expected index to be enabled")
	}
	if stats.Version != sample.CurrentVersion {
		t.Errorf("Expected wire version %d, got %d", sample.CurrentVersion, stats.Version)
	}
}

func TestSampleRequest_ToSample(t *testing.T) {
	t.Run("unknown metric", func(t *testing.T) {
		req := fullSampleRequest(1, "orders", 0, 1)
		req.Metrics["NOT_A_METRIC"] = 1
		if _, err := req.toSample(); err == nil {
			t.Error("Expected error for unknown metric")
		}
	})

	t.Run("missing topic", func(t *testing.T) {
		req := fullSampleRequest(1, "", 0, 1)
		if _, err := req.toSample(); err == nil {
			t.Error("Expected error for missing topic")
		}
	})

	t.Run("partial metrics", func(t *testing.T) {
		req := SampleRequest{Topic: "t", SampleTime: 5, Metrics: map[string]MetricValue{metricdef.CPUUsage: 0.5}}
		ms, err := req.toSample()
		if err != nil {
			t.Fatalf("toSample failed: %v", err)
		}
		if !ms.IsClosed() || ms.SampleTime() != 5 || ms.NumMetrics() != 1 {
			t.Errorf("Unexpected sample %s", ms)
		}
	})
}
