package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ssargent/samplestore/pkg/metricdef"
	"github.com/ssargent/samplestore/pkg/sample"
)

// maxBodyBytes bounds request bodies; a V1 sample is 89 bytes plus its topic
const maxBodyBytes = 1 << 20

// Server holds the API server state
type Server struct {
	store   ISampleStore
	index   ISampleIndex
	config  ServerConfig
	metrics *Metrics
}

// NewServer creates a new API server. index may be nil, in which case the
// query endpoints answer 503.
func NewServer(store ISampleStore, index ISampleIndex, config ServerConfig, metrics *Metrics) *Server {
	return &Server{
		store:   store,
		index:   index,
		config:  config,
		metrics: metrics,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	s.metrics.UpdateStoreStats(stats)
	sendSuccess(w, StatsResponse{
		Store:        stats,
		IndexEnabled: s.index != nil,
		Version:      sample.CurrentVersion,
	})
}

// handleAppend stores a JSON sample in the log and, when enabled, the index
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	ms, ok := s.readSampleRequest(w, r)
	if !ok {
		return
	}

	encoded, err := ms.ToBytes()
	if err != nil {
		sendError(w, fmt.Sprintf("Invalid sample: %v", err), http.StatusBadRequest)
		return
	}

	start := time.Now()
	if err := s.store.Append(ms); err != nil {
		s.metrics.RecordStoreOperation("append", false, time.Since(start))
		sendError(w, fmt.Sprintf("Failed to append sample: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.RecordStoreOperation("append", true, time.Since(start))
	s.metrics.RecordEncode()

	if s.index != nil {
		start = time.Now()
		if err := s.index.Put(ms); err != nil {
			s.metrics.RecordStoreOperation("index_put", false, time.Since(start))
			sendError(w, fmt.Sprintf("Sample stored but not indexed: %v", err), http.StatusInternalServerError)
			return
		}
		s.metrics.RecordStoreOperation("index_put", true, time.Since(start))
	}

	sendSuccess(w, AppendResponse{
		Partition:   ms.Entity().String(),
		SampleTime:  ms.SampleTime(),
		EncodedSize: len(encoded),
		Indexed:     s.index != nil,
	})
}

// handleEncode converts a JSON sample to its binary form. The response body
// is the raw bytes unless ?format=hex is given.
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	ms, ok := s.readSampleRequest(w, r)
	if !ok {
		return
	}

	encoded, err := ms.ToBytes()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to encode sample: %v", err), http.StatusBadRequest)
		return
	}
	s.metrics.RecordEncode()

	if r.URL.Query().Get("format") == "hex" {
		sendSuccess(w, map[string]string{"hex": hex.EncodeToString(encoded)})
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(encoded)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

// handleDecode converts a binary sample to JSON. Buffers from a newer release
// answer 422, damaged buffers 400.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("format") == "hex" {
		body, err = hex.DecodeString(string(body))
		if err != nil {
			sendError(w, "Request body is not valid hex", http.StatusBadRequest)
			return
		}
	}

	ms, err := sample.FromBytes(body)
	switch {
	case err == nil:
		s.metrics.RecordDecode(decodeOK)
	case errors.Is(err, sample.ErrUnknownVersion):
		s.metrics.RecordDecode(decodeUnknownVersion)
		sendError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	default:
		s.metrics.RecordDecode(decodeTruncated)
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccess(w, toSampleResponse(ms))
}

// handleQuery returns the indexed samples of a partition with
// from <= sample time < to
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		sendError(w, "Sample index is disabled", http.StatusServiceUnavailable)
		return
	}

	entity, err := entityFromRequest(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, err := int64Param(r, "from", math.MinInt64)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := int64Param(r, "to", math.MaxInt64)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if from > to {
		sendError(w, "from must not be greater than to", http.StatusBadRequest)
		return
	}

	start := time.Now()
	samples, err := s.index.Range(r.Context(), entity, from, to)
	if err != nil {
		s.metrics.RecordStoreOperation("index_range", false, time.Since(start))
		if errors.Is(err, context.Canceled) {
			return
		}
		sendError(w, fmt.Sprintf("Failed to query samples: %v", err), http.StatusInternalServerError)
		return
	}
	s.metrics.RecordStoreOperation("index_range", true, time.Since(start))

	responses := make([]SampleResponse, 0, len(samples))
	for _, ms := range samples {
		responses = append(responses, toSampleResponse(ms))
	}
	sendSuccess(w, responses)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		sendError(w, "Sample index is disabled", http.StatusServiceUnavailable)
		return
	}

	entity, err := entityFromRequest(r)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ms, err := s.index.Latest(entity)
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to query samples: %v", err), http.StatusInternalServerError)
		return
	}
	if ms == nil {
		sendError(w, fmt.Sprintf("No samples for partition %s", entity), http.StatusNotFound)
		return
	}

	sendSuccess(w, toSampleResponse(ms))
}

// readSampleRequest decodes a JSON sample and builds a closed sample from it.
// It writes the error response itself and reports whether to continue.
func (s *Server) readSampleRequest(w http.ResponseWriter, r *http.Request) (*sample.PartitionMetricSample, bool) {
	var req SampleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		sendError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return nil, false
	}

	ms, err := req.toSample()
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return ms, true
}

// toSample builds a closed sample from the request
func (req SampleRequest) toSample() (*sample.PartitionMetricSample, error) {
	if req.Topic == "" {
		return nil, errors.New("topic is required")
	}

	def := metricdef.KafkaMetricDef()
	ms := sample.NewPartitionMetricSample(req.BrokerID, sample.PartitionEntity{Topic: req.Topic, Partition: req.Partition})
	for name, value := range req.Metrics {
		info, err := def.MetricInfo(name)
		if err != nil {
			return nil, err
		}
		if err := ms.Record(info, float64(value)); err != nil {
			return nil, err
		}
	}

	if err := ms.Close(req.SampleTime); err != nil {
		return nil, err
	}
	return ms, nil
}

func toSampleResponse(ms *sample.PartitionMetricSample) SampleResponse {
	def := metricdef.KafkaMetricDef()

	values := ms.AllMetricValues()
	metrics := make(map[string]MetricValue, len(values))
	for id, v := range values {
		name := strconv.Itoa(id)
		if info, err := def.MetricInfoByID(id); err == nil {
			name = info.Name
		}
		metrics[name] = MetricValue(v)
	}

	entity := ms.Entity()
	return SampleResponse{
		BrokerID:   ms.BrokerID(),
		Topic:      entity.Topic,
		Partition:  entity.Partition,
		SampleTime: ms.SampleTime(),
		Metrics:    metrics,
		Summary:    ms.String(),
	}
}

func entityFromRequest(r *http.Request) (sample.PartitionEntity, error) {
	topic, err := url.PathUnescape(chi.URLParam(r, "topic"))
	if err != nil || topic == "" {
		return sample.PartitionEntity{}, errors.New("invalid topic")
	}

	partition, err := strconv.ParseInt(chi.URLParam(r, "partition"), 10, 32)
	if err != nil {
		return sample.PartitionEntity{}, fmt.Errorf("invalid partition %q", chi.URLParam(r, "partition"))
	}

	return sample.PartitionEntity{Topic: topic, Partition: int32(partition)}, nil
}

func int64Param(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter %q", name, raw)
	}
	return v, nil
}

// startMetricsUpdater periodically updates store metrics until ctx is done
func (s *Server) startMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.UpdateStoreStats(s.store.Stats())
		}
	}
}
