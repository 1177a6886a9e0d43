package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ssargent/samplestore/pkg/sample"
	"github.com/ssargent/samplestore/pkg/store"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
}

// MetricValue is a float64 that survives JSON round trips for NaN and the
// infinities, which are written as the strings "NaN", "+Inf" and "-Inf"
type MetricValue float64

// MarshalJSON implements json.Marshaler
func (v MetricValue) MarshalJSON() ([]byte, error) {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (v *MetricValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid metric value %q", s)
		}
		*v = MetricValue(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid metric value %s", data)
	}
	*v = MetricValue(f)
	return nil
}

// SampleRequest is the JSON form of a sample submitted by a client
type SampleRequest struct {
	BrokerID   int32                  `json:"broker_id"`
	Topic      string                 `json:"topic"`
	Partition  int32                  `json:"partition"`
	SampleTime int64                  `json:"sample_time"`
	Metrics    map[string]MetricValue `json:"metrics"`
}

// SampleResponse is the JSON form of a stored or decoded sample
type SampleResponse struct {
	BrokerID   int32                  `json:"broker_id"`
	Topic      string                 `json:"topic"`
	Partition  int32                  `json:"partition"`
	SampleTime int64                  `json:"sample_time"`
	Metrics    map[string]MetricValue `json:"metrics"`
	Summary    string                 `json:"summary"`
}

// AppendResponse describes an appended sample
type AppendResponse struct {
	Partition   string `json:"partition"`
	SampleTime  int64  `json:"sample_time"`
	EncodedSize int    `json:"encoded_size"`
	Indexed     bool   `json:"indexed"`
}

// StatsResponse reports the state of the sample store
type StatsResponse struct {
	Store        *store.StoreStats `json:"store"`
	IndexEnabled bool              `json:"index_enabled"`
	Version      byte              `json:"wire_version"`
}

// ISampleStore defines the sample log operations used by the API
type ISampleStore interface {
	Append(samples ...*sample.PartitionMetricSample) error
	Stats() *store.StoreStats
}

// ISampleIndex defines the sample index operations used by the API
type ISampleIndex interface {
	Put(s *sample.PartitionMetricSample) error
	Range(ctx context.Context, entity sample.PartitionEntity, from, to int64) ([]*sample.PartitionMetricSample, error)
	Latest(entity sample.PartitionEntity) (*sample.PartitionMetricSample, error)
}
