package sample

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ssargent/samplestore/pkg/metricdef"
)

// PartitionEntity identifies a partition by topic name and partition index
type PartitionEntity struct {
	Topic     string
	Partition int32
}

// Group returns the aggregation group of the entity, which is its topic
func (e PartitionEntity) Group() string {
	return e.Topic
}

func (e PartitionEntity) String() string {
	return e.Topic + "-" + strconv.FormatInt(int64(e.Partition), 10)
}

// PartitionMetricSample holds the metric values of one partition on one
// broker at a point in time.
type PartitionMetricSample struct {
	brokerID   int32
	entity     PartitionEntity
	sampleTime int64
	closed     bool
	values     map[int]float64
}

// NewPartitionMetricSample creates an open sample with no recorded metrics
func NewPartitionMetricSample(brokerID int32, entity PartitionEntity) *PartitionMetricSample {
	return &PartitionMetricSample{
		brokerID: brokerID,
		entity:   entity,
		values:   make(map[int]float64),
	}
}

// Record adds the value of a metric to an open sample
func (s *PartitionMetricSample) Record(info metricdef.MetricInfo, value float64) error {
	if s.closed {
		return ErrSampleClosed
	}
	if _, exists := s.values[info.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, info.Name)
	}
	s.values[info.ID] = value
	return nil
}

// Close sets the sample time. The sample is immutable afterwards.
func (s *PartitionMetricSample) Close(sampleTime int64) error {
	if s.closed {
		return ErrSampleClosed
	}
	s.sampleTime = sampleTime
	s.closed = true
	return nil
}

// BrokerID returns the id of the broker the metrics were collected from
func (s *PartitionMetricSample) BrokerID() int32 {
	return s.brokerID
}

// Entity returns the partition the sample belongs to
func (s *PartitionMetricSample) Entity() PartitionEntity {
	return s.entity
}

// SampleTime returns the sample time in epoch milliseconds, or zero while open
func (s *PartitionMetricSample) SampleTime() int64 {
	return s.sampleTime
}

// IsClosed reports whether the sample time has been set
func (s *PartitionMetricSample) IsClosed() bool {
	return s.closed
}

// NumMetrics returns the number of metrics that have been recorded
func (s *PartitionMetricSample) NumMetrics() int {
	return len(s.values)
}

// Value returns the value of the metric with the given id. The boolean is
// false when the metric was never recorded, which is distinct from a zero value.
func (s *PartitionMetricSample) Value(id int) (float64, bool) {
	v, ok := s.values[id]
	return v, ok
}

// MetricValue is like Value but looks the metric up by name
func (s *PartitionMetricSample) MetricValue(name string) (float64, bool) {
	info, err := metricdef.KafkaMetricDef().MetricInfo(name)
	if err != nil {
		return 0, false
	}
	return s.Value(info.ID)
}

// AllMetricValues returns a copy of the recorded values keyed by metric id
func (s *PartitionMetricSample) AllMetricValues() map[int]float64 {
	values := make(map[int]float64, len(s.values))
	for id, v := range s.values {
		values[id] = v
	}
	return values
}

// String renders the sample for logs and command output
func (s *PartitionMetricSample) String() string {
	def := metricdef.KafkaMetricDef()

	ids := make([]int, 0, len(s.values))
	for id := range s.values {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	entries := make([]string, 0, len(ids))
	for _, id := range ids {
		name := strconv.Itoa(id)
		if info, err := def.MetricInfoByID(id); err == nil {
			name = info.Name
		}
		entries = append(entries, name+"="+strconv.FormatFloat(s.values[id], 'g', -1, 64))
	}

	return fmt.Sprintf("[brokerId: %d, Partition: %s, time: %s, metrics: {%s}]",
		s.brokerID, s.entity, formatSampleTime(s.sampleTime), strings.Join(entries, ", "))
}

func formatSampleTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
