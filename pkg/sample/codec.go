package sample

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/ssargent/samplestore/pkg/metricdef"
)

// Wire format versions
const (
	VersionV0      byte = 0
	VersionV1      byte = 1
	CurrentVersion      = VersionV1
)

const (
	brokerIDOffset = 1
	metricsOffset  = 5
)

// layout pins the offsets of one wire version. The values are part of the
// on-disk contract and must never be derived from the metric list.
type layout struct {
	version          byte
	metrics          []string
	sampleTimeOffset int
	partitionOffset  int
	topicOffset      int
}

var v0Layout = layout{
	version: VersionV0,
	metrics: []string{
		metricdef.CPUUsage,
		metricdef.DiskUsage,
		metricdef.LeaderBytesIn,
		metricdef.LeaderBytesOut,
	},
	sampleTimeOffset: 37,
	partitionOffset:  45,
	topicOffset:      49,
}

var v1Layout = layout{
	version: VersionV1,
	metrics: []string{
		metricdef.CPUUsage,
		metricdef.DiskUsage,
		metricdef.LeaderBytesIn,
		metricdef.LeaderBytesOut,
		metricdef.ProduceRate,
		metricdef.FetchRate,
		metricdef.MessageInRate,
		metricdef.ReplicationBytesInRate,
		metricdef.ReplicationBytesOutRate,
	},
	sampleTimeOffset: 77,
	partitionOffset:  85,
	topicOffset:      89,
}

func layoutFor(version byte) (layout, bool) {
	switch version {
	case VersionV0:
		return v0Layout, true
	case VersionV1:
		return v1Layout, true
	}
	return layout{}, false
}

// EncodedSize returns the payload size of a sample with the given topic in
// the given wire version
func EncodedSize(version byte, topic string) (int, error) {
	l, ok := layoutFor(version)
	if !ok {
		return 0, &UnknownVersionError{Version: version, Current: CurrentVersion}
	}
	return l.topicOffset + len(topic), nil
}

// CurrentMetrics returns the metric names written by the current version, in
// wire order
func CurrentMetrics() []string {
	names := make([]string, len(v1Layout.metrics))
	copy(names, v1Layout.metrics)
	return names
}

// ToBytes serializes a closed sample in the current wire version.
// Format: [Version(1)][BrokerID(4)][9 x Metric(8)][SampleTime(8)][Partition(4)][Topic]
func (s *PartitionMetricSample) ToBytes() ([]byte, error) {
	if !s.closed {
		return nil, ErrSampleNotClosed
	}
	if !utf8.ValidString(s.entity.Topic) {
		return nil, ErrInvalidTopic
	}

	def := metricdef.KafkaMetricDef()
	l := v1Layout
	buf := make([]byte, l.topicOffset+len(s.entity.Topic))

	buf[0] = l.version
	binary.BigEndian.PutUint32(buf[brokerIDOffset:], uint32(s.brokerID))

	offset := metricsOffset
	for _, name := range l.metrics {
		v, ok := s.values[def.MustMetricInfo(name).ID]
		if !ok {
			return nil, &MissingMetricError{Metric: name}
		}
		binary.BigEndian.PutUint64(buf[offset:], math.Float64bits(v))
		offset += 8
	}

	binary.BigEndian.PutUint64(buf[l.sampleTimeOffset:], uint64(s.sampleTime))
	binary.BigEndian.PutUint32(buf[l.partitionOffset:], uint32(s.entity.Partition))
	copy(buf[l.topicOffset:], s.entity.Topic)

	return buf, nil
}

// FromBytes deserializes a sample written by this or any earlier release.
// The returned sample is closed.
func FromBytes(data []byte) (*PartitionMetricSample, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrTruncatedSample)
	}

	version := data[0]
	if version > CurrentVersion {
		return nil, &UnknownVersionError{Version: version, Current: CurrentVersion}
	}

	switch version {
	case VersionV0:
		return readV0(data)
	case VersionV1:
		return readV1(data)
	default:
		panic(fmt.Sprintf("sample: no decoder for in-range version %d", version))
	}
}

func readV0(data []byte) (*PartitionMetricSample, error) {
	return read(data, v0Layout)
}

func readV1(data []byte) (*PartitionMetricSample, error) {
	return read(data, v1Layout)
}

// read decodes data with the fixed offsets of l. Metric values are read
// sequentially after the broker id; the partition is read at its absolute
// offset since the topic bytes are only located relative to it.
func read(data []byte, l layout) (*PartitionMetricSample, error) {
	if len(data) < l.topicOffset {
		return nil, fmt.Errorf("%w: version %d needs at least %d bytes, got %d",
			ErrTruncatedSample, l.version, l.topicOffset, len(data))
	}

	topic := decodeTopic(data[l.topicOffset:])

	brokerID := int32(binary.BigEndian.Uint32(data[brokerIDOffset:]))
	partition := int32(binary.BigEndian.Uint32(data[l.partitionOffset:]))

	s := NewPartitionMetricSample(brokerID, PartitionEntity{Topic: topic, Partition: partition})

	def := metricdef.KafkaMetricDef()
	offset := metricsOffset
	for _, name := range l.metrics {
		s.values[def.MustMetricInfo(name).ID] = math.Float64frombits(binary.BigEndian.Uint64(data[offset:]))
		offset += 8
	}

	s.sampleTime = int64(binary.BigEndian.Uint64(data[l.sampleTimeOffset:]))
	s.closed = true

	return s, nil
}

// decodeTopic returns b as a string, replacing each byte that is not part of
// a valid UTF-8 sequence with U+FFFD.
func decodeTopic(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return string([]rune(string(b)))
}
