package sample_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/ssargent/samplestore/pkg/metricdef"
	"github.com/ssargent/samplestore/pkg/sample"
)

// ExamplePartitionMetricSample_ToBytes demonstrates recording, encoding and decoding a sample
func ExamplePartitionMetricSample_ToBytes() {
	def := metricdef.KafkaMetricDef()

	s := sample.NewPartitionMetricSample(3, sample.PartitionEntity{Topic: "orders", Partition: 2})
	values := []float64{0.42, 0.10, 1000.5, 500.25, 10.0, 20.0, 30.0, 5.0, 6.0}
	for i, name := range sample.CurrentMetrics() {
		if err := s.Record(def.MustMetricInfo(name), values[i]); err != nil {
			log.Fatal(err)
		}
	}
	if err := s.Close(1_600_000_000_000); err != nil {
		log.Fatal(err)
	}

	encoded, err := s.ToBytes()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Encoded %d bytes\n", len(encoded))

	decoded, err := sample.FromBytes(encoded)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(decoded)

	// Output:
	// Encoded 95 bytes
	// [brokerId: 3, Partition: orders-2, time: 2020-09-13T12:26:40.000Z, metrics: {CPU_USAGE=0.42, DISK_USAGE=0.1, LEADER_BYTES_IN=1000.5, LEADER_BYTES_OUT=500.25, PRODUCE_RATE=10, FETCH_RATE=20, MESSAGE_IN_RATE=30, REPLICATION_BYTES_IN_RATE=5, REPLICATION_BYTES_OUT_RATE=6}]
}

// ExampleFromBytes_unknownVersion demonstrates skipping samples written by a newer release
func ExampleFromBytes_unknownVersion() {
	data := []byte{2, 0, 0, 0, 1}

	_, err := sample.FromBytes(data)

	var unknown *sample.UnknownVersionError
	if errors.As(err, &unknown) {
		fmt.Printf("Skipping sample: %v\n", err)
	}

	// Output:
	// Skipping sample: metric sample version 2 is higher than current version 1
}

// ExampleFromBytes_truncated demonstrates error handling for short buffers
func ExampleFromBytes_truncated() {
	_, err := sample.FromBytes([]byte{1, 0, 0})
	if errors.Is(err, sample.ErrTruncatedSample) {
		fmt.Printf("Decode error: %v\n", err)
	}

	// Output:
	// Decode error: metric sample buffer is truncated: version 1 needs at least 89 bytes, got 3
}
