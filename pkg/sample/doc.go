// Package sample provides the partition metric sample and its binary codec.
//
// A PartitionMetricSample is a point-in-time observation of the resource and
// throughput metrics of one partition as seen on one broker. Samples are
// serialized to a fixed positional byte layout so that they stay compact and
// remain readable by every later release.
//
// # Sample Lifecycle
//
// A sample starts open: metric values are recorded one at a time. Setting the
// sample time closes it, after which no further values may be recorded and
// the sample can be serialized and shared between goroutines:
//
//	def := metricdef.KafkaMetricDef()
//	s := sample.NewPartitionMetricSample(3, sample.PartitionEntity{Topic: "orders", Partition: 2})
//	_ = s.Record(def.MustMetricInfo(metricdef.CPUUsage), 0.42)
//	// ... record the remaining metrics
//	_ = s.Close(1600000000000)
//
// # Wire Format
//
// All multi-byte fields are big-endian. The first byte selects the layout.
//
// Version 1 (current):
//
//	[Version(1)][BrokerID(4)][CPU(8)][Disk(8)][LeaderBytesIn(8)][LeaderBytesOut(8)]
//	[ProduceRate(8)][FetchRate(8)][MessageInRate(8)][ReplBytesIn(8)][ReplBytesOut(8)]
//	[SampleTime(8)][Partition(4)][Topic(N)]
//
// Version 0 (legacy, decode only):
//
//	[Version(1)][BrokerID(4)][CPU(8)][Disk(8)][LeaderBytesIn(8)][LeaderBytesOut(8)]
//	[SampleTime(8)][Partition(4)][Topic(N)]
//
// The topic occupies the rest of the buffer as UTF-8 with no length prefix,
// so a version 1 payload is 89+N bytes and a version 0 payload is 49+N bytes.
// Metric ids never appear on the wire; values are identified by position.
//
// # Error Handling
//
// FromBytes returns an *UnknownVersionError when the version byte is newer
// than this reader understands. Callers replaying historical data are
// expected to skip such samples rather than abort. Buffers that are shorter
// than their version's fixed layout fail with ErrTruncatedSample. Topic bytes
// that are not valid UTF-8 decode with U+FFFD in place of each bad byte. Encoding a
// sample that is still open or is missing any of the nine current metrics
// fails instead of writing zeros.
//
// # Thread Safety
//
// Encoding and decoding are stateless. An open sample must only be used by
// the goroutine recording into it; a closed sample is never mutated again.
package sample
