// Package metricdef maps named partition metrics to the small integer ids
// used as in-memory keys by metric samples.
package metricdef

import (
	"fmt"
	"sort"
	"sync"
)

// ValueComputingStrategy describes how sample values of a metric are folded
// into a window value by downstream aggregation.
type ValueComputingStrategy string

const (
	StrategyAvg    ValueComputingStrategy = "AVG"
	StrategyMax    ValueComputingStrategy = "MAX"
	StrategyLatest ValueComputingStrategy = "LATEST"
)

// Names of the partition metrics carried by a metric sample.
const (
	CPUUsage                = "CPU_USAGE"
	DiskUsage               = "DISK_USAGE"
	LeaderBytesIn           = "LEADER_BYTES_IN"
	LeaderBytesOut          = "LEADER_BYTES_OUT"
	ProduceRate             = "PRODUCE_RATE"
	FetchRate               = "FETCH_RATE"
	MessageInRate           = "MESSAGE_IN_RATE"
	ReplicationBytesInRate  = "REPLICATION_BYTES_IN_RATE"
	ReplicationBytesOutRate = "REPLICATION_BYTES_OUT_RATE"
)

// MetricInfo describes a single registered metric
type MetricInfo struct {
	ID       int
	Name     string
	Strategy ValueComputingStrategy
	Group    string
}

// Def is a registry of metric definitions. Ids are assigned in definition
// order starting from zero.
type Def struct {
	byName map[string]MetricInfo
	byID   []MetricInfo
	frozen bool
}

// NewDef creates an empty definition registry
func NewDef() *Def {
	return &Def{byName: make(map[string]MetricInfo)}
}

// Define registers a metric and returns its assigned info
func (d *Def) Define(name string, strategy ValueComputingStrategy, group string) (MetricInfo, error) {
	if d.frozen {
		return MetricInfo{}, fmt.Errorf("metric definition is frozen, cannot define %s", name)
	}
	if name == "" {
		return MetricInfo{}, fmt.Errorf("metric name is required")
	}
	if _, exists := d.byName[name]; exists {
		return MetricInfo{}, fmt.Errorf("metric %s is already defined", name)
	}

	info := MetricInfo{
		ID:       len(d.byID),
		Name:     name,
		Strategy: strategy,
		Group:    group,
	}
	d.byName[name] = info
	d.byID = append(d.byID, info)
	return info, nil
}

// Freeze prevents further definitions. A frozen Def is safe for concurrent reads.
func (d *Def) Freeze() {
	d.frozen = true
}

// MetricInfo returns the info of the metric with the given name
func (d *Def) MetricInfo(name string) (MetricInfo, error) {
	info, ok := d.byName[name]
	if !ok {
		return MetricInfo{}, fmt.Errorf("metric %s is not defined", name)
	}
	return info, nil
}

// MetricInfoByID returns the info of the metric with the given id
func (d *Def) MetricInfoByID(id int) (MetricInfo, error) {
	if id < 0 || id >= len(d.byID) {
		return MetricInfo{}, fmt.Errorf("metric id %d is not defined", id)
	}
	return d.byID[id], nil
}

// MustMetricInfo is like MetricInfo but panics on unknown names. It is meant
// for compile-time constant names only.
func (d *Def) MustMetricInfo(name string) MetricInfo {
	info, err := d.MetricInfo(name)
	if err != nil {
		panic(err)
	}
	return info
}

// All returns every metric ordered by id
func (d *Def) All() []MetricInfo {
	all := make([]MetricInfo, len(d.byID))
	copy(all, d.byID)
	return all
}

// Names returns every metric name sorted alphabetically
func (d *Def) Names() []string {
	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the number of defined metrics
func (d *Def) Size() int {
	return len(d.byID)
}

var (
	kafkaDef     *Def
	kafkaDefOnce sync.Once
)

// KafkaMetricDef returns the shared definition of partition metrics. Ids
// follow the order in which the metrics appear on the wire.
func KafkaMetricDef() *Def {
	kafkaDefOnce.Do(func() {
		d := NewDef()
		for _, m := range []struct {
			name     string
			strategy ValueComputingStrategy
			group    string
		}{
			{CPUUsage, StrategyAvg, "CPU"},
			{DiskUsage, StrategyLatest, "DISK"},
			{LeaderBytesIn, StrategyAvg, "NW_IN"},
			{LeaderBytesOut, StrategyAvg, "NW_OUT"},
			{ProduceRate, StrategyAvg, ""},
			{FetchRate, StrategyAvg, ""},
			{MessageInRate, StrategyAvg, ""},
			{ReplicationBytesInRate, StrategyAvg, "NW_IN"},
			{ReplicationBytesOutRate, StrategyAvg, "NW_OUT"},
		} {
			if _, err := d.Define(m.name, m.strategy, m.group); err != nil {
				panic(err)
			}
		}
		d.Freeze()
		kafkaDef = d
	})
	return kafkaDef
}
