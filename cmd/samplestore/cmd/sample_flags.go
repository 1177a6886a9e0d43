package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/ssargent/samplestore/pkg/metricdef"
	"github.com/ssargent/samplestore/pkg/sample"
)

// sampleOptions describes a sample given on the command line
type sampleOptions struct {
	BrokerID   int32
	Topic      string
	Partition  int32
	SampleTime int64
	Metrics    []string // NAME=VALUE
}

func addSampleFlags(cmd *cobra.Command) {
	cmd.Flags().Int32("broker", 0, "Broker id")
	cmd.Flags().String("topic", "", "Topic name (required)")
	cmd.Flags().Int32("partition", 0, "Partition index")
	cmd.Flags().Int64("time", 0, "Sample time in epoch milliseconds (default: now)")
	cmd.Flags().StringArrayP("metric", "m", nil, "Metric value as NAME=VALUE, repeatable")
	_ = cmd.MarkFlagRequired("topic")
}

func sampleOptionsFromFlags(cmd *cobra.Command) sampleOptions {
	opts := sampleOptions{}
	opts.BrokerID, _ = cmd.Flags().GetInt32("broker")
	opts.Topic, _ = cmd.Flags().GetString("topic")
	opts.Partition, _ = cmd.Flags().GetInt32("partition")
	opts.Metrics, _ = cmd.Flags().GetStringArray("metric")

	if cmd.Flags().Changed("time") {
		opts.SampleTime, _ = cmd.Flags().GetInt64("time")
	} else {
		opts.SampleTime = time.Now().UnixMilli()
	}
	return opts
}

// buildSample records every metric of opts and closes the sample
func buildSample(opts sampleOptions) (*sample.PartitionMetricSample, error) {
	if opts.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	def := metricdef.KafkaMetricDef()
	ms := sample.NewPartitionMetricSample(opts.BrokerID, sample.PartitionEntity{Topic: opts.Topic, Partition: opts.Partition})

	for _, m := range opts.Metrics {
		name, raw, ok := strings.Cut(m, "=")
		if !ok {
			return nil, fmt.Errorf("metric %q must be NAME=VALUE", m)
		}
		info, err := def.MetricInfo(strings.ToUpper(strings.TrimSpace(name)))
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("metric %s: invalid value %q", info.Name, raw)
		}
		if err := ms.Record(info, value); err != nil {
			return nil, err
		}
	}

	if err := ms.Close(opts.SampleTime); err != nil {
		return nil, err
	}
	return ms, nil
}
