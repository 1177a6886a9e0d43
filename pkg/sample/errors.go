package sample

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownVersion matches any *UnknownVersionError via errors.Is
	ErrUnknownVersion = errors.New("unknown metric sample version")
	// ErrTruncatedSample reports a buffer shorter than its version's layout
	ErrTruncatedSample = errors.New("metric sample buffer is truncated")
	// ErrSampleClosed is returned when mutating a closed sample
	ErrSampleClosed = errors.New("metric sample is closed")
	// ErrSampleNotClosed is returned when serializing an open sample
	ErrSampleNotClosed = errors.New("metric sample is not closed")
	// ErrDuplicateMetric is returned when a metric is recorded twice
	ErrDuplicateMetric = errors.New("metric is already recorded")
	// ErrInvalidTopic is returned when encoding a topic that is not valid UTF-8
	ErrInvalidTopic = errors.New("topic is not valid UTF-8")
)

// UnknownVersionError is returned when a buffer was written by a newer
// release than this reader supports.
type UnknownVersionError struct {
	Version byte
	Current byte
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("metric sample version %d is higher than current version %d", e.Version, e.Current)
}

// Is lets errors.Is(err, ErrUnknownVersion) match any version
func (e *UnknownVersionError) Is(target error) bool {
	return target == ErrUnknownVersion
}

// MissingMetricError is returned when encoding a sample that lacks a metric
// required by the current wire version.
type MissingMetricError struct {
	Metric string
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("metric %s has not been recorded", e.Metric)
}
