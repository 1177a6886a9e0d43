// Package storage provides a pebble-backed index of metric samples ordered
// by partition and sample time.
package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/pebble"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/ssargent/samplestore/pkg/sample"
)

var log = logger.GetOrCreate("storage")

// ErrInvalidTopic is returned for topics that cannot be used in index keys
var ErrInvalidTopic = errors.New("topic must not be empty or contain NUL bytes")

// SampleIndex stores encoded samples keyed by
// [Topic][0x00][Partition(4)][SampleTime(8)][BrokerID(4)] so that the
// samples of a partition are contiguous and ordered by time.
type SampleIndex struct {
	db *pebble.DB
}

// NewSampleIndex opens or creates an index at path
func NewSampleIndex(path string) (*SampleIndex, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sample index: %w", err)
	}
	return &SampleIndex{db: db}, nil
}

// Put indexes a closed sample. A sample with the same partition, time and
// broker replaces the previous one.
func (idx *SampleIndex) Put(s *sample.PartitionMetricSample) error {
	value, err := s.ToBytes()
	if err != nil {
		return err
	}

	key, err := sampleKey(s.Entity(), s.SampleTime(), s.BrokerID())
	if err != nil {
		return err
	}

	return idx.db.Set(key, value, pebble.NoSync)
}

// Range returns the samples of entity with from <= sample time < to, in time
// order. Entries that cannot be decoded are skipped.
func (idx *SampleIndex) Range(ctx context.Context, entity sample.PartitionEntity, from, to int64) ([]*sample.PartitionMetricSample, error) {
	lower, err := timeBound(entity, from)
	if err != nil {
		return nil, err
	}
	upper, err := timeBound(entity, to)
	if err != nil {
		return nil, err
	}

	iter, err := idx.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var samples []*sample.PartitionMetricSample
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s, err := sample.FromBytes(iter.Value())
		if err != nil {
			log.Warn("skipping undecodable indexed sample", "partition", entity.String(), "error", err)
			continue
		}
		samples = append(samples, s)
	}

	return samples, iter.Error()
}

// Latest returns the most recent sample of entity, or nil when there is none
func (idx *SampleIndex) Latest(entity sample.PartitionEntity) (*sample.PartitionMetricSample, error) {
	lower, err := timeBound(entity, math.MinInt64)
	if err != nil {
		return nil, err
	}
	upper, err := partitionUpperBound(entity)
	if err != nil {
		return nil, err
	}

	iter, err := idx.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for valid := iter.Last(); valid; valid = iter.Prev() {
		s, err := sample.FromBytes(iter.Value())
		if err != nil {
			log.Warn("skipping undecodable indexed sample", "partition", entity.String(), "error", err)
			continue
		}
		return s, nil
	}

	return nil, iter.Error()
}

// DeleteBefore removes the samples of entity older than before
func (idx *SampleIndex) DeleteBefore(entity sample.PartitionEntity, before int64) error {
	lower, err := timeBound(entity, math.MinInt64)
	if err != nil {
		return err
	}
	upper, err := timeBound(entity, before)
	if err != nil {
		return err
	}
	return idx.db.DeleteRange(lower, upper, pebble.NoSync)
}

// DeleteOlderThan removes every indexed sample older than cutoff and returns
// the number of partitions that were trimmed.
func (idx *SampleIndex) DeleteOlderThan(cutoff int64) (int, error) {
	iter, err := idx.db.NewIter(nil)
	if err != nil {
		return 0, err
	}

	var entities []sample.PartitionEntity
	for valid := iter.First(); valid; {
		entity, ok := entityFromKey(iter.Key())
		if !ok {
			valid = iter.Next()
			continue
		}
		entities = append(entities, entity)

		next, err := partitionUpperBound(entity)
		if err != nil {
			_ = iter.Close()
			return 0, err
		}
		valid = iter.SeekGE(next)
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return 0, err
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	for _, entity := range entities {
		if err := idx.DeleteBefore(entity, cutoff); err != nil {
			return 0, fmt.Errorf("failed to trim %s: %w", entity, err)
		}
	}
	return len(entities), nil
}

// Close flushes and closes the index
func (idx *SampleIndex) Close() error {
	if err := idx.db.Flush(); err != nil {
		_ = idx.db.Close()
		return err
	}
	return idx.db.Close()
}

func partitionPrefix(entity sample.PartitionEntity) ([]byte, error) {
	if entity.Topic == "" || strings.IndexByte(entity.Topic, 0) >= 0 {
		return nil, ErrInvalidTopic
	}

	prefix := make([]byte, 0, len(entity.Topic)+5)
	prefix = append(prefix, entity.Topic...)
	prefix = append(prefix, 0)
	prefix = binary.BigEndian.AppendUint32(prefix, orderedUint32(entity.Partition))
	return prefix, nil
}

// entityFromKey parses the topic and partition at the start of an index key
func entityFromKey(key []byte) (sample.PartitionEntity, bool) {
	sep := bytes.IndexByte(key, 0)
	if sep <= 0 || len(key) < sep+5 {
		return sample.PartitionEntity{}, false
	}
	partition := int32(binary.BigEndian.Uint32(key[sep+1:]) ^ (1 << 31))
	return sample.PartitionEntity{Topic: string(key[:sep]), Partition: partition}, true
}

func timeBound(entity sample.PartitionEntity, sampleTime int64) ([]byte, error) {
	prefix, err := partitionPrefix(entity)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(prefix, orderedUint64(sampleTime)), nil
}

// partitionUpperBound is the smallest key greater than every key of entity
func partitionUpperBound(entity sample.PartitionEntity) ([]byte, error) {
	if _, err := partitionPrefix(entity); err != nil {
		return nil, err
	}

	bound := append([]byte(entity.Topic), 0)
	p := orderedUint32(entity.Partition)
	if p == math.MaxUint32 {
		return append([]byte(entity.Topic), 1), nil
	}
	return binary.BigEndian.AppendUint32(bound, p+1), nil
}

func sampleKey(entity sample.PartitionEntity, sampleTime int64, brokerID int32) ([]byte, error) {
	key, err := timeBound(entity, sampleTime)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint32(key, orderedUint32(brokerID)), nil
}

// orderedUint32 flips the sign bit so that signed values sort correctly as bytes
func orderedUint32(v int32) uint32 {
	return uint32(v) ^ (1 << 31)
}

func orderedUint64(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}
