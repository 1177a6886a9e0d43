package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/ssargent/samplestore/pkg/sample"
)

var log = logger.GetOrCreate("store")

// SampleStore persists encoded metric samples in append-only segment files
// and replays them on demand
type SampleStore struct {
	config   SampleStoreConfig
	dir      string
	segments []segment
	writer   *LogWriter
	lock     io.Closer
	mutex    sync.Mutex
	isOpen   bool
	appended int64
}

// NewSampleStore creates a new sample store instance
func NewSampleStore(config SampleStoreConfig) (*SampleStore, error) {
	if config.DataDir == "" {
		return nil, &StoreError{"data directory is required"}
	}
	if config.SegmentBytes < 0 || config.Retention < 0 || config.FsyncInterval < 0 {
		return nil, &StoreError{"store sizes and durations must not be negative"}
	}

	dir := filepath.Join(config.DataDir, "samples")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	return &SampleStore{
		config: config,
		dir:    dir,
	}, nil
}

// Open locks the store directory, validates the active segment, truncating a
// torn tail left by a crash, and prepares it for appends. Only one open store
// may use a directory at a time; a second Open fails with ErrStoreLocked.
func (s *SampleStore) Open() (*RecoveryResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isOpen {
		return &RecoveryResult{Segments: len(s.segments)}, nil
	}

	lockPath, err := filepath.Abs(filepath.Join(s.dir, lockFileName))
	if err != nil {
		return nil, err
	}
	lock, err := vfs.Default.Lock(lockPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreLocked, s.dir, err)
	}

	result, err := s.open()
	if err != nil {
		_ = lock.Close()
		return nil, err
	}
	s.lock = lock
	return result, nil
}

func (s *SampleStore) open() (*RecoveryResult, error) {
	segments, err := listSegments(s.dir)
	if err != nil {
		return nil, err
	}

	result := &RecoveryResult{}
	if len(segments) == 0 {
		segments = append(segments, newSegment(s.dir, nil))
	} else {
		result, err = validateSegment(segments[len(segments)-1].path)
		if err != nil {
			return nil, err
		}
		if result.BytesTruncated > 0 {
			log.Warn("truncated torn frames from active segment",
				"segment", segments[len(segments)-1].name(),
				"bytes", result.BytesTruncated)
		}
	}
	result.Segments = len(segments)

	writer, err := s.newWriter(segments[len(segments)-1])
	if err != nil {
		return nil, err
	}

	s.segments = segments
	s.writer = writer
	s.isOpen = true

	log.Debug("sample store opened", "dir", s.dir, "segments", len(segments))
	return result, nil
}

func (s *SampleStore) newWriter(seg segment) (*LogWriter, error) {
	return NewLogWriter(LogWriterConfig{
		FilePath:      seg.path,
		FsyncInterval: s.config.FsyncInterval,
		BufferSize:    64 * 1024,
	})
}

// Append encodes and stores closed samples. Every sample is encoded before
// anything is written, so a sample that cannot be encoded leaves the store
// untouched.
func (s *SampleStore) Append(samples ...*sample.PartitionMetricSample) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}

	payloads := make([][]byte, 0, len(samples))
	for _, ms := range samples {
		payload, err := ms.ToBytes()
		if err != nil {
			return fmt.Errorf("failed to encode sample for %s: %w", ms.Entity(), err)
		}
		payloads = append(payloads, payload)
	}

	return s.AppendEncoded(payloads...)
}

// AppendEncoded stores already encoded sample payloads without decoding them.
// It is used to keep samples produced by newer releases intact.
func (s *SampleStore) AppendEncoded(payloads ...[]byte) error {
	if len(payloads) == 0 {
		return ErrNoSamples
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ErrStoreClosed
	}

	for _, payload := range payloads {
		if len(payload) == 0 {
			return fmt.Errorf("%w: empty payload", sample.ErrTruncatedSample)
		}
		if _, err := s.writer.Append(payload); err != nil {
			return err
		}
		s.appended++

		if s.config.SegmentBytes > 0 && s.writer.Size() >= s.config.SegmentBytes {
			if err := s.roll(); err != nil {
				return err
			}
		}
	}

	return nil
}

// roll closes the active segment and starts a new one. Caller holds the mutex.
func (s *SampleStore) roll() error {
	if err := s.writer.Close(); err != nil {
		return err
	}

	last := s.segments[len(s.segments)-1]
	next := newSegment(s.dir, &last)
	writer, err := s.newWriter(next)
	if err != nil {
		return err
	}

	s.segments = append(s.segments, next)
	s.writer = writer

	log.Debug("rolled segment", "closed", last.name(), "active", next.name())
	return nil
}

// Load replays every stored sample, oldest segment first, calling fn for each
// decodable sample. Samples written by a newer release and samples that fail
// to decode are counted and skipped. An error from fn stops the replay and is
// returned.
func (s *SampleStore) Load(ctx context.Context, fn func(*sample.PartitionMetricSample) error) (*LoadResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil, ErrStoreClosed
	}

	if err := s.writer.Sync(); err != nil {
		return nil, err
	}

	result := &LoadResult{Segments: len(s.segments)}
	for _, seg := range s.segments {
		if err := s.loadSegment(ctx, seg, result, fn); err != nil {
			return result, err
		}
	}

	if result.UnknownVersion > 0 || result.CorruptSamples > 0 {
		log.Warn("skipped undecodable samples during load",
			"unknown version", result.UnknownVersion,
			"corrupt", result.CorruptSamples)
	}

	return result, nil
}

func (s *SampleStore) loadSegment(ctx context.Context, seg segment, result *LoadResult, fn func(*sample.PartitionMetricSample) error) error {
	reader, err := NewLogReader(LogReaderConfig{FilePath: seg.path})
	if err != nil {
		return err
	}
	defer reader.Close()

	it := reader.Iterator()
	defer it.Close()

	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		ms, err := sample.FromBytes(it.Frame().Payload)
		if err != nil {
			var unknown *sample.UnknownVersionError
			if errors.As(err, &unknown) {
				result.UnknownVersion++
				log.Debug("skipping sample from newer release", "segment", seg.name(), "version", unknown.Version)
				continue
			}
			result.CorruptSamples++
			log.Debug("skipping corrupt sample", "segment", seg.name(), "error", err)
			continue
		}

		if err := fn(ms); err != nil {
			return err
		}
		result.SamplesLoaded++
	}

	if err := it.Err(); err != nil {
		if !errors.Is(err, ErrCorruption) {
			return err
		}
		result.CorruptFrames++
		log.Warn("stopped reading corrupt segment", "segment", seg.name(), "offset", reader.Offset())
	}

	return nil
}

// EnforceRetention deletes inactive segments that stopped receiving samples
// more than the configured retention before now. It returns the number of
// segments removed.
func (s *SampleStore) EnforceRetention(now time.Time) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return 0, ErrStoreClosed
	}
	if s.config.Retention <= 0 {
		return 0, nil
	}

	// A segment stopped receiving samples when its successor was created
	removed := 0
	for len(s.segments) > 1 && now.Sub(s.segments[1].createdAt()) > s.config.Retention {
		expired := s.segments[0]
		if err := os.Remove(expired.path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove segment %s: %w", expired.name(), err)
		}
		s.segments = s.segments[1:]
		removed++
		log.Debug("removed expired segment", "segment", expired.name())
	}

	return removed, nil
}

// Sync flushes the active segment to disk
func (s *SampleStore) Sync() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return ErrStoreClosed
	}
	return s.writer.Sync()
}

// Stats returns store statistics
func (s *SampleStore) Stats() *StoreStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return &StoreStats{}
	}

	return &StoreStats{
		Segments:        len(s.segments),
		ActiveSegment:   s.segments[len(s.segments)-1].name(),
		ActiveSize:      s.writer.Size(),
		SamplesAppended: s.appended,
	}
}

// Close shuts down the store
func (s *SampleStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil
	}
	s.isOpen = false

	err := s.writer.Close()
	if lockErr := s.lock.Close(); err == nil {
		err = lockErr
	}
	s.lock = nil
	return err
}

// validateSegment reads a segment until the first bad frame and truncates
// the file there
func validateSegment(path string) (*RecoveryResult, error) {
	startTime := time.Now()

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	fileSizeBefore := fileInfo.Size()

	reader, err := NewLogReader(LogReaderConfig{FilePath: path})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var framesValidated int64
	var corruptionFound bool
	for {
		if _, err := reader.ReadNext(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if !errors.Is(err, ErrCorruption) {
				return nil, err
			}
			corruptionFound = true
			break
		}
		framesValidated++
	}

	lastValidOffset := reader.Offset()
	if corruptionFound {
		if err := os.Truncate(path, lastValidOffset); err != nil {
			return nil, err
		}
	}

	return &RecoveryResult{
		FramesValidated: framesValidated,
		BytesTruncated:  fileSizeBefore - lastValidOffset,
		FileSizeBefore:  fileSizeBefore,
		FileSizeAfter:   lastValidOffset,
		RecoveryTime:    time.Since(startTime),
	}, nil
}
