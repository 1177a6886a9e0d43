package store

import (
	"time"

	"github.com/ssargent/samplestore/pkg/codec"
)

// MaxFramePayload bounds the payload of a single frame. Larger sizes read
// from disk are treated as corruption.
const MaxFramePayload = 1 << 20

// LogWriterConfig holds configuration for the log writer
type LogWriterConfig struct {
	FilePath      string        // Path to the segment file
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
}

// LogReaderConfig holds configuration for the log reader
type LogReaderConfig struct {
	FilePath    string // Path to the segment file
	StartOffset int64  // Offset to start reading from
}

// SampleStoreConfig holds configuration for the sample store
type SampleStoreConfig struct {
	DataDir       string        // Directory holding the segment files
	SegmentBytes  int64         // Roll to a new segment once the active one reaches this size (0 = never)
	FsyncInterval time.Duration // Fsync interval for durability
	Retention     time.Duration // Age after which inactive segments are deleted (0 = keep forever)
}

// FrameIterator provides streaming access to frames
type FrameIterator interface {
	Next() bool
	Frame() *codec.Frame
	Err() error
	Close() error
}

// RecoveryResult describes what Open found in the active segment
type RecoveryResult struct {
	Segments        int
	FramesValidated int64
	BytesTruncated  int64
	FileSizeBefore  int64
	FileSizeAfter   int64
	RecoveryTime    time.Duration
}

// LoadResult summarizes a replay of the store
type LoadResult struct {
	SamplesLoaded  int64
	UnknownVersion int64 // samples written by a newer release, skipped
	CorruptSamples int64 // frames with a valid checksum but an undecodable sample, skipped
	CorruptFrames  int64 // segments whose tail could not be read
	Segments       int
}

// StoreStats holds statistics about the store
type StoreStats struct {
	Segments        int    `json:"segments"`
	ActiveSegment   string `json:"active_segment"`
	ActiveSize      int64  `json:"active_size"`
	SamplesAppended int64  `json:"samples_appended"`
}

// Errors
var (
	ErrCorruption      = &StoreError{"data corruption detected"}
	ErrStoreClosed     = &StoreError{"store is not open"}
	ErrNoSamples       = &StoreError{"no samples to append"}
	ErrPayloadTooLarge = &StoreError{"payload exceeds maximum frame size"}
	ErrStoreLocked     = &StoreError{"sample store is in use by another process"}
)

// StoreError represents a sample store error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
