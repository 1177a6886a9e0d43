package store

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/ssargent/samplestore/pkg/codec"
)

// LogReader provides sequential access to frames in a segment file
type LogReader struct {
	file   *os.File
	reader *bufio.Reader
	codec  *codec.FrameCodec
	offset int64
	config LogReaderConfig
}

// NewLogReader creates a new log reader for the specified file
func NewLogReader(config LogReaderConfig) (*LogReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return &LogReader{
		file:   file,
		reader: bufio.NewReader(file),
		codec:  codec.NewFrameCodec(),
		offset: config.StartOffset,
		config: config,
	}, nil
}

// ReadNext reads the next frame. It returns io.EOF at a clean end of file and
// ErrCorruption for a torn or checksum-failing frame.
func (r *LogReader) ReadNext() (*codec.Frame, error) {
	header := make([]byte, codec.HeaderSize)
	n, err := io.ReadFull(r.reader, header)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrCorruption
		}
		return nil, err
	}

	frame := codec.DecodeHeader(header)
	if frame.PayloadSize > MaxFramePayload {
		return nil, ErrCorruption
	}

	payload := make([]byte, frame.PayloadSize)
	m, err := io.ReadFull(r.reader, payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrCorruption
		}
		return nil, err
	}
	frame.Payload = payload

	if err := frame.Validate(); err != nil {
		return nil, ErrCorruption
	}

	r.offset += int64(n + m)
	return frame, nil
}

// Seek sets the read offset
func (r *LogReader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	r.reader = bufio.NewReader(r.file)
	r.offset = offset
	return nil
}

// Offset returns the offset just past the last frame read successfully
func (r *LogReader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator for frames
func (r *LogReader) Iterator() FrameIterator {
	return &logFrameIterator{reader: r}
}

// Close closes the log reader
func (r *LogReader) Close() error {
	return r.file.Close()
}

// logFrameIterator implements FrameIterator for streaming access
type logFrameIterator struct {
	reader *LogReader
	frame  *codec.Frame
	err    error
}

func (it *logFrameIterator) Next() bool {
	it.frame, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *logFrameIterator) Frame() *codec.Frame {
	return it.frame
}

// Err returns the error that stopped iteration, or nil at a clean end of file
func (it *logFrameIterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}

func (it *logFrameIterator) Close() error {
	// The underlying reader is owned by the caller
	return nil
}
