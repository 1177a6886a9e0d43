package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

// HeaderSize is the size of the frame header: CRC32(4) + PayloadSize(4)
const HeaderSize = 8

var (
	// ErrShortFrame is returned when data ends before the declared frame does
	ErrShortFrame = errors.New("data too short for frame")
	// ErrChecksumMismatch is returned by Validate on corrupted frames
	ErrChecksumMismatch = errors.New("frame CRC32 mismatch")
)

// Frame is a length-prefixed, checksummed payload
type Frame struct {
	CRC32       uint32 // CRC32 over PayloadSize and Payload
	PayloadSize uint32 // Size of the payload in bytes
	Payload     []byte // Payload data
}

// FrameCodec handles serialization and deserialization of frames
type FrameCodec struct{}

// NewFrameCodec creates a new frame codec instance
func NewFrameCodec() *FrameCodec {
	return &FrameCodec{}
}

// Encode wraps a payload in a frame.
// Format: [CRC32(4)][PayloadSize(4)][Payload]
func (c *FrameCodec) Encode(payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload too large for frame: %d bytes", len(payload))
	}

	f := &Frame{PayloadSize: uint32(len(payload)), Payload: payload}
	f.CRC32 = f.checksum()

	buf := make([]byte, f.Size())
	binary.LittleEndian.PutUint32(buf[0:], f.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], f.PayloadSize)
	copy(buf[HeaderSize:], f.Payload)

	return buf, nil
}

// Decode reads one frame from the start of data. The payload aliases data.
func (c *FrameCodec) Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, got %d", ErrShortFrame, HeaderSize, len(data))
	}

	f := DecodeHeader(data)
	if uint64(len(data)) < uint64(HeaderSize)+uint64(f.PayloadSize) {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortFrame, len(data), HeaderSize+uint64(f.PayloadSize))
	}
	f.Payload = data[HeaderSize : HeaderSize+int(f.PayloadSize)]

	return f, nil
}

// DecodeHeader parses the fixed header. header must hold at least HeaderSize bytes.
func DecodeHeader(header []byte) *Frame {
	return &Frame{
		CRC32:       binary.LittleEndian.Uint32(header[0:4]),
		PayloadSize: binary.LittleEndian.Uint32(header[4:8]),
	}
}

// Validate checks the integrity of a frame using CRC32
func (f *Frame) Validate() error {
	if sum := f.checksum(); f.CRC32 != sum {
		return fmt.Errorf("%w: %d != %d", ErrChecksumMismatch, f.CRC32, sum)
	}
	if int(f.PayloadSize) != len(f.Payload) {
		return fmt.Errorf("frame payload size mismatch: header says %d, have %d", f.PayloadSize, len(f.Payload))
	}
	return nil
}

// Size returns the total size of the frame when encoded
func (f *Frame) Size() int {
	return HeaderSize + len(f.Payload)
}

func (f *Frame) checksum() uint32 {
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], f.PayloadSize)

	crc := crc32.NewIEEE()
	crc.Write(size[:])
	crc.Write(f.Payload)
	return crc.Sum32()
}
