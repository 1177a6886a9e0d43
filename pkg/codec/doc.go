// Package codec provides the CRC32 frame format used to store encoded metric
// samples in append-only log segments.
//
// # Frame Format
//
// Each frame is serialized with the following structure:
//
//	[CRC32(4)][PayloadSize(4)][Payload]
//
// Fields:
//   - CRC32: IEEE checksum over PayloadSize and Payload (little-endian)
//   - PayloadSize: 32-bit unsigned payload length in bytes (little-endian)
//   - Payload: opaque bytes, in practice an encoded metric sample
//
// The total frame size is: 8 bytes (header) + len(payload)
//
// The frame layer knows nothing about sample versions. A frame with a valid
// checksum may still hold a sample that the reader cannot decode, and the
// log replay decides what to do with it.
//
// # Usage
//
//	fc := codec.NewFrameCodec()
//
//	encoded, err := fc.Encode(payload)
//	if err != nil {
//	    return err
//	}
//
//	frame, err := fc.Decode(encoded)
//	if err != nil {
//	    return err
//	}
//
//	if err := frame.Validate(); err != nil {
//	    return err // Frame is corrupted
//	}
//
// # Thread Safety
//
// FrameCodec instances are safe for concurrent use.
package codec
