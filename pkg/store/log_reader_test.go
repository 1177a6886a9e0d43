package store

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ssargent/samplestore/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFrames writes payloads to a fresh segment file and returns its path
func writeFrames(t *testing.T, payloads ...[]byte) string {
	t.Helper()

	filePath := filepath.Join(t.TempDir(), "test.seg")
	writer, err := NewLogWriter(LogWriterConfig{FilePath: filePath})
	require.NoError(t, err)
	for _, payload := range payloads {
		_, err := writer.Append(payload)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return filePath
}

func TestNewLogReader_NonExistentFile(t *testing.T) {
	reader, err := NewLogReader(LogReaderConfig{
		FilePath: filepath.Join(t.TempDir(), "missing.seg"),
	})
	assert.Error(t, err)
	assert.Nil(t, reader)
}

func TestLogReader_ReadNext(t *testing.T) {
	filePath := writeFrames(t, []byte("one"), []byte("two"), []byte{})

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	frame, err := reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), frame.Payload)
	assert.Equal(t, int64(codec.HeaderSize+3), reader.Offset())

	frame, err = reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), frame.Payload)

	frame, err = reader.ReadNext()
	require.NoError(t, err)
	assert.Empty(t, frame.Payload)

	_, err = reader.ReadNext()
	assert.Equal(t, io.EOF, err)
}

func TestLogReader_StartOffsetAndSeek(t *testing.T) {
	filePath := writeFrames(t, []byte("one"), []byte("two"))
	second := int64(codec.HeaderSize + 3)

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath, StartOffset: second})
	require.NoError(t, err)
	defer reader.Close()

	frame, err := reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), frame.Payload)

	require.NoError(t, reader.Seek(0))
	assert.Equal(t, int64(0), reader.Offset())

	frame, err = reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), frame.Payload)
}

func TestLogReader_Corruption(t *testing.T) {
	testCases := []struct {
		name    string
		corrupt func(data []byte) []byte
	}{
		{
			name: "torn header",
			corrupt: func(data []byte) []byte {
				return append(data, 0x01, 0x02, 0x03)
			},
		},
		{
			name: "torn payload",
			corrupt: func(data []byte) []byte {
				return data[:len(data)-2]
			},
		},
		{
			name: "flipped payload byte",
			corrupt: func(data []byte) []byte {
				data[len(data)-1] ^= 0xFF
				return data
			},
		},
		{
			name: "oversized payload length",
			corrupt: func(data []byte) []byte {
				header := []byte{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0x7F}
				return append(data, header...)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			filePath := writeFrames(t, []byte("good"), []byte("last"))
			data, err := os.ReadFile(filePath)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filePath, tc.corrupt(data), 0600))

			reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
			require.NoError(t, err)
			defer reader.Close()

			frame, err := reader.ReadNext()
			require.NoError(t, err)
			assert.Equal(t, []byte("good"), frame.Payload)
			goodOffset := reader.Offset()

			var lastErr error
			for lastErr == nil {
				_, lastErr = reader.ReadNext()
			}
			assert.ErrorIs(t, lastErr, ErrCorruption)
			assert.GreaterOrEqual(t, reader.Offset(), goodOffset)
		})
	}
}

func TestLogReader_Iterator(t *testing.T) {
	filePath := writeFrames(t, []byte("a"), []byte("b"), []byte("c"))

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	it := reader.Iterator()
	defer it.Close()

	var payloads []string
	for it.Next() {
		payloads = append(payloads, string(it.Frame().Payload))
	}
	assert.NoError(t, it.Err())
	assert.Equal(t, []string{"a", "b", "c"}, payloads)
}

func TestLogReader_IteratorReportsCorruption(t *testing.T) {
	filePath := writeFrames(t, []byte("a"))
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x00, 0x01})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	it := reader.Iterator()
	count := 0
	for it.Next() {
		count++
	}
	assert.Equal(t, 1, count)
	assert.ErrorIs(t, it.Err(), ErrCorruption)
}
