// Package snapshot persists rendered simulation frames. The format is a
// msgpack-encoded core.Frame compressed with zstd.
package snapshot

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/signalsfoundry/globe-simulator/core"
)

// Write encodes frame to w.
func Write(w io.Writer, frame core.Frame) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("snapshot: zstd writer: %w", err)
	}
	defer zw.Close()

	if err := msgpack.NewEncoder(zw).Encode(&frame); err != nil {
		return fmt.Errorf("snapshot: encode frame: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("snapshot: close zstd writer: %w", err)
	}
	return nil
}

// Read decodes a frame written by Write.
func Read(r io.Reader) (core.Frame, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return core.Frame{}, fmt.Errorf("snapshot: zstd reader: %w", err)
	}
	defer zr.Close()

	var frame core.Frame
	if err := msgpack.NewDecoder(zr).Decode(&frame); err != nil {
		return core.Frame{}, fmt.Errorf("snapshot: decode frame: %w", err)
	}
	return frame, nil
}

// Save writes frame to path, replacing any existing file.
func Save(path string, frame core.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := Write(f, frame); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads the frame stored at path.
func Load(path string) (core.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Frame{}, fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()
	return Read(f)
}
