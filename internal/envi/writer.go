package envi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"pepper-predict/internal/hsi"
)

// Save writes cube as little-endian float32 data in the given interleave,
// with a matching header at hdrPath.
func Save(imgPath, hdrPath string, cube *hsi.Cube, interleave Interleave) error {
	switch interleave {
	case BSQ, BIL, BIP:
	default:
		return fmt.Errorf("unsupported interleave %q", interleave)
	}

	h := &Header{
		Samples:    cube.Samples,
		Lines:      cube.Lines,
		Bands:      cube.Bands,
		DataType:   TypeFloat32,
		Interleave: interleave,
	}

	if err := writeHeader(hdrPath, h); err != nil {
		return err
	}

	f, err := os.Create(imgPath)
	if err != nil {
		return fmt.Errorf("create image data: %w", err)
	}
	w := bufio.NewWriter(f)

	n := cube.Lines * cube.Samples * cube.Bands
	var buf [4]byte
	for i := 0; i < n; i++ {
		line, sample, band := position(h, i)
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(cube.At(line, sample, band))))
		if _, err := w.Write(buf[:]); err != nil {
			f.Close()
			return fmt.Errorf("write image data: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush image data: %w", err)
	}
	return f.Close()
}

func writeHeader(path string, h *Header) error {
	content := fmt.Sprintf(`ENVI
description = {pepper-predict export}
samples = %d
lines = %d
bands = %d
header offset = 0
file type = ENVI Standard
data type = %d
interleave = %s
byte order = 0
`, h.Samples, h.Lines, h.Bands, h.DataType, h.Interleave)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}
