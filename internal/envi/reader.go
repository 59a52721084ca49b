package envi

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"pepper-predict/internal/hsi"
)

// ENVI data type codes
const (
	TypeUint8   = 1
	TypeInt16   = 2
	TypeInt32   = 3
	TypeFloat32 = 4
	TypeFloat64 = 5
	TypeUint16  = 12
	TypeUint32  = 13
	TypeInt64   = 14
	TypeUint64  = 15
)

func bytesPerValue(dataType int) (int, error) {
	switch dataType {
	case TypeUint8:
		return 1, nil
	case TypeInt16, TypeUint16:
		return 2, nil
	case TypeInt32, TypeUint32, TypeFloat32:
		return 4, nil
	case TypeInt64, TypeUint64, TypeFloat64:
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported data type %d", dataType)
	}
}

// Open reads the header at hdrPath and decodes the data file at imgPath
// into a cube. Values are divided by the reflectance scale factor when the
// header declares one.
func Open(imgPath, hdrPath string) (*hsi.Cube, *Header, error) {
	h, err := ReadHeader(hdrPath)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(imgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open image data: %w", err)
	}
	defer f.Close()

	need, err := DataSize(h)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat image data: %w", err)
	}
	if info.Size() < h.HeaderOffset+need {
		return nil, nil, fmt.Errorf("data file too short for %dx%dx%d cube: %d bytes, expected %d",
			h.Lines, h.Samples, h.Bands, info.Size(), h.HeaderOffset+need)
	}

	cube, err := Decode(f, h)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", imgPath, err)
	}
	return cube, h, nil
}

// DataSize is the number of bytes of cube data h describes, excluding the
// header offset.
func DataSize(h *Header) (int64, error) {
	size, err := bytesPerValue(h.DataType)
	if err != nil {
		return 0, err
	}
	if h.Lines <= 0 || h.Samples <= 0 || h.Bands <= 0 {
		return 0, fmt.Errorf("invalid dimensions %dx%dx%d", h.Lines, h.Samples, h.Bands)
	}
	total := int64(size)
	for _, d := range []int{h.Lines, h.Samples, h.Bands} {
		if total > math.MaxInt64/int64(d) {
			return 0, fmt.Errorf("cube %dx%dx%d is too large", h.Lines, h.Samples, h.Bands)
		}
		total *= int64(d)
	}
	if total > int64(math.MaxInt) {
		return 0, fmt.Errorf("cube %dx%dx%d is too large", h.Lines, h.Samples, h.Bands)
	}
	return total, nil
}

// Decode reads the raw cube described by h from r. The buffer grows with the
// data actually read, so a short reader fails before the full cube is
// allocated.
func Decode(r io.Reader, h *Header) (*hsi.Cube, error) {
	size, err := bytesPerValue(h.DataType)
	if err != nil {
		return nil, err
	}
	need, err := DataSize(h)
	if err != nil {
		return nil, err
	}

	if h.HeaderOffset > 0 {
		if _, err := io.CopyN(io.Discard, r, h.HeaderOffset); err != nil {
			return nil, fmt.Errorf("skip header offset: %w", err)
		}
	}

	raw, err := io.ReadAll(io.LimitReader(r, need))
	if err != nil {
		return nil, fmt.Errorf("read image data: %w", err)
	}
	if int64(len(raw)) < need {
		return nil, fmt.Errorf("data file too short for %dx%dx%d cube: %d bytes, expected %d",
			h.Lines, h.Samples, h.Bands, len(raw), need)
	}
	n := int(need) / size

	var order binary.ByteOrder = binary.LittleEndian
	if h.ByteOrder == 1 {
		order = binary.BigEndian
	}

	cube, err := hsi.NewCube(h.Lines, h.Samples, h.Bands)
	if err != nil {
		return nil, err
	}

	scale := 1.0
	if h.ScaleFactor != 0 && h.ScaleFactor != 1 {
		scale = 1 / h.ScaleFactor
	}

	for i := 0; i < n; i++ {
		line, sample, band := position(h, i)
		v := decodeValue(raw[i*size:(i+1)*size], h.DataType, order)
		cube.Set(line, sample, band, v*scale)
	}

	return cube, nil
}

// position maps the i-th value in file order to cube coordinates.
func position(h *Header, i int) (line, sample, band int) {
	switch h.Interleave {
	case BIP:
		band = i % h.Bands
		i /= h.Bands
		sample = i % h.Samples
		line = i / h.Samples
	case BIL:
		sample = i % h.Samples
		i /= h.Samples
		band = i % h.Bands
		line = i / h.Bands
	default: // BSQ
		sample = i % h.Samples
		i /= h.Samples
		line = i % h.Lines
		band = i / h.Lines
	}
	return line, sample, band
}

func decodeValue(b []byte, dataType int, order binary.ByteOrder) float64 {
	switch dataType {
	case TypeUint8:
		return float64(b[0])
	case TypeInt16:
		return float64(int16(order.Uint16(b)))
	case TypeUint16:
		return float64(order.Uint16(b))
	case TypeInt32:
		return float64(int32(order.Uint32(b)))
	case TypeUint32:
		return float64(order.Uint32(b))
	case TypeFloat32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case TypeInt64:
		return float64(int64(order.Uint64(b)))
	case TypeUint64:
		return float64(order.Uint64(b))
	case TypeFloat64:
		return math.Float64frombits(order.Uint64(b))
	}
	return math.NaN()
}
