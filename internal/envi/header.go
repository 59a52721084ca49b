// Package envi reads hyperspectral cubes stored in the ENVI format: a
// plain-text header describing the layout plus a raw binary data file.
package envi

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Interleave is the on-disk ordering of samples, lines and bands.
type Interleave string

const (
	BSQ Interleave = "bsq" // band sequential
	BIL Interleave = "bil" // band interleaved by line
	BIP Interleave = "bip" // band interleaved by pixel
)

// Header holds the fields needed to decode an ENVI data file.
type Header struct {
	Samples      int
	Lines        int
	Bands        int
	HeaderOffset int64
	DataType     int
	Interleave   Interleave
	ByteOrder    int
	ScaleFactor  float64
	Wavelengths  []float64
	// Fields keeps every key/value pair as written, keys lower-cased.
	Fields map[string]string
}

// ReadHeader parses the header file at path.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open header: %w", err)
	}
	defer f.Close()

	h, err := ParseHeader(f)
	if err != nil {
		return nil, fmt.Errorf("parse header %s: %w", path, err)
	}
	return h, nil
}

// ParseHeader reads an ENVI header from r.
func ParseHeader(r io.Reader) (*Header, error) {
	fields, err := parseFields(r)
	if err != nil {
		return nil, err
	}

	h := &Header{
		Interleave:  BSQ,
		ScaleFactor: 1,
		Fields:      fields,
	}

	if h.Samples, err = requiredInt(fields, "samples"); err != nil {
		return nil, err
	}
	if h.Lines, err = requiredInt(fields, "lines"); err != nil {
		return nil, err
	}
	if h.Bands, err = requiredInt(fields, "bands"); err != nil {
		return nil, err
	}
	if h.DataType, err = requiredInt(fields, "data type"); err != nil {
		return nil, err
	}
	if _, err := bytesPerValue(h.DataType); err != nil {
		return nil, err
	}

	if h.Samples <= 0 || h.Lines <= 0 || h.Bands <= 0 {
		return nil, fmt.Errorf("invalid dimensions: samples=%d lines=%d bands=%d", h.Samples, h.Lines, h.Bands)
	}

	if v, ok := fields["header offset"]; ok {
		off, err := strconv.ParseInt(v, 10, 64)
		if err != nil || off < 0 {
			return nil, fmt.Errorf("invalid header offset %q", v)
		}
		h.HeaderOffset = off
	}

	if v, ok := fields["interleave"]; ok {
		switch il := Interleave(strings.ToLower(v)); il {
		case BSQ, BIL, BIP:
			h.Interleave = il
		default:
			return nil, fmt.Errorf("unsupported interleave %q", v)
		}
	}

	if v, ok := fields["byte order"]; ok {
		bo, err := strconv.Atoi(v)
		if err != nil || (bo != 0 && bo != 1) {
			return nil, fmt.Errorf("invalid byte order %q", v)
		}
		h.ByteOrder = bo
	}

	if v, ok := fields["reflectance scale factor"]; ok {
		sf, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reflectance scale factor %q", v)
		}
		if sf != 0 {
			h.ScaleFactor = sf
		}
	}

	if v, ok := fields["wavelength"]; ok {
		wl, err := parseFloatList(v)
		if err != nil {
			return nil, fmt.Errorf("invalid wavelength list: %w", err)
		}
		h.Wavelengths = wl
	}

	return h, nil
}

// parseFields collects key = value pairs. Values wrapped in braces may span
// several lines; the braces are stripped.
func parseFields(r io.Reader) (map[string]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty header")
	}
	if !strings.HasPrefix(strings.TrimSpace(sc.Text()), "ENVI") {
		return nil, fmt.Errorf("not an ENVI header: missing ENVI magic")
	}

	fields := make(map[string]string)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		key := strings.ToLower(strings.TrimSpace(line[:eq]))
		value := strings.TrimSpace(line[eq+1:])

		if strings.HasPrefix(value, "{") {
			var b strings.Builder
			b.WriteString(value)
			for !strings.Contains(value, "}") {
				if !sc.Scan() {
					if err := sc.Err(); err != nil {
						return nil, err
					}
					return nil, fmt.Errorf("unterminated value for %q", key)
				}
				value = sc.Text()
				b.WriteByte('\n')
				b.WriteString(value)
			}
			full := b.String()
			full = strings.TrimPrefix(full, "{")
			if i := strings.LastIndexByte(full, '}'); i >= 0 {
				full = full[:i]
			}
			value = strings.TrimSpace(full)
		}

		fields[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return fields, nil
}

func requiredInt(fields map[string]string, key string) (int, error) {
	v, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing required field %q", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return n, nil
}

func parseFloatList(v string) ([]float64, error) {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
