// Package report renders the single JSON line the predictor prints.
//
// The line mirrors the layout a Python json.dumps call produces (", " and
// ": " separators, shortest round-trip floats) because downstream consumers
// were written against that output.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Result is the outcome of one prediction run. Exactly one of the success
// fields or Err is meaningful.
type Result struct {
	Success  bool
	Moisture float64
	Piperine float64
	Err      string
}

// Success builds a successful result.
func Success(moisture, piperine float64) Result {
	return Result{Success: true, Moisture: moisture, Piperine: piperine}
}

// Failure builds an error result from err.
func Failure(err error) Result {
	if err == nil {
		return Result{Err: "unknown error"}
	}
	return Result{Err: err.Error()}
}

// FailureMessage builds an error result with a fixed message.
func FailureMessage(msg string) Result {
	return Result{Err: msg}
}

// MarshalJSON emits either
//
//	{"success": true, "moisture_prediction": M, "peperine_prediction": P}
//
// or
//
//	{"error": "message"}
//
// The "peperine" spelling is part of the output contract.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if !r.Success {
		buf.WriteString(`{"error": `)
		buf.WriteString(quote(r.Err))
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}

	moisture, err := formatFloat(r.Moisture)
	if err != nil {
		return nil, fmt.Errorf("moisture_prediction: %w", err)
	}
	piperine, err := formatFloat(r.Piperine)
	if err != nil {
		return nil, fmt.Errorf("peperine_prediction: %w", err)
	}

	buf.WriteString(`{"success": true, "moisture_prediction": `)
	buf.WriteString(moisture)
	buf.WriteString(`, "peperine_prediction": `)
	buf.WriteString(piperine)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Write prints r as one line.
func Write(w io.Writer, r Result) error {
	data, err := r.MarshalJSON()
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// formatFloat follows Python's float repr: integral values keep a ".0",
// exponents appear outside [1e-4, 1e16).
func formatFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("value %v is not finite", v)
	}

	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		// both pad the exponent to two digits
		return strconv.FormatFloat(v, 'e', -1, 64), nil
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s, nil
}

// quote escapes s the way json.dumps does with ensure_ascii enabled.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				fmt.Fprintf(&b, `\u%04x`, r)
			case r > 0xffff:
				r1, r2 := surrogates(r)
				fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xd800 + (r>>10)&0x3ff, 0xdc00 + r&0x3ff
}

// Decoded is the parsed form of an output line, for consumers and tests.
type Decoded struct {
	Success  bool     `json:"success"`
	Moisture *float64 `json:"moisture_prediction,omitempty"`
	Piperine *float64 `json:"peperine_prediction,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Parse decodes one output line.
func Parse(line []byte) (Decoded, error) {
	var d Decoded
	if err := json.Unmarshal(bytes.TrimSpace(line), &d); err != nil {
		return Decoded{}, fmt.Errorf("parse result line: %w", err)
	}
	return d, nil
}
