// Package traces reads and writes recorded traces: interleaved binary .dat
// files, sweep sets (CSV columns or JSON objects) and experiment folders.
package traces

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	ErrMalformedTrace = errors.New("malformed trace")
	ErrLengthMismatch = errors.New("trace lengths differ")
	ErrNoFiles        = errors.New("no trace files found")
	ErrEmpty          = errors.New("no sweeps")
)

// ReadDat decodes a stream of little-endian float64 values in which even
// entries are sample times and odd entries are the recorded values.
func ReadDat(r io.Reader) (t, v []float64, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	if len(raw)%8 != 0 {
		return nil, nil, fmt.Errorf("%w: %d bytes is not a whole number of float64", ErrMalformedTrace, len(raw))
	}
	n := len(raw) / 8
	if n%2 != 0 {
		return nil, nil, fmt.Errorf("%w: %d values cannot be split into (t, v) pairs", ErrMalformedTrace, n)
	}
	t = make([]float64, n/2)
	v = make([]float64, n/2)
	for i := 0; i < n/2; i++ {
		t[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i:]))
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i+8:]))
	}
	return t, v, nil
}

// LoadDat reads a .dat file from disk
func LoadDat(path string) (t, v []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	t, v, err = ReadDat(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, v, nil
}

// WriteDat encodes t and v in the interleaved .dat layout
func WriteDat(w io.Writer, t, v []float64) error {
	if len(t) != len(v) {
		return fmt.Errorf("%w: %d times, %d values", ErrLengthMismatch, len(t), len(v))
	}
	var buf bytes.Buffer
	buf.Grow(16 * len(t))
	var b [8]byte
	for i := range t {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(t[i]))
		buf.Write(b[:])
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v[i]))
		buf.Write(b[:])
	}
	_, err := w.Write(buf.Bytes())
	return err
}
