package traces

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/RMahshie/cellular/pkg/models"
)

// Supported content types
const (
	MimeDat  = "application/octet-stream"
	MimeCSV  = "text/csv"
	MimeJSON = "application/json"
)

// SweepSet is every repetition recorded from one connection or protocol
type SweepSet struct {
	// Time is nil when the source carries no time column
	Time   []float64
	Sweeps []models.Trace
}

// Len returns the sample count shared by all sweeps
func (s *SweepSet) Len() int {
	if len(s.Sweeps) == 0 {
		return len(s.Time)
	}
	return s.Sweeps[0].Len()
}

// Matrix returns the sweep values, one row per sweep
func (s *SweepSet) Matrix() [][]float64 {
	out := make([][]float64, len(s.Sweeps))
	for i, sw := range s.Sweeps {
		out[i] = sw.Values
	}
	return out
}

func isTimeColumn(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "t", "time":
		return true
	}
	return false
}

// ReadCSV parses one column per sweep with a header row of sweep names.
// A column named "t" or "time" becomes the time vector. Sweeps are returned
// in name order. Every row must fill every column.
func ReadCSV(r io.Reader) (*SweepSet, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformedTrace, err)
	}
	cols := make([][]float64, len(header))
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedTrace, row, err)
		}
		row++
		for i, field := range rec {
			if field == "" {
				return nil, fmt.Errorf("%w: row %d column %q is empty", ErrMalformedTrace, row, header[i])
			}
			x, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", ErrMalformedTrace, row, header[i], err)
			}
			cols[i] = append(cols[i], x)
		}
	}

	set := &SweepSet{}
	for i, name := range header {
		if isTimeColumn(name) {
			set.Time = cols[i]
			continue
		}
		set.Sweeps = append(set.Sweeps, models.Trace{Label: name, Values: cols[i]})
	}
	return set, set.finish()
}

// ReadJSON parses an object mapping sweep names to sample arrays
func ReadJSON(r io.Reader) (*SweepSet, error) {
	var raw map[string][]float64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTrace, err)
	}
	set := &SweepSet{}
	for name, values := range raw {
		if isTimeColumn(name) {
			set.Time = values
			continue
		}
		set.Sweeps = append(set.Sweeps, models.Trace{Label: name, Values: values})
	}
	return set, set.finish()
}

func (s *SweepSet) finish() error {
	if len(s.Sweeps) == 0 {
		return ErrEmpty
	}
	sort.Slice(s.Sweeps, func(i, j int) bool { return s.Sweeps[i].Label < s.Sweeps[j].Label })
	n := s.Sweeps[0].Len()
	if n == 0 {
		return fmt.Errorf("%w: sweep %q has no samples", ErrEmpty, s.Sweeps[0].Label)
	}
	for _, sw := range s.Sweeps[1:] {
		if sw.Len() != n {
			return fmt.Errorf("%w: sweep %q has %d samples, %q has %d",
				ErrLengthMismatch, sw.Label, sw.Len(), s.Sweeps[0].Label, n)
		}
	}
	if s.Time != nil && len(s.Time) != n {
		return fmt.Errorf("%w: time has %d samples, sweeps have %d", ErrLengthMismatch, len(s.Time), n)
	}
	return nil
}

// Decode parses data according to its content type. A .dat payload becomes
// a single sweep with its own time vector.
func Decode(data []byte, mimeType string) (*SweepSet, error) {
	switch mimeType {
	case MimeCSV:
		return ReadCSV(bytes.NewReader(data))
	case MimeJSON:
		return ReadJSON(bytes.NewReader(data))
	case MimeDat, "":
		t, v, err := ReadDat(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return &SweepSet{Time: t, Sweeps: []models.Trace{{Label: "sweep_0", Values: v}}}, nil
	default:
		return nil, fmt.Errorf("unsupported trace content type: %s", mimeType)
	}
}

// MimeTypeFor guesses the content type from a file extension
func MimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return MimeCSV
	case ".json":
		return MimeJSON
	default:
		return MimeDat
	}
}

// LoadSweeps reads a sweep set from disk, choosing the decoder by extension
func LoadSweeps(path string) (*SweepSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	set, err := Decode(data, MimeTypeFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// WriteCSV writes the set with an optional leading time column
func (s *SweepSet) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	var header []string
	if s.Time != nil {
		header = append(header, "time")
	}
	for _, sw := range s.Sweeps {
		header = append(header, sw.Label)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i := 0; i < s.Len(); i++ {
		row = row[:0]
		if s.Time != nil {
			row = append(row, strconv.FormatFloat(s.Time[i], 'g', -1, 64))
		}
		for _, sw := range s.Sweeps {
			row = append(row, strconv.FormatFloat(sw.Values[i], 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MeanTrace returns the sample-wise mean over sweeps
func MeanTrace(sweeps []models.Trace) ([]float64, error) {
	if len(sweeps) == 0 {
		return nil, ErrEmpty
	}
	n := sweeps[0].Len()
	mean := make([]float64, n)
	for _, sw := range sweeps {
		if sw.Len() != n {
			return nil, fmt.Errorf("%w: sweep %q", ErrLengthMismatch, sw.Label)
		}
		for i, x := range sw.Values {
			mean[i] += x
		}
	}
	for i := range mean {
		mean[i] /= float64(len(sweeps))
	}
	return mean, nil
}
