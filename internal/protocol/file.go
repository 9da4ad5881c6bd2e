package protocol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RMahshie/cellular/internal/morphology"
	"github.com/RMahshie/cellular/internal/sim"
	"github.com/RMahshie/cellular/pkg/models"
)

var (
	ErrBadLocation  = errors.New("invalid location")
	ErrUnknownCell  = errors.New("unknown cell preset")
	ErrNoRecordings = errors.New("protocol records nothing")
)

// PresetBallAndStick is the only built-in cell
const PresetBallAndStick = "ball-and-stick"

// ClampSpec is one electrode of a protocol file. Omitted timing and
// amplitude take the session defaults; an explicit zero is kept.
type ClampSpec struct {
	Loc   string   `yaml:"loc"`
	Delay *float64 `yaml:"delay"`
	Dur   *float64 `yaml:"dur"`
	Amp   *float64 `yaml:"amp"`
}

// File is a protocol description:
//
//	cell: ball-and-stick        # or swc: cells/pyramidal.swc
//	dt: 0.025
//	v_init: -65
//	t_stop: 500
//	clamps:
//	  - {loc: soma(0.5), delay: 100, dur: 300, amp: 0.2}
//	record: [soma(0.5), dend(1)]
type File struct {
	Cell    string         `yaml:"cell"`
	SWC     string         `yaml:"swc"`
	Passive *PassiveParams `yaml:"passive"`
	Dt      float64        `yaml:"dt"`
	Celsius *float64       `yaml:"celsius"`
	VInit   *float64       `yaml:"v_init"`
	TStop   float64        `yaml:"t_stop"`
	Clamps  []ClampSpec    `yaml:"clamps"`
	Record  []string       `yaml:"record"`

	// dir resolves a relative SWC path
	dir string
}

// ReadFile decodes a protocol and fills in session defaults
func ReadFile(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode protocol: %w", err)
	}
	if f.Cell == "" && f.SWC == "" {
		f.Cell = PresetBallAndStick
	}
	if f.TStop <= 0 {
		f.TStop = DefaultDelay + DefaultDur
	}
	for i := range f.Clamps {
		c := &f.Clamps[i]
		c.Delay = orDefault(c.Delay, DefaultDelay)
		c.Dur = orDefault(c.Dur, DefaultDur)
		c.Amp = orDefault(c.Amp, DefaultAmp)
	}
	if len(f.Record) == 0 {
		return nil, ErrNoRecordings
	}
	return &f, nil
}

func orDefault(v *float64, def float64) *float64 {
	if v != nil {
		return v
	}
	return &def
}

// LoadFile reads a protocol from path; relative SWC paths resolve against its directory
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open protocol: %w", err)
	}
	defer fh.Close()

	f, err := ReadFile(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// BuildCell creates the cell the protocol runs on
func (f *File) BuildCell() (*sim.Cell, error) {
	if f.SWC != "" {
		path := f.SWC
		if !filepath.IsAbs(path) && f.dir != "" {
			path = filepath.Join(f.dir, path)
		}
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open morphology: %w", err)
		}
		defer fh.Close()
		m, err := morphology.ReadSWC(fh)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return m.Build(name, morphology.DefaultBiophysics())
	}

	switch f.Cell {
	case PresetBallAndStick:
		cell := sim.BallAndStick()
		if f.Passive != nil {
			dend, _ := cell.Section("dend")
			if f.Passive.Diam > 0 {
				dend.Diam = f.Passive.Diam
			}
			if f.Passive.Ra > 0 {
				dend.Ra = f.Passive.Ra
			}
			if f.Passive.Cm > 0 {
				dend.Cm = f.Passive.Cm
			}
		}
		return cell, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCell, f.Cell)
	}
}

// Options returns the simulator settings of the protocol
func (f *File) Options() []sim.Option {
	var opts []sim.Option
	if f.Dt > 0 {
		opts = append(opts, sim.WithDt(f.Dt))
	}
	if f.Celsius != nil {
		opts = append(opts, sim.WithCelsius(*f.Celsius))
	}
	return opts
}

// Run builds the cell, places electrodes and recordings and runs the protocol.
// extra options are applied before the protocol's own.
func (f *File) Run(extra ...sim.Option) (models.Recording, error) {
	cell, err := f.BuildCell()
	if err != nil {
		return models.Recording{}, err
	}
	s := NewSession(cell, append(extra, f.Options()...)...)
	for _, c := range f.Clamps {
		loc, err := ParseLocation(cell, c.Loc)
		if err != nil {
			return models.Recording{}, err
		}
		s.IClamp(loc, *c.Delay, *c.Amp, *c.Dur)
	}
	for _, r := range f.Record {
		loc, err := ParseLocation(cell, r)
		if err != nil {
			return models.Recording{}, err
		}
		s.RecordVoltage(loc)
	}

	vInit := PulseVInit
	if f.VInit != nil {
		vInit = *f.VInit
	}
	if _, err := s.InitRun(vInit, f.TStop); err != nil {
		return models.Recording{}, err
	}
	return s.Traces(), nil
}

// ParseLocation resolves "name(x)" on cell; a bare section name means x = 0.5
func ParseLocation(cell *sim.Cell, s string) (sim.Location, error) {
	s = strings.TrimSpace(s)
	name, x := s, 0.5
	if open := strings.LastIndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return sim.Location{}, fmt.Errorf("%w: %q", ErrBadLocation, s)
		}
		v, err := strconv.ParseFloat(s[open+1:len(s)-1], 64)
		if err != nil {
			return sim.Location{}, fmt.Errorf("%w: %q: %v", ErrBadLocation, s, err)
		}
		name, x = s[:open], v
	}
	sec, ok := cell.Section(name)
	if !ok {
		return sim.Location{}, fmt.Errorf("%w: no section %q", ErrBadLocation, name)
	}
	return sec.At(x), nil
}
