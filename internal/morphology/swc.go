// Package morphology reads and writes SWC reconstructions and turns them
// into simulator cells.
package morphology

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// SWC structure identifiers
const (
	TypeUndefined = 0
	TypeSoma      = 1
	TypeAxon      = 2
	TypeBasal     = 3
	TypeApical    = 4
)

var (
	ErrMalformedLine = errors.New("malformed swc line")
	ErrUnknownParent = errors.New("swc parent not defined before child")
	ErrNoSoma        = errors.New("swc has no soma point")
	ErrDuplicateID   = errors.New("swc point id defined twice")
)

// Point is one SWC sample
type Point struct {
	ID     int
	Type   int
	X, Y   float64
	Z      float64
	Radius float64
	Parent int
}

// Morphology is a parsed SWC file
type Morphology struct {
	Points []Point
	byID   map[int]int
}

// ReadSWC parses "n T x y z R P" records, skipping blank lines and # comments
func ReadSWC(r io.Reader) (*Morphology, error) {
	m := &Morphology{byID: make(map[int]int)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 7 {
			return nil, fmt.Errorf("%w %d: want 7 fields, got %d", ErrMalformedLine, line, len(fields))
		}
		var p Point
		var err error
		ints := []*int{&p.ID, &p.Type}
		for i, dst := range ints {
			if *dst, err = strconv.Atoi(fields[i]); err != nil {
				return nil, fmt.Errorf("%w %d: %v", ErrMalformedLine, line, err)
			}
		}
		floats := []*float64{&p.X, &p.Y, &p.Z, &p.Radius}
		for i, dst := range floats {
			if *dst, err = strconv.ParseFloat(fields[2+i], 64); err != nil {
				return nil, fmt.Errorf("%w %d: %v", ErrMalformedLine, line, err)
			}
		}
		if p.Parent, err = strconv.Atoi(fields[6]); err != nil {
			return nil, fmt.Errorf("%w %d: %v", ErrMalformedLine, line, err)
		}
		if _, dup := m.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: point %d on line %d", ErrDuplicateID, p.ID, line)
		}
		if p.Parent != -1 {
			if _, ok := m.byID[p.Parent]; !ok {
				return nil, fmt.Errorf("%w: point %d references %d", ErrUnknownParent, p.ID, p.Parent)
			}
		}
		m.byID[p.ID] = len(m.Points)
		m.Points = append(m.Points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Point returns the sample with the given id
func (m *Morphology) Point(id int) (Point, bool) {
	i, ok := m.byID[id]
	if !ok {
		return Point{}, false
	}
	return m.Points[i], true
}

// children returns child ids per point id, ordered by id
func (m *Morphology) children() map[int][]int {
	ch := make(map[int][]int)
	for _, p := range m.Points {
		if p.Parent != -1 {
			ch[p.Parent] = append(ch[p.Parent], p.ID)
		}
	}
	for _, ids := range ch {
		sort.Ints(ids)
	}
	return ch
}

// Write emits the morphology in SWC format
func (m *Morphology) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, p := range m.Points {
		if _, err := fmt.Fprintf(bw, "%d %d %.4f %.4f %.4f %.4f %d\n",
			p.ID, p.Type, p.X, p.Y, p.Z, p.Radius, p.Parent); err != nil {
			return err
		}
	}
	return bw.Flush()
}
