// Package packet defines the transfer unit moved between the sampling
// loop and its consumers: a timestamp index paired with named sample
// columns.
package packet

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"
	"time"
)

// Packet pairs an index of timestamps with a column-keyed sample map.
// Column keys are canonical channel strings ("name (unit)"). Index and
// column lengths are not validated against each other; ragged packets
// are tolerated and padded with NaN on tabular conversion.
type Packet struct {
	Index []time.Time
	Data  map[string][]float64
}

// New returns a packet over the given index and data. The slices are
// retained, not copied.
func New(index []time.Time, data map[string][]float64) *Packet {
	if data == nil {
		data = map[string][]float64{}
	}
	return &Packet{Index: index, Data: data}
}

// Equal reports structural equality: same index instants and the same
// columns with the same values. Map key order is irrelevant and NaN
// compares equal to NaN so encoded round trips stay equal.
func (p *Packet) Equal(other *Packet) bool {
	if p == nil || other == nil {
		return p == other
	}
	if len(p.Index) != len(other.Index) || len(p.Data) != len(other.Data) {
		return false
	}
	for i, t := range p.Index {
		if !t.Equal(other.Index[i]) {
			return false
		}
	}
	for name, values := range p.Data {
		theirs, ok := other.Data[name]
		if !ok || len(values) != len(theirs) {
			return false
		}
		for i, v := range values {
			if !sameFloat(v, theirs[i]) {
				return false
			}
		}
	}
	return true
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// Columns returns the column names in lexical order.
func (p *Packet) Columns() []string {
	names := make([]string, 0, len(p.Data))
	for name := range p.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Encode serializes the packet to an opaque byte buffer.
func (p *Packet) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("encode packet: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes a buffer produced by Encode.
func Decode(data []byte) (*Packet, error) {
	var p Packet
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode packet: %w", err)
	}
	if p.Data == nil {
		p.Data = map[string][]float64{}
	}
	return &p, nil
}

// Table is the row-major tabular form of a packet: the index becomes the
// row key and columns are held in lexical name order.
type Table struct {
	Index   []time.Time
	Columns []string
	// Rows holds one value per column per index entry, in Columns order.
	Rows [][]float64
}

// AsTable converts the packet to tabular form. Columns shorter than the
// index are padded with NaN.
func (p *Packet) AsTable() *Table {
	cols := p.Columns()
	rows := make([][]float64, len(p.Index))
	for i := range p.Index {
		row := make([]float64, len(cols))
		for j, name := range cols {
			values := p.Data[name]
			if i < len(values) {
				row[j] = values[i]
			} else {
				row[j] = math.NaN()
			}
		}
		rows[i] = row
	}
	return &Table{Index: append([]time.Time(nil), p.Index...), Columns: cols, Rows: rows}
}

// FromTable reconstructs a packet from its tabular form.
func FromTable(t *Table) *Packet {
	data := make(map[string][]float64, len(t.Columns))
	for j, name := range t.Columns {
		values := make([]float64, len(t.Rows))
		for i, row := range t.Rows {
			values[i] = row[j]
		}
		data[name] = values
	}
	return &Packet{Index: append([]time.Time(nil), t.Index...), Data: data}
}

// Concat joins packets row-wise: rows follow input packet order, then
// within-packet index order. Columns absent from a packet are padded
// with NaN for its rows.
func Concat(packets ...*Packet) *Packet {
	nameSet := map[string]bool{}
	total := 0
	for _, p := range packets {
		if p == nil {
			continue
		}
		total += len(p.Index)
		for name := range p.Data {
			nameSet[name] = true
		}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make([]time.Time, 0, total)
	data := make(map[string][]float64, len(names))
	for _, name := range names {
		data[name] = make([]float64, 0, total)
	}
	for _, p := range packets {
		if p == nil {
			continue
		}
		index = append(index, p.Index...)
		for _, name := range names {
			values := p.Data[name]
			for i := range p.Index {
				if i < len(values) {
					data[name] = append(data[name], values[i])
				} else {
					data[name] = append(data[name], math.NaN())
				}
			}
		}
	}
	return &Packet{Index: index, Data: data}
}
