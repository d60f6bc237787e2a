// Package annotation implements interactive event-region editing over a
// recorded time series. Regions mark the spans of distraction events.
package annotation

import "errors"

// ErrEmptyPlot is returned when regions are requested for a series with
// no data.
var ErrEmptyPlot = errors.New("cannot add event regions to an empty plot")

// Region is one editable event span. Its event number is assigned at
// insertion and never changes while the region exists.
type Region struct {
	EventNum int
	Begin    float64
	End      float64

	// Done marks the event as reviewed; Recorded marks whether the
	// event actually occurred during recording.
	Done     bool
	Recorded bool

	bounded             bool
	lowBound, highBound float64
}

// Low returns the lower edge of the region.
func (r *Region) Low() float64 {
	if r.Begin <= r.End {
		return r.Begin
	}
	return r.End
}

// High returns the upper edge of the region.
func (r *Region) High() float64 {
	if r.Begin >= r.End {
		return r.Begin
	}
	return r.End
}

// Edges returns the region edges as (low, high).
func (r *Region) Edges() (float64, float64) { return r.Low(), r.High() }

// SetMinimum moves the lower edge to value. If value exceeds the
// current upper edge the edges swap so the old maximum becomes the new
// minimum.
func (r *Region) SetMinimum(value float64) {
	r.setEdges(r.High(), value)
}

// SetMaximum moves the upper edge to value. If value falls below the
// current lower edge the edges swap so the old minimum becomes the new
// maximum.
func (r *Region) SetMaximum(value float64) {
	r.setEdges(value, r.Low())
}

// SetEdges sets both edges at once.
func (r *Region) SetEdges(a, b float64) { r.setEdges(a, b) }

func (r *Region) setEdges(a, b float64) {
	if r.bounded {
		a = clamp(a, r.lowBound, r.highBound)
		b = clamp(b, r.lowBound, r.highBound)
	}
	if a <= b {
		r.Begin, r.End = a, b
	} else {
		r.Begin, r.End = b, a
	}
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// Editor manages the set of event regions over one x series.
type Editor struct {
	x       []float64
	regions []*Region
}

// NewEditor returns an editor over a copy of x.
func NewEditor(x []float64) *Editor {
	return &Editor{x: append([]float64(nil), x...)}
}

// Count returns the number of regions.
func (e *Editor) Count() int { return len(e.regions) }

// Regions returns the regions in insertion order.
func (e *Editor) Regions() []*Region {
	return append([]*Region(nil), e.regions...)
}

// RegionAt returns the region at index i.
func (e *Editor) RegionAt(i int) *Region { return e.regions[i] }

// AddRegion inserts a region spanning [begin, end]. The new region is
// numbered one past the current region count; removing other regions
// never renumbers survivors.
func (e *Editor) AddRegion(begin, end float64) *Region {
	r := &Region{EventNum: len(e.regions) + 1, Recorded: true}
	if len(e.x) > 0 {
		low, high := minMax(e.x)
		r.bounded = true
		r.lowBound, r.highBound = low, high
	}
	r.setEdges(begin, end)
	e.regions = append(e.regions, r)
	return r
}

// AddUniform appends count regions of equal width partitioning the x
// range.
func (e *Editor) AddUniform(count int) error {
	if len(e.x) == 0 {
		return ErrEmptyPlot
	}
	low, high := minMax(e.x)
	width := (high - low) / float64(count)
	for i := 0; i < count; i++ {
		begin := low + float64(i)*width
		e.AddRegion(begin, begin+width)
	}
	return nil
}

// Remove deletes the given region. It reports whether the region was
// found. Remaining regions keep their event numbers.
func (e *Editor) Remove(r *Region) bool {
	for i, existing := range e.regions {
		if existing == r {
			e.RemoveAt(i)
			return true
		}
	}
	return false
}

// RemoveAt deletes the region at index i.
func (e *Editor) RemoveAt(i int) {
	e.regions = append(e.regions[:i], e.regions[i+1:]...)
}

// RemoveAll deletes every region. Numbering restarts from one.
func (e *Editor) RemoveAll() {
	e.regions = nil
}

func minMax(values []float64) (float64, float64) {
	low, high := values[0], values[0]
	for _, v := range values[1:] {
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	return low, high
}
