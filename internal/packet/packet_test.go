package packet

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePacket() *Packet {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return New(
		[]time.Time{t0, t0.Add(50 * time.Millisecond), t0.Add(100 * time.Millisecond)},
		map[string][]float64{
			"torque (Nm)": {0.1, 0.2, 0.3},
			"angle (deg)": {1, 2, 3},
		},
	)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := samplePacket()
	buf, err := p.Encode()
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.True(t, got.Equal(p), "decoded packet differs from original")
	assert.Empty(t, cmp.Diff(p, got))
}

func TestEncodeDecodeWithNaN(t *testing.T) {
	p := New(
		[]time.Time{time.Now()},
		map[string][]float64{"torque (Nm)": {math.NaN()}},
	)
	buf, err := p.Encode()
	require.NoError(t, err)
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.True(t, got.Equal(p), "NaN sample should survive the round trip")
	assert.Empty(t, cmp.Diff(p, got, cmpopts.EquateNaNs()))
}

func TestEqualIgnoresKeyOrder(t *testing.T) {
	p := samplePacket()
	q := New(p.Index, map[string][]float64{
		"angle (deg)": {1, 2, 3},
		"torque (Nm)": {0.1, 0.2, 0.3},
	})
	assert.True(t, p.Equal(q))
}

func TestEqualDetectsDifferences(t *testing.T) {
	p := samplePacket()
	q := samplePacket()
	q.Data["torque (Nm)"][1] = 9.9
	assert.False(t, p.Equal(q))

	r := samplePacket()
	delete(r.Data, "angle (deg)")
	assert.False(t, p.Equal(r))
}

func TestTableRoundTrip(t *testing.T) {
	p := samplePacket()
	got := FromTable(p.AsTable())
	assert.True(t, got.Equal(p), "tabular round trip should reproduce the packet")
}

func TestTableColumnOrder(t *testing.T) {
	tbl := samplePacket().AsTable()
	assert.Equal(t, []string{"angle (deg)", "torque (Nm)"}, tbl.Columns)
	require.Len(t, tbl.Rows, 3)
	// first row holds (angle, torque) in column order
	assert.Equal(t, []float64{1, 0.1}, tbl.Rows[0])
}

func TestConcatLengthAndOrder(t *testing.T) {
	p1 := samplePacket()
	t0 := p1.Index[len(p1.Index)-1].Add(time.Second)
	p2 := New(
		[]time.Time{t0, t0.Add(50 * time.Millisecond)},
		map[string][]float64{
			"torque (Nm)": {0.4, 0.5},
			"angle (deg)": {4, 5},
		},
	)

	got := Concat(p1, p2)
	assert.Len(t, got.Index, len(p1.Index)+len(p2.Index))
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5}, got.Data["torque (Nm)"])
	assert.True(t, got.Index[2].Before(got.Index[3]), "rows should follow input packet order")
}

func TestConcatPadsMissingColumns(t *testing.T) {
	p1 := New([]time.Time{time.Now()}, map[string][]float64{"torque (Nm)": {0.7}})
	p2 := New([]time.Time{time.Now()}, map[string][]float64{"angle (deg)": {42}})

	got := Concat(p1, p2)
	require.Len(t, got.Index, 2)
	assert.True(t, math.IsNaN(got.Data["angle (deg)"][0]))
	assert.Equal(t, 42.0, got.Data["angle (deg)"][1])
	assert.Equal(t, 0.7, got.Data["torque (Nm)"][0])
	assert.True(t, math.IsNaN(got.Data["torque (Nm)"][1]))
}

func TestConcatSkipsNil(t *testing.T) {
	p := samplePacket()
	got := Concat(nil, p, nil)
	assert.True(t, got.Equal(p))
}
