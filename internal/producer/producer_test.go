package producer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stumelius/cranio-sub000/internal/sensor"
)

// torqueSensor returns a simulated sensor emitting a constant torque.
func torqueSensor(value float64) *sensor.Simulated {
	s := sensor.NewSimulated()
	s.Generator = func() float64 { return value }
	s.RegisterChannel(sensor.ChannelInfo{Name: "torque", Unit: "Nm"})
	return s
}

// failingSensor fails its self test.
type failingSensor struct {
	*sensor.Simulated
}

func (failingSensor) SelfTest() bool { return false }

func TestRegisterGatedOnSelfTest(t *testing.T) {
	p := New(zaptest.NewLogger(t))
	err := p.Register(failingSensor{sensor.NewSimulated()})
	require.Error(t, err)
	assert.Empty(t, p.Sensors())
}

func TestRegisterUnregister(t *testing.T) {
	p := New(zaptest.NewLogger(t))
	s := torqueSensor(1)
	require.NoError(t, p.Register(s))
	assert.Len(t, p.Sensors(), 1)

	assert.True(t, p.Unregister(s))
	assert.False(t, p.Unregister(s), "already removed")
	assert.Empty(t, p.Sensors())
}

func TestReadFansOutInRegistrationOrder(t *testing.T) {
	p := New(zaptest.NewLogger(t))
	require.NoError(t, p.Register(torqueSensor(1)))
	require.NoError(t, p.Register(torqueSensor(2)))

	packets := p.Read()
	require.Len(t, packets, 2)
	assert.Equal(t, 1.0, packets[0].Data["torque (Nm)"][0])
	assert.Equal(t, 2.0, packets[1].Data["torque (Nm)"][0])
}

func TestReadSkipsEmptySensors(t *testing.T) {
	p := New(zaptest.NewLogger(t))
	require.NoError(t, p.Register(sensor.NewSimulated()))
	require.NoError(t, p.Register(torqueSensor(1)))

	packets := p.Read()
	require.Len(t, packets, 1, "sensors without channels have nothing to report")
	assert.Equal(t, 1.0, packets[0].Data["torque (Nm)"][0])
}

func TestSecondsSince(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	index := []time.Time{t0, t0.Add(500 * time.Millisecond), t0.Add(2 * time.Second)}
	assert.Equal(t, []float64{0, 0.5, 2}, SecondsSince(t0, index))
}
