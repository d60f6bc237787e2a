package producer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stumelius/cranio-sub000/internal/packet"
	"github.com/stumelius/cranio-sub000/internal/sensor"
)

const joinTimeout = 2 * time.Second

func newTestProcess(t *testing.T) *Process {
	t.Helper()
	p := New(zaptest.NewLogger(t))
	require.NoError(t, p.Register(torqueSensor(1.5)))
	return NewProcess("test", p, zaptest.NewLogger(t))
}

func TestProcessStartPauseJoin(t *testing.T) {
	proc := newTestProcess(t)

	proc.Start()
	assert.True(t, proc.IsAlive())
	time.Sleep(100 * time.Millisecond)
	proc.Pause()

	require.NoError(t, proc.Join(joinTimeout))
	assert.False(t, proc.IsAlive())

	records := proc.Drain()
	require.NotEmpty(t, records, "production before the pause should be queued")
	for _, rec := range records {
		assert.NotEmpty(t, rec.ProducerID)
		assert.Contains(t, rec.Packet.Data, "torque (Nm)")
	}
}

func TestProcessStartIdempotent(t *testing.T) {
	proc := newTestProcess(t)

	proc.Start()
	proc.Start()
	assert.True(t, proc.IsAlive())

	require.NoError(t, proc.Join(joinTimeout))
}

func TestProcessPauseStopsProduction(t *testing.T) {
	proc := newTestProcess(t)

	proc.Start()
	time.Sleep(50 * time.Millisecond)
	proc.Pause()
	time.Sleep(50 * time.Millisecond)
	proc.Drain()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, proc.Drain(), "a paused process produces nothing")

	proc.Resume()
	time.Sleep(100 * time.Millisecond)
	assert.NotEmpty(t, proc.Drain(), "production continues after resume")

	require.NoError(t, proc.Join(joinTimeout))
}

func TestProcessJoinWithoutStart(t *testing.T) {
	proc := newTestProcess(t)
	require.NoError(t, proc.Join(joinTimeout))
	assert.False(t, proc.IsAlive())
}

func TestProcessRestartAfterJoin(t *testing.T) {
	proc := newTestProcess(t)

	proc.Start()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, proc.Join(joinTimeout))
	proc.Drain()

	proc.Start()
	assert.True(t, proc.IsAlive())
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, proc.Join(joinTimeout))
	assert.NotEmpty(t, proc.Drain(), "a joined process can be restarted")
}

// stuckSensor blocks inside Read until released.
type stuckSensor struct {
	*sensor.Simulated
	release chan struct{}
}

func (s *stuckSensor) Read() *packet.Packet {
	<-s.release
	return nil
}

func TestProcessJoinForceQuitIsBounded(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	p := New(zaptest.NewLogger(t))
	require.NoError(t, p.Register(&stuckSensor{Simulated: sensor.NewSimulated(), release: release}))
	proc := NewProcess("test", p, zaptest.NewLogger(t))

	proc.Start()
	time.Sleep(20 * time.Millisecond)

	joined := make(chan error, 1)
	go func() { joined <- proc.Join(50 * time.Millisecond) }()

	select {
	case err := <-joined:
		assert.Error(t, err, "a read that never returns cannot join cleanly")
	case <-time.After(time.Second):
		t.Fatal("Join did not return for a blocked read")
	}
	assert.False(t, proc.IsAlive())
}

func TestProcessReadAndCache(t *testing.T) {
	proc := newTestProcess(t)

	proc.Start()
	time.Sleep(100 * time.Millisecond)
	proc.Pause()
	require.NoError(t, proc.Join(joinTimeout))

	fresh := proc.Read(false)
	require.NotNil(t, fresh)
	n := len(fresh.Index)
	assert.Positive(t, n)
	assert.Nil(t, proc.Read(false), "queue already drained")

	proc.Start()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, proc.Join(joinTimeout))

	cached := proc.Read(true)
	require.NotNil(t, cached)
	assert.Positive(t, len(cached.Index))
	assert.Equal(t, cached, proc.Read(true), "cache persists across empty drains")

	proc.ClearCache()
	assert.Nil(t, proc.Read(true))
}
