package sensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDecodeTelegram(t *testing.T) {
	got, err := DecodeTelegram("283.3OPK\r")
	require.NoError(t, err)
	assert.Equal(t, 283.3, got.Value)
	assert.Equal(t, byte('O'), got.Unit)
	assert.Equal(t, byte('P'), got.Mode)
	assert.Equal(t, byte('K'), got.Condition)
}

func TestDecodeTelegramNegativeValue(t *testing.T) {
	got, err := DecodeTelegram("-0.25OPK")
	require.NoError(t, err)
	assert.Equal(t, -0.25, got.Value)
}

func TestDecodeTelegramInvalid(t *testing.T) {
	for _, raw := range []string{"", "\r", "garbage", "OPK"} {
		_, err := DecodeTelegram(raw)
		var terr *TelegramError
		assert.ErrorAs(t, err, &terr, "telegram %q should not decode", raw)
	}
}

func TestGaugeReadsTelegram(t *testing.T) {
	port := NewMockPort()
	port.QueueTelegram("1.23OPK")
	g := NewGauge("/dev/ttyUSB0", MockOpener(port), zaptest.NewLogger(t))
	require.NoError(t, g.Open())
	defer g.Close()

	p := g.Read()
	require.NotNil(t, p)
	assert.Equal(t, 1.23, p.Data["torque (Nm)"][0])
	assert.Equal(t, []byte{'D', EOL}, port.WrittenData(), "read should poll the display value")
}

func TestGaugeAbsorbsDecodeFailure(t *testing.T) {
	port := NewMockPort()
	port.QueueTelegram("!!!")
	g := NewGauge("/dev/ttyUSB0", MockOpener(port), zaptest.NewLogger(t))
	require.NoError(t, g.Open())
	defer g.Close()

	p := g.Read()
	require.NotNil(t, p, "a bad sample must not halt acquisition")
	assert.True(t, math.IsNaN(p.Data["torque (Nm)"][0]))

	// the next good telegram reads normally
	port.QueueTelegram("0.5OPK")
	p = g.Read()
	require.NotNil(t, p)
	assert.Equal(t, 0.5, p.Data["torque (Nm)"][0])
}

func TestGaugeSelfTest(t *testing.T) {
	g := NewGauge("/dev/ttyUSB0", MockOpener(NewMockPort()), zaptest.NewLogger(t))
	assert.True(t, g.SelfTest())

	broken := NewGauge("/dev/ttyUSB0", FailingOpener(errors.New("no such device")), zaptest.NewLogger(t))
	assert.False(t, broken.SelfTest())
}

func TestGaugeOpenIdempotent(t *testing.T) {
	port := NewMockPort()
	g := NewGauge("/dev/ttyUSB0", MockOpener(port), zaptest.NewLogger(t))
	require.NoError(t, g.Open())
	require.NoError(t, g.Open())
	require.NoError(t, g.Close())
	assert.True(t, port.Closed)
	require.NoError(t, g.Close(), "closing a closed gauge is a no-op")
}
