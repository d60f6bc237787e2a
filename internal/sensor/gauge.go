package sensor

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/stumelius/cranio-sub000/internal/packet"
)

// GaugeInfo identifies the supported digital torque gauge.
var GaugeInfo = Info{SerialNumber: "FTSLQ6QIA", Name: "HTG2-4 digital torque gauge", TurnsInFullTurn: 3}

// maxTelegramLen bounds a single response read so a line with a lost
// terminator cannot stall the sampling loop.
const maxTelegramLen = 64

// Gauge drives a digital torque gauge over an RS-232 serial line. A
// poll writes the display-value request and reads one telegram back.
// Decode failures are absorbed: the sample becomes NaN and acquisition
// continues.
type Gauge struct {
	// Delay overrides the default inter-sample pacing.
	Delay time.Duration

	path   string
	mode   PortMode
	opener PortOpener
	log    *zap.Logger

	port     Port
	channels []ChannelInfo
	lastRead time.Time
}

// NewGauge returns a gauge that reads from the serial device at path.
// A nil opener selects the real serial stack.
func NewGauge(path string, opener PortOpener, log *zap.Logger) *Gauge {
	if opener == nil {
		opener = OpenSerialPort
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gauge{
		Delay:    SampleDelay,
		path:     path,
		mode:     DefaultPortMode(),
		opener:   opener,
		log:      log,
		channels: []ChannelInfo{{Name: "torque", Unit: "Nm"}},
	}
}

func (g *Gauge) Info() Info { return GaugeInfo }

func (g *Gauge) Channels() []ChannelInfo {
	return append([]ChannelInfo(nil), g.channels...)
}

// Open opens the serial port. Opening an already open gauge is a no-op.
func (g *Gauge) Open() error {
	if g.port != nil {
		return nil
	}
	port, err := g.opener(g.path, g.mode)
	if err != nil {
		return fmt.Errorf("open gauge port %s: %w", g.path, err)
	}
	g.port = port
	return nil
}

// Close closes the serial port if open.
func (g *Gauge) Close() error {
	if g.port == nil {
		return nil
	}
	err := g.port.Close()
	g.port = nil
	return err
}

// SelfTest opens and closes the port, reporting success. Used by the
// producer as a registration gate.
func (g *Gauge) SelfTest() bool { return selfTest(g) }

// Poll requests the display value and returns the raw telegram.
func (g *Gauge) Poll() (string, error) {
	if g.port == nil {
		return "", fmt.Errorf("gauge port %s is not open", g.path)
	}
	if _, err := g.port.Write([]byte{'D', EOL}); err != nil {
		return "", fmt.Errorf("request display value: %w", err)
	}
	return g.readline()
}

// readline reads bytes until the telegram terminator.
func (g *Gauge) readline() (string, error) {
	line := make([]byte, 0, 16)
	buf := make([]byte, 1)
	for len(line) < maxTelegramLen {
		n, err := g.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read telegram: %w", err)
		}
		if n == 0 {
			// read timeout with no terminator seen
			return "", &TelegramError{Telegram: string(line)}
		}
		if buf[0] == EOL {
			return string(line), nil
		}
		line = append(line, buf[0])
	}
	return "", &TelegramError{Telegram: string(line)}
}

// Read polls one sample. A failed poll or undecodable telegram is
// logged and recorded as NaN; a single bad sample must not halt
// acquisition.
func (g *Gauge) Read() *packet.Packet {
	pace(&g.lastRead, g.Delay)
	value := math.NaN()
	raw, err := g.Poll()
	if err == nil {
		var telegram Telegram
		if telegram, err = DecodeTelegram(raw); err == nil {
			value = telegram.Value
		}
	}
	if err != nil {
		g.log.Error("decode telegram failed", zap.Error(err))
	}
	return packet.New(
		[]time.Time{time.Now().UTC()},
		map[string][]float64{g.channels[0].String(): {value}},
	)
}
