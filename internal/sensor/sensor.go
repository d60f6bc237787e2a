// Package sensor provides the input-device abstraction for the
// acquisition pipeline: channel metadata, a simulated sensor for
// development, and the serial torque-gauge driver.
package sensor

import (
	"math"
	"math/rand"
	"time"

	"github.com/stumelius/cranio-sub000/internal/packet"
)

// SampleDelay bounds the sample rate. Without a wait between
// consecutive reads the producer generates more data than the plot
// consumer can absorb.
const SampleDelay = 10 * time.Millisecond

// Sensor is the capability required of any input device. Open and Close
// bracket a reading session; Read returns one packet per poll, or nil
// when the sensor has nothing to report.
type Sensor interface {
	Open() error
	Close() error
	Read() *packet.Packet
	Channels() []ChannelInfo
	Info() Info
	SelfTest() bool
}

// ValueGenerator produces one sample value for a simulated channel.
type ValueGenerator func() float64

// NaNValueGenerator is the placeholder generator used by default.
func NaNValueGenerator() float64 { return math.NaN() }

// RandomValueGenerator draws from a standard Gaussian, useful for
// exercising the pipeline without hardware.
func RandomValueGenerator() float64 { return rand.NormFloat64() }

// SimulatedInfo identifies the built-in simulated sensor.
var SimulatedInfo = Info{SerialNumber: "DUMMY53N50RFTW", Name: "Simulated torque sensor", TurnsInFullTurn: 3}

// Simulated is a sensor with no hardware behind it. Registered channels
// are filled from the configured value generator on each read.
type Simulated struct {
	Generator ValueGenerator
	// Delay overrides the default inter-sample pacing.
	Delay time.Duration

	channels []ChannelInfo
	lastRead time.Time
}

// NewSimulated returns a simulated sensor with the NaN placeholder
// generator and no channels registered.
func NewSimulated() *Simulated {
	return &Simulated{Generator: NaNValueGenerator, Delay: SampleDelay}
}

func (s *Simulated) Open() error  { return nil }
func (s *Simulated) Close() error { return nil }

func (s *Simulated) Info() Info { return SimulatedInfo }

func (s *Simulated) Channels() []ChannelInfo {
	return append([]ChannelInfo(nil), s.channels...)
}

// RegisterChannel adds a channel to the read set. Only registered
// channels are recorded. Duplicate names are permitted; the packet
// column map makes the last one win.
func (s *Simulated) RegisterChannel(c ChannelInfo) {
	s.channels = append(s.channels, c)
}

// UnregisterChannel removes the first matching channel, reporting
// whether one was found.
func (s *Simulated) UnregisterChannel(c ChannelInfo) bool {
	for i, have := range s.channels {
		if have == c {
			s.channels = append(s.channels[:i], s.channels[i+1:]...)
			return true
		}
	}
	return false
}

// SelfTest opens and immediately closes the sensor, reporting success.
// Producers use it to gate registration.
func (s *Simulated) SelfTest() bool { return selfTest(s) }

// Read returns one row timestamped now with one value per registered
// channel, or nil when no channels are registered. Consecutive reads
// are paced by SampleDelay.
func (s *Simulated) Read() *packet.Packet {
	if len(s.channels) == 0 {
		return nil
	}
	pace(&s.lastRead, s.Delay)
	data := make(map[string][]float64, len(s.channels))
	for _, c := range s.channels {
		data[c.String()] = []float64{s.Generator()}
	}
	return packet.New([]time.Time{time.Now().UTC()}, data)
}

func selfTest(s Sensor) bool {
	if err := s.Open(); err != nil {
		return false
	}
	return s.Close() == nil
}

// pace sleeps whatever remains of delay since the previous call.
func pace(last *time.Time, delay time.Duration) {
	if wait := delay - time.Since(*last); wait > 0 {
		time.Sleep(wait)
	}
	*last = time.Now()
}
