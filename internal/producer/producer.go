// Package producer drives a set of registered sensors and pushes their
// samples through a background acquisition process.
package producer

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stumelius/cranio-sub000/internal/packet"
	"github.com/stumelius/cranio-sub000/internal/sensor"
)

// Producer fans reads out over its registered sensors and collects the
// resulting packets. Registration is gated on the sensor's self test.
type Producer struct {
	sensors []sensor.Sensor
	log     *zap.Logger
}

// New returns an empty producer. A nil log disables logging.
func New(log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{log: log}
}

// Register adds a sensor after a passing self test.
func (p *Producer) Register(s sensor.Sensor) error {
	if !s.SelfTest() {
		return fmt.Errorf("sensor %s did not pass self test", s.Info().Name)
	}
	p.sensors = append(p.sensors, s)
	p.log.Info("sensor registered", zap.String("sensor", s.Info().Name))
	return nil
}

// Unregister removes a previously registered sensor. It reports whether
// the sensor was found.
func (p *Producer) Unregister(s sensor.Sensor) bool {
	for i, registered := range p.sensors {
		if registered == s {
			p.sensors = append(p.sensors[:i], p.sensors[i+1:]...)
			return true
		}
	}
	return false
}

// Sensors returns the registered sensors in registration order.
func (p *Producer) Sensors() []sensor.Sensor {
	return append([]sensor.Sensor(nil), p.sensors...)
}

// Open opens every registered sensor.
func (p *Producer) Open() error {
	for _, s := range p.sensors {
		if err := s.Open(); err != nil {
			return fmt.Errorf("open sensor %s: %w", s.Info().Name, err)
		}
	}
	return nil
}

// Close closes every registered sensor. The first error wins but all
// sensors get a close attempt.
func (p *Producer) Close() error {
	var firstErr error
	for _, s := range p.sensors {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close sensor %s: %w", s.Info().Name, err)
		}
	}
	return firstErr
}

// Read reads one packet from each sensor, in registration order.
// Sensors with nothing to report are skipped.
func (p *Producer) Read() []*packet.Packet {
	packets := make([]*packet.Packet, 0, len(p.sensors))
	for _, s := range p.sensors {
		if pkt := s.Read(); pkt != nil {
			packets = append(packets, pkt)
		}
	}
	return packets
}

// SecondsSince converts an index of absolute timestamps to seconds
// elapsed since t0.
func SecondsSince(t0 time.Time, index []time.Time) []float64 {
	out := make([]float64, len(index))
	for i, t := range index {
		out[i] = t.Sub(t0).Seconds()
	}
	return out
}
