package sensor

import "fmt"

// ChannelInfo identifies one input channel as a (name, unit) pair. Its
// string form is the canonical column key used in packets and plots.
type ChannelInfo struct {
	Name string
	Unit string
}

func (c ChannelInfo) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Unit)
}

// Info carries sensor hardware identity used when persisting a document.
type Info struct {
	SerialNumber    string
	Name            string
	TurnsInFullTurn int
}
