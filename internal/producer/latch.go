package producer

import "sync/atomic"

// Latch is a set/clear flag shared between the controlling side and the
// acquisition goroutine. It mirrors an event flag: setting an already
// set latch is a no-op.
type Latch struct {
	flag atomic.Bool
}

func (l *Latch) Set()        { l.flag.Store(true) }
func (l *Latch) Clear()      { l.flag.Store(false) }
func (l *Latch) IsSet() bool { return l.flag.Load() }
