package producer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stumelius/cranio-sub000/internal/packet"
)

const (
	// DefaultQueueCapacity bounds the record queue between the
	// acquisition goroutine and the consumer.
	DefaultQueueCapacity = 1024
	// DefaultIdleInterval is how long the acquisition loop sleeps while
	// started but paused.
	DefaultIdleInterval = 10 * time.Millisecond
)

// Record is one produced packet tagged with the identity of the process
// that produced it.
type Record struct {
	ProducerID string
	Packet     *packet.Packet
}

// Process runs a Producer on a background goroutine. The controlling
// side and the goroutine communicate only through the start and stop
// latches and the bounded record queue.
//
// The goroutine exits when the stop latch is set or, failing that, when
// the force channel closes during an escalated Join.
type Process struct {
	name     string
	id       string
	producer *Producer
	log      *zap.Logger

	start Latch
	stop  Latch

	records chan Record

	mu        sync.Mutex
	done      chan struct{}
	force     chan struct{}
	forceOnce *sync.Once
	spawned   bool

	cache *packet.Packet

	idleInterval time.Duration
}

// NewProcess wraps prod in a named, startable process. A nil log
// disables logging.
func NewProcess(name string, prod *Producer, log *zap.Logger) *Process {
	return NewProcessWithCapacity(name, prod, log, DefaultQueueCapacity)
}

// NewProcessWithCapacity is NewProcess with a custom record queue size.
func NewProcessWithCapacity(name string, prod *Producer, log *zap.Logger, capacity int) *Process {
	if log == nil {
		log = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Process{
		name:         name,
		id:           uuid.NewString(),
		producer:     prod,
		log:          log,
		records:      make(chan Record, capacity),
		idleInterval: DefaultIdleInterval,
	}
}

func (p *Process) Name() string        { return p.name }
func (p *Process) String() string      { return fmt.Sprintf("%s (%s)", p.name, p.id) }
func (p *Process) Producer() *Producer { return p.producer }

// IsAlive reports whether the acquisition goroutine is running.
func (p *Process) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aliveLocked()
}

func (p *Process) aliveLocked() bool {
	if !p.spawned {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Start begins production, spawning the acquisition goroutine if it is
// not already running. Starting a started process is a no-op.
func (p *Process) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop.Clear()
	if !p.aliveLocked() {
		p.done = make(chan struct{})
		p.force = make(chan struct{})
		p.forceOnce = &sync.Once{}
		p.spawned = true
		go p.run(p.done, p.force)
		p.log.Info("producer process spawned", zap.String("process", p.String()))
	}
	p.start.Set()
}

// Pause suspends production. The goroutine stays alive and idles until
// Resume or Join.
func (p *Process) Pause() {
	p.start.Clear()
}

// Resume continues production after a pause.
func (p *Process) Resume() {
	p.start.Set()
}

func (p *Process) run(done, force chan struct{}) {
	defer close(done)
	if err := p.producer.Open(); err != nil {
		p.log.Error("open producer failed", zap.String("process", p.String()), zap.Error(err))
		return
	}
	defer func() {
		if err := p.producer.Close(); err != nil {
			p.log.Error("close producer failed", zap.String("process", p.String()), zap.Error(err))
		}
	}()
	for !p.stop.IsSet() {
		select {
		case <-force:
			return
		default:
		}
		if !p.start.IsSet() {
			time.Sleep(p.idleInterval)
			continue
		}
		for _, pkt := range p.producer.Read() {
			rec := Record{ProducerID: p.id, Packet: pkt}
			select {
			case p.records <- rec:
			case <-force:
				return
			}
		}
	}
}

// Join stops the process and waits for the goroutine to exit. If the
// goroutine does not exit within timeout it is force-quit and an error
// is returned. The wait after a force quit is bounded too: a producer
// stuck inside a blocking read cannot hold Join forever.
func (p *Process) Join(timeout time.Duration) error {
	p.mu.Lock()
	if !p.spawned {
		p.mu.Unlock()
		return nil
	}
	done, force, once := p.done, p.force, p.forceOnce
	p.mu.Unlock()

	p.stop.Set()

	var joinErr error
	select {
	case <-done:
	case <-time.After(timeout):
		p.log.Error("producer process did not stop in time, forcing quit",
			zap.String("process", p.String()), zap.Duration("timeout", timeout))
		once.Do(func() { close(force) })
		select {
		case <-done:
			joinErr = fmt.Errorf("producer process %s did not join within %s", p.name, timeout)
		case <-time.After(timeout):
			joinErr = fmt.Errorf("producer process %s did not stop after force quit", p.name)
		}
	}

	p.mu.Lock()
	p.spawned = false
	p.mu.Unlock()
	p.log.Info("producer process joined", zap.String("process", p.String()))
	return joinErr
}

// Drain removes and returns all records currently queued, without
// blocking.
func (p *Process) Drain() []Record {
	var out []Record
	for {
		select {
		case rec := <-p.records:
			out = append(out, rec)
		default:
			return out
		}
	}
}

// Read drains the queue, concatenates the drained packets, and returns
// the result. With includeCache the drained data is appended to the
// running cache and the whole cache is returned; otherwise only the
// freshly drained data is returned and the cache is untouched.
func (p *Process) Read(includeCache bool) *packet.Packet {
	var combined *packet.Packet
	if records := p.Drain(); len(records) > 0 {
		fresh := make([]*packet.Packet, len(records))
		for i, rec := range records {
			fresh[i] = rec.Packet
		}
		combined = packet.Concat(fresh...)
	}
	if !includeCache {
		return combined
	}
	if combined != nil {
		p.cache = packet.Concat(p.cache, combined)
	}
	return p.cache
}

// ClearCache discards the accumulated cache.
func (p *Process) ClearCache() {
	p.cache = nil
}
