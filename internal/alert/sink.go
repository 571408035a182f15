package alert

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/banshee-data/track.monitor/internal/monitoring"
)

// Sink receives alert events. Emit must not block the caller for long: the
// session store calls it while holding its lock.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// LogSink writes events to the monitoring logger.
type LogSink struct{}

// Emit logs e.
func (LogSink) Emit(e Event) {
	monitoring.Logf("alert: %s", e)
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

// Emit forwards e to every sink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Settings gates which events reach a device, per severity and for the
// session start/stop/resync cues.
type Settings struct {
	Enabled       bool `json:"enabled"`
	AlertLA       bool `json:"alert_la"`
	AlertLI       bool `json:"alert_li"`
	AlertLAI      bool `json:"alert_lai"`
	SessionEvents bool `json:"session_events"`
}

// DefaultSettings enables everything.
func DefaultSettings() Settings {
	return Settings{Enabled: true, AlertLA: true, AlertLI: true, AlertLAI: true, SessionEvents: true}
}

// Allows reports whether e passes the settings.
func (s Settings) Allows(e Event) bool {
	if !s.Enabled {
		return false
	}
	if e.Kind != KindThreshold {
		return s.SessionEvents
	}
	switch e.Severity {
	case LA:
		return s.AlertLA
	case LI:
		return s.AlertLI
	case LAI:
		return s.AlertLAI
	}
	return false
}

// Filtered wraps next so that only events allowed by settings reach it.
func Filtered(settings Settings, next Sink) Sink {
	return SinkFunc(func(e Event) {
		if settings.Allows(e) {
			next.Emit(e)
		}
	})
}

// CommandSender writes a line-oriented command to a device.
type CommandSender interface {
	SendCommand(string) error
}

// DefaultSerialQueue is the number of tone commands a SerialSink holds
// while the device is busy.
const DefaultSerialQueue = 16

// SerialSink drives a buzzer attached to a serial line with
// "TONE <hz> <ms> <waveform>" commands. Writes happen on a background
// goroutine; Emit never waits for the device and drops commands while the
// queue is full.
type SerialSink struct {
	dev   CommandSender
	queue chan string
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewSerialSink returns a sink writing to dev through a queue of `queue`
// commands (DefaultSerialQueue when queue < 1). Close stops the writer.
func NewSerialSink(dev CommandSender, queue int) *SerialSink {
	if queue < 1 {
		queue = DefaultSerialQueue
	}
	s := &SerialSink{dev: dev, queue: make(chan string, queue), done: make(chan struct{})}
	go s.run()
	return s
}

func (s *SerialSink) run() {
	defer close(s.done)
	for cmd := range s.queue {
		if err := s.dev.SendCommand(cmd); err != nil {
			monitoring.Logf("alert: failed to send %q: %v", cmd, err)
		}
	}
}

// Emit queues the tone command for e. Write failures are logged, never returned.
func (s *SerialSink) Emit(e Event) {
	if e.Tone.FrequencyHz == 0 {
		return
	}
	cmd := fmt.Sprintf("TONE %d %d %s", e.Tone.FrequencyHz, e.Tone.DurationMs, e.Tone.Waveform)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- cmd:
	default:
		monitoring.Logf("alert: buzzer busy, dropped %q", cmd)
	}
}

// Close stops accepting commands and waits for queued ones to be written.
func (s *SerialSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

// Broadcaster fans events out to any number of subscribers, dropping events
// for subscribers whose buffer is full.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	buffer      int
}

// NewBroadcaster creates a Broadcaster whose subscriber channels hold buffer events.
func NewBroadcaster(buffer int) *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]chan Event), buffer: buffer}
}

func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber.
func (b *Broadcaster) Subscribe() (string, <-chan Event) {
	id := randomID()
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Emit delivers e to every subscriber without blocking.
func (b *Broadcaster) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
