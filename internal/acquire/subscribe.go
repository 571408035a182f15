package acquire

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/track.monitor/internal/monitoring"
	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/serialmux"
	"github.com/banshee-data/track.monitor/internal/session"
	"github.com/banshee-data/track.monitor/internal/timeutil"
)

// Handler receives decoded observations. *session.Store implements it.
type Handler interface {
	OnSpeed(session.SpeedObservation) error
	OnMotion(motion.RawMotion) (motion.Sample, error)
}

// Counters report what a subscription has seen.
type Counters struct {
	Lines    uint64 `json:"lines"`
	Motion   uint64 `json:"motion"`
	Speed    uint64 `json:"speed"`
	Rejected uint64 `json:"rejected"`
	Ignored  uint64 `json:"ignored"`
}

// Subscription is a running line consumer. Cancel stops it; Done is closed
// once it has stopped and unsubscribed from the mux.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	lines, motion, speed, rejected, ignored atomic.Uint64

	mu   sync.Mutex
	hdop float64
}

// Cancel stops the subscription. It is safe to call more than once.
func (s *Subscription) Cancel() { s.cancel() }

// Done is closed when the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Counters returns a snapshot of the counters.
func (s *Subscription) Counters() Counters {
	return Counters{
		Lines:    s.lines.Load(),
		Motion:   s.motion.Load(),
		Speed:    s.speed.Load(),
		Rejected: s.rejected.Load(),
		Ignored:  s.ignored.Load(),
	}
}

// maxLoggedErrors bounds per-subscription error logging.
const maxLoggedErrors = 10

// Subscribe consumes lines from mux and posts observations to h until ctx is
// done, Cancel is called or the mux closes the channel. Motion observations
// without a device timestamp are stamped with clock.
func Subscribe(ctx context.Context, mux serialmux.SerialMuxInterface, h Handler, clock timeutil.Clock) *Subscription {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	id, lines := mux.Subscribe()

	go func() {
		defer close(sub.done)
		defer mux.Unsubscribe(id)
		var logged int
		for {
			select {
			case <-ctx.Done():
				return
			case line, ok := <-lines:
				if !ok {
					return
				}
				sub.lines.Add(1)
				if err := sub.dispatch(line, h, clock); err != nil && logged < maxLoggedErrors {
					logged++
					monitoring.Logf("%s: dropped line %q: %v", mux.Name(), line, err)
				}
			}
		}
	}()
	return sub
}

func (s *Subscription) dispatch(line string, h Handler, clock timeutil.Clock) error {
	switch serialmux.ClassifyLine(line) {
	case serialmux.LineMotion:
		raw, err := ParseMotion(line)
		if err != nil {
			s.rejected.Add(1)
			return err
		}
		if raw.Timestamp == 0 {
			raw.Timestamp = clock.Now().UnixMilli()
		}
		if _, err := h.OnMotion(raw); err != nil {
			if errors.Is(err, session.ErrInvalidState) {
				// Not recording.
				s.ignored.Add(1)
				return nil
			}
			s.rejected.Add(1)
			return err
		}
		s.motion.Add(1)
		return nil

	case serialmux.LineNMEA:
		sentence, err := ParseNMEA(line)
		if err != nil {
			s.rejected.Add(1)
			return err
		}
		if hdop, ok := HDOPFromGGA(sentence); ok {
			s.mu.Lock()
			s.hdop = hdop
			s.mu.Unlock()
			return nil
		}
		obs, err := SpeedFromNMEA(sentence)
		if errors.Is(err, ErrUnsupported) {
			s.ignored.Add(1)
			return nil
		}
		if err != nil {
			s.rejected.Add(1)
			return err
		}
		s.mu.Lock()
		obs.Accuracy = s.hdop
		s.mu.Unlock()
		obs.Timestamp = clock.Now().UnixMilli()
		if err := h.OnSpeed(obs); err != nil {
			s.rejected.Add(1)
			return err
		}
		s.speed.Add(1)
		return nil
	}
	s.ignored.Add(1)
	return nil
}
