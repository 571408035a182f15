package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/diagnosis"
	"github.com/banshee-data/track.monitor/internal/monitoring"
	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/position"
	"github.com/banshee-data/track.monitor/internal/stats"
	"github.com/banshee-data/track.monitor/internal/timeutil"
	"github.com/banshee-data/track.monitor/internal/units"
	"github.com/google/uuid"
)

// State is the lifecycle state of the store.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Persister durably stores the history list.
type Persister interface {
	LoadHistory(ctx context.Context) ([]Record, error)
	SaveHistory(ctx context.Context, records []Record) error
}

// SpeedObservation is a speed fix from the GPS collaborator. Speed is
// expressed in Units, or in the store's configured units when Units is empty.
type SpeedObservation struct {
	Speed     float64 `json:"speed"`
	Units     string  `json:"units,omitempty"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
}

// Options configures a Store. Zero values select the defaults.
type Options struct {
	HistoryCap int
	Cooldown   time.Duration
	Decimation int
	SpeedUnits string
	Clock      timeutil.Clock
	Sink       alert.Sink
	Persister  Persister
}

// Status is a point-in-time view of the live session.
type Status struct {
	State     State         `json:"state"`
	Speed     float64       `json:"speed_mps"`
	SpeedKmh  float64       `json:"speed_kmh"`
	Accuracy  float64       `json:"accuracy"`
	Position  float64       `json:"pk"`
	Config    Config        `json:"config"`
	Stats     stats.Summary `json:"stats"`
	BufferLen int           `json:"buffer_len"`
	Rejected  int           `json:"rejected"`
	LastAlert int64         `json:"last_alert,omitempty"`
}

// Store is the single owner of all mutable session state. Every mutation,
// whether it comes from the motion stream, the speed stream or a user
// command, is serialised by one mutex so that position integration always
// sees a consistent (speed, elapsed) pair.
type Store struct {
	mu sync.Mutex

	clock      timeutil.Clock
	sink       alert.Sink
	persister  Persister
	speedUnits string

	state   State
	cfg     Config
	tracker *position.Tracker
	sampler *motion.Sampler
	alerter *alert.Alerter
	agg     *stats.Aggregator
	buffer  []motion.Sample
	history *History

	speed     float64 // m/s
	accuracy  float64
	lastTS    int64
	hasLastTS bool
	rejected  int

	persistMu sync.Mutex
	version   uint64
	saved     uint64
}

// NewStore builds an idle store.
func NewStore(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Sink == nil {
		opts.Sink = alert.Discard
	}
	if !units.IsValid(opts.SpeedUnits) {
		opts.SpeedUnits = units.MPS
	}
	tracker := position.NewTracker(0)
	return &Store{
		clock:      opts.Clock,
		sink:       opts.Sink,
		persister:  opts.Persister,
		speedUnits: opts.SpeedUnits,
		tracker:    tracker,
		sampler:    motion.NewSampler(tracker),
		alerter:    alert.NewAlerter(alert.DefaultThresholds(), opts.Cooldown),
		agg:        stats.NewAggregator(alert.DefaultThresholds(), opts.Decimation),
		history:    NewHistory(opts.HistoryCap),
	}
}

// Load replaces the in-memory history with the persisted one.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	records, err := s.persister.LoadHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session history: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Replace(records)
	s.version++
	s.saved = s.version
	return nil
}

// Start begins a new recording.
func (s *Store) Start(cfg Config) error {
	cfg, err := cfg.Normalize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, s.state)
	}

	now := s.clock.Now().UnixMilli()
	s.cfg = cfg
	s.buffer = nil
	s.tracker.Reset(cfg.StartPosition)
	s.alerter.Reset(cfg.Thresholds)
	s.agg.Reset(cfg.Thresholds, now)
	s.hasLastTS = false
	s.rejected = 0
	s.state = Recording

	monitoring.Logf("session started at PK %.4f (%s, track %q)", cfg.StartPosition, cfg.Direction, cfg.Track)
	s.sink.Emit(alert.NewEvent(alert.KindSessionStart, alert.None, now, 0, cfg.StartPosition))
	return nil
}

// OnSpeed records the latest speed fix. Speed is accepted in any state so the
// live status shows it before a session starts.
func (s *Store) OnSpeed(obs SpeedObservation) error {
	if !(obs.Speed >= 0) || math.IsInf(obs.Speed, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, obs.Speed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := obs.Units
	if !units.IsValid(u) {
		u = s.speedUnits
	}
	s.speed = units.ToMPS(obs.Speed, u)
	s.accuracy = obs.Accuracy
	return nil
}

// OnMotion integrates the position over the time elapsed since the previous
// motion observation, then samples raw and ingests the result.
func (s *Store) OnMotion(raw motion.RawMotion) (motion.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Recording {
		return motion.Sample{}, fmt.Errorf("%w: motion while %s", ErrInvalidState, s.state)
	}

	sample, err := s.sampler.OnRawMotion(raw)
	if err != nil {
		s.rejected++
		return motion.Sample{}, err
	}

	var elapsed float64
	if s.hasLastTS {
		elapsed = float64(raw.Timestamp-s.lastTS) / 1000
	}
	s.lastTS = raw.Timestamp
	s.hasLastTS = true

	pos := s.tracker.Integrate(s.speed, elapsed, s.cfg.Direction)
	sample.Position = &pos

	s.ingestLocked(sample)
	return sample, nil
}

// Ingest appends an already canonical sample to the live buffer.
func (s *Store) Ingest(sample motion.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Recording {
		return fmt.Errorf("%w: ingest while %s", ErrInvalidState, s.state)
	}
	sample = motion.NewSample(sample.Timestamp, sample.X, sample.Y, sample.Z, sample.Position)
	s.ingestLocked(sample)
	return nil
}

func (s *Store) ingestLocked(sample motion.Sample) {
	s.buffer = append(s.buffer, sample)
	s.agg.Update(sample, len(s.buffer), s.clock.Now().UnixMilli())
	if sev, ok := s.alerter.ShouldEmit(sample, sample.Timestamp); ok {
		s.sink.Emit(alert.NewEvent(alert.KindThreshold, sev, sample.Timestamp, sample.Lateral(), sample.PositionOr(s.tracker.Position())))
	}
}

// Resync overwrites the running PK with a ground-truth value.
func (s *Store) Resync(pk float64) error {
	if math.IsNaN(pk) || math.IsInf(pk, 0) {
		return fmt.Errorf("invalid resync position %v", pk)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Recording {
		return fmt.Errorf("%w: resync while %s", ErrInvalidState, s.state)
	}
	s.tracker.Resync(pk)
	monitoring.Logf("PK resynchronised to %.4f", pk)
	s.sink.Emit(alert.NewEvent(alert.KindResync, alert.None, s.clock.Now().UnixMilli(), 0, pk))
	return nil
}

// Stop finalizes the recording into a Record, prepends it to the history and
// persists the history. A persistence failure is returned wrapped in
// ErrPersistence alongside the finalized record.
func (s *Store) Stop(ctx context.Context) (Record, error) {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return Record{}, fmt.Errorf("%w: stop while %s", ErrInvalidState, s.state)
	}

	now := s.clock.Now()
	rec := Record{
		ID:      newID(),
		Date:    now,
		Source:  Recorded,
		Stats:   Stats{Config: s.cfg, Summary: s.agg.Flush(now.UnixMilli())},
		Samples: s.buffer,
	}
	s.buffer = nil
	s.state = Idle
	s.history.Prepend(rec)
	snapshot, version := s.snapshotLocked()
	s.sink.Emit(alert.NewEvent(alert.KindSessionStop, alert.None, now.UnixMilli(), 0, s.tracker.Position()))
	s.mu.Unlock()

	monitoring.Logf("session %s stopped: %d samples, LA=%d LI=%d LAI=%d",
		rec.ID, len(rec.Samples), rec.Stats.CountLA, rec.Stats.CountLI, rec.Stats.CountLAI)
	return rec, s.persist(ctx, snapshot, version)
}

// Insert prepends an externally built record (e.g. an import) to the history
// and persists it.
func (s *Store) Insert(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.Date.IsZero() {
		rec.Date = s.clock.Now()
	}
	s.history.Prepend(rec)
	snapshot, version := s.snapshotLocked()
	s.mu.Unlock()

	return rec, s.persist(ctx, snapshot, version)
}

// AttachAnalysis stores a diagnosis result on the record with the given id.
func (s *Store) AttachAnalysis(ctx context.Context, id string, result *diagnosis.Analysis) (Record, error) {
	s.mu.Lock()
	i := s.history.Index(id)
	if i < 0 {
		s.mu.Unlock()
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec := s.history.At(i)
	rec.Analysis = result
	s.history.Set(i, rec)
	snapshot, version := s.snapshotLocked()
	s.mu.Unlock()

	return rec, s.persist(ctx, snapshot, version)
}

// Record returns the record with the given id.
func (s *Store) Record(id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.history.Index(id)
	if i < 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.history.At(i), nil
}

// History returns the records, newest first.
func (s *Store) History() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Records()
}

// Status returns the live status.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:     s.state,
		Speed:     s.speed,
		SpeedKmh:  units.ConvertSpeed(s.speed, units.KMPH),
		Accuracy:  s.accuracy,
		Position:  s.tracker.Position(),
		Config:    s.cfg,
		Stats:     s.agg.Snapshot(),
		BufferLen: len(s.buffer),
		Rejected:  s.rejected,
	}
	if ts, ok := s.alerter.LastAlert(); ok {
		st.LastAlert = ts
	}
	return st
}

// Buffer returns a copy of the live samples.
func (s *Store) Buffer() []motion.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]motion.Sample, len(s.buffer))
	copy(out, s.buffer)
	return out
}

func (s *Store) snapshotLocked() ([]Record, uint64) {
	s.version++
	return s.history.shared(), s.version
}

// persist writes snapshot unless a newer snapshot has already been saved.
func (s *Store) persist(ctx context.Context, snapshot []Record, version uint64) error {
	if s.persister == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if version <= s.saved {
		return nil
	}
	if err := s.persister.SaveHistory(ctx, snapshot); err != nil {
		monitoring.Logf("history write failed, keeping %d records in memory: %v", len(snapshot), err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.saved = version
	return nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
