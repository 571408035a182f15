package alert

import "fmt"

// Kind distinguishes threshold alerts from session lifecycle cues.
type Kind string

const (
	KindThreshold    Kind = "threshold"
	KindSessionStart Kind = "session_start"
	KindSessionStop  Kind = "session_stop"
	KindResync       Kind = "resync"
)

// Waveform names the oscillator shape a sound device should use.
type Waveform string

const (
	Sine   Waveform = "sine"
	Square Waveform = "square"
)

// Tone is a suggested audible rendering of an event. Sinks are free to ignore it.
type Tone struct {
	FrequencyHz int      `json:"frequency_hz"`
	DurationMs  int      `json:"duration_ms"`
	Waveform    Waveform `json:"waveform"`
}

var tones = map[Kind]Tone{
	KindSessionStart: {440, 200, Sine},
	KindSessionStop:  {220, 300, Sine},
	KindResync:       {880, 100, Sine},
}

var severityTones = map[Severity]Tone{
	LA:  {600, 200, Sine},
	LI:  {1000, 300, Sine},
	LAI: {1500, 400, Square},
}

// ToneFor returns the tone associated with a kind/severity pair.
func ToneFor(kind Kind, sev Severity) Tone {
	if kind == KindThreshold {
		return severityTones[sev]
	}
	return tones[kind]
}

// Event is an abstract alert delivered to a Sink.
type Event struct {
	Kind      Kind     `json:"kind"`
	Severity  Severity `json:"severity"`
	Timestamp int64    `json:"timestamp"`
	Lateral   float64  `json:"lateral"`
	Position  float64  `json:"pk"`
	Tone      Tone     `json:"tone"`
}

// NewEvent builds an event with its default tone.
func NewEvent(kind Kind, sev Severity, ts int64, lateral, pos float64) Event {
	return Event{
		Kind:      kind,
		Severity:  sev,
		Timestamp: ts,
		Lateral:   lateral,
		Position:  pos,
		Tone:      ToneFor(kind, sev),
	}
}

func (e Event) String() string {
	if e.Kind == KindThreshold {
		return fmt.Sprintf("%s |y|=%.2f m/s² at PK %.4f", e.Severity, e.Lateral, e.Position)
	}
	return fmt.Sprintf("%s at PK %.4f", e.Kind, e.Position)
}
