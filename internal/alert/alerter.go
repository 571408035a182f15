package alert

import (
	"time"

	"github.com/banshee-data/track.monitor/internal/motion"
)

// DefaultCooldown is the minimum spacing between two emitted alerts.
const DefaultCooldown = 400 * time.Millisecond

// Alerter debounces threshold alerts. Any emitted alert, whatever its
// severity, opens a cooldown window during which every other alert is
// suppressed, including a higher severity one.
type Alerter struct {
	thresholds Thresholds
	cooldown   time.Duration
	last       int64
	hasLast    bool
}

// NewAlerter returns an Alerter. A non-positive cooldown selects DefaultCooldown.
func NewAlerter(th Thresholds, cooldown time.Duration) *Alerter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Alerter{thresholds: th, cooldown: cooldown}
}

// Reset installs new thresholds and clears the cooldown clock.
func (a *Alerter) Reset(th Thresholds) {
	a.thresholds = th
	a.last = 0
	a.hasLast = false
}

// Thresholds returns the active thresholds.
func (a *Alerter) Thresholds() Thresholds { return a.thresholds }

// Cooldown returns the debounce window.
func (a *Alerter) Cooldown() time.Duration { return a.cooldown }

// Classify returns the severity of s without touching the cooldown state.
func (a *Alerter) Classify(s motion.Sample) Severity {
	return a.thresholds.Classify(s.Y)
}

// ShouldEmit classifies s and reports whether an alert must be raised at
// now (unix ms). On emission the cooldown clock restarts at now.
func (a *Alerter) ShouldEmit(s motion.Sample, now int64) (Severity, bool) {
	sev := a.Classify(s)
	if sev == None {
		return None, false
	}
	if a.hasLast && time.Duration(now-a.last)*time.Millisecond < a.cooldown {
		return sev, false
	}
	a.last = now
	a.hasLast = true
	return sev, true
}

// LastAlert returns the timestamp of the last emitted alert.
func (a *Alerter) LastAlert() (int64, bool) {
	return a.last, a.hasLast
}
