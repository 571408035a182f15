package stats

import (
	"math"
	"testing"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func sample(ts int64, y, z float64) motion.Sample {
	return motion.NewSample(ts, 0, y, z, nil)
}

func TestAggregator_Decimation(t *testing.T) {
	a := NewAggregator(alert.DefaultThresholds(), 5)
	a.Reset(alert.DefaultThresholds(), 1000)

	for i := 1; i <= 4; i++ {
		snap, published := a.Update(sample(int64(i)*20, 3.0, 9.8), i, 1000+int64(i)*20)
		if published {
			t.Fatalf("sample %d should not republish", i)
		}
		if snap.Samples != 0 || snap.CountLAI != 0 {
			t.Fatalf("snapshot moved before the 5th sample: %+v", snap)
		}
	}

	snap, published := a.Update(sample(100, 0, 9.8), 5, 1100)
	if !published {
		t.Fatal("5th sample should republish")
	}
	want := Summary{
		MaxVertical:     9.8,
		MaxLateral:      3.0,
		DurationSeconds: 0.1,
		CountLAI:        4,
		StartTime:       1000,
		Samples:         5,
	}
	want.MeanMagnitude = (4*math.Sqrt(9+96.04) + 9.8) / 5
	if diff := cmp.Diff(want, snap, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregator_CountersExclusive(t *testing.T) {
	th := alert.Thresholds{LA: 1.2, LI: 2.2, LAI: 2.8}
	a := NewAggregator(th, 1)
	a.Reset(th, 0)

	ys := []float64{0, 1.19, 1.2, -1.8, 2.2, -2.5, 2.8, -10, 0.5}
	for i, y := range ys {
		a.Update(sample(int64(i), y, 0), i+1, int64(i))
	}
	got := a.Snapshot()
	if got.CountLA != 2 || got.CountLI != 2 || got.CountLAI != 2 {
		t.Errorf("counts = LA %d LI %d LAI %d, want 2/2/2", got.CountLA, got.CountLI, got.CountLAI)
	}
	if got.Alerts() > got.Samples {
		t.Errorf("alerts %d exceed samples %d", got.Alerts(), got.Samples)
	}
}

func TestAggregator_MeanIsExactRegardlessOfCadence(t *testing.T) {
	mags := []float64{1, 2, 3, 4, 5, 6, 7}
	for _, every := range []int{1, 3, 5, 100} {
		a := NewAggregator(alert.DefaultThresholds(), every)
		a.Reset(alert.DefaultThresholds(), 0)
		for i, m := range mags {
			a.Update(motion.NewSample(int64(i), m, 0, 0, nil), i+1, int64(i))
		}
		got := a.Flush(int64(len(mags)))
		if math.Abs(got.MeanMagnitude-4) > 1e-12 {
			t.Errorf("every=%d mean = %v, want 4", every, got.MeanMagnitude)
		}
	}
}

func TestAggregator_MaximaMonotone(t *testing.T) {
	a := NewAggregator(alert.DefaultThresholds(), 1)
	a.Reset(alert.DefaultThresholds(), 0)
	prev := Summary{}
	for i, v := range []float64{1, -4, 2, 0, -3, 5} {
		got, _ := a.Update(sample(int64(i), v, -v), i+1, int64(i))
		if got.MaxLateral < prev.MaxLateral || got.MaxVertical < prev.MaxVertical {
			t.Fatalf("maxima decreased: %+v -> %+v", prev, got)
		}
		prev = got
	}
	if prev.MaxLateral != 5 || prev.MaxVertical != 5 {
		t.Errorf("final maxima = %v/%v, want 5/5", prev.MaxLateral, prev.MaxVertical)
	}
}

func TestAggregator_ResetAndDefaults(t *testing.T) {
	a := NewAggregator(alert.DefaultThresholds(), 0)
	if a.Decimation() != DefaultDecimation {
		t.Fatalf("Decimation() = %d, want %d", a.Decimation(), DefaultDecimation)
	}
	a.Reset(alert.DefaultThresholds(), 0)
	a.Update(sample(10, 3, 3), 1, 10)
	a.Flush(10)
	a.Reset(alert.DefaultThresholds(), 500)
	if diff := cmp.Diff(Summary{StartTime: 500}, a.Snapshot()); diff != "" {
		t.Errorf("snapshot after Reset (-want +got):\n%s", diff)
	}
}

func TestAggregator_DurationUsesHostClock(t *testing.T) {
	a := NewAggregator(alert.DefaultThresholds(), 1)
	a.Reset(alert.DefaultThresholds(), 1_700_000_000_000)

	// Device timestamps count from boot and never reach the host epoch.
	got, _ := a.Update(sample(5, 0, 9.8), 1, 1_700_000_004_000)
	if got.DurationSeconds != 4 {
		t.Errorf("duration = %v, want 4", got.DurationSeconds)
	}
	if got := a.Flush(1_700_000_000_000 - 1); got.DurationSeconds != 0 {
		t.Errorf("duration before start = %v, want 0", got.DurationSeconds)
	}
}
