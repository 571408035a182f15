package acquire

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/track.monitor/internal/serialmux"
)

// SimulatedMotion emits one ACC line per tick: gravity on z, small noise on
// every axis and a lateral sway burst every swayEvery.
func SimulatedMotion(swayEvery time.Duration, peak float64) serialmux.LineGenerator {
	start := time.Now()
	return func(now time.Time) []string {
		el := now.Sub(start)
		y := rand.NormFloat64() * 0.15
		if swayEvery > 0 {
			phase := float64(el%swayEvery) / float64(time.Second)
			if phase < 0.5 {
				y += peak * math.Sin(2*math.Pi*phase)
			}
		}
		x := rand.NormFloat64() * 0.1
		z := 9.81 + rand.NormFloat64()*0.3
		return []string{fmt.Sprintf("ACC,%d,%.4f,%.4f,%.4f", now.UnixMilli(), x, y, z)}
	}
}

// SimulatedGPS emits RMC and GGA sentences for a constant speed in km/h.
func SimulatedGPS(kmh float64) serialmux.LineGenerator {
	return func(now time.Time) []string {
		utc := now.UTC()
		knots := kmh / 1.852
		rmc := fmt.Sprintf("GPRMC,%s,A,4851.000,N,00221.000,E,%.1f,090.0,%s,,,A",
			utc.Format("150405.00"), knots, utc.Format("020106"))
		gga := fmt.Sprintf("GPGGA,%s,4851.000,N,00221.000,E,1,09,0.9,35.0,M,46.9,M,,",
			utc.Format("150405.00"))
		return []string{withChecksum(rmc), withChecksum(gga)}
	}
}

func withChecksum(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}
