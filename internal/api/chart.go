package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/httputil"
	"github.com/banshee-data/track.monitor/internal/motion"
)

// maxChartPoints caps the points plotted per series.
const maxChartPoints = 2000

// sessionChart renders lateral and vertical acceleration against PK for the
// record named by ?id=, or for the live buffer when id is empty.
func (s *Server) sessionChart(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	var (
		samples  []motion.Sample
		th       alert.Thresholds
		title    string
		subtitle string
	)
	if id == "" {
		st := s.store.Status()
		samples = s.store.Buffer()
		th = st.Config.Thresholds
		if th.IsZero() {
			th = alert.DefaultThresholds()
		}
		title = "Live session"
		subtitle = fmt.Sprintf("state=%s samples=%d", st.State, len(samples))
	} else {
		rec, err := s.store.Record(id)
		if err != nil {
			writeError(w, err)
			return
		}
		samples = rec.Samples
		th = rec.Stats.Thresholds
		title = fmt.Sprintf("Session %s", rec.ID)
		subtitle = fmt.Sprintf("%s line=%s track=%s samples=%d", rec.Date.Format("2006-01-02 15:04"), rec.Stats.Line, rec.Stats.Track, len(samples))
	}

	stride := 1
	if len(samples) > maxChartPoints {
		stride = (len(samples) + maxChartPoints - 1) / maxChartPoints
	}

	n := (len(samples) + stride - 1) / stride
	xs := make([]string, 0, n)
	lateral := make([]opts.LineData, 0, n)
	vertical := make([]opts.LineData, 0, n)
	la := make([]opts.LineData, 0, n)
	li := make([]opts.LineData, 0, n)
	lai := make([]opts.LineData, 0, n)
	last := 0.0
	for i := 0; i < len(samples); i += stride {
		smp := samples[i]
		last = smp.PositionOr(last)
		xs = append(xs, fmt.Sprintf("%.4f", last))
		lateral = append(lateral, opts.LineData{Value: smp.Y})
		vertical = append(vertical, opts.LineData{Value: smp.Z})
		la = append(la, opts.LineData{Value: th.LA})
		li = append(li, opts.LineData{Value: th.LI})
		lai = append(lai, opts.LineData{Value: th.LAI})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track Monitor", Theme: "dark", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "PK (km)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m/s²", NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(xs).
		AddSeries("lateral (y)", lateral).
		AddSeries("vertical (z)", vertical).
		AddSeries("LA", la, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed", Color: "#fde725"})).
		AddSeries("LI", li, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed", Color: "#f98e09"})).
		AddSeries("LAI", lai, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed", Color: "#e03b24"}))
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
