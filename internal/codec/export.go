package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/session"
)

// Precision is the number of decimals written for every non-timestamp field.
const Precision = 4

// Header is the sample export header.
var Header = []string{"timestamp", "position", "x", "y", "z", "magnitude"}

// SummaryHeader is the history summary export header.
var SummaryHeader = []string{
	"id", "date", "operator", "line", "train", "track", "direction", "start_position",
	"max_vertical", "max_lateral", "mean_magnitude", "duration_s",
	"count_la", "count_li", "count_lai", "samples", "severity_level",
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', Precision, 64)
}

// SampleRow renders s in Header order. An untagged sample has an empty position.
func SampleRow(s motion.Sample) []string {
	pos := ""
	if s.Position != nil {
		pos = ftoa(*s.Position)
	}
	return []string{
		strconv.FormatInt(s.Timestamp, 10),
		pos,
		ftoa(s.X),
		ftoa(s.Y),
		ftoa(s.Z),
		ftoa(s.Magnitude),
	}
}

// Export writes the samples of rec.
func Export(w io.Writer, rec session.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range rec.Samples {
		if err := cw.Write(SampleRow(s)); err != nil {
			return fmt.Errorf("write sample %d: %w", s.Timestamp, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SummaryRow renders one history record in SummaryHeader order.
func SummaryRow(rec session.Record) []string {
	st := rec.Stats
	level := ""
	if rec.Analysis != nil {
		level = string(rec.Analysis.SeverityLevel)
	}
	return []string{
		rec.ID,
		rec.Date.UTC().Format("2006-01-02T15:04:05Z"),
		st.Operator,
		st.Line,
		st.Train,
		st.Track,
		string(st.Direction),
		ftoa(st.StartPosition),
		ftoa(st.MaxVertical),
		ftoa(st.MaxLateral),
		ftoa(st.MeanMagnitude),
		strconv.FormatFloat(st.DurationSeconds, 'f', 2, 64),
		strconv.Itoa(st.CountLA),
		strconv.Itoa(st.CountLI),
		strconv.Itoa(st.CountLAI),
		strconv.Itoa(len(rec.Samples)),
		level,
	}
}

// ExportSummary writes one row per record, in the given order.
func ExportSummary(w io.Writer, records []session.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(SummaryRow(rec)); err != nil {
			return fmt.Errorf("write summary %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
