package codec

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/position"
	"github.com/banshee-data/track.monitor/internal/session"
	"github.com/banshee-data/track.monitor/internal/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SyntheticStep spaces samples of a file without a timestamp column (50 Hz).
const SyntheticStep = 20 * time.Millisecond

// maxRowErrors bounds the row errors kept in a Result.
const maxRowErrors = 20

// Result is the outcome of an import.
type Result struct {
	Samples []motion.Sample
	Skipped int
	// RowErrors holds the first row errors, each wrapping ErrMalformedRow.
	RowErrors []error
	Mapping   ColumnMapping
}

// Import reads a header row and data rows from r. Rows with fewer cells
// than the mapping needs are skipped and counted; non-numeric cells read as
// 0. start anchors synthetic timestamps when the file has none.
func Import(r io.Reader, m ColumnMapping, start time.Time) (Result, error) {
	if m.Mode == "" {
		m = FixedMapping()
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, ErrEmptyImport
	}
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	m, err = m.Resolve(header)
	if err != nil {
		return Result{}, err
	}

	res := Result{Mapping: m}
	width := m.width()
	base := start.UnixMilli()
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.skip(fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, perr.Err))
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(row) < width {
			res.skip(fmt.Errorf("%w: line %d has %d columns, want %d", ErrMalformedRow, line, len(row), width))
			continue
		}

		ts := base + int64(len(res.Samples))*SyntheticStep.Milliseconds()
		if m.Timestamp != Absent {
			ts = m.millis(cell(row, m.Timestamp))
		}
		var pos *float64
		if m.Position != Absent && strings.TrimSpace(row[m.Position]) != "" {
			pos = motion.Float(cell(row, m.Position))
		}
		res.Samples = append(res.Samples, motion.NewSample(ts, cell(row, m.X), cell(row, m.Y), cell(row, m.Z), pos))
	}

	if len(res.Samples) == 0 {
		return res, fmt.Errorf("%w (%d rows skipped)", ErrEmptyImport, res.Skipped)
	}
	return res, nil
}

func (r *Result) skip(err error) {
	r.Skipped++
	if len(r.RowErrors) < maxRowErrors {
		r.RowErrors = append(r.RowErrors, err)
	}
}

// cell parses row[i] as a float, coercing blanks, garbage and non-finite
// values to 0. An Absent index reads as 0.
func cell(row []string, i int) float64 {
	if i == Absent {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ImportMetadata is the configuration attached to imported records.
func ImportMetadata(name string) session.Config {
	return session.Config{
		Direction:    position.Increasing,
		Track:        "LGV1",
		Thresholds:   alert.DefaultThresholds(),
		Operator:     "IMPORT",
		Line:         "IMPORT_CSV",
		Train:        "EXTERNE",
		EngineNumber: "N/A",
		CarPosition:  "N/A",
		Note:         "Fichier: " + name,
	}
}

// BuildRecord derives a record from imported samples. Aggregates are computed
// from the sample set itself rather than replayed through live aggregation.
func BuildRecord(cfg session.Config, samples []motion.Sample, date time.Time) session.Record {
	n := len(samples)
	lateral := make([]float64, n)
	vertical := make([]float64, n)
	magnitude := make([]float64, n)

	sum := stats.Summary{Samples: n}
	for i, s := range samples {
		lateral[i] = s.Lateral()
		vertical[i] = s.Vertical()
		magnitude[i] = s.Magnitude
		switch cfg.Thresholds.Classify(s.Y) {
		case alert.LAI:
			sum.CountLAI++
		case alert.LI:
			sum.CountLI++
		case alert.LA:
			sum.CountLA++
		}
	}
	if n > 0 {
		sum.MaxLateral = floats.Max(lateral)
		sum.MaxVertical = floats.Max(vertical)
		sum.MeanMagnitude = stat.Mean(magnitude, nil)
		sum.StartTime = samples[0].Timestamp
		sum.DurationSeconds = math.Max(0, float64(samples[n-1].Timestamp-samples[0].Timestamp)/1000)
		cfg.StartPosition = samples[0].PositionOr(0)
	}

	return session.Record{
		Date:    date,
		Source:  session.Imported,
		Stats:   session.Stats{Config: cfg, Summary: sum},
		Samples: samples,
	}
}

// Inserter receives imported records.
type Inserter interface {
	Insert(ctx context.Context, rec session.Record) (session.Record, error)
}

// ImportInto imports r and inserts the resulting record into dst. Nothing is
// inserted when the import fails. A persistence error from dst is returned
// together with the inserted record.
func ImportInto(ctx context.Context, dst Inserter, r io.Reader, name string, m ColumnMapping, now time.Time) (session.Record, Result, error) {
	res, err := Import(r, m, now)
	if err != nil {
		return session.Record{}, res, err
	}
	rec, err := dst.Insert(ctx, BuildRecord(ImportMetadata(name), res.Samples, now))
	return rec, res, err
}
