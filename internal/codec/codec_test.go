package codec

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/diagnosis"
	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/session"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var importTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func roundTripRecord() session.Record {
	return session.Record{
		ID: "rec-1",
		Stats: session.Stats{Config: session.Config{
			Thresholds: alert.Thresholds{LA: 1.2, LI: 2.2, LAI: 2.8},
		}},
		Samples: []motion.Sample{
			motion.NewSample(0, 0, 0, 0, motion.Float(0)),
			motion.NewSample(20, 0, 3.0, 9.8, motion.Float(0.001)),
		},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	rec := roundTripRecord()

	var buf bytes.Buffer
	if err := Export(&buf, rec); err != nil {
		t.Fatalf("Export: %v", err)
	}
	wantText := "timestamp,position,x,y,z,magnitude\n" +
		"0,0.0000,0.0000,0.0000,0.0000,0.0000\n" +
		"20,0.0010,0.0000,3.0000,9.8000,10.2489\n"
	if diff := cmp.Diff(wantText, buf.String()); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}

	res, err := Import(&buf, FixedMapping(), importTime)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", res.Skipped)
	}
	if diff := cmp.Diff(rec.Samples, res.Samples, cmpopts.EquateApprox(0, 1e-4)); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_SkipsShortRows(t *testing.T) {
	in := "timestamp,position,x,y,z,magnitude\n" +
		"0,12.0000,0.1,0.2,9.8,9.8\n" +
		"20,12.0010,0.1\n"

	res, err := Import(strings.NewReader(in), FixedMapping(), importTime)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Samples) != 1 || res.Skipped != 1 {
		t.Fatalf("samples = %d skipped = %d, want 1 and 1", len(res.Samples), res.Skipped)
	}
	if len(res.RowErrors) != 1 || !errors.Is(res.RowErrors[0], ErrMalformedRow) {
		t.Errorf("row errors = %v", res.RowErrors)
	}
}

func TestImport_CoercesNonNumericCells(t *testing.T) {
	in := "timestamp,position,x,y,z,magnitude\n" +
		"40,abc,0.5,n/a,1.5,999\n"

	res, err := Import(strings.NewReader(in), FixedMapping(), importTime)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	got := res.Samples[0]
	want := motion.NewSample(40, 0.5, 0, 1.5, motion.Float(0))
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_HeaderMapping(t *testing.T) {
	in := "PK (km),gamma_atc,gamma_avc\n" +
		"10.5,1.3,0.2\n" +
		"10.6,-2.5,0.3\n"

	res, err := Import(strings.NewReader(in), MappingFor(ModeHeader), importTime)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	wantMapping := ColumnMapping{Mode: ModeHeader, Timestamp: Absent, Position: 0, X: Absent, Y: 1, Z: 2}
	if diff := cmp.Diff(wantMapping, res.Mapping); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
	base := importTime.UnixMilli()
	want := []motion.Sample{
		motion.NewSample(base, 0, 1.3, 0.2, motion.Float(10.5)),
		motion.NewSample(base+20, 0, -2.5, 0.3, motion.Float(10.6)),
	}
	if diff := cmp.Diff(want, res.Samples); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_HeaderMappingSensorLoggerLayout(t *testing.T) {
	in := "timestamp_ns,accel_x,accel_y,accel_z,gyro_x,gyro_y,gyro_z\n" +
		"1772352000000000000,0.01,1.3,9.81,0,0,0\n" +
		"1772352000020000000,0.02,-2.5,9.79,0,0,0\n"

	res, err := Import(strings.NewReader(in), MappingFor(ModeHeader), importTime)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	wantMapping := ColumnMapping{Mode: ModeHeader, Timestamp: 0, Position: Absent, X: 1, Y: 2, Z: 3, TimestampUnit: "ns"}
	if diff := cmp.Diff(wantMapping, res.Mapping); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
	want := []motion.Sample{
		motion.NewSample(1772352000000, 0.01, 1.3, 9.81, nil),
		motion.NewSample(1772352000020, 0.02, -2.5, 9.79, nil),
	}
	if diff := cmp.Diff(want, res.Samples); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnMapping_HeaderVariants(t *testing.T) {
	tests := []struct {
		header []string
		want   ColumnMapping
	}{
		{
			[]string{"time_s", "acc_y", "acc_z"},
			ColumnMapping{Mode: ModeHeader, Timestamp: 0, Position: Absent, X: Absent, Y: 1, Z: 2, TimestampUnit: "s"},
		},
		{
			[]string{"ay", "az", "ax", "timestamp_ms"},
			ColumnMapping{Mode: ModeHeader, Timestamp: 3, Position: Absent, X: 2, Y: 0, Z: 1},
		},
		{
			[]string{"Acceleration_Y", "Acceleration_Z", "timestamp_us"},
			ColumnMapping{Mode: ModeHeader, Timestamp: 2, Position: Absent, X: Absent, Y: 0, Z: 1, TimestampUnit: "us"},
		},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.header, ","), func(t *testing.T) {
			got, err := MappingFor(ModeHeader).Resolve(tt.header)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mapping mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestImport_HeaderMappingNeedsAxes(t *testing.T) {
	_, err := Import(strings.NewReader("pk,speed\n1,2\n"), MappingFor(ModeHeader), importTime)
	if !errors.Is(err, ErrUnmappedAxis) {
		t.Errorf("err = %v, want ErrUnmappedAxis", err)
	}
}

func TestImport_Empty(t *testing.T) {
	for name, in := range map[string]string{
		"no input":    "",
		"header only": "timestamp,position,x,y,z,magnitude\n",
		"all short":   "timestamp,position,x,y,z,magnitude\n1,2\n3\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Import(strings.NewReader(in), FixedMapping(), importTime)
			if !errors.Is(err, ErrEmptyImport) {
				t.Errorf("err = %v, want ErrEmptyImport", err)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeFixed, "fixed": ModeFixed, " Header ": ModeHeader} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("auto"); !errors.Is(err, ErrUnknownMapping) {
		t.Errorf("ParseMode(auto) err = %v", err)
	}
}

func TestBuildRecord(t *testing.T) {
	samples := []motion.Sample{
		motion.NewSample(1000, 0, 0.5, -1.0, motion.Float(20.0)),
		motion.NewSample(1020, 0, -3.0, 0.5, motion.Float(20.001)),
		motion.NewSample(1040, 0, 1.5, 2.0, motion.Float(20.002)),
	}
	rec := BuildRecord(ImportMetadata("releve.csv"), samples, importTime)

	if rec.Source != session.Imported {
		t.Errorf("source = %q", rec.Source)
	}
	st := rec.Stats
	if st.Operator != "IMPORT" || st.Line != "IMPORT_CSV" || st.Train != "EXTERNE" || st.Note != "Fichier: releve.csv" {
		t.Errorf("metadata = %+v", st.Config)
	}
	want := session.Stats{
		Config: st.Config,
	}
	want.StartPosition = 20.0
	want.MaxLateral = 3.0
	want.MaxVertical = 2.0
	want.MeanMagnitude = (samples[0].Magnitude + samples[1].Magnitude + samples[2].Magnitude) / 3
	want.DurationSeconds = 0.04
	want.CountLA = 1
	want.CountLAI = 1
	want.StartTime = 1000
	want.Samples = 3
	if diff := cmp.Diff(want, st, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestImportInto(t *testing.T) {
	store := session.NewStore(session.Options{})
	ctx := context.Background()

	_, _, err := ImportInto(ctx, store, strings.NewReader("timestamp,position,x,y,z,magnitude\n"), "empty.csv", FixedMapping(), importTime)
	if !errors.Is(err, ErrEmptyImport) {
		t.Fatalf("err = %v, want ErrEmptyImport", err)
	}
	if n := len(store.History()); n != 0 {
		t.Fatalf("history mutated by failed import: %d records", n)
	}

	var buf bytes.Buffer
	if err := Export(&buf, roundTripRecord()); err != nil {
		t.Fatal(err)
	}
	rec, res, err := ImportInto(ctx, store, &buf, "run.csv", FixedMapping(), importTime)
	if err != nil {
		t.Fatalf("ImportInto: %v", err)
	}
	if len(res.Samples) != 2 || rec.ID == "" {
		t.Fatalf("record = %+v", rec)
	}
	hist := store.History()
	if len(hist) != 1 || hist[0].ID != rec.ID {
		t.Errorf("history = %v", hist)
	}
	if rec.Stats.CountLAI != 1 {
		t.Errorf("count LAI = %d, want 1", rec.Stats.CountLAI)
	}
}

func TestExportSummary(t *testing.T) {
	rec := roundTripRecord()
	rec.Date = importTime
	rec.Stats.Operator = "DUPONT"
	rec.Stats.Direction = "increasing"
	rec.Stats.MaxLateral = 3
	rec.Stats.CountLAI = 1
	rec.Stats.DurationSeconds = 0.02
	rec.Analysis = &diagnosis.Analysis{SeverityLevel: diagnosis.Critique}

	var buf bytes.Buffer
	if err := ExportSummary(&buf, []session.Record{rec}); err != nil {
		t.Fatalf("ExportSummary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	want := "rec-1,2026-03-01T08:00:00Z,DUPONT,,,,increasing,0.0000,0.0000,3.0000,0.0000,0.02,0,0,1,2,Critique"
	if lines[1] != want {
		t.Errorf("row = %s\nwant  %s", lines[1], want)
	}
}
