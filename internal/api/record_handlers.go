package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/banshee-data/track.monitor/internal/codec"
	"github.com/banshee-data/track.monitor/internal/diagnosis"
	"github.com/banshee-data/track.monitor/internal/httputil"
	"github.com/banshee-data/track.monitor/internal/monitoring"
	"github.com/banshee-data/track.monitor/internal/security"
	"github.com/banshee-data/track.monitor/internal/session"
)

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	history := s.store.History()
	out := make([]session.Record, len(history))
	for i, rec := range history {
		out[i] = rec.WithoutSamples()
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Record(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func setCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

func (s *Server) exportSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Record(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	setCSVHeaders(w, security.SanitizeFilename(fmt.Sprintf("session_%s.csv", rec.ID)))
	if err := codec.Export(w, rec); err != nil {
		monitoring.Logf("export of %s failed: %v", rec.ID, err)
	}
}

func (s *Server) exportSummary(w http.ResponseWriter, r *http.Request) {
	history := s.store.History()
	setCSVHeaders(w, "sessions_summary.csv")
	if err := codec.ExportSummary(w, history); err != nil {
		monitoring.Logf("summary export failed: %v", err)
	}
}

type importResponse struct {
	recordResponse
	Skipped   int      `json:"skipped"`
	RowErrors []string `json:"row_errors,omitempty"`
}

// importSession accepts either a raw CSV body or a multipart form with a
// "file" field. The record note comes from ?name= or the uploaded filename.
func (s *Server) importSession(w http.ResponseWriter, r *http.Request) {
	mode, err := codec.ParseMode(r.URL.Query().Get("mapping"))
	if err != nil {
		writeError(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	name := r.URL.Query().Get("name")
	var body io.Reader = r.Body
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.BadRequest(w, "missing 'file' upload: "+err.Error())
			return
		}
		defer file.Close()
		if name == "" {
			name = header.Filename
		}
		body = file
	}
	if name == "" {
		name = "import.csv"
	}
	name = security.SanitizeFilename(name)

	rec, res, err := codec.ImportInto(r.Context(), s.store, body, name, codec.MappingFor(mode), s.clock.Now())
	if rec.ID == "" {
		writeError(w, err)
		return
	}

	resp := importResponse{recordResponse: recordResponse{Record: rec.WithoutSamples()}, Skipped: res.Skipped}
	for _, rowErr := range res.RowErrors {
		resp.RowErrors = append(resp.RowErrors, rowErr.Error())
	}
	if err != nil {
		resp.PersistError = err.Error()
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) putAnalysis(w http.ResponseWriter, r *http.Request) {
	var result diagnosis.Analysis
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		httputil.BadRequest(w, "invalid analysis: "+err.Error())
		return
	}
	rec, err := s.store.AttachAnalysis(r.Context(), r.PathValue("id"), &result)
	writeRecord(w, rec, err)
}

func (s *Server) diagnoseSession(w http.ResponseWriter, r *http.Request) {
	if s.diagnoser == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "diagnosis is not configured")
		return
	}
	rec, err := s.store.Record(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := rec.DiagnosisRequest()
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.diagnoser.Diagnose(r.Context(), req)
	if err != nil {
		monitoring.Logf("diagnosis of %s failed: %v", rec.ID, err)
		httputil.BadGateway(w, "diagnosis failed: "+err.Error())
		return
	}
	rec, err = s.store.AttachAnalysis(r.Context(), rec.ID, result)
	writeRecord(w, rec, err)
}
