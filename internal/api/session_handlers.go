package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banshee-data/track.monitor/internal/httputil"
	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/session"
)

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.store.Status())
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var cfg session.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httputil.BadRequest(w, "invalid session config: "+err.Error())
		return
	}
	if err := s.store.Start(cfg); err != nil {
		if errors.Is(err, session.ErrInvalidState) {
			writeError(w, err)
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.store.Status())
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Stop(r.Context())
	writeRecord(w, rec, err)
}

type resyncRequest struct {
	Position *float64 `json:"position"`
}

func (s *Server) resyncSession(w http.ResponseWriter, r *http.Request) {
	var req resyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid resync request: "+err.Error())
		return
	}
	if req.Position == nil {
		httputil.BadRequest(w, "missing 'position'")
		return
	}
	if err := s.store.Resync(*req.Position); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.store.Status())
}

func (s *Server) postSpeed(w http.ResponseWriter, r *http.Request) {
	var obs session.SpeedObservation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		httputil.BadRequest(w, "invalid speed observation: "+err.Error())
		return
	}
	if obs.Timestamp == 0 {
		obs.Timestamp = s.clock.Now().UnixMilli()
	}
	if err := s.store.OnSpeed(obs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postMotion(w http.ResponseWriter, r *http.Request) {
	var raw motion.RawMotion
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httputil.BadRequest(w, "invalid motion observation: "+err.Error())
		return
	}
	if raw.Timestamp == 0 {
		raw.Timestamp = s.clock.Now().UnixMilli()
	}
	sample, err := s.store.OnMotion(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, sample)
}
