package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	errs "spacetrack/pkg/errors"
	"spacetrack/pkg/query"
)

type errorResponse struct {
	Error     string `json:"error"`
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}

type statsResponse struct {
	MaxCalls  int     `json:"max_calls"`
	Period    string  `json:"period"`
	Admitted  uint64  `json:"admitted"`
	Throttled uint64  `json:"throttled"`
	WaitedSec float64 `json:"waited_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.gate == nil {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "no rate gate configured")
		return
	}
	st := s.gate.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		MaxCalls:  st.MaxCalls,
		Period:    st.Period.String(),
		Admitted:  st.Admitted,
		Throttled: st.Throttled,
		WaitedSec: st.Waited.Seconds(),
	})
}

// handleQuery turns the URL parameters into a catalog query. The class may
// be given as a path segment or as ?class=.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if class := chi.URLParam(r, "class"); class != "" {
		values.Set("class", class)
	}

	q, err := query.FromValues(values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.client.Query(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	contentType := result.Format.ContentType()
	if result.Kind != query.DecodeKind(result.Format) {
		// json that failed to parse is passed through as text
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Query-Path", result.Path)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Raw)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	errType := string(errs.ErrorTypeUnknown)

	var apiErr *errs.Error
	switch {
	case errors.As(err, &apiErr):
		status = errs.HTTPStatus(apiErr)
		errType = string(apiErr.Type)
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		errType = "timeout"
	case errors.Is(err, context.Canceled):
		// client went away
		status = 499
		errType = "canceled"
	}

	log := s.logger.WithError(err).WithField("request_id", GetRequestID(r.Context()))
	if status >= 500 {
		log.Error("query failed")
	} else {
		log.Debug("query rejected")
	}

	writeJSONError(w, r, status, errType, err.Error())
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, errType, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Type:      errType,
		RequestID: GetRequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
