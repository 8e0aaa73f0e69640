package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/harun/deepagent/internal/tracing"
	"github.com/harun/deepagent/pkg/agent"
	"github.com/harun/deepagent/pkg/planner"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.shuttingDown() {
		status, code = "shutting_down", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.runner.Run(r.Context(), req.Query)
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}

	resp, states, err := s.runner.RunWithTrace(r.Context(), req.Query)
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}
	if states == nil {
		states = []planner.State{}
	}

	writeJSON(w, http.StatusOK, TraceResponse{Result: resp, States: states})
}

func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (ExecuteRequest, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return ExecuteRequest{}, false
		}
		writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return ExecuteRequest{}, false
	}

	req, err := decodeExecuteRequest(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return ExecuteRequest{}, false
	}
	return req, true
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classifyRunError(err)

	logger := tracing.LoggerFromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error().Err(err).Msg("Session failed")
	} else {
		logger.Warn().Err(err).Int("status", status).Msg("Session rejected")
	}

	writeError(w, r, status, message)
}

// classifyRunError maps a runner error to an HTTP status and a client-safe message
func classifyRunError(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrEmptyQuery):
		return http.StatusBadRequest, agent.ErrEmptyQuery.Error()
	case errors.Is(err, agent.ErrAdmission):
		return http.StatusServiceUnavailable, "no session slot available"
	default:
		return http.StatusInternalServerError, "session aborted"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: tracing.GetRequestID(r.Context()),
	})
}
