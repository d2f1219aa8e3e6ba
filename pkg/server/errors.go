package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/rag"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrValidation), errors.Is(err, rag.ErrFetch):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rag.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "Internal server error"
	}
	var re *rag.Error
	if errors.As(err, &re) {
		if errors.Is(err, rag.ErrUpstream) {
			return re.Error()
		}
		if re.Message != "" {
			return re.Message
		}
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	s.writeErrorStatus(w, r, status, messageFor(err, status), err)
}

func (s *Server) writeErrorf(w http.ResponseWriter, r *http.Request, status int, format string, args ...any) {
	s.writeErrorStatus(w, r, status, fmt.Sprintf(format, args...), nil)
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, message string, cause error) {
	attrs := []logger.Attribute{
		logger.Attr("method", r.Method),
		logger.Attr("path", r.URL.Path),
		logger.Attr("status", status),
	}
	if cause != nil {
		attrs = append(attrs, logger.Err(cause))
	}
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), message, attrs...)
	} else {
		s.log.Warn(r.Context(), message, attrs...)
	}

	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
		Timestamp:  rag.FormatTimestamp(s.now()),
		Path:       r.URL.RequestURI(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
