package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/calque-ai/docqa/pkg/pipeline"
)

// Ask accepts between 1 and 10 requested results.
const (
	MinResults = 1
	MaxResults = 10
)

type embedTextRequest struct {
	CollectionID string            `json:"collectionId"`
	Text         string            `json:"text"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type embedWebsiteRequest struct {
	CollectionID string            `json:"collectionId"`
	URL          string            `json:"url"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type askRequest struct {
	CollectionID string `json:"collectionId"`
	Question     string `json:"question"`
	NResults     *int   `json:"nResults,omitempty"`
}

type embedResponse struct {
	Message         string `json:"message"`
	ChunksProcessed int    `json:"chunksProcessed"`
	TotalCharacters int    `json:"totalCharacters"`
	Filename        string `json:"filename,omitempty"`
	URL             string `json:"url,omitempty"`
}

type collectionsResponse struct {
	Collections []string `json:"collections"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorf(w, r, http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
			return false
		}
		s.writeErrorf(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) handleEmbedText(w http.ResponseWriter, r *http.Request) {
	var req embedTextRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.EmbedText(r.Context(), req.CollectionID, req.Text, req.Metadata)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, embedResponse{
		Message:         fmt.Sprintf("%d chunks embedded successfully", res.ChunksProcessed),
		ChunksProcessed: res.ChunksProcessed,
		TotalCharacters: res.TotalCharacters,
	})
}

func (s *Server) handleEmbedWebsite(w http.ResponseWriter, r *http.Request) {
	var req embedWebsiteRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.EmbedWebsite(r.Context(), req.CollectionID, req.URL, req.Metadata)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, embedResponse{
		Message:         fmt.Sprintf("Website processed: %d chunks embedded", res.ChunksProcessed),
		ChunksProcessed: res.ChunksProcessed,
		TotalCharacters: res.TotalCharacters,
		URL:             res.URL,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	n := pipeline.DefaultResults
	if req.NResults != nil {
		n = *req.NResults
		if n < MinResults || n > MaxResults {
			s.writeErrorf(w, r, http.StatusBadRequest, "nResults must be between %d and %d", MinResults, MaxResults)
			return
		}
	}
	res, err := s.svc.Ask(r.Context(), req.CollectionID, req.Question, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.ListCollections(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, collectionsResponse{Collections: names})
}

func (s *Server) handleCollectionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.CollectionInfo(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.DeleteCollection(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Collection '%s' deleted", id)})
}
