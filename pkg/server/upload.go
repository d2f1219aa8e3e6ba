package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calque-ai/docqa/pkg/logger"
	"github.com/calque-ai/docqa/pkg/rag"
)

const (
	formFile         = "file"
	formCollectionID = "collectionId"
	maxFieldSize     = 4 << 10
)

var allowedExtensions = map[string]rag.SourceKind{
	".pdf": rag.SourcePDF,
	".txt": rag.SourceTXT,
}

var errFileTooLarge = errors.New("file too large")

type upload struct {
	file         rag.FileSource
	collectionID string
	metadata     map[string]string
}

func (s *Server) handleEmbedFile(kind rag.SourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, status, err := s.receiveUpload(r, kind)
		if err != nil {
			if up.file.Path != "" {
				s.removeUpload(r, up.file.Path)
			}
			s.writeErrorStatus(w, r, status, err.Error(), nil)
			return
		}

		embed, label := s.svc.EmbedPDF, "PDF processed"
		if kind == rag.SourceTXT {
			embed, label = s.svc.EmbedTXT, "TXT file processed"
		}
		res, err := embed(r.Context(), up.collectionID, up.file, up.metadata)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, embedResponse{
			Message:         fmt.Sprintf("%s: %d chunks embedded", label, res.ChunksProcessed),
			ChunksProcessed: res.ChunksProcessed,
			TotalCharacters: res.TotalCharacters,
			Filename:        res.Filename,
		})
	}
}

// receiveUpload streams the multipart body, saving the file part into the
// upload directory as <unixMillis>-<name>. On error the returned upload still
// names any file already written.
func (s *Server) receiveUpload(r *http.Request, kind rag.SourceKind) (upload, int, error) {
	var up upload

	mr, err := r.MultipartReader()
	if err != nil {
		return up, http.StatusBadRequest, errors.New("expected a multipart/form-data body")
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return up, http.StatusBadRequest, errors.New("malformed multipart body")
		}

		switch {
		case part.FormName() == formFile && part.FileName() != "":
			if up.file.Path != "" {
				return up, http.StatusBadRequest, errors.New("only one file may be uploaded")
			}
			name := filepath.Base(part.FileName())
			ext := strings.ToLower(filepath.Ext(name))
			got, ok := allowedExtensions[ext]
			if !ok {
				return up, http.StatusBadRequest, errors.New("Only PDF and TXT files are allowed")
			}
			if got != kind {
				return up, http.StatusBadRequest, fmt.Errorf("expected a .%s file", kind)
			}
			path, err := s.saveUpload(part, name)
			up.file = rag.FileSource{Path: path, Filename: name}
			if errors.Is(err, errFileTooLarge) {
				return up, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds the %d byte limit", s.cfg.MaxFileSize)
			}
			if err != nil {
				return up, http.StatusInternalServerError, errors.New("failed to store upload")
			}
		case part.FormName() == formCollectionID:
			value, err := readField(part)
			if err != nil {
				return up, http.StatusBadRequest, err
			}
			up.collectionID = value
		case strings.HasPrefix(part.FormName(), "metadata."):
			value, err := readField(part)
			if err != nil {
				return up, http.StatusBadRequest, err
			}
			if up.metadata == nil {
				up.metadata = map[string]string{}
			}
			up.metadata[strings.TrimPrefix(part.FormName(), "metadata.")] = value
		}
		_ = part.Close()
	}

	if up.file.Path == "" {
		return up, http.StatusBadRequest, errors.New("File is required")
	}
	return up, http.StatusOK, nil
}

func (s *Server) saveUpload(part *multipart.Part, name string) (string, error) {
	path := filepath.Join(s.cfg.UploadDir, strconv.FormatInt(s.now().UnixMilli(), 10)+"-"+name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	n, copyErr := io.Copy(f, io.LimitReader(part, s.cfg.MaxFileSize+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		return path, copyErr
	case closeErr != nil:
		return path, closeErr
	case n > s.cfg.MaxFileSize:
		return path, errFileTooLarge
	}
	return path, nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read field %s", part.FormName())
	}
	if len(data) > maxFieldSize {
		return "", fmt.Errorf("field %s is too long", part.FormName())
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Server) removeUpload(r *http.Request, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Error(r.Context(), "failed to remove upload", logger.Attr("path", path), logger.Err(err))
	}
}
