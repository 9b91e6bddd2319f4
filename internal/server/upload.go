// internal/server/upload.go
package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type uploadResponse struct {
	Status      string `json:"status"`
	Filename    string `json:"filename"`
	ChunksAdded int    `json:"chunks_added"`
	Message     string `json:"message,omitempty"`
}

// handleUploadPDF accepts a multipart PDF, saves it under the upload
// directory, and ingests it into the knowledge base.
func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Status: "error", Message: "file field is required"})
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !s.allowedType(name) {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Status: "error", Message: "Invalid file type"})
		return
	}

	dst, err := s.saveUpload(name, file)
	if err != nil {
		s.log.Error("save upload failed", "filename", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Status: "error", Message: err.Error()})
		return
	}

	f, err := os.Open(dst)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Status: "error", Message: err.Error()})
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Status: "error", Message: err.Error()})
		return
	}

	chunks, err := s.ingestor.IngestPDF(r.Context(), f, info.Size(), "general")
	if err != nil {
		s.log.Error("pdf ingestion failed", "filename", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Status: "error", Message: err.Error()})
		return
	}

	s.log.Info("pdf uploaded", "filename", name, "chunks", chunks)
	writeJSON(w, http.StatusOK, uploadResponse{
		Status:      "success",
		Filename:    name,
		ChunksAdded: chunks,
	})
}

func (s *Server) allowedType(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.cfg.Upload.AllowedTypes {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (s *Server) saveUpload(name string, src io.Reader) (string, error) {
	dst := filepath.Join(s.uploadDir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return dst, nil
}
