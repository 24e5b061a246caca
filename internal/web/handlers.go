package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Esmaill1/image-lab/internal/artifact"
	"github.com/Esmaill1/image-lab/internal/ops"
	"github.com/Esmaill1/image-lab/internal/session"
)

// Domain failures are reported as HTTP 200 with success=false and a
// message the UI can show. Transport problems (bad routes, oversized
// bodies, rate limits) use real status codes.

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type uploadResponse struct {
	Success        bool   `json:"success"`
	OriginalImage  string `json:"original_image"`
	ProcessedImage string `json:"processed_image"`
	Message        string `json:"message"`
}

type processResponse struct {
	Success           bool     `json:"success"`
	ProcessedImage    string   `json:"processed_image"`
	Operation         string   `json:"operation"`
	OperationsHistory []string `json:"operations_history"`
	DownloadURL       string   `json:"download_url"`
	CanUndo           bool     `json:"can_undo"`
}

type undoResponse struct {
	Success           bool     `json:"success"`
	ProcessedImage    string   `json:"processed_image"`
	UndoneOperation   string   `json:"undone_operation"`
	OperationsHistory []string `json:"operations_history"`
	CanUndo           bool     `json:"can_undo"`
}

type resetResponse struct {
	Success           bool     `json:"success"`
	ProcessedImage    string   `json:"processed_image"`
	OperationsHistory []string `json:"operations_history"`
	CanUndo           bool     `json:"can_undo"`
}

type clearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type stateResponse struct {
	Success           bool     `json:"success"`
	Active            bool     `json:"active"`
	OriginalImage     string   `json:"original_image,omitempty"`
	ProcessedImage    string   `json:"processed_image,omitempty"`
	OperationsHistory []string `json:"operations_history"`
	DownloadURL       string   `json:"download_url,omitempty"`
	CanUndo           bool     `json:"can_undo"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) fail(w http.ResponseWriter, message string) {
	s.failStatus(w, http.StatusOK, message)
}

func (s *Server) failStatus(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: message})
}

func previewURL(h artifact.Handle) string {
	return "/previews/" + h.Preview().String()
}

func downloadURL(h artifact.Handle) string {
	if h == "" {
		return ""
	}
	return "/download/" + h.String()
}

// uploadExt extracts and validates the extension of an uploaded
// filename. Only the extension is kept; the client's name never
// touches disk.
func uploadExt(filename string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || !artifact.AllowedExt(ext) {
		return "", false
	}
	return ext, true
}

// makePreview renders the display copy for an artifact. Preview
// failures degrade the UI but never fail the request.
func (s *Server) makePreview(area artifact.Area, h artifact.Handle) {
	src := s.store.Path(area, h)
	dst := s.store.Path(artifact.Previews, h.Preview())
	if err := s.engine.Preview(src, dst, s.previewMax); err != nil {
		s.log.WithError(err).WithField("artifact", h.String()).Warn("preview generation failed")
	}
}

// produceWith returns the callback that applies one operation for the
// session manager: transform the current working copy into a fresh
// handle. Convert switches the extension so the encoder changes
// format.
func (s *Server) produceWith(op ops.Operation) session.ProduceFunc {
	return func(current artifact.Handle) (artifact.Handle, error) {
		ext := current.Ext()
		if c, ok := op.(ops.Convert); ok {
			ext = c.Format
		}
		next := artifact.NewHandle(ext)
		src := s.store.Path(artifact.Working, current)
		dst := s.store.Path(artifact.Working, next)
		if err := s.engine.Transform(src, dst, op); err != nil {
			return "", err
		}
		return next, nil
	}
}

// handleUpload accepts a multipart image upload and starts a fresh
// editing session for it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())

	if !s.limiter.allowUpload(sessionID) {
		s.failStatus(w, http.StatusTooManyRequests, "Too many uploads. Try again shortly.")
		return
	}

	tooLarge := fmt.Sprintf("File too large. Maximum size is %dMB.", s.maxUpload>>20)
	if r.ContentLength > s.maxUpload {
		s.failStatus(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}

	// MaxBytesReader backstops clients that lie about Content-Length.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.failStatus(w, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		s.failStatus(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.fail(w, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.fail(w, "No file selected")
		return
	}
	ext, ok := uploadExt(header.Filename)
	if !ok {
		s.fail(w, "Invalid file type")
		return
	}

	upload, err := s.store.Create(artifact.Uploads, ext, file)
	if err != nil {
		s.log.WithError(err).Error("failed to store upload")
		s.fail(w, "Failed to store image")
		return
	}

	snap, err := s.sessions.Start(sessionID, upload)
	if err != nil {
		s.store.Delete(artifact.Uploads, upload)
		s.log.WithError(err).Error("failed to start session")
		s.fail(w, "Failed to store image")
		return
	}

	s.makePreview(artifact.Uploads, snap.Original)
	s.makePreview(artifact.Working, snap.Current)

	s.log.WithFields(logFields(sessionID, "upload")).Info("image uploaded")

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Success:        true,
		OriginalImage:  previewURL(snap.Original),
		ProcessedImage: previewURL(snap.Current),
		Message:        "Image uploaded successfully!",
	})
}

// handleProcess applies a named operation to the session's working
// image and appends it to the history.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())

	if !s.limiter.allowProcess(sessionID) {
		s.failStatus(w, http.StatusTooManyRequests, "Too many requests. Try again shortly.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxFormBodySize)
	if err := r.ParseForm(); err != nil {
		s.failStatus(w, http.StatusBadRequest, "Malformed form data")
		return
	}

	name := r.PostFormValue("operation")
	if name == "" {
		s.fail(w, "No operation selected")
		return
	}

	op, err := ops.Parse(name, r.PostForm)
	if err != nil {
		var pe *ops.ParamError
		if errors.As(err, &pe) {
			s.fail(w, "Invalid parameter: "+pe.Field)
			return
		}
		s.fail(w, "Unknown operation: "+name)
		return
	}

	snap, err := s.sessions.Apply(sessionID, op.Label(), s.produceWith(op))
	if err != nil {
		s.fail(w, processErrorMessage(err))
		return
	}

	s.makePreview(artifact.Working, snap.Current)

	s.log.WithFields(logFields(sessionID, op.Name())).Info("operation applied")

	s.writeJSON(w, http.StatusOK, processResponse{
		Success:           true,
		ProcessedImage:    previewURL(snap.Current),
		Operation:         op.Label(),
		OperationsHistory: snap.Labels,
		DownloadURL:       downloadURL(snap.Processed),
		CanUndo:           snap.CanUndo,
	})
}

// processErrorMessage maps apply failures onto the messages the UI
// shows.
func processErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return "Please upload an image first"
	case errors.Is(err, session.ErrArtifactMissing):
		return "Working image not found"
	default:
		return fmt.Sprintf("Processing error: %v", err)
	}
}

// handleUndo removes the most recent operation and restores the
// previous working image.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())

	undone, snap, err := s.sessions.Undo(sessionID)
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrNothingToUndo):
		s.fail(w, "Nothing to undo")
		return
	case errors.Is(err, session.ErrArtifactMissing):
		s.fail(w, "Previous image not found")
		return
	case err != nil:
		s.fail(w, fmt.Sprintf("Undo failed: %v", err))
		return
	}

	s.log.WithFields(logFields(sessionID, "undo")).Info("operation undone")

	s.writeJSON(w, http.StatusOK, undoResponse{
		Success:           true,
		ProcessedImage:    previewURL(snap.Current),
		UndoneOperation:   undone,
		OperationsHistory: snap.Labels,
		CanUndo:           snap.CanUndo,
	})
}

// handleReset discards all applied operations and restores the
// original upload as the working image.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())

	snap, err := s.sessions.Reset(sessionID)
	switch {
	case errors.Is(err, session.ErrNoSession):
		s.fail(w, "No image to reset")
		return
	case errors.Is(err, session.ErrOriginalMissing):
		s.fail(w, "Original image not found")
		return
	case err != nil:
		s.log.WithError(err).Error("reset failed")
		s.fail(w, fmt.Sprintf("Reset failed: %v", err))
		return
	}

	s.makePreview(artifact.Working, snap.Current)

	s.log.WithFields(logFields(sessionID, "reset")).Info("session reset")

	s.writeJSON(w, http.StatusOK, resetResponse{
		Success:           true,
		ProcessedImage:    previewURL(snap.Current),
		OperationsHistory: snap.Labels,
		CanUndo:           snap.CanUndo,
	})
}

// handleClear ends the session and removes its stored artifacts.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())

	s.sessions.Clear(sessionID)
	s.limiter.cleanup(sessionID)

	s.log.WithFields(logFields(sessionID, "clear")).Info("session cleared")

	s.writeJSON(w, http.StatusOK, clearResponse{
		Success: true,
		Message: "Session cleared",
	})
}

// handleState reports the session's current images and history so a
// reloaded page can restore its view.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())

	snap, err := s.sessions.Current(sessionID)
	if errors.Is(err, session.ErrNoSession) {
		s.writeJSON(w, http.StatusOK, stateResponse{
			Success:           true,
			Active:            false,
			OperationsHistory: []string{},
		})
		return
	}
	if err != nil {
		s.fail(w, fmt.Sprintf("State unavailable: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, stateResponse{
		Success:           true,
		Active:            true,
		OriginalImage:     previewURL(snap.Original),
		ProcessedImage:    previewURL(snap.Current),
		OperationsHistory: snap.Labels,
		DownloadURL:       downloadURL(snap.Processed),
		CanUndo:           snap.CanUndo,
	})
}

// handleDownload serves a full-resolution processed image as an
// attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	h, err := artifact.ParseHandle(name)
	if err != nil {
		http.Error(w, "Invalid image name", http.StatusBadRequest)
		return
	}

	rc, err := s.store.Open(artifact.Processed, h)
	if errors.Is(err, artifact.ErrNotFound) {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.WithError(err).Error("failed to open processed image")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeByExt(h.Ext()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, rc); err != nil {
		s.log.WithError(err).Debug("download interrupted")
	}
}

// handlePreview serves a display preview inline. Preview names are
// never reused, so clients may cache them indefinitely.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	h, err := artifact.ParseHandle(name)
	if err != nil {
		http.Error(w, "Invalid image name", http.StatusBadRequest)
		return
	}

	rc, err := s.store.Open(artifact.Previews, h)
	if errors.Is(err, artifact.ErrNotFound) {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.WithError(err).Error("failed to open preview")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		s.log.WithError(err).Debug("preview send interrupted")
	}
}

// handleReady returns server readiness status.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ready"}`)
}

// logFields returns the standard fields for session actions. Session
// IDs are truncated so logs cannot be replayed as cookies.
func logFields(sessionID, action string) logrus.Fields {
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	return logrus.Fields{
		"session": sessionID,
		"action":  action,
	}
}

// contentTypeByExt maps an artifact extension to the MIME type served
// on download. Unknown extensions fall back to a generic binary type.
func contentTypeByExt(ext string) string {
	switch ext {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
