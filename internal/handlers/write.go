package handlers

import (
	"net/http"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/filetree"
	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/workspace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WriteHandler handles file upload requests
type WriteHandler struct {
	stores Stores
}

// NewWriteHandler creates a new write handler
func NewWriteHandler(stores Stores) *WriteHandler {
	return &WriteHandler{stores: stores}
}

// ServeHTTP handles PUT /projects/{id}/files?path=a/b&name=filename
func (wh *WriteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "write_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	r = r.WithContext(ctx)
	defer r.Body.Close()

	// Get filename from query parameter
	filename := r.URL.Query().Get("name")
	if filename == "" {
		writeError(w, r, apperr.New(apperr.KindValidation, "upload", "missing 'name' query parameter"))
		return
	}
	path := filetree.ParsePath(r.URL.Query().Get("path"))
	span.SetAttributes(
		attribute.String("file_name", filename),
		attribute.String("path", path.String()),
	)

	s, err := store(wh.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.Upload(ctx, workspace.Upload{
		Path:        path,
		Name:        filename,
		ContentType: r.Header.Get("Content-Type"),
		Body:        r.Body,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("file_key", entry.Key))
	writeJSON(w, http.StatusCreated, entry)
	logging.WithContext(ctx).Info("upload completed",
		logging.String("file_name", filename),
		logging.String("key", entry.Key),
	)
}

// RemoveFileHandler deletes stored files
type RemoveFileHandler struct {
	stores Stores
}

// NewRemoveFileHandler creates a new remove-file handler
func NewRemoveFileHandler(stores Stores) *RemoveFileHandler {
	return &RemoveFileHandler{stores: stores}
}

// RemoveFileRequest is the body of DELETE /projects/{id}/files
type RemoveFileRequest struct {
	Path []string `json:"path"`
	Key  string   `json:"key"`
}

// ServeHTTP handles DELETE /projects/{id}/files
func (rh *RemoveFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "remove_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	r = r.WithContext(ctx)

	var req RemoveFileRequest
	if err := decodeJSON(r, "remove file", &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Key == "" {
		writeError(w, r, apperr.New(apperr.KindValidation, "remove file", "Missing file key"))
		return
	}
	span.SetAttributes(attribute.String("file_key", req.Key))

	s, err := store(rh.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.RemoveFile(ctx, filetree.Path(req.Path), req.Key); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
