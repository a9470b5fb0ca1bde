package handlers

import (
	"net/http"

	"github.com/maneesh/buildmanager/internal/filetree"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FolderHandler creates and deletes folders
type FolderHandler struct {
	stores Stores
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(stores Stores) *FolderHandler {
	return &FolderHandler{stores: stores}
}

// FolderRequest is the body of POST and DELETE /projects/{id}/folders
type FolderRequest struct {
	Path []string `json:"path"`
	Name string   `json:"name"`
}

// RemoveFolderResponse reports how much was deleted with a folder
type RemoveFolderResponse struct {
	RemovedFiles int `json:"removedFiles"`
}

// ServeHTTP handles POST and DELETE /projects/{id}/folders
func (fh *FolderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "folder_"+r.Method,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	r = r.WithContext(ctx)

	var req FolderRequest
	if err := decodeJSON(r, "folder", &req); err != nil {
		writeError(w, r, err)
		return
	}
	path := filetree.Path(req.Path)
	span.SetAttributes(
		attribute.String("path", path.String()),
		attribute.String("folder_name", req.Name),
	)

	s, err := store(fh.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodPost:
		f, err := s.CreateFolder(ctx, path, req.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, FolderSummary{
			ID:        string(f.ID),
			Name:      f.Name,
			CreatedAt: filetree.FormatTimestamp(f.CreatedAt),
		})
	case http.MethodDelete:
		n, err := s.RemoveFolder(ctx, path, req.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		span.SetAttributes(attribute.Int("removed_files", n))
		writeJSON(w, http.StatusOK, RemoveFolderResponse{RemovedFiles: n})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
