package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/filetree"
	"github.com/maneesh/buildmanager/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReadHandler serves folder listings
type ReadHandler struct {
	stores Stores
}

// NewReadHandler creates a new read handler
func NewReadHandler(stores Stores) *ReadHandler {
	return &ReadHandler{stores: stores}
}

// FolderSummary is a child folder in a listing
type FolderSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	FileCount int    `json:"fileCount"`
}

// Listing is the content of one folder
type Listing struct {
	Path    filetree.Path        `json:"path"`
	Folders []FolderSummary      `json:"folders"`
	Files   []filetree.FileEntry `json:"files"`
}

// ServeHTTP handles GET /projects/{id}/tree?path=a/b
func (rh *ReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "list_folder",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	r = r.WithContext(ctx)

	s, err := store(rh.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	path := filetree.ParsePath(r.URL.Query().Get("path"))
	span.SetAttributes(attribute.String("path", path.String()))

	tree := s.Tree()
	folder, err := tree.Resolve(path)
	if err != nil {
		writeError(w, r, err)
		return
	}

	listing := Listing{
		Path:    path.Clone(),
		Folders: []FolderSummary{},
		Files:   append([]filetree.FileEntry{}, folder.Files...),
	}
	for _, child := range tree.Children(folder) {
		count, _ := tree.CountFiles(path.Child(child.Name))
		listing.Folders = append(listing.Folders, FolderSummary{
			ID:        string(child.ID),
			Name:      child.Name,
			CreatedAt: filetree.FormatTimestamp(child.CreatedAt),
			FileCount: count,
		})
	}

	body, err := json.Marshal(listing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	span.SetAttributes(
		attribute.Int("folder_count", len(listing.Folders)),
		attribute.Int("file_count", len(listing.Files)),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// PreviewHandler issues presigned reads for stored files
type PreviewHandler struct {
	stores Stores
}

// NewPreviewHandler creates a new preview handler
func NewPreviewHandler(stores Stores) *PreviewHandler {
	return &PreviewHandler{stores: stores}
}

// ServeHTTP handles GET /projects/{id}/preview?key=k[&download=1]
func (ph *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "preview_file",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	r = r.WithContext(ctx)

	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, r, apperr.New(apperr.KindValidation, "preview", "missing 'key' query parameter"))
		return
	}
	span.SetAttributes(attribute.String("file_key", key))

	s, err := store(ph.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); !download {
		p, err := s.Preview(ctx, key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	body, p, err := s.Download(ctx, key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Name))
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, body)
	if err != nil {
		span.RecordError(err)
		logging.WithContext(ctx).Warn("download interrupted", logging.String("key", key), logging.Err(err))
		return
	}
	span.SetAttributes(attribute.Int64("bytes_sent", n))
}
