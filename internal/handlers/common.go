package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/workspace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("buildmanager-handlers")

// Stores hands out the open store of a project.
type Stores interface {
	Get(ctx context.Context, projectID string) (*workspace.Store, error)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if errors.Is(err, workspace.ErrClosed) {
		status = http.StatusServiceUnavailable
	}
	trace.SpanFromContext(r.Context()).RecordError(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("request failed", logging.Err(err))
	}
	writeJSON(w, status, ErrorResponse{
		Error: apperr.UserMessage(err),
		Kind:  string(apperr.KindOf(err)),
	})
}

func decodeJSON(r *http.Request, op string, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return apperr.New(apperr.KindValidation, op, fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// store resolves the {id} route variable to an open store.
func store(stores Stores, r *http.Request) (*workspace.Store, error) {
	projectID := mux.Vars(r)["id"]
	if projectID == "" {
		return nil, apperr.New(apperr.KindValidation, "open project", "missing project id in path")
	}
	ctx := logging.WithFields(r.Context(), logging.String("project_id", projectID))
	return stores.Get(ctx, projectID)
}
