package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/models"
	"github.com/maneesh/buildmanager/internal/workspace"
)

// ProjectAPI lists, creates and deletes projects.
type ProjectAPI interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	CreateProject(ctx context.Context, p models.NewProject) (string, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// ProjectHandler serves project-level reads and field updates
type ProjectHandler struct {
	stores   Stores
	projects ProjectAPI
	closer   func(projectID string) bool
	activity *workspace.ActivitySync
}

// NewProjectHandler creates a new project handler. closer drops the open
// store of a deleted project; activity may be nil.
func NewProjectHandler(stores Stores, projects ProjectAPI, closer func(string) bool, activity *workspace.ActivitySync) *ProjectHandler {
	return &ProjectHandler{stores: stores, projects: projects, closer: closer, activity: activity}
}

// FieldRequest is the body of PATCH /projects/{id}/fields
type FieldRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// List handles GET /projects
func (ph *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := ph.projects.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// Create handles POST /projects
func (ph *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.NewProject
	if err := decodeJSON(r, "create project", &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := ph.projects.CreateProject(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"projectId": id})
}

// Delete handles DELETE /projects/{id}
func (ph *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := ph.projects.DeleteProject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if ph.closer != nil {
		ph.closer(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /projects/{id}
func (ph *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := store(ph.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Project())
}

// Reload handles POST /projects/{id}/reload
func (ph *ProjectHandler) Reload(w http.ResponseWriter, r *http.Request) {
	s, err := store(ph.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Project())
}

// UpdateField handles PATCH /projects/{id}/fields
func (ph *ProjectHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req FieldRequest
	if err := decodeJSON(r, "update field", &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Value) == 0 {
		writeError(w, r, apperr.New(apperr.KindValidation, "update field", "Missing 'value'"))
		return
	}
	s, err := store(ph.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stored, err := s.UpdateField(r.Context(), req.Field, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": map[string]json.RawMessage{req.Field: stored},
	})
}

// Budget handles GET /projects/{id}/budget
func (ph *ProjectHandler) Budget(w http.ResponseWriter, r *http.Request) {
	s, err := store(ph.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Budget())
}

// Activity handles POST /projects/{id}/activity
func (ph *ProjectHandler) Activity(w http.ResponseWriter, r *http.Request) {
	s, err := store(ph.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	synced := false
	if me := s.Me(); me != nil && ph.activity != nil {
		synced = ph.activity.Touch(r.Context(), me.ID())
	}
	writeJSON(w, http.StatusOK, map[string]bool{"synced": synced})
}
