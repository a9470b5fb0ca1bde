package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/models"
)

// ListProjects returns the projects visible to the session's user.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := c.do(ctx, "list_projects", http.MethodGet, "/projects", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProject fetches the full project aggregate.
func (c *Client) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, "get_project", http.MethodGet, projectPath("/projects/%s", projectID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProject creates a project owned by the session's user and returns its ID.
func (c *Client) CreateProject(ctx context.Context, p models.NewProject) (string, error) {
	if p.Name == "" {
		return "", apperr.New(apperr.KindValidation, "create_project", "Project name is required")
	}
	var out struct {
		ProjectID string `json:"projectId"`
	}
	if err := c.do(ctx, "create_project", http.MethodPost, "/projects", nil, p, &out); err != nil {
		return "", err
	}
	return out.ProjectID, nil
}

// DeleteProject deletes a project.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, "delete_project", http.MethodDelete, projectPath("/projects/%s", projectID), nil, nil, nil)
}

// UpdateField persists a single project field and returns the value the
// server stored. The returned value is nil when the server did not echo it.
func (c *Client) UpdateField(ctx context.Context, projectID, field string, value any) (json.RawMessage, error) {
	if field == "" {
		return nil, apperr.New(apperr.KindValidation, "update_field", "Missing 'field'")
	}
	in := struct {
		Field string `json:"field"`
		Value any    `json:"value"`
	}{field, value}
	var out struct {
		Updated map[string]json.RawMessage `json:"updated"`
	}
	if err := c.do(ctx, "update_field", http.MethodPatch,
		projectPath("/projects/%s/update-field", projectID), nil, in, &out); err != nil {
		return nil, err
	}
	return out.Updated[field], nil
}

// Me returns the session's user with their role in projectID.
func (c *Client) Me(ctx context.Context, projectID string) (*models.Me, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	var out models.Me
	if err := c.do(ctx, "me", http.MethodGet, "/me", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncUser refreshes the user's last-active record.
func (c *Client) SyncUser(ctx context.Context) error {
	return c.do(ctx, "sync_user", http.MethodGet, "/users/sync", nil, nil, nil)
}
