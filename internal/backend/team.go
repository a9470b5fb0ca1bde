package backend

import (
	"context"
	"net/http"

	"github.com/maneesh/buildmanager/internal/models"
)

// ListTeam returns the project's members.
func (c *Client) ListTeam(ctx context.Context, projectID string) ([]models.Member, error) {
	var out []models.Member
	if err := c.do(ctx, "list_team", http.MethodGet, projectPath("/project/%s/team", projectID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMember invites the user with the given email.
func (c *Client) AddMember(ctx context.Context, projectID, email, role string) error {
	in := struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}{email, role}
	return c.do(ctx, "add_member", http.MethodPost, projectPath("/project/%s/add-user", projectID), nil, in, nil)
}

// RemoveMember removes a member from the project.
func (c *Client) RemoveMember(ctx context.Context, projectID, userID string) error {
	in := struct {
		UserID string `json:"userId"`
	}{userID}
	return c.do(ctx, "remove_member", http.MethodDelete, projectPath("/project/%s/remove-user", projectID), nil, in, nil)
}

// ChangeRole assigns a new role to a member.
func (c *Client) ChangeRole(ctx context.Context, projectID, userID, role string) error {
	in := struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}{userID, role}
	return c.do(ctx, "change_role", http.MethodPatch, projectPath("/project/%s/change-role", projectID), nil, in, nil)
}
