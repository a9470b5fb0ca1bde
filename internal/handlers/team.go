package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maneesh/buildmanager/internal/roles"
	"github.com/maneesh/buildmanager/internal/workspace"
)

// TeamHandler serves the member list and membership changes
type TeamHandler struct {
	stores Stores
}

// NewTeamHandler creates a new team handler
func NewTeamHandler(stores Stores) *TeamHandler {
	return &TeamHandler{stores: stores}
}

// TeamResponse is the body of GET /projects/{id}/team
type TeamResponse struct {
	Role          roles.Role             `json:"role"`
	CanInvite     bool                   `json:"canInvite"`
	InviteOptions []roles.Role           `json:"inviteOptions"`
	DefaultRole   roles.Role             `json:"defaultRole"`
	Members       []workspace.MemberView `json:"members"`
	Total         int                    `json:"total"`
	RoleCounts    map[roles.Role]int     `json:"roleCounts"`
}

// InviteRequest is the body of POST /projects/{id}/team
type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RoleRequest is the body of PATCH /projects/{id}/team/{userId}
type RoleRequest struct {
	Role string `json:"role"`
}

func (th *TeamHandler) respond(w http.ResponseWriter, r *http.Request, s *workspace.Store, status int) {
	all := s.Team()
	writeJSON(w, status, TeamResponse{
		Role:          s.Role(),
		CanInvite:     roles.CanManageMembers(s.Role()),
		InviteOptions: s.InviteOptions(),
		DefaultRole:   roles.DefaultInviteRole,
		Members:       workspace.FilterMembers(all, r.URL.Query().Get("q")),
		Total:         len(all),
		RoleCounts:    s.RoleCounts(),
	})
}

// List handles GET /projects/{id}/team[?q=search][&refresh=1]
func (th *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	s, err := store(th.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("refresh") == "1" {
		if err := s.RefreshTeam(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	th.respond(w, r, s, http.StatusOK)
}

// Invite handles POST /projects/{id}/team
func (th *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if err := decodeJSON(r, "invite", &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := store(th.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Invite(r.Context(), req.Email, req.Role); err != nil {
		writeError(w, r, err)
		return
	}
	th.respond(w, r, s, http.StatusCreated)
}

// Remove handles DELETE /projects/{id}/team/{userId}
func (th *TeamHandler) Remove(w http.ResponseWriter, r *http.Request) {
	s, err := store(th.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.RemoveMember(r.Context(), mux.Vars(r)["userId"]); err != nil {
		writeError(w, r, err)
		return
	}
	th.respond(w, r, s, http.StatusOK)
}

// ChangeRole handles PATCH /projects/{id}/team/{userId}
func (th *TeamHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if err := decodeJSON(r, "change role", &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := store(th.stores, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ChangeRole(r.Context(), mux.Vars(r)["userId"], req.Role); err != nil {
		writeError(w, r, err)
		return
	}
	th.respond(w, r, s, http.StatusOK)
}
