package workspace

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/models"
	"github.com/maneesh/buildmanager/internal/optimistic"
	"github.com/maneesh/buildmanager/internal/roles"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// MemberView is a member together with what the session user may do to them.
type MemberView struct {
	models.Member
	CanChangeRole bool         `json:"canChangeRole"`
	CanRemove     bool         `json:"canRemove"`
	RoleOptions   []roles.Role `json:"roleOptions"`
	SelectedRole  roles.Role   `json:"selectedRole"`
}

// Team returns the members ordered owner, admins, then everyone else, each
// group by display name.
func (s *Store) Team() []MemberView {
	actor, actorID := s.Role(), s.actorID()
	members := s.team.Get()

	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		target, _ := roles.Parse(m.Role)
		v := MemberView{
			Member:        m,
			CanChangeRole: roles.CanChangeRole(actor, target, m.UserID, actorID),
			CanRemove:     roles.CanRemove(actor, target, m.UserID, actorID),
			SelectedRole:  roles.SelectedOption(target),
		}
		if v.CanChangeRole {
			v.RoleOptions = roles.AssignableRoles(actor)
		}
		out = append(out, v)
	}
	roles.SortByRank(out,
		func(v MemberView) roles.Role {
			r, _ := roles.Parse(v.Role)
			return r
		},
		func(v MemberView) string { return v.DisplayName() },
	)
	return out
}

// SearchTeam returns the members of Team whose name, email or role contains
// query, ignoring case. An empty query returns everyone.
func (s *Store) SearchTeam(query string) []MemberView {
	return FilterMembers(s.Team(), query)
}

// FilterMembers keeps the members whose name, email or role contains query.
func FilterMembers(members []MemberView, query string) []MemberView {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return members
	}
	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		name := strings.TrimSpace(m.GivenName + " " + m.FamilyName)
		for _, field := range []string{name, m.Email, m.Role} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// RoleCounts tallies members per role.
func (s *Store) RoleCounts() map[roles.Role]int {
	counts := make(map[roles.Role]int)
	for _, m := range s.team.Get() {
		r, _ := roles.Parse(m.Role)
		counts[r]++
	}
	return counts
}

// InviteOptions lists the roles the session user may invite with.
func (s *Store) InviteOptions() []roles.Role {
	return roles.AssignableRoles(s.Role())
}

func (s *Store) member(userID string) (models.Member, bool) {
	for _, m := range s.team.Get() {
		if m.UserID == userID {
			return m, true
		}
	}
	return models.Member{}, false
}

// RefreshTeam reloads the member list from the backend.
func (s *Store) RefreshTeam(ctx context.Context) error {
	team, err := s.api.ListTeam(ctx, s.projectID)
	if err != nil {
		return err
	}
	s.team.Set(team)
	return nil
}

// refreshAfter reloads the team after a successful change. A failed reload
// keeps the optimistic list.
func (s *Store) refreshAfter(ctx context.Context) {
	if err := s.RefreshTeam(ctx); err != nil {
		logging.WithContext(ctx).Warn("team refresh failed", logging.Err(err))
	}
}

// Invite adds the user with email to the project. An empty role invites
// with the default role.
func (s *Store) Invite(ctx context.Context, email, role string) error {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return apperr.New(apperr.KindValidation, "invite", "Please enter a valid email address")
	}
	r := roles.DefaultInviteRole
	if role != "" {
		parsed, ok := roles.Parse(role)
		if !ok {
			return apperr.New(apperr.KindValidation, "invite", fmt.Sprintf("unknown role %q", role))
		}
		r = parsed
	}

	return s.enqueue(ctx, "invite", func(ctx context.Context) error {
		return optimistic.Run(ctx, optimistic.Mutation{
			Name: "invite",
			Apply: func() error {
				actor := s.Role()
				if !roles.CanManageMembers(actor) || !roles.CanAssign(actor, r) {
					return apperr.New(apperr.KindPermissionDenied, "invite",
						fmt.Sprintf("You cannot invite members as %s", r))
				}
				return nil
			},
			Remote: func(ctx context.Context) error {
				return s.api.AddMember(ctx, s.projectID, email, string(r))
			},
			Commit: func() { s.refreshAfter(ctx) },
		})
	})
}

// RemoveMember removes userID from the project.
func (s *Store) RemoveMember(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.New(apperr.KindValidation, "remove member", "Missing user id")
	}
	return s.enqueue(ctx, "remove_member", func(ctx context.Context) error {
		_, err := optimistic.Update(ctx, s.team, "remove_member",
			func(team []models.Member) ([]models.Member, error) {
				target, ok := s.member(userID)
				if !ok {
					return team, apperr.New(apperr.KindNotFound, "remove member", "User not found in project")
				}
				tr, _ := roles.Parse(target.Role)
				if !roles.CanRemove(s.Role(), tr, userID, s.actorID()) {
					return team, apperr.New(apperr.KindPermissionDenied, "remove member",
						"You do not have permission to remove this member")
				}
				next := make([]models.Member, 0, len(team))
				for _, m := range team {
					if m.UserID != userID {
						next = append(next, m)
					}
				}
				return next, nil
			},
			func(ctx context.Context, team []models.Member) ([]models.Member, error) {
				return team, s.api.RemoveMember(ctx, s.projectID, userID)
			})
		if err == nil {
			s.refreshAfter(ctx)
		}
		return err
	})
}

// ChangeRole gives userID a new role. Members holding the legacy role are
// moved to whichever role is chosen.
func (s *Store) ChangeRole(ctx context.Context, userID, role string) error {
	if userID == "" {
		return apperr.New(apperr.KindValidation, "change role", "Missing user id")
	}
	next, ok := roles.Parse(role)
	if !ok || next == roles.Member || next == roles.None {
		return apperr.New(apperr.KindValidation, "change role", fmt.Sprintf("unknown role %q", role))
	}

	return s.enqueue(ctx, "change_role", func(ctx context.Context) error {
		_, err := optimistic.Update(ctx, s.team, "change_role",
			func(team []models.Member) ([]models.Member, error) {
				target, ok := s.member(userID)
				if !ok {
					return team, apperr.New(apperr.KindNotFound, "change role", "User not found in project")
				}
				actor := s.Role()
				tr, _ := roles.Parse(target.Role)
				if !roles.CanChangeRole(actor, tr, userID, s.actorID()) || !roles.CanAssign(actor, next) {
					return team, apperr.New(apperr.KindPermissionDenied, "change role",
						"You do not have permission to change this role")
				}
				out := make([]models.Member, len(team))
				copy(out, team)
				for i := range out {
					if out[i].UserID == userID {
						out[i].Role = string(next)
					}
				}
				return out, nil
			},
			func(ctx context.Context, team []models.Member) ([]models.Member, error) {
				return team, s.api.ChangeRole(ctx, s.projectID, userID, string(next))
			})
		if err == nil {
			s.refreshAfter(ctx)
		}
		return err
	})
}
