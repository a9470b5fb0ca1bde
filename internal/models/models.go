package models

import (
	"encoding/json"
	"strings"
)

// Directory is the nested folder representation the backend stores and returns
type Directory struct {
	Name      string      `json:"name"`
	CreatedAt string      `json:"createdAt,omitempty"`
	Folders   []Directory `json:"folders"`
	Files     []File      `json:"files"`
}

// File is a file record inside a Directory
type File struct {
	Name       string `json:"name"`
	Size       string `json:"size"`
	UploadedAt string `json:"uploadedAt"`
	Key        string `json:"key"`
}

// Expense is one line of a project's budget
type Expense struct {
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
}

// Project is the project aggregate returned by GET /projects/:id
type Project struct {
	ProjectID       string     `json:"projectId"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	StartDate       string     `json:"startDate,omitempty"`
	EndDate         string     `json:"endDate,omitempty"`
	Client          string     `json:"client,omitempty"`
	Location        string     `json:"location,omitempty"`
	Status          string     `json:"status,omitempty"`
	Progress        float64    `json:"progress,omitempty"`
	Budget          float64    `json:"budget"`
	Expenses        []Expense  `json:"expenses"`
	Directory       *Directory `json:"directory,omitempty"`
	CurrentUserRole string     `json:"currentUserRole,omitempty"`

	// Raw holds every field of the aggregate, including the typed ones above.
	Raw map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the full object in Raw.
func (p *Project) UnmarshalJSON(data []byte) error {
	type plain Project
	var typed plain
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Project(typed)
	p.Raw = raw
	return nil
}

// MarshalJSON emits Raw when present so fields without a typed counterpart
// survive a round trip.
func (p Project) MarshalJSON() ([]byte, error) {
	if p.Raw != nil {
		return json.Marshal(p.Raw)
	}
	type plain Project
	return json.Marshal(plain(p))
}

// WithField returns a copy of p with field set to value. Typed fields are
// re-derived from the updated raw object.
func (p *Project) WithField(field string, value json.RawMessage) (*Project, error) {
	raw := make(map[string]json.RawMessage, len(p.Raw)+1)
	if p.Raw != nil {
		for k, v := range p.Raw {
			raw[k] = v
		}
	} else {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	raw[field] = value

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var next Project
	if err := json.Unmarshal(data, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// NewProject is the body of POST /projects
type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Client      string `json:"client,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Member is a project team membership
type Member struct {
	ProjectID  string `json:"projectId"`
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	AddedAt    string `json:"addedAt"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
}

// DisplayName is the member's full name, or the email when no name is set.
func (m Member) DisplayName() string {
	name := strings.TrimSpace(strings.Join([]string{m.GivenName, m.FamilyName}, " "))
	if name == "" {
		return m.Email
	}
	return name
}

// User is the authenticated user as reported by GET /me
type User struct {
	Sub         string `json:"sub"`
	UserID      string `json:"userId,omitempty"`
	Email       string `json:"email"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`
	CurrentRole string `json:"current_role,omitempty"`
}

// ID returns the user's identifier regardless of which field the backend filled.
func (u User) ID() string {
	if u.UserID != "" {
		return u.UserID
	}
	return u.Sub
}

// Me is the response of GET /me?project_id=
type Me struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user"`
}

// PresignedUpload is the response of POST /project/:id/files/presign
type PresignedUpload struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// FileMetadata is the body of POST /project/:id/files/metadata
type FileMetadata struct {
	Name       string   `json:"name"`
	Size       string   `json:"size"`
	UploadedAt string   `json:"uploadedAt"`
	Key        string   `json:"key"`
	Path       []string `json:"path"`
}
