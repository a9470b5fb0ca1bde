package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/models"
)

func newTestClient(t *testing.T, r *mux.Router, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("/api"); err == nil {
		t.Error("New(/api) succeeded, want error")
	}
}

func TestSessionCookieSent(t *testing.T) {
	r := mux.NewRouter()
	var got string
	r.HandleFunc("/api/me", func(w http.ResponseWriter, req *http.Request) {
		if c, err := req.Cookie("session"); err == nil {
			got = c.Value
		}
		if req.URL.Query().Get("project_id") != "p1" {
			t.Errorf("project_id = %q, want p1", req.URL.Query().Get("project_id"))
		}
		writeJSON(w, http.StatusOK, models.Me{
			Authenticated: true,
			User:          &models.User{Sub: "u1", Email: "a@b.co", CurrentRole: "owner"},
		})
	}).Methods(http.MethodGet)

	c := newTestClient(t, r, WithSessionCookie("session=abc123"))
	me, err := c.Me(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if got != "abc123" {
		t.Errorf("session cookie = %q, want abc123", got)
	}
	if me.User.ID() != "u1" || me.User.CurrentRole != "owner" {
		t.Errorf("Me = %+v", me.User)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"duplicate folder", http.StatusBadRequest, `{"error":"Folder already exists"}`, apperr.ErrDuplicateName},
		{"bad request", http.StatusBadRequest, `{"error":"Missing 'folderName'"}`, apperr.ErrValidation},
		{"unauthenticated", http.StatusUnauthorized, `{"error":"Not authenticated"}`, apperr.ErrPermissionDenied},
		{"forbidden", http.StatusForbidden, `{"detail":"Forbidden"}`, apperr.ErrPermissionDenied},
		{"not found", http.StatusNotFound, `{"error":"Project not found"}`, apperr.ErrNotFound},
		{"conflict", http.StatusConflict, `{"error":"User already in project"}`, apperr.ErrConflict},
		{"server error", http.StatusInternalServerError, `oops`, apperr.ErrRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mux.NewRouter()
			r.HandleFunc("/api/project/{id}/files/folder", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			c := newTestClient(t, r)
			_, err := c.CreateFolder(context.Background(), "p1", nil, "Plans")
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateFolder error = %v, want kind of %v", err, tt.want)
			}
		})
	}
}

func TestNonJSONBodyIsNetworkFailure(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/projects/{id}", func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, "<html>proxy error</html>")
	})
	c := newTestClient(t, r)
	_, err := c.GetProject(context.Background(), "p1")
	if !errors.Is(err, apperr.ErrNetwork) {
		t.Errorf("GetProject error = %v, want network failure", err)
	}
}

func TestUnreachableIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(base + "/api")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ListProjects(context.Background()); !errors.Is(err, apperr.ErrNetwork) {
		t.Errorf("ListProjects error = %v, want network failure", err)
	}
}

func TestFolderRequestsEncodeRootAsEmptyArray(t *testing.T) {
	r := mux.NewRouter()
	var bodies []string
	r.HandleFunc("/api/project/{id}/files/folder", func(w http.ResponseWriter, req *http.Request) {
		data, _ := io.ReadAll(req.Body)
		bodies = append(bodies, req.Method+" "+string(data))
		if req.Method == http.MethodPost {
			writeJSON(w, http.StatusCreated, map[string]any{
				"folder": models.Directory{Name: "Plans", CreatedAt: "2024-05-01T10:00:00.000000"},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Folder deleted"})
	}).Methods(http.MethodPost, http.MethodDelete)

	c := newTestClient(t, r)
	dir, err := c.CreateFolder(context.Background(), "p1", nil, "Plans")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if dir.Name != "Plans" || dir.CreatedAt == "" {
		t.Errorf("folder = %+v", dir)
	}
	if err := c.DeleteFolder(context.Background(), "p1", []string{"A"}, "Plans"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	want := []string{
		`POST {"path":[],"folderName":"Plans"}`,
		`DELETE {"path":["A"],"folderName":"Plans"}`,
	}
	for i, w := range want {
		if i >= len(bodies) || bodies[i] != w {
			t.Errorf("request %d = %q, want %q", i, bodies, w)
		}
	}
}

func TestUpdateFieldReturnsServerValue(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/projects/{id}/update-field", func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			Field string          `json:"field"`
			Value json.RawMessage `json:"value"`
		}
		json.NewDecoder(req.Body).Decode(&in)
		if in.Field != "status" || string(in.Value) != `"active"` {
			t.Errorf("request = %s %s", in.Field, in.Value)
		}
		writeJSON(w, http.StatusOK, map[string]any{"updated": map[string]any{"status": "Active"}})
	}).Methods(http.MethodPatch)

	c := newTestClient(t, r)
	got, err := c.UpdateField(context.Background(), "p1", "status", "active")
	if err != nil {
		t.Fatalf("UpdateField: %v", err)
	}
	if string(got) != `"Active"` {
		t.Errorf("UpdateField = %s, want \"Active\"", got)
	}

	if _, err := c.UpdateField(context.Background(), "p1", "", 1); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty field error = %v, want validation", err)
	}
}

func TestTeamEndpoints(t *testing.T) {
	r := mux.NewRouter()
	var calls []string
	record := func(w http.ResponseWriter, req *http.Request) {
		data, _ := io.ReadAll(req.Body)
		calls = append(calls, req.Method+" "+req.URL.Path+" "+strings.TrimSpace(string(data)))
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}
	r.HandleFunc("/api/project/{id}/team", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, []models.Member{
			{UserID: "u1", Role: "owner", Email: "o@x.io"},
			{UserID: "u2", Role: "member", Email: "m@x.io"},
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/project/{id}/add-user", record).Methods(http.MethodPost)
	r.HandleFunc("/api/project/{id}/remove-user", record).Methods(http.MethodDelete)
	r.HandleFunc("/api/project/{id}/change-role", record).Methods(http.MethodPatch)

	c := newTestClient(t, r)
	ctx := context.Background()

	team, err := c.ListTeam(ctx, "p1")
	if err != nil || len(team) != 2 {
		t.Fatalf("ListTeam = %v, %v", team, err)
	}
	if err := c.AddMember(ctx, "p1", "new@x.io", "guest"); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveMember(ctx, "p1", "u2"); err != nil {
		t.Fatal(err)
	}
	if err := c.ChangeRole(ctx, "p1", "u2", "admin"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		`POST /api/project/p1/add-user {"email":"new@x.io","role":"guest"}`,
		`DELETE /api/project/p1/remove-user {"userId":"u2"}`,
		`PATCH /api/project/p1/change-role {"userId":"u2","role":"admin"}`,
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %q", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestPutObjectOmitsSessionCookie(t *testing.T) {
	var cookieSeen bool
	var contentType string
	var body string
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, err := req.Cookie("session")
		cookieSeen = err == nil
		contentType = req.Header.Get("Content-Type")
		data, _ := io.ReadAll(req.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer storage.Close()

	c, err := New(storage.URL+"/api", WithSessionCookie("session=abc"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PutObject(context.Background(), storage.URL+"/bucket/k1?sig=x", "application/pdf", []byte("%PDF")); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if cookieSeen {
		t.Error("presigned PUT carried the session cookie")
	}
	if contentType != "application/pdf" || body != "%PDF" {
		t.Errorf("PUT content-type %q body %q", contentType, body)
	}
}

func TestPutObjectRejected(t *testing.T) {
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer storage.Close()

	c, _ := New(storage.URL + "/api")
	err := c.PutObject(context.Background(), storage.URL+"/k1", "", []byte("x"))
	if !errors.Is(err, apperr.ErrRemote) {
		t.Errorf("PutObject error = %v, want remote failure", err)
	}
}

func TestPresignUploadRequiresKey(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/project/{id}/files/presign", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"uploadUrl": "http://s3/x"})
	})
	c := newTestClient(t, r)
	if _, err := c.PresignUpload(context.Background(), "p1", "a.pdf", "application/pdf"); !errors.Is(err, apperr.ErrRemote) {
		t.Errorf("PresignUpload error = %v, want remote failure", err)
	}
}
