package workspace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/maneesh/buildmanager/internal/backend"
	"github.com/maneesh/buildmanager/internal/models"
)

const sampleProject = `{
  "projectId": "p1",
  "name": "Riverside Depot",
  "budget": 1000,
  "expenses": [{"category": "Labor", "description": "framing", "date": "2024-03-01", "amount": 250}],
  "notes": [{"text": "pour Monday"}],
  "directory": {
    "name": "root",
    "createdAt": "2024-01-01T00:00:00.000000",
    "folders": [{
      "name": "Plans",
      "createdAt": "2024-01-02T00:00:00.000000",
      "folders": [{
        "name": "Electrical",
        "createdAt": "2024-01-03T00:00:00.000000",
        "folders": [],
        "files": [{"name": "panel.pdf", "size": "1.0MB", "uploadedAt": "2024-01-03", "key": "k-panel"}]
      }],
      "files": [{"name": "site.pdf", "size": "0.5MB", "uploadedAt": "2024-01-02", "key": "k-site"}]
    }],
    "files": [{"name": "photo.jpg", "size": "3.1MB", "uploadedAt": "2024-01-01", "key": "k-photo"}]
  }
}`

// fakeAPI is an in-memory project API and object store.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu              sync.Mutex
	project         map[string]json.RawMessage
	team            []models.Member
	me              *models.User
	calls           []string
	fail            map[string]int
	failMsg         map[string]string
	objects         map[string][]byte
	folderCreatedAt string
	echo            map[string]json.RawMessage
	nextKey         string
	onPut           func()
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		t:       t,
		fail:    make(map[string]int),
		failMsg: make(map[string]string),
		objects: make(map[string][]byte),
		echo:    make(map[string]json.RawMessage),
		me:      &models.User{Sub: "u-owner", Email: "owner@site.io", CurrentRole: "owner"},
		team: []models.Member{
			{ProjectID: "p1", UserID: "u-guest", Role: "guest", Email: "guest@site.io"},
			{ProjectID: "p1", UserID: "u-legacy", Role: "member", Email: "legacy@site.io"},
			{ProjectID: "p1", UserID: "u-admin", Role: "admin", Email: "admin@site.io"},
			{ProjectID: "p1", UserID: "u-owner", Role: "owner", Email: "owner@site.io"},
			{ProjectID: "p1", UserID: "u-contrib", Role: "contributor", Email: "contrib@site.io"},
		},
		nextKey: "k1",
	}
	if err := json.Unmarshal([]byte(sampleProject), &f.project); err != nil {
		t.Fatal(err)
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/projects/{id}", f.handle("get_project", f.getProject)).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/update-field", f.handle("update_field", f.updateField)).Methods(http.MethodPatch)
	api.HandleFunc("/me", f.handle("me", f.getMe)).Methods(http.MethodGet)
	api.HandleFunc("/project/{id}/files/presign", f.handle("presign", f.presign)).Methods(http.MethodPost)
	api.HandleFunc("/project/{id}/files/metadata", f.handle("metadata", f.ok)).Methods(http.MethodPost)
	api.HandleFunc("/project/{id}/files", f.handle("delete_file", f.ok)).Methods(http.MethodDelete)
	api.HandleFunc("/project/{id}/files/folder", f.handle("create_folder", f.createFolder)).Methods(http.MethodPost)
	api.HandleFunc("/project/{id}/files/folder", f.handle("delete_folder", f.ok)).Methods(http.MethodDelete)
	api.HandleFunc("/project/{id}/files/presign-get", f.handle("presign_get", f.presignGet)).Methods(http.MethodPost)
	api.HandleFunc("/project/{id}/team", f.handle("team", f.getTeam)).Methods(http.MethodGet)
	api.HandleFunc("/project/{id}/add-user", f.handle("add_user", f.addUser)).Methods(http.MethodPost)
	api.HandleFunc("/project/{id}/remove-user", f.handle("remove_user", f.removeUser)).Methods(http.MethodDelete)
	api.HandleFunc("/project/{id}/change-role", f.handle("change_role", f.changeRole)).Methods(http.MethodPatch)
	r.HandleFunc("/s3/{key}", f.handle("put_object", f.putObject)).Methods(http.MethodPut)
	r.HandleFunc("/s3/{key}", f.handle("get_object", f.getObject)).Methods(http.MethodGet)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) client() *backend.Client {
	c, err := backend.New(f.srv.URL + "/api")
	if err != nil {
		f.t.Fatal(err)
	}
	return c
}

func (f *fakeAPI) open(opts ...Option) *Store {
	f.t.Helper()
	s, err := Open(context.Background(), "p1", f.client(), opts...)
	if err != nil {
		f.t.Fatalf("Open: %v", err)
	}
	f.t.Cleanup(s.Close)
	f.reset()
	return s
}

func (f *fakeAPI) failWith(name string, status int, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = status
	f.failMsg[name] = msg
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) object(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

func (f *fakeAPI) count(name string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) handle(name string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, name)
		status, failing := f.fail[name]
		msg := f.failMsg[name]
		f.mu.Unlock()
		if failing {
			writeJSON(w, status, map[string]string{"error": msg})
			return
		}
		fn(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) ok(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (f *fakeAPI) getProject(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.project)
}

func (f *fakeAPI) updateField(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Field string          `json:"field"`
		Value json.RawMessage `json:"value"`
	}
	json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()
	value := in.Value
	if e, ok := f.echo[in.Field]; ok {
		value = e
	}
	f.project[in.Field] = value
	writeJSON(w, http.StatusOK, map[string]any{"updated": map[string]json.RawMessage{in.Field: value}})
}

func (f *fakeAPI) getMe(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.me == nil {
		writeJSON(w, http.StatusOK, models.Me{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, models.Me{Authenticated: true, User: f.me})
}

func (f *fakeAPI) presign(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	key := f.nextKey
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, models.PresignedUpload{UploadURL: f.srv.URL + "/s3/" + key, Key: key})
}

func (f *fakeAPI) putObject(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.objects[mux.Vars(r)["key"]] = data
	hook := f.onPut
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	w.WriteHeader(http.StatusOK)
}

func (f *fakeAPI) getObject(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	data, ok := f.objects[mux.Vars(r)["key"]]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write(data)
}

func (f *fakeAPI) createFolder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Path       []string `json:"path"`
		FolderName string   `json:"folderName"`
	}
	json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	createdAt := f.folderCreatedAt
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Folder created",
		"folder":  models.Directory{Name: in.FolderName, CreatedAt: createdAt, Folders: []models.Directory{}, Files: []models.File{}},
	})
}

func (f *fakeAPI) presignGet(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Key string `json:"key"`
	}
	json.NewDecoder(r.Body).Decode(&in)
	writeJSON(w, http.StatusOK, map[string]string{"url": f.srv.URL + "/s3/" + in.Key})
}

func (f *fakeAPI) getTeam(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.team)
}

func (f *fakeAPI) addUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.team = append(f.team, models.Member{ProjectID: "p1", UserID: "u-" + in.Email, Role: in.Role, Email: in.Email})
	writeJSON(w, http.StatusOK, map[string]string{"message": "User added"})
}

func (f *fakeAPI) removeUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID string `json:"userId"`
	}
	json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.team[:0]
	for _, m := range f.team {
		if m.UserID != in.UserID {
			next = append(next, m)
		}
	}
	f.team = next
	writeJSON(w, http.StatusOK, map[string]string{"message": "User removed"})
}

func (f *fakeAPI) changeRole(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.team {
		if f.team[i].UserID == in.UserID {
			f.team[i].Role = in.Role
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Role updated"})
}
