package workspace

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/filetree"
)

func TestOpenBuildsTree(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()

	root, err := s.Resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Files) != 1 || root.Files[0].Key != "k-photo" {
		t.Errorf("root files = %+v", root.Files)
	}
	el, err := s.Resolve(filetree.Path{"Plans", "Electrical"})
	if err != nil {
		t.Fatalf("Resolve(Plans/Electrical): %v", err)
	}
	if len(el.Files) != 1 || el.Files[0].Key != "k-panel" {
		t.Errorf("Electrical files = %+v", el.Files)
	}
	if _, err := s.Resolve(filetree.Path{"Nope"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Resolve(Nope) error = %v, want not found", err)
	}
}

func TestUploadRecordsMetadataOnlyAfterPut(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()

	var seenDuringPut bool
	f.mu.Lock()
	f.onPut = func() {
		_, seenDuringPut = s.Tree().FindFile("k1")
	}
	f.mu.Unlock()

	data := bytes.Repeat([]byte{'x'}, 2411725)
	entry, err := s.Upload(context.Background(), Upload{
		Path:        nil,
		Name:        "blueprint.pdf",
		ContentType: "application/pdf",
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if seenDuringPut {
		t.Error("file was in the tree before the PUT completed")
	}
	if got, want := f.callLog(), []string{"presign", "put_object", "metadata"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if entry.Name != "blueprint.pdf" || entry.Size != "2.3MB" || entry.Key != "k1" || len(entry.Path) != 0 {
		t.Errorf("entry = %+v", entry)
	}

	root, _ := s.Resolve(nil)
	last := root.Files[len(root.Files)-1]
	if last.Key != "k1" || last.Size != "2.3MB" {
		t.Errorf("root's last file = %+v, want k1 2.3MB", last)
	}
	if !bytes.Equal(f.object("k1"), data) {
		t.Error("object store did not receive the bytes")
	}
}

func TestUploadFailedPutLeavesTreeUntouched(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()
	f.failWith("put_object", http.StatusForbidden, "")

	before := s.Tree()
	_, err := s.Upload(context.Background(), Upload{Name: "a.pdf", Body: bytes.NewReader([]byte("pdf"))})
	if err == nil {
		t.Fatal("Upload succeeded with rejected PUT")
	}
	if s.Tree() != before {
		t.Error("tree changed after failed upload")
	}
	if f.count("metadata") != 0 {
		t.Error("metadata was recorded for an unacknowledged upload")
	}
}

func TestUploadValidation(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()

	tests := []struct {
		name string
		up   Upload
		want error
	}{
		{"no name", Upload{Body: bytes.NewReader(nil)}, apperr.ErrValidation},
		{"no body", Upload{Name: "a.pdf"}, apperr.ErrValidation},
		{"bad path", Upload{Path: filetree.Path{"Missing"}, Name: "a.pdf", Body: bytes.NewReader(nil)}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Upload(context.Background(), tt.up); !errors.Is(err, tt.want) {
				t.Errorf("Upload error = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(f.callLog()); n != 0 {
		t.Errorf("%d backend calls for invalid uploads, want 0", n)
	}
}

func TestCreateFolderUsesServerTimestamp(t *testing.T) {
	f := newFakeAPI(t)
	f.folderCreatedAt = "2024-06-01T12:30:00.000000"
	s := f.open(WithClock(func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }))

	created, err := s.CreateFolder(context.Background(), filetree.Path{"Plans"}, "Permits")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	want := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	if !created.CreatedAt.Equal(want) {
		t.Errorf("created.CreatedAt = %v, want %v", created.CreatedAt, want)
	}
	got, err := s.Resolve(filetree.Path{"Plans", "Permits"})
	if err != nil {
		t.Fatalf("Resolve new folder: %v", err)
	}
	if !got.CreatedAt.Equal(want) {
		t.Errorf("tree CreatedAt = %v, want %v", got.CreatedAt, want)
	}
}

func TestCreateFolderDuplicateRejectedLocally(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()

	_, err := s.CreateFolder(context.Background(), nil, "Plans")
	if !errors.Is(err, apperr.ErrDuplicateName) {
		t.Fatalf("CreateFolder error = %v, want duplicate name", err)
	}
	if f.count("create_folder") != 0 {
		t.Error("duplicate folder reached the backend")
	}
}

func TestCreateFolderServerRejectionRollsBack(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()
	f.failWith("create_folder", http.StatusBadRequest, "Folder already exists")

	before := s.Tree()
	_, err := s.CreateFolder(context.Background(), nil, "Drawings")
	if !errors.Is(err, apperr.ErrDuplicateName) {
		t.Fatalf("CreateFolder error = %v, want duplicate name", err)
	}
	if s.Tree() != before {
		t.Error("optimistic folder not rolled back")
	}
	if _, err := s.Resolve(filetree.Path{"Drawings"}); err == nil {
		t.Error("rolled back folder still resolves")
	}
}

func TestRemoveFolder(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()

	n, err := s.RemoveFolder(context.Background(), nil, "Plans")
	if err != nil {
		t.Fatalf("RemoveFolder: %v", err)
	}
	if n != 2 {
		t.Errorf("removed files = %d, want 2", n)
	}
	for _, p := range []filetree.Path{{"Plans"}, {"Plans", "Electrical"}} {
		if _, err := s.Resolve(p); err == nil {
			t.Errorf("Resolve(%v) succeeded after removal", p)
		}
	}
}

func TestRemoveFolderFailureRestoresSubtree(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()
	f.failWith("delete_folder", http.StatusInternalServerError, "boom")

	_, err := s.RemoveFolder(context.Background(), nil, "Plans")
	if !errors.Is(err, apperr.ErrRemote) {
		t.Fatalf("RemoveFolder error = %v, want remote failure", err)
	}
	if _, err := s.Resolve(filetree.Path{"Plans", "Electrical"}); err != nil {
		t.Errorf("subtree not restored: %v", err)
	}
}

func TestRemoveFileClearsPreview(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()
	ctx := context.Background()

	p, err := s.Preview(ctx, "k-site")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if p.Name != "site.pdf" || p.URL == "" {
		t.Errorf("preview = %+v", p)
	}
	if err := s.RemoveFile(ctx, filetree.Path{"Plans"}, "k-site"); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if _, ok := s.ActivePreview(); ok {
		t.Error("preview of removed file still active")
	}
	if _, ok := s.Tree().FindFile("k-site"); ok {
		t.Error("removed file still in tree")
	}
	if err := s.RemoveFile(ctx, filetree.Path{"Plans"}, "k-site"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second RemoveFile error = %v, want not found", err)
	}
}

func TestRemoveFileFailureRestores(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()
	ctx := context.Background()
	if _, err := s.Preview(ctx, "k-photo"); err != nil {
		t.Fatal(err)
	}
	f.failWith("delete_file", http.StatusForbidden, "Forbidden")

	err := s.RemoveFile(ctx, nil, "k-photo")
	if !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("RemoveFile error = %v, want permission denied", err)
	}
	if _, ok := s.Tree().FindFile("k-photo"); !ok {
		t.Error("file not restored after failed delete")
	}
	if p, ok := s.ActivePreview(); !ok || p.Key != "k-photo" {
		t.Error("preview not restored after failed delete")
	}
}

func TestPreviewUnknownKey(t *testing.T) {
	f := newFakeAPI(t)
	s := f.open()
	if _, err := s.Preview(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Preview error = %v, want not found", err)
	}
	if f.count("presign_get") != 0 {
		t.Error("unknown key reached the backend")
	}
}

func TestDownload(t *testing.T) {
	f := newFakeAPI(t)
	f.objects["k-photo"] = []byte("jpeg bytes")
	s := f.open()

	rc, p, err := s.Download(context.Background(), "k-photo")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "jpeg bytes" || p.Name != "photo.jpg" {
		t.Errorf("Download = %q, %+v", data, p)
	}
}
