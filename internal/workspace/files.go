package workspace

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/filetree"
	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/metrics"
	"github.com/maneesh/buildmanager/internal/models"
	"github.com/maneesh/buildmanager/internal/optimistic"
)

// Preview is the store's active presigned read of a file.
type Preview struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Upload describes a file to store under Path.
type Upload struct {
	Path        filetree.Path
	Name        string
	ContentType string
	Body        io.Reader
}

// Tree returns the current tree snapshot.
func (s *Store) Tree() *filetree.Tree {
	return s.tree.Get()
}

// Resolve returns the folder at path.
func (s *Store) Resolve(path filetree.Path) (filetree.Folder, error) {
	return s.tree.Get().Resolve(path)
}

// CreateFolder adds an empty folder under path. The server's creation time
// replaces the local one once the backend accepts the folder.
func (s *Store) CreateFolder(ctx context.Context, path filetree.Path, name string) (filetree.Folder, error) {
	var created filetree.Folder
	err := s.enqueue(ctx, "create_folder", func(ctx context.Context) error {
		_, err := optimistic.Update(ctx, s.tree, "create_folder",
			func(t *filetree.Tree) (*filetree.Tree, error) {
				next, f, err := t.CreateFolder(path, name, s.now())
				created = f
				return next, err
			},
			func(ctx context.Context, t *filetree.Tree) (*filetree.Tree, error) {
				dir, err := s.api.CreateFolder(ctx, s.projectID, path, name)
				if err != nil {
					return t, err
				}
				if dir == nil || dir.CreatedAt == "" {
					return t, nil
				}
				ts := filetree.ParseTimestamp(dir.CreatedAt)
				if ts.IsZero() {
					return t, nil
				}
				next, err := t.SetCreatedAt(created.ID, ts)
				if err != nil {
					return t, nil
				}
				created.CreatedAt = ts
				return next, nil
			})
		if err == nil {
			s.invalidate(ctx)
		}
		return err
	})
	if err != nil {
		return filetree.Folder{}, err
	}
	return created, nil
}

// RemoveFolder deletes the folder named name under path with everything
// below it and returns how many files the subtree held.
func (s *Store) RemoveFolder(ctx context.Context, path filetree.Path, name string) (int, error) {
	var removed int
	err := s.enqueue(ctx, "remove_folder", func(ctx context.Context) error {
		var keys map[string]bool
		_, err := optimistic.Update(ctx, s.tree, "remove_folder",
			func(t *filetree.Tree) (*filetree.Tree, error) {
				next, err := t.RemoveFolder(path, name)
				if err != nil {
					return t, err
				}
				removed, keys = subtreeFiles(t, path.Child(name))
				return next, nil
			},
			func(ctx context.Context, t *filetree.Tree) (*filetree.Tree, error) {
				return t, s.api.DeleteFolder(ctx, s.projectID, path, name)
			})
		if err != nil {
			return err
		}
		s.mu.Lock()
		if s.preview != nil && keys[s.preview.Key] {
			s.preview = nil
		}
		s.mu.Unlock()
		s.invalidate(ctx)
		return nil
	})
	return removed, err
}

func subtreeFiles(t *filetree.Tree, root filetree.Path) (int, map[string]bool) {
	keys := make(map[string]bool)
	t.Walk(func(p filetree.Path, f filetree.Folder) bool {
		if p.HasPrefix(root) {
			for _, fe := range f.Files {
				keys[fe.Key] = true
			}
		}
		return true
	})
	count, _ := t.CountFiles(root)
	return count, keys
}

// RemoveFile deletes the file with key from the folder at path and clears
// the active preview if it shows that file.
func (s *Store) RemoveFile(ctx context.Context, path filetree.Path, key string) error {
	return s.enqueue(ctx, "remove_file", func(ctx context.Context) error {
		before := s.tree.Get()
		var prevPreview *Preview
		err := optimistic.Run(ctx, optimistic.Mutation{
			Name: "remove_file",
			Apply: func() error {
				next, _, err := before.RemoveFile(path, key)
				if err != nil {
					return err
				}
				s.tree.Set(next)
				s.mu.Lock()
				prevPreview = s.preview
				if s.preview != nil && s.preview.Key == key {
					s.preview = nil
				}
				s.mu.Unlock()
				return nil
			},
			Remote: func(ctx context.Context) error {
				return s.api.DeleteFile(ctx, s.projectID, key, path)
			},
			Revert: func() {
				s.tree.Set(before)
				s.mu.Lock()
				if s.preview == nil {
					s.preview = prevPreview
				}
				s.mu.Unlock()
			},
		})
		if err == nil {
			s.invalidate(ctx)
		}
		return err
	})
}

// Upload stores a file and then records it in the tree. The tree only
// changes after object storage acknowledged the bytes and the backend
// accepted the metadata.
func (s *Store) Upload(ctx context.Context, up Upload) (filetree.FileEntry, error) {
	name := strings.TrimSpace(up.Name)
	if name == "" || strings.Contains(name, "/") {
		return filetree.FileEntry{}, apperr.New(apperr.KindValidation, "upload", "A valid file name is required")
	}
	if up.Body == nil {
		return filetree.FileEntry{}, apperr.New(apperr.KindValidation, "upload", "No file selected")
	}
	if _, err := s.Resolve(up.Path); err != nil {
		return filetree.FileEntry{}, err
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body, err := s.reader.ReadAll(up.Body)
	if err != nil {
		return filetree.FileEntry{}, err
	}

	var entry filetree.FileEntry
	err = s.enqueue(ctx, "upload", func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "workspace.upload")
		defer span.End()

		if _, err := s.Resolve(up.Path); err != nil {
			return err
		}
		target, err := s.api.PresignUpload(ctx, s.projectID, name, contentType)
		if err != nil {
			return err
		}
		if err := s.api.PutObject(ctx, target.UploadURL, contentType, body.Data); err != nil {
			return err
		}

		entry = filetree.FileEntry{
			Name:       name,
			Size:       filetree.FormatSize(body.Size),
			UploadedAt: filetree.FormatTimestamp(s.now()),
			Key:        target.Key,
			Path:       up.Path.Clone(),
		}
		if err := s.api.SaveFileMetadata(ctx, s.projectID, models.FileMetadata{
			Name:       entry.Name,
			Size:       entry.Size,
			UploadedAt: entry.UploadedAt,
			Key:        entry.Key,
			Path:       entry.Path,
		}); err != nil {
			return err
		}

		next, err := s.tree.Get().AddFile(up.Path, entry)
		if err != nil {
			return fmt.Errorf("record uploaded file: %w", err)
		}
		s.tree.Set(next)
		s.invalidate(ctx)

		logging.WithContext(ctx).Info("file uploaded",
			logging.String("key", entry.Key),
			logging.String("name", entry.Name),
			logging.Int64("size_bytes", body.Size),
			logging.String("sha256", body.Hash),
		)
		return nil
	})
	metrics.RecordUpload(body.Size, err == nil)
	if err != nil {
		return filetree.FileEntry{}, err
	}
	return entry, nil
}

// Preview requests a presigned read URL for key and makes it the active
// preview.
func (s *Store) Preview(ctx context.Context, key string) (Preview, error) {
	var p Preview
	err := s.enqueue(ctx, "preview", func(ctx context.Context) error {
		fe, ok := s.tree.Get().FindFile(key)
		if !ok {
			return apperr.New(apperr.KindNotFound, "preview", fmt.Sprintf("no file with key %q", key))
		}
		url, err := s.api.PresignDownload(ctx, s.projectID, key)
		if err != nil {
			return err
		}
		p = Preview{Key: key, Name: fe.Name, URL: url}
		s.mu.Lock()
		s.preview = &p
		s.mu.Unlock()
		return nil
	})
	return p, err
}

// ActivePreview returns the active preview, if any.
func (s *Store) ActivePreview() (Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.preview == nil {
		return Preview{}, false
	}
	return *s.preview, true
}

// ClosePreview clears the active preview.
func (s *Store) ClosePreview() {
	s.mu.Lock()
	s.preview = nil
	s.mu.Unlock()
}

// Download opens the bytes of the file with key. The caller closes the reader.
func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, Preview, error) {
	p, err := s.Preview(ctx, key)
	if err != nil {
		return nil, Preview{}, err
	}
	rc, _, err := s.api.GetObject(ctx, p.URL)
	if err != nil {
		return nil, Preview{}, err
	}
	return rc, p, nil
}
