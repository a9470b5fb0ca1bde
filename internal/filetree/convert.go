package filetree

import (
	"time"

	"github.com/maneesh/buildmanager/internal/models"
)

// timestamp layouts the backend has been seen to emit
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a backend timestamp. Unknown formats yield the zero time.
func ParseTimestamp(s string) time.Time {
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// FormatTimestamp renders ts the way the backend stores it.
func FormatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format("2006-01-02T15:04:05.000000")
}

// FromDirectory builds a tree from the backend's nested representation.
// A nil directory yields an empty tree.
func FromDirectory(dir *models.Directory) *Tree {
	if dir == nil {
		return New(time.Time{})
	}
	t := &Tree{nodes: make(map[FolderID]*Folder)}
	t.root = t.load(*dir, "", Path{})
	return t
}

func (t *Tree) load(dir models.Directory, parent FolderID, path Path) FolderID {
	f := &Folder{
		ID:        newID(),
		Name:      dir.Name,
		CreatedAt: ParseTimestamp(dir.CreatedAt),
		Parent:    parent,
	}
	if parent == "" && f.Name == "" {
		f.Name = RootName
	}
	for _, file := range dir.Files {
		f.Files = append(f.Files, FileEntry{
			Name:       file.Name,
			Size:       file.Size,
			UploadedAt: file.UploadedAt,
			Key:        file.Key,
			Path:       path.Clone(),
		})
	}
	t.nodes[f.ID] = f
	for _, sub := range dir.Folders {
		f.Folders = append(f.Folders, t.load(sub, f.ID, path.Child(sub.Name)))
	}
	return f.ID
}

// Directory converts the tree back into the backend's nested representation.
func (t *Tree) Directory() models.Directory {
	return t.dump(t.root)
}

func (t *Tree) dump(id FolderID) models.Directory {
	n := t.nodes[id]
	d := models.Directory{
		Name:      n.Name,
		CreatedAt: FormatTimestamp(n.CreatedAt),
		Folders:   []models.Directory{},
		Files:     []models.File{},
	}
	for _, fe := range n.Files {
		d.Files = append(d.Files, models.File{
			Name:       fe.Name,
			Size:       fe.Size,
			UploadedAt: fe.UploadedAt,
			Key:        fe.Key,
		})
	}
	for _, cid := range n.Folders {
		d.Folders = append(d.Folders, t.dump(cid))
	}
	return d
}
