// Package filetree holds a project's folder/file hierarchy.
//
// A Tree is an arena: folders live in a map keyed by a stable FolderID and
// refer to their children and parent by ID. Trees are persistent. Every
// mutation returns a new Tree and leaves the receiver untouched; only the
// folders along the mutated path are copied, the rest are shared.
package filetree

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maneesh/buildmanager/internal/apperr"
)

// FolderID identifies a folder for the lifetime of a Tree and its descendants.
// IDs are local to the workspace and never sent to the backend.
type FolderID string

// FileEntry is a stored file's descriptive metadata.
type FileEntry struct {
	Name       string `json:"name"`
	Size       string `json:"size"`
	UploadedAt string `json:"uploadedAt"`
	Key        string `json:"key"`
	Path       Path   `json:"path"`
}

// Folder is a node of the tree. Folders and Files keep insertion order.
type Folder struct {
	ID        FolderID
	Name      string
	CreatedAt time.Time
	Parent    FolderID
	Folders   []FolderID
	Files     []FileEntry
}

func (f *Folder) clone() *Folder {
	c := *f
	c.Folders = append([]FolderID(nil), f.Folders...)
	c.Files = append([]FileEntry(nil), f.Files...)
	return &c
}

// Tree is an immutable snapshot of a project directory.
type Tree struct {
	root  FolderID
	nodes map[FolderID]*Folder
}

// RootName is the name the backend gives the top-level directory.
const RootName = "root"

// New returns a tree holding only an empty root folder.
func New(createdAt time.Time) *Tree {
	id := newID()
	return &Tree{
		root: id,
		nodes: map[FolderID]*Folder{
			id: {ID: id, Name: RootName, CreatedAt: createdAt},
		},
	}
}

func newID() FolderID {
	return FolderID(uuid.NewString())
}

// RootID returns the ID of the root folder.
func (t *Tree) RootID() FolderID {
	return t.root
}

// Len returns the number of folders, root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Lookup returns a copy of the folder with the given ID.
func (t *Tree) Lookup(id FolderID) (Folder, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Folder{}, false
	}
	return *n.clone(), true
}

// PathOf returns the Path addressing the folder with the given ID.
func (t *Tree) PathOf(id FolderID) (Path, error) {
	var rev []string
	for cur := id; cur != t.root; {
		n, ok := t.nodes[cur]
		if !ok {
			return nil, apperr.New(apperr.KindNotFound, "path of", fmt.Sprintf("folder %s not in tree", id))
		}
		rev = append(rev, n.Name)
		cur = n.Parent
	}
	p := make(Path, len(rev))
	for i, name := range rev {
		p[len(rev)-1-i] = name
	}
	return p, nil
}

func (t *Tree) childNamed(parent *Folder, name string) (FolderID, bool) {
	for _, cid := range parent.Folders {
		if t.nodes[cid].Name == name {
			return cid, true
		}
	}
	return "", false
}

func (t *Tree) resolveID(path Path) (FolderID, error) {
	cur := t.root
	for _, seg := range path {
		next, ok := t.childNamed(t.nodes[cur], seg)
		if !ok {
			return "", apperr.New(apperr.KindNotFound, "resolve", "Invalid path")
		}
		cur = next
	}
	return cur, nil
}

// Resolve walks from the root following path by exact name match.
func (t *Tree) Resolve(path Path) (Folder, error) {
	id, err := t.resolveID(path)
	if err != nil {
		return Folder{}, err
	}
	return *t.nodes[id].clone(), nil
}

// Children returns copies of the folder's child folders in display order.
func (t *Tree) Children(f Folder) []Folder {
	out := make([]Folder, 0, len(f.Folders))
	for _, cid := range f.Folders {
		if n, ok := t.nodes[cid]; ok {
			out = append(out, *n.clone())
		}
	}
	return out
}

// fork returns a Tree sharing every node with t. Nodes about to change must
// be replaced through own before being written.
func (t *Tree) fork() *Tree {
	nodes := make(map[FolderID]*Folder, len(t.nodes)+1)
	for id, n := range t.nodes {
		nodes[id] = n
	}
	return &Tree{root: t.root, nodes: nodes}
}

func (t *Tree) own(id FolderID) *Folder {
	c := t.nodes[id].clone()
	t.nodes[id] = c
	return c
}

// ValidateFolderName rejects names that cannot address a single folder.
func ValidateFolderName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return apperr.New(apperr.KindValidation, "create folder", "Folder name is required")
	case strings.Contains(name, "/"):
		return apperr.New(apperr.KindValidation, "create folder", "Folder name cannot contain '/'")
	}
	return nil
}

// CreateFolder appends an empty folder named name under path.
func (t *Tree) CreateFolder(path Path, name string, now time.Time) (*Tree, Folder, error) {
	if err := ValidateFolderName(name); err != nil {
		return t, Folder{}, err
	}
	pid, err := t.resolveID(path)
	if err != nil {
		return t, Folder{}, err
	}
	if _, exists := t.childNamed(t.nodes[pid], name); exists {
		return t, Folder{}, apperr.New(apperr.KindDuplicateName, "create folder",
			fmt.Sprintf("folder %q already exists in %s", name, path))
	}

	next := t.fork()
	f := &Folder{ID: newID(), Name: name, CreatedAt: now, Parent: pid}
	next.nodes[f.ID] = f
	parent := next.own(pid)
	parent.Folders = append(parent.Folders, f.ID)
	return next, *f.clone(), nil
}

// SetCreatedAt replaces a folder's creation time, used when the server echoes
// the authoritative value back.
func (t *Tree) SetCreatedAt(id FolderID, createdAt time.Time) (*Tree, error) {
	if _, ok := t.nodes[id]; !ok {
		return t, apperr.New(apperr.KindNotFound, "set created at", fmt.Sprintf("folder %s not in tree", id))
	}
	next := t.fork()
	next.own(id).CreatedAt = createdAt
	return next, nil
}

// AddFile appends entry to the folder at path. entry.Path is set to path.
// Callers must only add entries whose bytes are already stored.
func (t *Tree) AddFile(path Path, entry FileEntry) (*Tree, error) {
	if entry.Key == "" {
		return t, apperr.New(apperr.KindValidation, "add file", "file key is required")
	}
	id, err := t.resolveID(path)
	if err != nil {
		return t, err
	}
	entry.Path = path.Clone()

	next := t.fork()
	f := next.own(id)
	f.Files = append(f.Files, entry)
	return next, nil
}

// RemoveFile removes the file with the given key from the folder at path.
func (t *Tree) RemoveFile(path Path, key string) (*Tree, FileEntry, error) {
	id, err := t.resolveID(path)
	if err != nil {
		return t, FileEntry{}, err
	}
	idx := -1
	for i, fe := range t.nodes[id].Files {
		if fe.Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return t, FileEntry{}, apperr.New(apperr.KindNotFound, "remove file",
			fmt.Sprintf("no file with key %q in %s", key, path))
	}

	next := t.fork()
	f := next.own(id)
	removed := f.Files[idx]
	f.Files = append(f.Files[:idx], f.Files[idx+1:]...)
	return next, removed, nil
}

// RemoveFolder removes the child folder named name under path together with
// everything below it.
func (t *Tree) RemoveFolder(path Path, name string) (*Tree, error) {
	pid, err := t.resolveID(path)
	if err != nil {
		return t, err
	}
	cid, ok := t.childNamed(t.nodes[pid], name)
	if !ok {
		return t, apperr.New(apperr.KindNotFound, "remove folder",
			fmt.Sprintf("no folder %q in %s", name, path))
	}

	next := t.fork()
	parent := next.own(pid)
	for i, id := range parent.Folders {
		if id == cid {
			parent.Folders = append(parent.Folders[:i], parent.Folders[i+1:]...)
			break
		}
	}
	next.dropSubtree(cid)
	return next, nil
}

func (t *Tree) dropSubtree(id FolderID) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	for _, cid := range n.Folders {
		t.dropSubtree(cid)
	}
	delete(t.nodes, id)
}

// CountFiles returns the number of files at or below path.
func (t *Tree) CountFiles(path Path) (int, error) {
	id, err := t.resolveID(path)
	if err != nil {
		return 0, err
	}
	return t.countFiles(id), nil
}

func (t *Tree) countFiles(id FolderID) int {
	n := t.nodes[id]
	count := len(n.Files)
	for _, cid := range n.Folders {
		count += t.countFiles(cid)
	}
	return count
}

// FindFile searches the whole tree for the file with the given key.
func (t *Tree) FindFile(key string) (FileEntry, bool) {
	var found FileEntry
	ok := false
	t.Walk(func(_ Path, f Folder) bool {
		for _, fe := range f.Files {
			if fe.Key == key {
				found, ok = fe, true
				return false
			}
		}
		return true
	})
	return found, ok
}

// Walk visits folders depth-first in display order, parents before children.
// Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(path Path, f Folder) bool) {
	t.walk(t.root, Path{}, fn)
}

func (t *Tree) walk(id FolderID, path Path, fn func(Path, Folder) bool) bool {
	n := t.nodes[id]
	if !fn(path, *n.clone()) {
		return false
	}
	for _, cid := range n.Folders {
		if !t.walk(cid, path.Child(t.nodes[cid].Name), fn) {
			return false
		}
	}
	return true
}
