package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/disiqueira/gotree/v3"
	"github.com/maneesh/buildmanager/internal/filetree"
	"github.com/maneesh/buildmanager/internal/roles"
	"github.com/maneesh/buildmanager/internal/workspace"
)

// renderTree draws the folder at path and everything below it. Files are
// listed after the subfolders of their folder, with size and key.
func renderTree(t *filetree.Tree, path filetree.Path, label string, showKeys bool) (string, error) {
	root, err := t.Resolve(path)
	if err != nil {
		return "", err
	}
	out := gotree.New(label)
	addFolder(t, out, root, showKeys)
	return out.Print(), nil
}

func addFolder(t *filetree.Tree, node gotree.Tree, f filetree.Folder, showKeys bool) {
	for _, child := range t.Children(f) {
		addFolder(t, node.Add(child.Name+"/"), child, showKeys)
	}
	for _, file := range f.Files {
		text := fmt.Sprintf("%s (%s)", file.Name, file.Size)
		if showKeys {
			text += " [" + file.Key + "]"
		}
		node.Add(text)
	}
}

func treeLabel(name string, path filetree.Path) string {
	if len(path) == 0 {
		return name
	}
	return name + ":" + path.String()
}

func printTeam(w io.Writer, role roles.Role, members []workspace.MemberView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tEMAIL\tNAME\tROLE\tACTIONS")
	for _, m := range members {
		actions := "-"
		switch {
		case m.CanChangeRole && m.CanRemove:
			actions = "role,remove"
		case m.CanChangeRole:
			actions = "role"
		case m.CanRemove:
			actions = "remove"
		}
		name := m.GivenName
		if m.FamilyName != "" {
			name += " " + m.FamilyName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.UserID, m.Email, name, m.Role, actions)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nYou are %s.\n", displayRole(role))
	return err
}

func displayRole(r roles.Role) string {
	if r == roles.None {
		return "not a member"
	}
	return string(r)
}

func printRoleCounts(w io.Writer, counts map[roles.Role]int) {
	keys := make([]roles.Role, 0, len(counts))
	for r := range counts {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool {
		if roles.Rank(keys[i]) != roles.Rank(keys[j]) {
			return roles.Rank(keys[i]) < roles.Rank(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, r := range keys {
		fmt.Fprintf(w, "%s: %d\n", displayRole(r), counts[r])
	}
}
