package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/filetree"
	"github.com/maneesh/buildmanager/internal/models"
	"github.com/maneesh/buildmanager/internal/workspace"
	"github.com/spf13/cobra"
)

func pathArg(args []string, i int) filetree.Path {
	if len(args) > i {
		return filetree.ParsePath(args[i])
	}
	return filetree.Path{}
}

func newTreeCmd(a *app) *cobra.Command {
	var showKeys bool
	cmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "Show the project's folders and files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			path := pathArg(args, 0)
			out, err := renderTree(s.Tree(), path, treeLabel(s.Project().Name, path), showKeys)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showKeys, "keys", false, "show storage keys")
	return cmd
}

func newMkdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <name> [parent]",
		Short: "Create a folder",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			parent := pathArg(args, 1)
			f, err := s.CreateFolder(cmd.Context(), parent, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", parent.Child(f.Name))
			return nil
		},
	}
}

func newRmdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <name> [parent]",
		Short: "Delete a folder and everything in it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			parent := pathArg(args, 1)
			count, err := s.Tree().CountFiles(parent.Child(args[0]))
			if err != nil {
				return err
			}
			if err := newConfirmer(a.yes).confirm(folderDeleteQuestion(args[0], count)); err != nil {
				return err
			}
			n, err := s.RemoveFolder(cmd.Context(), parent, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%d files)\n", parent.Child(args[0]), n)
			return nil
		},
	}
}

func newUploadCmd(a *app) *cobra.Command {
	var name, contentType string
	cmd := &cobra.Command{
		Use:   "upload <file> [folder]",
		Short: "Upload a local file into a folder",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if name == "" {
				name = filepath.Base(args[0])
			}
			entry, err := s.Upload(cmd.Context(), workspace.Upload{
				Path:        pathArg(args, 1),
				Name:        name,
				ContentType: contentType,
				Body:        f,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s) as %s\n", entry.Name, entry.Size, entry.Key)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "file name in the project (default: local base name)")
	cmd.Flags().StringVar(&contentType, "type", "", "content type (default: from extension)")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key> [folder]",
		Short: "Delete a file by storage key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			path := pathArg(args, 1)
			if len(args) == 1 {
				// locate the file when no folder was given
				s.Tree().Walk(func(p filetree.Path, f filetree.Folder) bool {
					for _, file := range f.Files {
						if file.Key == args[0] {
							path = p
							return false
						}
					}
					return true
				})
			}
			if err := s.RemoveFile(cmd.Context(), path, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <key>",
		Short: "Print a short-lived read URL for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			p, err := s.Preview(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", p.Name, p.URL)
			return nil
		},
	}
}

func newDownloadCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <key>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			body, p, err := s.Download(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer body.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				if out == "" {
					out = p.Name
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := io.Copy(w, body)
			if err != nil {
				return apperr.Wrap(apperr.KindNetwork, "download", err)
			}
			if out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", out, filetree.FormatSize(n))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, - for stdout (default: the file's name)")
	return cmd
}

func newTeamCmd(a *app) *cobra.Command {
	team := &cobra.Command{
		Use:   "team",
		Short: "List and manage project members",
	}

	var counts bool
	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List members and what you may do to them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if counts {
				printRoleCounts(cmd.OutOrStdout(), s.RoleCounts())
				return nil
			}
			return printTeam(cmd.OutOrStdout(), s.Role(), s.SearchTeam(search))
		},
	}
	list.Flags().BoolVar(&counts, "counts", false, "only show how many members hold each role")
	list.Flags().StringVarP(&search, "search", "s", "", "only show members whose name, email or role contains this")

	var inviteRole string
	invite := &cobra.Command{
		Use:   "invite <email>",
		Short: "Add a member by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Invite(cmd.Context(), args[0], inviteRole); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invited %s as %s\n", args[0], inviteRole)
			return nil
		},
	}
	invite.Flags().StringVar(&inviteRole, "role", "contributor", "role of the new member")

	remove := &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Remove a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := newConfirmer(a.yes).confirm(fmt.Sprintf("Remove %s from the project?", args[0])); err != nil {
				return err
			}
			if err := s.RemoveMember(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}

	role := &cobra.Command{
		Use:   "role <user-id> <role>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.ChangeRole(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], args[1])
			return nil
		},
	}

	team.AddCommand(list, invite, remove, role)
	return team
}

func newProjectsCmd(a *app) *cobra.Command {
	projects := &cobra.Command{
		Use:   "projects",
		Short: "List, create and delete projects",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := a.client.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tROLE")
			for _, p := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ProjectID, p.Name, p.Status, p.CurrentUserRole)
			}
			return tw.Flush()
		},
	}

	var np models.NewProject
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			np.Name = args[0]
			id, err := a.client.CreateProject(cmd.Context(), np)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	create.Flags().StringVar(&np.Description, "description", "", "project description")
	create.Flags().StringVar(&np.Client, "client", "", "client name")
	create.Flags().StringVar(&np.Location, "location", "", "site location")
	create.Flags().StringVar(&np.StartDate, "start", "", "start date (YYYY-MM-DD)")
	create.Flags().StringVar(&np.EndDate, "end", "", "end date (YYYY-MM-DD)")

	del := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newConfirmer(a.yes).confirm(fmt.Sprintf("Delete project %s and all its files?", args[0])); err != nil {
				return err
			}
			if err := a.client.DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted project %s\n", args[0])
			return nil
		},
	}

	projects.AddCommand(list, create, del)
	return projects
}

func newBudgetCmd(a *app) *cobra.Command {
	budget := &cobra.Command{
		Use:   "budget",
		Short: "Show the budget summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			b := s.Budget()
			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			for i, e := range s.Project().Expenses {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\n", i, e.Date, e.Category, e.Description, e.Amount)
			}
			tw.Flush()
			fmt.Fprintf(w, "budget %.2f, spent %.2f, remaining %.2f\n", b.Budget, b.TotalExpenses, b.Remaining)
			if b.OverBudget {
				fmt.Fprintln(w, "over budget")
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <amount>",
		Short: "Set the project budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return apperr.New(apperr.KindValidation, "set budget", "Budget must be a number")
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return s.SetBudget(cmd.Context(), amount)
		},
	}

	var e models.Expense
	add := &cobra.Command{
		Use:   "add <amount> <category>",
		Short: "Record an expense",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return apperr.New(apperr.KindValidation, "add expense", "Amount must be a number")
			}
			e.Amount, e.Category = amount, args[1]
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return s.AddExpense(cmd.Context(), e)
		},
	}
	add.Flags().StringVar(&e.Description, "description", "", "what the expense was for")
	add.Flags().StringVar(&e.Date, "date", "", "date of the expense (YYYY-MM-DD)")

	remove := &cobra.Command{
		Use:   "remove <index>",
		Short: "Delete an expense by its listed index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return apperr.New(apperr.KindValidation, "remove expense", "Index must be a number")
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return s.RemoveExpense(cmd.Context(), idx)
		},
	}

	budget.AddCommand(set, add, remove)
	return budget
}

func newFieldCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-field <field> <json-value>",
		Short: "Update one project field",
		Long:  "Update one project field. The value is JSON; bare words are sent as strings.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				value = args[1]
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			stored, err := s.UpdateField(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], stored)
			return nil
		},
	}
}
