// Command buildctl runs single project workspace operations against the
// project API from a terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/maneesh/buildmanager/internal/apperr"
	"github.com/maneesh/buildmanager/internal/backend"
	"github.com/maneesh/buildmanager/internal/config"
	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/payload"
	"github.com/maneesh/buildmanager/internal/workspace"
	"github.com/spf13/cobra"
)

type app struct {
	cfg       *config.Config
	client    *backend.Client
	projectID string
	backend   string
	cookie    string
	verbose   bool
	yes       bool
	store     *workspace.Store
}

func (a *app) init() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.backend != "" {
		cfg.BackendURL = a.backend
	}
	if a.cookie != "" {
		cfg.BackendSessionCookie = a.cookie
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	if err := logging.Init(logging.Config{Level: level, Format: "console", OutputPath: "stderr"}); err != nil {
		return err
	}

	a.client, err = backend.New(cfg.BackendURL,
		backend.WithTimeout(cfg.GetBackendTimeout()),
		backend.WithSessionCookie(cfg.BackendSessionCookie),
	)
	return err
}

// open returns the store of the --project project.
func (a *app) open(ctx context.Context) (*workspace.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.projectID == "" {
		return nil, apperr.New(apperr.KindValidation, "open project", "--project is required")
	}
	s, err := workspace.Open(ctx, a.projectID, a.client,
		workspace.WithPayloadReader(payload.NewReader(a.cfg.GetChunkSizeBytes(), a.cfg.GetMaxUploadBytes())),
	)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	logging.Sync()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "buildctl",
		Short:         "Manage construction project files, team and budget",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.projectID, "project", "p", os.Getenv("BUILDCTL_PROJECT"), "project id")
	flags.StringVar(&a.backend, "backend", "", "project API base URL (overrides BACKEND_URL)")
	flags.StringVar(&a.cookie, "session", "", "session cookie as name=value (overrides BACKEND_SESSION_COOKIE)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log backend calls to stderr")
	flags.BoolVarP(&a.yes, "yes", "y", false, "do not ask for confirmation")

	root.AddCommand(
		newTreeCmd(a),
		newMkdirCmd(a),
		newRmdirCmd(a),
		newUploadCmd(a),
		newRmCmd(a),
		newPreviewCmd(a),
		newDownloadCmd(a),
		newTeamCmd(a),
		newProjectsCmd(a),
		newBudgetCmd(a),
		newFieldCmd(a),
	)
	return root
}

// errorText prefers the user-facing message of classified errors.
func errorText(err error) string {
	if apperr.KindOf(err) == "" {
		return err.Error()
	}
	return apperr.UserMessage(err)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errorText(err))
		os.Exit(1)
	}
}
