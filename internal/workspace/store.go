// Package workspace holds the client-side state of open projects.
//
// A Store owns one project's file tree, team and field values. Every
// mutation goes through a single per-store queue and is applied
// optimistically: local state changes first, the backend is called, and the
// change is reverted if the call fails.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/maneesh/buildmanager/internal/filetree"
	"github.com/maneesh/buildmanager/internal/logging"
	"github.com/maneesh/buildmanager/internal/metrics"
	"github.com/maneesh/buildmanager/internal/models"
	"github.com/maneesh/buildmanager/internal/optimistic"
	"github.com/maneesh/buildmanager/internal/payload"
	"github.com/maneesh/buildmanager/internal/roles"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("buildmanager-workspace")

// ErrClosed is returned for operations on a closed store.
var ErrClosed = errors.New("workspace: store closed")

// Backend is the subset of the project API a store needs.
type Backend interface {
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	UpdateField(ctx context.Context, projectID, field string, value any) (json.RawMessage, error)
	Me(ctx context.Context, projectID string) (*models.Me, error)

	PresignUpload(ctx context.Context, projectID, fileName, fileType string) (*models.PresignedUpload, error)
	PutObject(ctx context.Context, uploadURL, contentType string, data []byte) error
	SaveFileMetadata(ctx context.Context, projectID string, meta models.FileMetadata) error
	DeleteFile(ctx context.Context, projectID, key string, path []string) error
	CreateFolder(ctx context.Context, projectID string, path []string, name string) (*models.Directory, error)
	DeleteFolder(ctx context.Context, projectID string, path []string, name string) error
	PresignDownload(ctx context.Context, projectID, key string) (string, error)
	GetObject(ctx context.Context, downloadURL string) (io.ReadCloser, int64, error)

	ListTeam(ctx context.Context, projectID string) ([]models.Member, error)
	AddMember(ctx context.Context, projectID, email, role string) error
	RemoveMember(ctx context.Context, projectID, userID string) error
	ChangeRole(ctx context.Context, projectID, userID, role string) error
}

// ProjectCache caches project aggregates between loads. A nil project with
// a nil error is a miss.
type ProjectCache interface {
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	SetProject(ctx context.Context, project *models.Project) error
	InvalidateProject(ctx context.Context, projectID string) error
}

// Option configures a Store.
type Option func(*Store)

// WithCache makes the store read and refresh project aggregates through c.
func WithCache(c ProjectCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithPayloadReader sets the reader that buffers upload bodies.
func WithPayloadReader(r *payload.Reader) Option {
	return func(s *Store) { s.reader = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the state of one open project.
type Store struct {
	projectID string
	api       Backend
	cache     ProjectCache
	reader    *payload.Reader
	now       func() time.Time

	tree    *optimistic.Cell[*filetree.Tree]
	project *optimistic.Cell[*models.Project]
	team    *optimistic.Cell[[]models.Member]

	mu      sync.RWMutex
	me      *models.User
	role    roles.Role
	preview *Preview

	jobs      chan job
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

type job struct {
	ctx    context.Context
	name   string
	fn     func(context.Context) error
	result chan error
}

// Open loads a project and starts its mutation queue.
func Open(ctx context.Context, projectID string, api Backend, opts ...Option) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("open store: project id is required")
	}
	ctx, span := tracer.Start(ctx, "workspace.open",
		trace.WithAttributes(attribute.String("project_id", projectID)),
	)
	defer span.End()

	s := &Store{
		projectID: projectID,
		api:       api,
		now:       time.Now,
		jobs:      make(chan job),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reader == nil {
		s.reader = payload.NewReader(0, 0)
	}

	var (
		project *models.Project
		me      *models.Me
		team    []models.Member
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.loadProject(gctx)
		project = p
		return err
	})
	g.Go(func() error {
		m, err := api.Me(gctx, projectID)
		me = m
		return err
	})
	g.Go(func() error {
		t, err := api.ListTeam(gctx, projectID)
		if err != nil {
			logging.WithContext(ctx).Warn("team not loaded",
				logging.String("project_id", projectID), logging.Err(err))
			return nil
		}
		team = t
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.tree = optimistic.NewCell(filetree.FromDirectory(project.Directory))
	s.project = optimistic.NewCell(project)
	s.team = optimistic.NewCell(team)
	s.setIdentity(me, project)

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	go s.run()
	metrics.StoreOpened()

	logging.WithContext(ctx).Info("project opened",
		logging.String("project_id", projectID),
		logging.String("role", string(s.Role())),
		logging.Int("folders", s.tree.Get().Len()),
	)
	return s, nil
}

func (s *Store) loadProject(ctx context.Context) (*models.Project, error) {
	if s.cache != nil {
		p, err := s.cache.GetProject(ctx, s.projectID)
		if err != nil {
			logging.WithContext(ctx).Warn("project cache read failed",
				logging.String("project_id", s.projectID), logging.Err(err))
		} else if p != nil {
			return p, nil
		}
	}

	p, err := s.api.GetProject(ctx, s.projectID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetProject(ctx, p); err != nil {
			logging.WithContext(ctx).Warn("project cache write failed",
				logging.String("project_id", s.projectID), logging.Err(err))
		}
	}
	return p, nil
}

func (s *Store) setIdentity(me *models.Me, project *models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := ""
	if me != nil && me.Authenticated && me.User != nil {
		u := *me.User
		s.me = &u
		current = u.CurrentRole
	}
	if current == "" && project != nil {
		current = project.CurrentUserRole
	}
	s.role = roles.ParseActor(current)
}

// Reload replaces the project, tree, team and role with what the backend
// holds now. It bypasses the project cache and refreshes it. Reload runs on
// the queue, so it never lands in the middle of a mutation.
func (s *Store) Reload(ctx context.Context) error {
	return s.enqueue(ctx, "reload", func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "workspace.reload",
			trace.WithAttributes(attribute.String("project_id", s.projectID)),
		)
		defer span.End()

		var (
			project *models.Project
			me      *models.Me
			team    []models.Member
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			p, err := s.api.GetProject(gctx, s.projectID)
			project = p
			return err
		})
		g.Go(func() error {
			m, err := s.api.Me(gctx, s.projectID)
			me = m
			return err
		})
		g.Go(func() error {
			t, err := s.api.ListTeam(gctx, s.projectID)
			if err != nil {
				logging.WithContext(ctx).Warn("team not reloaded", logging.Err(err))
				team = s.team.Get()
				return nil
			}
			team = t
			return nil
		})
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			return err
		}

		tree := filetree.FromDirectory(project.Directory)
		s.tree.Set(tree)
		s.project.Set(project)
		s.team.Set(team)
		s.setIdentity(me, project)

		s.mu.Lock()
		if s.preview != nil {
			if _, ok := tree.FindFile(s.preview.Key); !ok {
				s.preview = nil
			}
		}
		s.mu.Unlock()

		if s.cache != nil {
			if err := s.cache.SetProject(ctx, project); err != nil {
				logging.WithContext(ctx).Warn("project cache write failed", logging.Err(err))
			}
		}
		span.SetAttributes(attribute.Int("folders", tree.Len()))
		return nil
	})
}

// invalidate drops the cached aggregate after the backend accepted a change.
func (s *Store) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProject(ctx, s.projectID); err != nil {
		logging.WithContext(ctx).Warn("project cache invalidate failed",
			logging.String("project_id", s.projectID), logging.Err(err))
	}
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case j := <-s.jobs:
			j.result <- s.execute(j)
		}
	}
}

func (s *Store) execute(j job) error {
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = logging.WithFields(ctx,
		logging.String("project_id", s.projectID),
		logging.String("op", j.name),
	)
	err := j.fn(ctx)
	if err != nil {
		logging.WithContext(ctx).Info("operation failed", logging.Err(err))
	}
	return err
}

// enqueue runs fn on the store's queue and waits for it. Jobs run one at a
// time in submission order.
func (s *Store) enqueue(ctx context.Context, name string, fn func(context.Context) error) error {
	j := job{ctx: ctx, name: name, fn: fn, result: make(chan error, 1)}
	select {
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.jobs <- j:
	}
	return <-j.result
}

// Close stops the queue. Queued and in-flight operations see a cancelled
// context and roll back.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		metrics.StoreClosed()
		logging.Info("project closed", logging.String("project_id", s.projectID))
	})
}

// ProjectID returns the ID of the open project.
func (s *Store) ProjectID() string { return s.projectID }

// Role returns the session user's role in the project.
func (s *Store) Role() roles.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Me returns the session user, or nil when unauthenticated.
func (s *Store) Me() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.me == nil {
		return nil
	}
	u := *s.me
	return &u
}

func (s *Store) actorID() string {
	if u := s.Me(); u != nil {
		return u.ID()
	}
	return ""
}

// Project returns the current project aggregate.
func (s *Store) Project() *models.Project {
	return s.project.Get()
}
