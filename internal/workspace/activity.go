package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/maneesh/buildmanager/internal/logging"
)

// DefaultActivityWindow is the minimum spacing of last-active syncs.
const DefaultActivityWindow = 60 * time.Second

// Syncer records that the session user is active.
type Syncer interface {
	SyncUser(ctx context.Context) error
}

// Cooldown is a shared marker limiting syncs to one per window per user.
type Cooldown interface {
	TryMarkActive(ctx context.Context, userID string, window time.Duration) (bool, error)
}

// ActivitySync issues at most one last-active sync per window. Failures are
// logged and otherwise ignored.
type ActivitySync struct {
	api      Syncer
	cooldown Cooldown
	window   time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewActivitySync creates an ActivitySync. cooldown may be nil, in which case
// the window is tracked in process.
func NewActivitySync(api Syncer, cooldown Cooldown, window time.Duration) *ActivitySync {
	if window <= 0 {
		window = DefaultActivityWindow
	}
	return &ActivitySync{
		api:      api,
		cooldown: cooldown,
		window:   window,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Touch syncs userID's last-active time unless that happened within the
// window. It reports whether a sync was sent.
func (a *ActivitySync) Touch(ctx context.Context, userID string) bool {
	if !a.due(ctx, userID) {
		return false
	}
	if err := a.api.SyncUser(ctx); err != nil {
		logging.WithContext(ctx).Warn("last-active sync failed",
			logging.String("user_id", userID), logging.Err(err))
	}
	return true
}

func (a *ActivitySync) due(ctx context.Context, userID string) bool {
	if a.cooldown != nil {
		ok, err := a.cooldown.TryMarkActive(ctx, userID, a.window)
		if err == nil {
			return ok
		}
		logging.WithContext(ctx).Warn("activity cooldown unavailable, using local window",
			logging.Err(err))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if last, ok := a.last[userID]; ok && now.Sub(last) < a.window {
		return false
	}
	a.last[userID] = now
	return true
}
