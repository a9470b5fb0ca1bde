package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maneesh/buildmanager/internal/metrics"
	"github.com/maneesh/buildmanager/internal/models"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("buildmanager-storage")

const (
	// CacheTTL is the default time-to-live for cached project aggregates (5 minutes)
	CacheTTL = 5 * time.Minute
)

// RedisClient wraps Redis operations with tracing
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient initializes a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{client: client, ttl: CacheTTL}, nil
}

// WithTTL sets the project cache TTL. Non-positive values keep the default.
func (rc *RedisClient) WithTTL(ttl time.Duration) *RedisClient {
	if ttl > 0 {
		rc.ttl = ttl
	}
	return rc
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func projectKey(projectID string) string {
	return fmt.Sprintf("project:%s", projectID)
}

func activityKey(userID string) string {
	return fmt.Sprintf("activity:%s", userID)
}

// GetProject retrieves a cached project aggregate with tracing
func (rc *RedisClient) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	ctx, span := tracer.Start(ctx, "redis.get_project",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
		),
	)
	defer span.End()

	data, err := rc.client.Get(ctx, projectKey(projectID)).Result()

	if err == redis.Nil {
		span.SetAttributes(
			attribute.Bool("cache_hit", false),
			attribute.String("cache_status", "miss"),
		)
		metrics.RecordCacheLookup(false)
		return nil, nil // Cache miss, not an error
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var project models.Project
	if err := json.Unmarshal([]byte(data), &project); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal cached data: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_hit", true),
		attribute.String("cache_status", "hit"),
	)
	metrics.RecordCacheLookup(true)
	return &project, nil
}

// SetProject stores a project aggregate in cache with tracing
func (rc *RedisClient) SetProject(ctx context.Context, project *models.Project) error {
	ctx, span := tracer.Start(ctx, "redis.set_project",
		trace.WithAttributes(
			attribute.String("project_id", project.ProjectID),
			attribute.String("project_name", project.Name),
		),
	)
	defer span.End()

	data, err := json.Marshal(project)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	err = rc.client.Set(ctx, projectKey(project.ProjectID), data, rc.ttl).Err()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set cache: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache_set_success", true),
		attribute.Int64("ttl_seconds", int64(rc.ttl.Seconds())),
	)
	return nil
}

// InvalidateProject removes a project aggregate from cache with tracing
func (rc *RedisClient) InvalidateProject(ctx context.Context, projectID string) error {
	ctx, span := tracer.Start(ctx, "redis.invalidate_project",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
		),
	)
	defer span.End()

	err := rc.client.Del(ctx, projectKey(projectID)).Err()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	span.SetAttributes(attribute.Bool("cache_invalidate_success", true))
	return nil
}

// TryMarkActive sets the user's activity marker if none exists. It reports
// true when the marker was set, meaning no sync happened within window.
func (rc *RedisClient) TryMarkActive(ctx context.Context, userID string, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.try_mark_active",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.Int64("window_seconds", int64(window.Seconds())),
		),
	)
	defer span.End()

	ok, err := rc.client.SetNX(ctx, activityKey(userID), time.Now().Unix(), window).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to set activity marker: %w", err)
	}

	span.SetAttributes(attribute.Bool("marked", ok))
	return ok, nil
}
