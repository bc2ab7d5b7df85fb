package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog_sync/internal/domain"
	"catalog_sync/pkg/errcodes"
)

// registryTTL caps how long an abandoned entry can block new passes after a
// crash that skipped the release.
const registryTTL = time.Hour

// Registry prevents re-entrant passes of the same job type. It lives in
// redis, not process memory, so the guard holds across restarts and
// replicas.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRegistry(client *redis.Client) *Registry {
	return &Registry{client: client, ttl: registryTTL}
}

// Acquire registers jobID as the running pass of jobType. It reports false
// when another pass is already registered.
func (r *Registry) Acquire(ctx context.Context, jobType, jobID string) (bool, error) {
	acquired, err := r.client.SetNX(ctx, registryKey(jobType), jobID, r.ttl).Result()
	if err != nil {
		return false, domain.WrapError(err, errcodes.InternalServerError, "failed to register job")
	}

	return acquired, nil
}

func (r *Registry) Release(ctx context.Context, jobType string) error {
	if err := r.client.Del(ctx, registryKey(jobType)).Err(); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to release job registration")
	}

	return nil
}

// Running returns the id of the currently registered pass of jobType.
func (r *Registry) Running(ctx context.Context, jobType string) (string, bool, error) {
	jobID, err := r.client.Get(ctx, registryKey(jobType)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, domain.WrapError(err, errcodes.InternalServerError, "failed to check job registration")
	}

	return jobID, true, nil
}

func registryKey(jobType string) string {
	return "jobs:running:" + jobType
}
