// Package tokenstore is the key-value store holding the marketplace bearer
// token. How the token gets there (login, refresh) is outside this service.
package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog_sync/internal/domain"
	"catalog_sync/pkg/errcodes"
)

type Store struct {
	client *redis.Client
	key    string
}

func NewStore(client *redis.Client, key string) *Store {
	return &Store{
		client: client,
		key:    key,
	}
}

// Token returns the current marketplace bearer token.
func (s *Store) Token(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.NewError(errcodes.TokenMissing, "marketplace token is not provisioned")
		}

		return "", domain.WrapError(err, errcodes.InternalServerError, "token lookup failed")
	}

	return token, nil
}

// Save stores a token with an expiry. Used by the external provisioning job
// and by tests.
func (s *Store) Save(ctx context.Context, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key, token, ttl).Err(); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "token save failed")
	}

	return nil
}
