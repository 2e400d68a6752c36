// Package session tracks bearer tokens that were revoked before they
// expired. The identity provider issues the tokens; this service only
// remembers which ones it must stop accepting.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RevocationStore struct {
	rdb *redis.Client
	// maxTTL bounds how long a user-wide cutoff is kept; it must be at
	// least the longest token lifetime.
	maxTTL time.Duration
}

func NewRevocationStore(rdb *redis.Client, maxTTL time.Duration) *RevocationStore {
	return &RevocationStore{rdb: rdb, maxTTL: maxTTL}
}

func key(jti string) string     { return fmt.Sprintf("app:revoked:%s", jti) }
func userKey(uid string) string { return fmt.Sprintf("app:revoked_before:%s", uid) }

// Revoke rejects the token with this id until it would have expired anyway.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, key(jti), "1", ttl).Err()
}

// RevokeAllForUser rejects every token of the user issued before now.
func (s *RevocationStore) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.rdb.Set(ctx, userKey(userID), strconv.FormatInt(time.Now().Unix(), 10), s.maxTTL).Err()
}

// IsRevoked checks both the single-token and the user-wide revocation.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti, userID string, issuedAt time.Time) (bool, error) {
	pipe := s.rdb.Pipeline()
	one := pipe.Exists(ctx, key(jti))
	before := pipe.Get(ctx, userKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	if jti != "" && one.Val() > 0 {
		return true, nil
	}
	cut, err := before.Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return issuedAt.Unix() <= cut, nil
}
