package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// SessionVerifier resolves opaque session tokens the account service keeps
// in Redis under "session:<token>".
type SessionVerifier struct {
	rdb *redis.Client
}

func NewSessionVerifier(rdb *redis.Client) *SessionVerifier {
	return &SessionVerifier{rdb: rdb}
}

func (v *SessionVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	userID, err := v.rdb.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("session lookup: %w", err)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}
