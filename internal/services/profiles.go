package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/trailhub-backend/internal/models"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

const (
	profileKeyPrefix = "cache:profile:"
	profileTTL       = 8 * time.Hour
	minProfileTTL    = 1 * time.Hour
	maxProfileTTL    = 12 * time.Hour
)

// ProfileLookup resolves the display details attached to realtime payloads.
// Unknown users come back with only their id set.
type ProfileLookup interface {
	Lookup(ctx context.Context, userID string) models.UserProfile
}

// ProfileCache reads profiles from the store through a Redis cache. A nil
// Redis client disables caching.
type ProfileCache struct {
	store repository.Store
	rdb   *redis.Client
	ttl   time.Duration
}

func NewProfileCache(store repository.Store, rdb *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = profileTTL
	}
	ttl = min(max(ttl, minProfileTTL), maxProfileTTL)
	return &ProfileCache{store: store, rdb: rdb, ttl: ttl}
}

func (p *ProfileCache) Lookup(ctx context.Context, userID string) models.UserProfile {
	if cached, ok := p.get(ctx, userID); ok {
		return cached
	}

	profile, err := p.store.Users().FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Warn("profile lookup failed", "user_id", userID, "error", err)
		}
		return models.UserProfile{ID: userID}
	}
	p.set(ctx, *profile)
	return *profile
}

func (p *ProfileCache) get(ctx context.Context, userID string) (models.UserProfile, bool) {
	var profile models.UserProfile
	if p.rdb == nil {
		return profile, false
	}
	val, err := p.rdb.Get(ctx, profileKeyPrefix+userID).Result()
	if err != nil {
		return profile, false
	}
	if json.Unmarshal([]byte(val), &profile) != nil {
		return profile, false
	}
	return profile, true
}

func (p *ProfileCache) set(ctx context.Context, profile models.UserProfile) {
	if p.rdb == nil {
		return
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := p.rdb.Set(ctx, profileKeyPrefix+profile.ID, data, p.ttl).Err(); err != nil {
		slog.Warn("profile cache write failed", "user_id", profile.ID, "error", err)
	}
}
