package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/trailhub-backend/internal/auth"
	"github.com/AnshRaj112/trailhub-backend/internal/config"
	"github.com/AnshRaj112/trailhub-backend/internal/database"
	"github.com/AnshRaj112/trailhub-backend/internal/queue"
	"github.com/AnshRaj112/trailhub-backend/internal/realtime"
	"github.com/AnshRaj112/trailhub-backend/internal/repository"
	"github.com/AnshRaj112/trailhub-backend/internal/repository/memory"
	"github.com/AnshRaj112/trailhub-backend/internal/repository/mongostore"
	"github.com/AnshRaj112/trailhub-backend/internal/services"
)

// app holds the connections shared by every command.
type app struct {
	cfg   *config.Config
	store repository.Store
	rdb   *redis.Client
	nc    *nats.Conn
	bus   realtime.Bus
}

func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		a.store = memory.New()
	default:
		client, db, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		a.store = mongostore.New(client, db, cfg.MongoTransactions)
	}

	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.store.EnsureIndexes(idxCtx); err != nil {
		a.close()
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	if cfg.RedisURI != "" {
		rdb, err := database.ConnectRedis(ctx, cfg.RedisURI)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.rdb = rdb
	}

	switch cfg.RealtimeBus {
	case config.BusRedis:
		a.bus = realtime.NewRedisBus(a.rdb)
	case config.BusNATS:
		nc, err := database.ConnectNATS(cfg.NATSURL, cfg.NATSMaxReconnects, cfg.NATSReconnectWait)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.nc = nc
		a.bus = realtime.NewNATSBus(nc)
	default:
		a.bus = realtime.NewLocalBus()
	}
	slog.Info("realtime bus selected", "bus", cfg.RealtimeBus)

	return a, nil
}

// services builds the domain layer. notifier may be nil for direct delivery.
func (a *app) services(publisher services.Broadcaster, notifier services.Notifier) *services.Services {
	opts := services.Options{
		Policy:               services.NewPolicy(a.cfg.PlatformAdmins),
		Notifier:             notifier,
		Broadcaster:          publisher,
		Profiles:             services.NewProfileCache(a.store, a.rdb, a.cfg.ProfileCacheTTL),
		RequireGroupApproval: a.cfg.GroupsRequireApproval,
	}
	if a.rdb != nil {
		opts.RecentCache = services.NewRedisRecentCache(a.rdb)
	}
	return services.New(a.store, opts)
}

func (a *app) verifier() auth.Verifier {
	if a.cfg.AuthMode == config.AuthSession {
		return auth.NewSessionVerifier(a.rdb)
	}
	return auth.NewJWTVerifier(a.cfg.JWTSecret, a.cfg.JWTIssuer)
}

func (a *app) queueClient() (queue.Client, error) {
	return queue.NewAsynqClient(a.cfg.RedisURI, queue.QueueNotifications)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			slog.Warn("close realtime bus", "error", err)
		}
	}
	if a.nc != nil {
		a.nc.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			slog.Warn("close redis", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			slog.Warn("close store", "error", err)
		}
	}
}
