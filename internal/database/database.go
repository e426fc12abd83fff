// Package database opens the connections the server depends on. Callers own
// the returned clients and close them on shutdown.
package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo dials MongoDB and pings the primary before returning.
func ConnectMongo(ctx context.Context, mongoURI, dbName string) (*mongo.Client, *mongo.Database, error) {
	// Atlas clusters can take a while to answer the first handshake.
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(mongoURI).
		SetServerSelectionTimeout(10 * time.Second).
		SetMaxPoolSize(100)

	slog.Info("connecting to mongodb")
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	name := databaseName(mongoURI, dbName)
	slog.Info("connected to mongodb", "database", name)
	return client, client.Database(name), nil
}

// databaseName prefers the path segment of the URI over the configured default.
func databaseName(mongoURI, fallback string) string {
	rest := mongoURI
	if _, after, ok := strings.Cut(rest, "://"); ok {
		rest = after
	}
	_, path, ok := strings.Cut(rest, "/")
	if !ok {
		return fallback
	}
	path, _, _ = strings.Cut(path, "?")
	if path == "" {
		return fallback
	}
	return path
}
