package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sceneit/apiserver/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
	defaultConnMaxIdle    = 2 * time.Minute
	defaultMinPoolSize    = 5
	defaultMaxPoolSize    = 25

	UsersCollection = "users"
)

// Open connects to MongoDB and verifies the connection with a ping.
func Open(ctx context.Context, cfg config.Config) (*mongo.Client, error) {
	if strings.TrimSpace(cfg.Mongo.URI) == "" {
		return nil, errors.New("mongo uri is required")
	}

	opts := options.Client().
		ApplyURI(cfg.Mongo.URI).
		SetConnectTimeout(defaultConnectTimeout).
		SetMaxConnIdleTime(defaultConnMaxIdle).
		SetMinPoolSize(defaultMinPoolSize).
		SetMaxPoolSize(defaultMaxPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

// Database returns the configured application database.
func Database(client *mongo.Client, cfg config.Config) *mongo.Database {
	return client.Database(cfg.Mongo.DBName)
}
