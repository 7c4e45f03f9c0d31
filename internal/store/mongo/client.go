// Package mongo stores products and rate tables in MongoDB, for deployments
// that keep actuarial reference data apart from the policy ledger.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
)

const (
	maxRetries     = 5
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

type MongoClient struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewClient(cfg *config.Config) (*MongoClient, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName("policyadmin")

	var client *mongo.Client
	var err error

	backoff := initialBackoff
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.MongoConnectTimeoutSec)*time.Second)

		client, err = mongo.Connect(ctx, clientOpts)
		if err == nil {
			err = client.Ping(ctx, nil)
			if err != nil {
				_ = client.Disconnect(context.Background())
			}
		}
		cancel()
		if err == nil {
			break
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("connect to mongo after %d attempts: %w", maxRetries, err)
		}
		slog.Warn("mongo connect failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"err", err)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}

	return &MongoClient{Client: client, DB: client.Database(cfg.MongoDB)}, nil
}

// Ping verifies connectivity (used by /readyz).
func (c *MongoClient) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx, nil)
}

func (c *MongoClient) Close(ctx context.Context) error {
	return c.Client.Disconnect(ctx)
}
