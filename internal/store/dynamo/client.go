// Package dynamo stores products and rate tables in DynamoDB.
package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/MrKriegler/go-policyadmin/internal/platform/config"
)

const (
	maxRetries     = 5
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Client wraps the DynamoDB client and the table names it serves.
type Client struct {
	DB     *dynamodb.Client
	Tables Tables
}

// NewClient creates a DynamoDB client from the service config.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	// Static credentials keep DynamoDB Local from probing the metadata service.
	if cfg.DynamoDBEndpoint != "" {
		accessKey, secretKey := cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey
		if accessKey == "" {
			accessKey = "local"
		}
		if secretKey == "" {
			secretKey = "local"
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	if err := pingWithRetry(ctx, client); err != nil {
		return nil, err
	}

	return &Client{DB: client, Tables: NewTables(cfg.DynamoTablePrefix)}, nil
}

// pingWithRetry attempts to ping DynamoDB with exponential backoff.
func pingWithRetry(ctx context.Context, client *dynamodb.Client) error {
	backoff := initialBackoff

	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := client.ListTables(pingCtx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
		cancel()

		if err == nil {
			return nil
		}

		if attempt == maxRetries {
			return fmt.Errorf("dynamodb ping failed after %d attempts: %w", maxRetries, err)
		}

		slog.Warn("dynamodb ping failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"err", err)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}

	return nil
}

// Ping checks DynamoDB connectivity by listing tables.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.DB.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}
