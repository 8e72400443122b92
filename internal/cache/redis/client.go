package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/logger"
)

type Client struct {
	client       *redis.Client
	embeddingTTL time.Duration
}

func NewClient(host string, port int, password string, db int, embeddingTTL time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, embeddingTTL: embeddingTTL}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GetEmbedding returns (nil, nil) on a miss so the caller can fall through
// to the provider without a type check.
func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	return embedding, nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, c.embeddingTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) SetScore(ctx context.Context, featureID string, score *models.PriorityScore, ttl time.Duration) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("score:%s", featureID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set score cache: %w", err)
	}

	return nil
}

func (c *Client) GetScore(ctx context.Context, featureID string) (*models.PriorityScore, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("score:%s", featureID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score cache: %w", err)
	}

	var score models.PriorityScore
	err = json.Unmarshal(data, &score)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal score: %w", err)
	}

	return &score, nil
}

// InvalidateScore drops a feature's cached snapshot when the feature is
// deleted.
func (c *Client) InvalidateScore(ctx context.Context, featureID string) error {
	err := c.client.Del(ctx, fmt.Sprintf("score:%s", featureID)).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate score cache: %w", err)
	}
	return nil
}

// InvalidateAllScores flushes every cached snapshot ahead of a bulk
// recalculation.
func (c *Client) InvalidateAllScores(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "score:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Score cache invalidated")
	return nil
}
