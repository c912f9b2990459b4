package repository

import (
	"context"
	"errors"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/domain/repository"
	"TrendPull/pkg/cache"
)

// Bucket assignments and intent deltas are maintained by external
// collaborators (bucket classifier, intent aggregator) and read here from
// Redis. A missing key is a valid "not assigned / no intent" answer.

const (
	bucketKeyPrefix = "bucket"
	intentKeyPrefix = "intent"
)

// RedisBucketResolver implements BucketResolver on the shared cache.
type RedisBucketResolver struct {
	cache cache.Service
}

func NewRedisBucketResolver(c cache.Service) repository.BucketResolver {
	return &RedisBucketResolver{cache: c}
}

func (r *RedisBucketResolver) Bucket(ctx context.Context, instrument string) (string, error) {
	var bucket string
	err := r.cache.Get(ctx, cache.GenerateKey(bucketKeyPrefix, instrument), &bucket)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return bucket, nil
}

// RedisIntentSource implements IntentSource on the shared cache. Values
// are stored as {"da": x, "de": y}; capping happens at combination time.
type RedisIntentSource struct {
	cache cache.Service
}

func NewRedisIntentSource(c cache.Service) repository.IntentSource {
	return &RedisIntentSource{cache: c}
}

func (r *RedisIntentSource) Intent(ctx context.Context, instrument string) (models.IntentDelta, error) {
	var v struct {
		DA float64 `json:"da"`
		DE float64 `json:"de"`
	}
	err := r.cache.Get(ctx, cache.GenerateKey(intentKeyPrefix, instrument), &v)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.IntentDelta{}, nil
	}
	if err != nil {
		return models.IntentDelta{}, err
	}
	return models.IntentDelta{DeltaA: v.DA, DeltaE: v.DE}, nil
}
