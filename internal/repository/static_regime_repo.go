package repository

import (
	"context"

	"TrendPull/internal/domain/models"
	"TrendPull/internal/domain/repository"
)

// StaticBucketResolver serves bucket assignments from configuration.
// Used when no Redis is deployed.
type StaticBucketResolver struct {
	buckets map[string]string
}

func NewStaticBucketResolver(buckets map[string]string) repository.BucketResolver {
	if buckets == nil {
		buckets = map[string]string{}
	}
	return &StaticBucketResolver{buckets: buckets}
}

func (r *StaticBucketResolver) Bucket(_ context.Context, instrument string) (string, error) {
	return r.buckets[instrument], nil
}

// NoIntentSource always reports a zero intent delta.
type NoIntentSource struct{}

func NewNoIntentSource() repository.IntentSource { return NoIntentSource{} }

func (NoIntentSource) Intent(context.Context, string) (models.IntentDelta, error) {
	return models.IntentDelta{}, nil
}
