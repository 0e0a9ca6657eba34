package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const DefaultHashKey = "fern:hashes"

// HashClient is the part of the redis client the hash store needs.
type HashClient interface {
	HSet(ctx context.Context, key string, values map[string]string) error
	HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// HashStore keeps typed identity key -> content hash in one Redis hash per batch label. As a sink it
// records the hashes of every exported record; the pipeline reads them back to skip
// unchanged records on the next run.
type HashStore struct {
	client HashClient
	prefix string
	ttl    time.Duration
	logger ectologger.Logger
}

func NewHashStore(client HashClient, prefix string, logger ectologger.Logger) *HashStore {
	if prefix == "" {
		prefix = DefaultHashKey
	}
	return &HashStore{client: client, prefix: prefix, logger: logger}
}

// WithTTL expires a label's hashes ttl after its last export. Zero keeps them forever.
func (s *HashStore) WithTTL(ttl time.Duration) *HashStore {
	s.ttl = ttl
	return s
}

func (s *HashStore) Name() string {
	return TargetHashStore
}

func (s *HashStore) Key(batchLabel string) string {
	return s.prefix + ":" + batchLabel
}

func (s *HashStore) Export(ctx context.Context, export Export) error {
	ctx, span := tracing.StartSpan(ctx, "sinks.HashStore.Export")
	defer span.End()

	values := make(map[string]string)
	for _, page := range export.Entries {
		for _, entry := range page {
			if entry.Key == "" || entry.Hash == "" {
				continue
			}
			values[entry.Key] = string(entry.Hash)
		}
	}
	if len(values) == 0 {
		return nil
	}

	key := s.Key(export.Metadata.BatchLabel)
	if err := s.client.HSet(ctx, key, values); err != nil {
		return fmt.Errorf("failed to store hashes in %s: %w", key, err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl); err != nil {
			return fmt.Errorf("failed to set expiry on %s: %w", key, err)
		}
	}

	s.logger.WithContext(ctx).Debugf("Stored %d content hashes in %s", len(values), key)
	return nil
}

// Load returns the stored hash for each identity key that has one.
func (s *HashStore) Load(ctx context.Context, batchLabel string, keys []string) (map[string]fingerprint.ContentHash, error) {
	out := make(map[string]fingerprint.ContentHash, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	stored, err := s.client.HMGet(ctx, s.Key(batchLabel), keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to load hashes for %s: %w", batchLabel, err)
	}
	for key, hash := range stored {
		out[key] = fingerprint.ContentHash(hash)
	}
	return out, nil
}
