package cache

import (
	"context"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/rs/zerolog/log"
)

const minBloomCapacity = 1000

// buildBloomFilter sizes a filter for the keys under prefix and loads them.
func buildBloomFilter(ctx context.Context, kv Store, prefix string) (*bloom.BloomFilter, error) {
	keyCount, err := kv.Count(ctx, prefix)
	if err != nil {
		return nil, err
	}

	capacity := keyCount * 2
	if capacity < minBloomCapacity {
		capacity = minBloomCapacity
	}

	bf := bloom.NewWithEstimates(uint(capacity), 0.01)

	log.Debug().
		Int("badger_keys", keyCount).
		Uint("bloom_capacity", bf.Cap()).
		Uint("hash_functions", bf.K()).
		Msg("Created bloom filter")

	added := 0
	err = kv.Iterate(ctx, prefix, func(key string, _ []byte) error {
		bf.AddString(key)
		added++
		return nil
	})
	if err != nil {
		log.Error().Err(err).Int("keys_added", added).Msg("Bloom filter population interrupted")
		return nil, err
	}

	log.Info().
		Int("total_keys_added", added).
		Float64("false_positive_rate", bloom.EstimateFalsePositiveRate(bf.Cap(), bf.K(), uint(added))).
		Msg("Bloom filter loaded from badger")

	return bf, nil
}
