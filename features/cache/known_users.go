package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"eksiblock/features/blocking"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/rs/zerolog/log"
)

// KnownPrefix namespaces the known-users index inside the badger store.
const KnownPrefix = "known:"

var ErrEmptyUsername = errors.New("empty username")

// Store is the subset of the badger store the index needs.
type Store interface {
	GetItem(ctx context.Context, key string) ([]byte, bool, error)
	SetItem(ctx context.Context, key string, value []byte) error
	Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	Count(ctx context.Context, prefix string) (int, error)
}

// KnownUsers remembers every user successfully blocked or muted, across
// operations, so later operations can skip them.
type KnownUsers struct {
	kv Store

	mu    sync.RWMutex
	bloom *bloom.BloomFilter
}

// NewKnownUsers opens the index. With useBloom the existing keys are loaded
// into a bloom filter that short-circuits most negative lookups.
func NewKnownUsers(ctx context.Context, kv Store, useBloom bool) (*KnownUsers, error) {
	k := &KnownUsers{kv: kv}
	if !useBloom {
		return k, nil
	}

	bf, err := buildBloomFilter(ctx, kv, KnownPrefix)
	if err != nil {
		return nil, err
	}
	k.bloom = bf
	return k, nil
}

func knownKey(username string, blockType blocking.BlockType) string {
	return KnownPrefix + blockType.String() + ":" + strings.ToLower(username)
}

// Has reports whether username was already handled with blockType. Lookup
// errors are logged and reported as unknown.
func (k *KnownUsers) Has(username string, blockType blocking.BlockType) bool {
	if username == "" {
		return false
	}
	key := knownKey(username, blockType)

	k.mu.RLock()
	bf := k.bloom
	if bf != nil && !bf.TestString(key) {
		k.mu.RUnlock()
		return false
	}
	k.mu.RUnlock()

	_, found, err := k.kv.GetItem(context.Background(), key)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Known user lookup failed")
		return false
	}
	return found
}

// Add records username as handled with blockType.
func (k *KnownUsers) Add(username string, blockType blocking.BlockType) error {
	if username == "" {
		return ErrEmptyUsername
	}
	key := knownKey(username, blockType)

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := k.kv.SetItem(context.Background(), key, []byte(ts)); err != nil {
		return err
	}

	k.mu.Lock()
	if k.bloom != nil {
		k.bloom.AddString(key)
	}
	k.mu.Unlock()
	return nil
}

// Count returns the number of remembered users over all block types.
func (k *KnownUsers) Count(ctx context.Context) (int, error) {
	return k.kv.Count(ctx, KnownPrefix)
}
