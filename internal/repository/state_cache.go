package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
	"TrendWatch/pkg/cache"
)

const stateKeyPrefix = "state:"

// CacheStateStore implements StateStore on a pkg/cache service (Redis or memory).
// Each symbol is one key holding the JSON state record, so writes replace the
// whole record at once.
type CacheStateStore struct {
	cache cache.Service
}

// NewCacheStateStore creates a state store backed by c.
func NewCacheStateStore(c cache.Service) drepo.StateStore {
	return &CacheStateStore{cache: c}
}

func stateKey(symbol string) string {
	return stateKeyPrefix + strings.ToUpper(symbol)
}

func (s *CacheStateStore) Get(ctx context.Context, symbol string) (models.PersistedState, error) {
	var rec models.StateRecord
	if err := s.cache.Get(ctx, stateKey(symbol), &rec); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return models.PersistedState{}, models.ErrStateNotFound
		}
		return models.PersistedState{}, fmt.Errorf("get state %s: %w", symbol, err)
	}
	return rec.State()
}

func (s *CacheStateStore) Put(ctx context.Context, st models.PersistedState) error {
	if err := s.cache.Set(ctx, stateKey(st.Symbol), st.Record(), 0); err != nil {
		return fmt.Errorf("put state %s: %w", st.Symbol, err)
	}
	return nil
}

func (s *CacheStateStore) List(ctx context.Context) ([]models.PersistedState, error) {
	keys, err := s.cache.Keys(ctx, stateKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list state keys: %w", err)
	}
	recs, err := cache.MGetTyped[models.StateRecord](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}

	out := make([]models.PersistedState, 0, len(recs))
	for _, rec := range recs {
		st, err := rec.State()
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *CacheStateStore) Close() error {
	return s.cache.Close()
}
