// Package profilecache holds derived style profiles keyed by player
// identifier, so repeated games against the same modeled player skip the
// derivation query. Entries are read-only snapshots taken at game start.
package profilecache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chessmate-desktop/enginecore/internal/style"
)

const defaultTTL = 24 * time.Hour

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func NewStoreFromURL(url string, ttl time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewStore(redis.NewClient(opt), ttl), nil
}

func (s *Store) key(playerID string) string {
	return "profile:" + strings.TrimSpace(playerID)
}

func (s *Store) Save(ctx context.Context, profile style.Profile) error {
	if strings.TrimSpace(profile.PlayerID) == "" {
		return fmt.Errorf("profile without player id")
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.rdb.Set(ctx, s.key(profile.PlayerID), raw, s.ttl).Err()
}

// Load returns nil without error on a cache miss.
func (s *Store) Load(ctx context.Context, playerID string) (*style.Profile, error) {
	raw, err := s.rdb.Get(ctx, s.key(playerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p style.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

func (s *Store) Delete(ctx context.Context, playerID string) error {
	return s.rdb.Del(ctx, s.key(playerID)).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
