// Package livestore mirrors live match summaries into Redis so other
// processes can list and inspect running games.
package livestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-checkers/internal/match"
)

const (
	ttlMatch   = 24 * time.Hour
	maxRetries = 3
)

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Open connects to redisURL and pings it.
func Open(ctx context.Context, redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for live index")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func keyMatch(id string) string { return "ck:match:" + strings.TrimSpace(id) }
func keyLive() string           { return "ck:live" }

// Put stores sum unless the index already holds the same or a newer version.
func (s *Store) Put(ctx context.Context, sum match.Summary) error {
	if strings.TrimSpace(sum.ID) == "" {
		return nil
	}
	raw, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	key := keyMatch(sum.ID)
	for i := 0; i < maxRetries; i++ {
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := loadSummary(ctx, tx, key)
			if err != nil {
				return err
			}
			if cur != nil && cur.Version >= sum.Version {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, raw, ttlMatch)
				pipe.SAdd(ctx, keyLive(), sum.ID)
				// 인덱스 키 TTL도 매치 TTL과 동일하게 갱신
				pipe.Expire(ctx, keyLive(), ttlMatch)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// Remove drops id from the index.
func (s *Store) Remove(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyMatch(id))
		pipe.SRem(ctx, keyLive(), id)
		return nil
	})
	return err
}

// Get returns the stored summary for id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*match.Summary, error) {
	return loadSummary(ctx, s.rdb, keyMatch(id))
}

// List returns every indexed match ordered by id. Members whose summary has
// expired are pruned from the live set.
func (s *Store) List(ctx context.Context) ([]match.Summary, error) {
	ids, err := s.rdb.SMembers(ctx, keyLive()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]match.Summary, 0, len(ids))
	for _, id := range ids {
		sum, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			// 만료된 매치: 인덱스에서도 정리
			_ = s.rdb.SRem(ctx, keyLive(), id).Err()
			continue
		}
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func loadSummary(ctx context.Context, c getter, key string) (*match.Summary, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sum match.Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}
