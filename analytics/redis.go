package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyTopViews   = "blog:views:top"
	keyTotalViews = "blog:views:total"
	keyDaily      = "blog:views:daily"
	keyTotalLikes = "blog:likes:total"
)

// The like set and the site total move together, server side.
var (
	likeScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
  redis.call('INCR', KEYS[2])
  return 1
end
return 0`)

	unlikeScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 1 then
  redis.call('DECR', KEYS[2])
  return 1
end
return 0`)

	// KEYS: top views, post likes, total views, total likes. ARGV: post id.
	forgetScript = redis.NewScript(`
local views = redis.call('ZSCORE', KEYS[1], ARGV[1])
local likes = redis.call('SCARD', KEYS[2])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('DEL', KEYS[2])
if views then
  redis.call('DECRBY', KEYS[3], math.floor(tonumber(views)))
end
if likes > 0 then
  redis.call('DECRBY', KEYS[4], likes)
end
return 1`)
)

func likesKey(postID string) string { return "blog:likes:post:" + postID }

// RedisStore keeps counters in Redis: a sorted set of per-post views, a hash
// of daily totals and one like set per post.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Connect creates a Redis client and checks it with a ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("analytics: ping: %w", err)
	}
	return client, nil
}

func (s *RedisStore) RecordView(ctx context.Context, postID, _ string, at time.Time) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, keyTopViews, 1, postID)
		pipe.Incr(ctx, keyTotalViews)
		pipe.HIncrBy(ctx, keyDaily, at.UTC().Format(DayLayout), 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("analytics: record view: %w", err)
	}
	return nil
}

func (s *RedisStore) Like(ctx context.Context, postID, userID string) (bool, error) {
	added, err := likeScript.Run(ctx, s.client, []string{likesKey(postID), keyTotalLikes}, userID).Int()
	if err != nil {
		return false, fmt.Errorf("analytics: like: %w", err)
	}
	return added == 1, nil
}

func (s *RedisStore) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	removed, err := unlikeScript.Run(ctx, s.client, []string{likesKey(postID), keyTotalLikes}, userID).Int()
	if err != nil {
		return false, fmt.Errorf("analytics: unlike: %w", err)
	}
	return removed == 1, nil
}

func (s *RedisStore) PostStats(ctx context.Context, postID string) (PostStats, error) {
	var score *redis.FloatCmd
	var likes *redis.IntCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		score = pipe.ZScore(ctx, keyTopViews, postID)
		likes = pipe.SCard(ctx, likesKey(postID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return PostStats{}, fmt.Errorf("analytics: post stats: %w", err)
	}
	views, err := score.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return PostStats{}, fmt.Errorf("analytics: post views: %w", err)
	}
	return PostStats{PostID: postID, Views: int64(views), Likes: likes.Val()}, nil
}

func (s *RedisStore) Totals(ctx context.Context) (int64, int64, error) {
	vals, err := s.client.MGet(ctx, keyTotalViews, keyTotalLikes).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("analytics: totals: %w", err)
	}
	return parseCount(vals[0]), parseCount(vals[1]), nil
}

func (s *RedisStore) TopPosts(ctx context.Context, limit int) ([]PostViews, error) {
	if limit <= 0 {
		limit = 10
	}
	entries, err := s.client.ZRevRangeWithScores(ctx, keyTopViews, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("analytics: top posts: %w", err)
	}
	out := make([]PostViews, 0, len(entries))
	for _, z := range entries {
		id, _ := z.Member.(string)
		out = append(out, PostViews{PostID: id, Views: int64(z.Score)})
	}
	return out, nil
}

func (s *RedisStore) ViewsOverTime(ctx context.Context, from, to time.Time) ([]DailyViews, error) {
	keys := days(from, to)
	if len(keys) == 0 {
		return []DailyViews{}, nil
	}
	vals, err := s.client.HMGet(ctx, keyDaily, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("analytics: views over time: %w", err)
	}
	out := make([]DailyViews, len(keys))
	for i, k := range keys {
		out[i] = DailyViews{Day: k, Views: parseCount(vals[i])}
	}
	return out, nil
}

func (s *RedisStore) Forget(ctx context.Context, postID string) error {
	keys := []string{keyTopViews, likesKey(postID), keyTotalViews, keyTotalLikes}
	if err := forgetScript.Run(ctx, s.client, keys, postID).Err(); err != nil {
		return fmt.Errorf("analytics: forget: %w", err)
	}
	return nil
}

func parseCount(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var _ Store = (*RedisStore)(nil)
