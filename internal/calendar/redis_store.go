package calendar

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	slotOpen  = "1"
	slotTaken = "0"
)

// RedisStore keeps each day as a hash (time -> 1|0) and indexes the days of a
// doctor/channel in a sorted set scored by yyyymmdd.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func dayKey(k Key) string {
	return fmt.Sprintf("calendar:%s:%s:%s", k.DoctorID, k.Channel, k.Date)
}

func datesKey(doctorID string, channel Channel) string {
	return fmt.Sprintf("calendar:%s:%s:dates", doctorID, channel)
}

func dateScore(date string) (float64, error) {
	n, err := strconv.Atoi(strings.ReplaceAll(date, "-", ""))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return float64(n), nil
}

func (r *RedisStore) Dates(ctx context.Context, doctorID string, channel Channel) ([]string, error) {
	dates, err := r.client.ZRange(ctx, datesKey(doctorID, channel), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange dates: %w", err)
	}
	return dates, nil
}

func (r *RedisStore) Slots(ctx context.Context, key Key) ([]Slot, error) {
	fields, err := r.client.HGetAll(ctx, dayKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall day: %w", err)
	}

	slots := make([]Slot, 0, len(fields))
	for t, v := range fields {
		slots = append(slots, Slot{Time: t, Available: v == slotOpen})
	}
	slices.SortFunc(slots, func(a, b Slot) int { return CompareSlotTimes(a.Time, b.Time) })
	return slots, nil
}

// reserveScript: -1 missing, 0 already taken, 1 reserved.
var reserveScript = redis.NewScript(`
local v = redis.call("HGET", KEYS[1], ARGV[1])
if not v then
  return -1
end
if v == ARGV[2] then
  redis.call("HSET", KEYS[1], ARGV[1], ARGV[3])
  return 1
end
return 0
`)

// releaseScript: -1 missing, 1 open.
var releaseScript = redis.NewScript(`
local v = redis.call("HGET", KEYS[1], ARGV[1])
if not v then
  return -1
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

func (r *RedisStore) Reserve(ctx context.Context, key Key, slotTime string) error {
	res, err := reserveScript.Run(ctx, r.client, []string{dayKey(key)}, slotTime, slotOpen, slotTaken).Int()
	if err != nil {
		return fmt.Errorf("reserve script: %w", err)
	}
	switch res {
	case -1:
		return ErrSlotNotFound
	case 0:
		return ErrNotAvailable
	}
	return nil
}

func (r *RedisStore) Release(ctx context.Context, key Key, slotTime string) error {
	res, err := releaseScript.Run(ctx, r.client, []string{dayKey(key)}, slotTime, slotOpen).Int()
	if err != nil {
		return fmt.Errorf("release script: %w", err)
	}
	if res == -1 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *RedisStore) EnsureDay(ctx context.Context, key Key, times []string) error {
	score, err := dateScore(key.Date)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range times {
			pipe.HSetNX(ctx, dayKey(key), t, slotOpen)
		}
		pipe.ZAdd(ctx, datesKey(key.DoctorID, key.Channel), redis.Z{Score: score, Member: key.Date})
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensure day %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) PruneBefore(ctx context.Context, doctorID string, channel Channel, date string) (int, error) {
	score, err := dateScore(date)
	if err != nil {
		return 0, err
	}

	idx := datesKey(doctorID, channel)
	stale, err := r.client.ZRangeByScore(ctx, idx, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(score, 'f', 0, 64),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("zrangebyscore dates: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, d := range stale {
			pipe.Del(ctx, dayKey(Key{DoctorID: doctorID, Channel: channel, Date: d}))
			pipe.ZRem(ctx, idx, d)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune days: %w", err)
	}
	return len(stale), nil
}
