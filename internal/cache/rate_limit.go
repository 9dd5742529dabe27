package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrDisabled 缓存未启用
var ErrDisabled = errors.New("cache disabled")

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// IncrWindow 固定窗口计数，返回窗口内次数与剩余秒数
func IncrWindow(ctx context.Context, key string, windowSeconds int) (int64, int64, error) {
	if !Enabled() {
		return 0, 0, ErrDisabled
	}
	result, err := rateLimitScript.Run(ctx, redisClient, []string{buildKey(key)}, windowSeconds).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit result: %v", result)
	}
	count, ok := toInt64(values[0])
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limit count: %v", values[0])
	}
	ttl, _ := toInt64(values[1])
	return count, ttl, nil
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
