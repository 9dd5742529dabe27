package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fanzfinance/internal/config"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	if err := InitRedis(&config.RedisConfig{Enabled: false}); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	if Enabled() {
		t.Fatalf("expected cache disabled")
	}
	ctx := context.Background()
	if err := SetJSON(ctx, "finance:summary", map[string]string{"a": "b"}, time.Second); err != nil {
		t.Fatalf("set on disabled cache must be noop: %v", err)
	}
	var dest map[string]string
	hit, err := GetJSON(ctx, "finance:summary", &dest)
	if err != nil || hit {
		t.Fatalf("expected miss without error, got hit=%v err=%v", hit, err)
	}
	if err := Del(ctx, "finance:summary"); err != nil {
		t.Fatalf("del on disabled cache must be noop: %v", err)
	}
	if err := Ping(ctx); err != nil {
		t.Fatalf("ping on disabled cache must be noop: %v", err)
	}
}

func TestBuildKeyUsesPrefix(t *testing.T) {
	redisPrefix = "fanz"
	if got := buildKey(" finance:summary "); got != "fanz:finance:summary" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := buildKey(""); got != "fanz" {
		t.Fatalf("unexpected empty key: %s", got)
	}
}

func TestIncrWindowRequiresRedis(t *testing.T) {
	if err := InitRedis(&config.RedisConfig{Enabled: false}); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	if _, _, err := IncrWindow(context.Background(), "rate:payments", 60); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("want (%d, %v) got (%d, %v)", tc.want, tc.ok, got, ok)
			}
		})
	}
}
