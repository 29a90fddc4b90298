package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/gatewaysync/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, "k", "owner-1", time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first SetNX to win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "owner-2", time.Second)
	if err != nil || ok {
		t.Fatalf("expected second SetNX to lose, ok=%v err=%v", ok, err)
	}
	if v, _ := client.Get(ctx, "k"); v != "owner-1" {
		t.Fatalf("unexpected owner %q", v)
	}

	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, "k"); err != Nil {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestCompareAndDeleteOnlyRemovesOwnValue(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	if _, err := client.SetNX(ctx, "gs:lock:k", "owner-1", time.Second); err != nil {
		t.Fatalf("setnx: %v", err)
	}
	removed, err := client.CompareAndDelete(ctx, "gs:lock:k", "owner-2")
	if err != nil || removed {
		t.Fatalf("foreign owner must not delete, removed=%v err=%v", removed, err)
	}
	if v, _ := client.Get(ctx, "gs:lock:k"); v != "owner-1" {
		t.Fatalf("holder changed to %q", v)
	}
	if mock.evals != 1 {
		t.Fatalf("expected one EVAL after NOSCRIPT, got %d", mock.evals)
	}

	removed, err = client.CompareAndDelete(ctx, "gs:lock:k", "owner-1")
	if err != nil || !removed {
		t.Fatalf("owner should delete, removed=%v err=%v", removed, err)
	}
	if mock.evals != 1 {
		t.Fatalf("cached script should run through EVALSHA, evals=%d", mock.evals)
	}
	if _, err := client.Get(ctx, "gs:lock:k"); err != Nil {
		t.Fatalf("expected Nil after release, got %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if _, err := client.CompareAndDelete(context.Background(), "k", "v"); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if client.Close() != nil {
		t.Fatal("close without a connection should be a no-op")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.LockKey("subscription", "user-1", "pln_1"); got != "gs:lock:subscription:user-1:pln_1" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.LockKey("subscription", "", "pln_1"); got != "gs:lock:subscription:pln_1" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
	if got := client.CronLockKey("subscription-reconcile"); got != "gs:lock:cron:subscription-reconcile" {
		t.Fatalf("unexpected cron key %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options db=%d pool=%d", opts.DB, opts.PoolSize)
	}
}

type mockCmdable struct {
	data    map[string]string
	scripts map[string]bool
	evals   int
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string), scripts: make(map[string]bool)}
}

type redisErr string

func (e redisErr) Error() string { return string(e) }
func (redisErr) RedisError()     {}

// Eval caches the script like the server does and runs the compare-and-delete
// the client ships.
func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	m.evals++
	m.scripts[redis.NewScript(script).Hash()] = true
	return m.compareAndDelete(keys, args)
}

func (m *mockCmdable) EvalSha(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	if !m.scripts[sha] {
		return redis.NewCmdResult(nil, redisErr("NOSCRIPT No matching script"))
	}
	return m.compareAndDelete(keys, args)
}

func (m *mockCmdable) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, redisErr("ERR read-only scripts unsupported"))
}

func (m *mockCmdable) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, redisErr("ERR read-only scripts unsupported"))
}

func (m *mockCmdable) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	out := make([]bool, len(hashes))
	for i, h := range hashes {
		out[i] = m.scripts[h]
	}
	return redis.NewBoolSliceResult(out, nil)
}

func (m *mockCmdable) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	hash := redis.NewScript(script).Hash()
	m.scripts[hash] = true
	return redis.NewStringResult(hash, nil)
}

func (m *mockCmdable) compareAndDelete(keys []string, args []any) *redis.Cmd {
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, redisErr("ERR wrong number of arguments"))
	}
	if v, ok := m.data[keys[0]]; ok && v == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
