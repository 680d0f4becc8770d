package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "chatbot:sess_1", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "hit %d", i+1)
		assert.Equal(t, int64(i+1), count)
	}
	assert.Equal(t, map[string]time.Duration{"sf:rate_limit:chatbot:sess_1": time.Minute}, fake.ttl)
}

func TestSetNXAndDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}

	key := client.IdempotencyKey("cart_items", "user-1:abc")
	ok, err := client.SetNX(ctx, key, "pending", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, key, "pending", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestDeleteIfValue(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	fake.data["sf:lock:cron"] = "token-a"

	deleted, err := client.DeleteIfValue(ctx, "sf:lock:cron", "token-b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, "token-a", fake.data["sf:lock:cron"])

	deleted, err = client.DeleteIfValue(ctx, "sf:lock:cron", "token-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NotContains(t, fake.data, "sf:lock:cron")
}

func TestReplaceIfValue(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	key := client.IdempotencyKey("scope", "k")
	fake.data[key] = "pending"

	swapped, err := client.ReplaceIfValue(ctx, key, "other", "final", time.Hour)
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.Equal(t, "pending", fake.data[key])

	swapped, err = client.ReplaceIfValue(ctx, key, "pending", "final", time.Hour)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, "final", fake.data[key])
	assert.Equal(t, time.Hour, fake.ttl[key])

	swapped, err = client.ReplaceIfValue(ctx, client.IdempotencyKey("scope", "missing"), "pending", "final", time.Hour)
	require.NoError(t, err)
	assert.False(t, swapped)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	assert.Error(t, client.Ping(context.Background()))
	_, _, err := client.FixedWindowAllow(context.Background(), "s", 1, time.Second)
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "sf:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sf:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "sf:lock:cron", client.LockKey("cron"))
	assert.Equal(t, "sf:idempotency:scope", client.IdempotencyKey("scope", " "))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@cache:6380/2", PoolSize: 7, ReadTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.ReadTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)
}

// fakeCommands implements the command subset in memory. EvalSha always
// misses so scripts fall through to Eval.
type fakeCommands struct {
	data map[string]string
	incr map[string]int64
	ttl  map[string]time.Duration
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		data: map[string]string{},
		incr: map[string]int64{},
		ttl:  map[string]time.Duration{},
	}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.incr[key]++
	return redis.NewIntResult(f.incr[key], nil)
}

func (f *fakeCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.ttl[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval recognises the two compare scripts by arity: deleteIfValue takes one
// argument, replaceIfValue takes three.
func (f *fakeCommands) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	if len(keys) != 1 || (len(args) != 1 && len(args) != 3) {
		return redis.NewCmdResult(nil, errors.New("unexpected script call"))
	}
	v, ok := f.data[keys[0]]
	if !ok || v != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	if len(args) == 1 {
		delete(f.data, keys[0])
	} else {
		f.data[keys[0]] = fmt.Sprint(args[1])
		f.ttl[keys[0]] = time.Duration(args[2].(int64)) * time.Millisecond
	}
	return redis.NewCmdResult(int64(1), nil)
}

// noScriptError satisfies redis.Error so Script.Run falls back to Eval.
type noScriptError struct{}

func (noScriptError) Error() string { return "NOSCRIPT No matching script" }
func (noScriptError) RedisError()   {}

func (f *fakeCommands) EvalSha(context.Context, string, []string, ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, noScriptError{})
}

func (f *fakeCommands) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeCommands) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeCommands) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{false}, nil)
}

func (f *fakeCommands) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}
