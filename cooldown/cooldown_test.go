package cooldown

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/rustyeddy/tradegate/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 7, 4, 9, 30, 0, 0, time.UTC)

func TestMemoryUnknownAsset(t *testing.T) {
	t.Parallel()

	m := NewMemory(clock.NewFake(t0))
	st, err := m.Status(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, st.InCooldown)
	assert.Equal(t, time.Duration(0), st.Remaining)
}

func TestMemorySetThenExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fc := clock.NewFake(t0)
	m := NewMemory(fc)

	_, err := m.Set(ctx, "BTCUSDT", 300000*time.Millisecond)
	require.NoError(t, err)

	st, err := m.Status(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, st.InCooldown)
	assert.Equal(t, int64(300000), st.RemainingMs())

	fc.Advance(300001 * time.Millisecond)
	st, err = m.Status(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, st.InCooldown)
	assert.Equal(t, int64(0), st.RemainingMs())
}

func TestMemoryZeroDurationStartsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fc := clock.NewFake(t0)
	m := NewMemory(fc)

	st, err := m.Set(ctx, "ETHUSDT", 0)
	require.NoError(t, err)
	assert.False(t, st.InCooldown)

	st, err = m.Status(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.False(t, st.InCooldown)

	_, err = m.Set(ctx, "ETHUSDT", 2*time.Minute)
	require.NoError(t, err)
	st, err = m.Set(ctx, "ETHUSDT", 0)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, st.Remaining)
}

func TestMemoryNeverShortensActiveCooldown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fc := clock.NewFake(t0)
	m := NewMemory(fc)

	_, err := m.Set(ctx, "EURUSD", 10*time.Minute)
	require.NoError(t, err)
	fc.Advance(time.Minute)

	st, err := m.Set(ctx, "EURUSD", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 9*time.Minute, st.Remaining)

	st, err = m.Set(ctx, "EURUSD", 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, st.Remaining)
}

func TestMemoryClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(clock.NewFake(t0))

	_, err := m.Set(ctx, "AAPL", time.Hour)
	require.NoError(t, err)
	require.NoError(t, m.Clear(ctx, "AAPL"))

	st, err := m.Status(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, st.InCooldown)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory(clock.NewFake(t0))
	assets := []string{"BTCUSDT", "ETHUSDT", "EURUSD", "AAPL"}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := assets[i%len(assets)]
			if i%3 == 0 {
				_, _ = m.Set(ctx, a, time.Duration(i+1)*time.Second)
				return
			}
			_, _ = m.Status(ctx, a)
		}(i)
	}
	wg.Wait()

	for _, a := range assets {
		st, err := m.Status(ctx, a)
		require.NoError(t, err)
		assert.True(t, st.InCooldown, a)
	}
}

func TestRedisSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	fc := clock.NewFake(t0)
	r := NewRedis(db, fc)

	want := t0.Add(5 * time.Minute).UnixMilli()
	mock.ExpectEvalSha(extendScript.Hash(), []string{"tradegate:cooldown:BTCUSDT"}, want, t0.UnixMilli()).SetVal(want)

	st, err := r.Set(ctx, "BTCUSDT", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, st.InCooldown)
	assert.Equal(t, 5*time.Minute, st.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSetKeepsLongerExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	fc := clock.NewFake(t0)
	r := NewRedis(db, fc, WithPrefix("cd:"))

	want := t0.Add(time.Minute).UnixMilli()
	existing := t0.Add(30 * time.Minute).UnixMilli()
	mock.ExpectEvalSha(extendScript.Hash(), []string{"cd:AAPL"}, want, t0.UnixMilli()).SetVal(existing)

	st, err := r.Set(ctx, "AAPL", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, st.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisZeroDurationStartsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	r := NewRedis(db, clock.NewFake(t0))

	mock.ExpectGet("tradegate:cooldown:AAPL").RedisNil()

	st, err := r.Set(ctx, "AAPL", 0)
	require.NoError(t, err)
	assert.False(t, st.InCooldown)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	fc := clock.NewFake(t0)
	r := NewRedis(db, fc)

	expiry := t0.Add(90 * time.Second).UnixMilli()
	mock.ExpectGet("tradegate:cooldown:ETHUSDT").SetVal(strconv.FormatInt(expiry, 10))
	st, err := r.Status(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, st.InCooldown)
	assert.Equal(t, 90*time.Second, st.Remaining)

	mock.ExpectGet("tradegate:cooldown:EURUSD").RedisNil()
	st, err = r.Status(ctx, "EURUSD")
	require.NoError(t, err)
	assert.False(t, st.InCooldown)

	mock.ExpectGet("tradegate:cooldown:AAPL").SetErr(errors.New("connection refused"))
	_, err = r.Status(ctx, "AAPL")
	assert.Error(t, err)

	mock.ExpectGet("tradegate:cooldown:BTCUSDT").SetVal("garbage")
	_, err = r.Status(ctx, "BTCUSDT")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	r := NewRedis(db, clock.NewFake(t0))

	mock.ExpectDel("tradegate:cooldown:BTCUSDT").SetVal(1)
	require.NoError(t, r.Clear(ctx, "BTCUSDT"))

	mock.ExpectDel("tradegate:cooldown:BTCUSDT").SetErr(errors.New("boom"))
	assert.Error(t, r.Clear(ctx, "BTCUSDT"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusJSON(t *testing.T) {
	t.Parallel()

	exp := time.Date(2025, 2, 14, 9, 5, 0, 0, time.UTC)
	b, err := json.Marshal(statusAt("BTCUSDT", exp, exp.Add(-90*time.Second)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"asset":"BTCUSDT","in_cooldown":true,"expiry":"2025-02-14T09:05:00Z","remaining_ms":90000}`, string(b))
}
