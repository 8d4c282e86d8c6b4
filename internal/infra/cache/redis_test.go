package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credential struct {
	Login    string
	Password string
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := InitServer(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestSetAndGet(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	want := credential{Login: "conta@adspower.com", Password: "s3nha"}
	require.NoError(t, c.Set(ctx, "credential:current", want, time.Minute))

	var got credential
	found, err := c.Get(ctx, "credential:current", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestGetMiss(t *testing.T) {
	c, _ := setupTestCache(t)

	var out credential
	found, err := c.Get(context.Background(), "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	var out string
	found, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Invalidate(ctx, "k"))

	var out string
	found, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetIfAbsent(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	stored, err := c.SetIfAbsent(ctx, "k", credential{Login: "a", Password: "novo"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.SetIfAbsent(ctx, "k", credential{Login: "a", Password: "antigo"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	var out credential
	found, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "novo", out.Password)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestGetInvalidJSON(t *testing.T) {
	c, mr := setupTestCache(t)
	require.NoError(t, mr.Set("bad", "not-json"))

	var out credential
	found, err := c.Get(context.Background(), "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestInitServerInvalidAddr(t *testing.T) {
	_, err := InitServer(context.Background(), Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
