package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"treebio-api/internal/config"
	"treebio-api/internal/realtime"
)

func TestPushBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := realtime.NewHub()

	b, err := pushBackend(ctx, &config.Config{Push: config.PushConfig{Backend: config.PushNone}}, hub)
	require.NoError(t, err)
	require.Nil(t, b)

	b, err = pushBackend(ctx, &config.Config{Push: config.PushConfig{Backend: config.PushWebsocket}}, hub)
	require.NoError(t, err)
	require.IsType(t, &realtime.HubBackend{}, b)

	mr := miniredis.RunT(t)
	b, err = pushBackend(ctx, &config.Config{Push: config.PushConfig{Backend: config.PushRedis, RedisURL: "redis://" + mr.Addr()}}, hub)
	require.NoError(t, err)
	require.IsType(t, &realtime.RedisBackend{}, b)
	require.True(t, b.(*realtime.RedisBackend).Healthy())

	_, err = pushBackend(ctx, &config.Config{Push: config.PushConfig{Backend: config.PushRedis, RedisURL: "not a url"}}, hub)
	require.Error(t, err)
}

func TestServeCommandFlags(t *testing.T) {
	root := newRootCmd()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.Equal(t, "serve", serve.Name())
	for _, name := range []string{"config", "port", "push-backend", "database-driver", "redis-url"} {
		require.NotNil(t, serve.Flags().Lookup(name), name)
	}
}

func TestPushName(t *testing.T) {
	require.Equal(t, "disabled", pushName(&config.Config{}))
	require.Equal(t, "redis", pushName(&config.Config{Push: config.PushConfig{Backend: config.PushRedis}}))
}
