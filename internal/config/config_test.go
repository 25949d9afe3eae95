package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	require.Equal(t, "8008", cfg.Port)
	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	require.Equal(t, PushWebsocket, cfg.Push.Backend)
	require.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	require.True(t, cfg.PushConfigured())
	require.False(t, cfg.IsProduction())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("TREEBIO_PUSH_BACKEND", "")
	t.Setenv("TREEBIO_CACHE_VIEW_WINDOW", "5m")
	t.Setenv("TREEBIO_DATABASE_DRIVER", "postgres")
	t.Setenv("TREEBIO_DATABASE_DSN", "host=db user=u dbname=treebio")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	require.False(t, cfg.PushConfigured())
	require.Equal(t, 5*time.Minute, cfg.Cache.ViewWindow)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
}

func TestLoad_Flags(t *testing.T) {
	v := New()
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, flags.Parse([]string{"--port", "9000", "--push-backend", "redis", "--redis-url", "redis://localhost:6379/0"}))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, PushRedis, cfg.Push.Backend)
}

func TestLoad_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "treebio.yaml")
	require.NoError(t, os.WriteFile(file, []byte("port: \"7000\"\njwt:\n  issuer: custom\n"), 0o600))

	cfg, err := Load(New(), file)
	require.NoError(t, err)
	require.Equal(t, "7000", cfg.Port)
	require.Equal(t, "custom", cfg.JWT.Issuer)
}

func TestValidate(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	redis := *cfg
	redis.Push.Backend = PushRedis
	require.Error(t, redis.Validate())

	prod := *cfg
	prod.Environment = EnvProduction
	require.ErrorContains(t, prod.Validate(), "production")

	unknown := *cfg
	unknown.Push.Backend = "pusher"
	require.Error(t, unknown.Validate())
}
