package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/pagestate/internal/config"
	"github.com/unkn0wn-root/pagestate/provider/file"
	"github.com/unkn0wn-root/pagestate/provider/memory"
	"github.com/unkn0wn-root/pagestate/provider/zstd"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagestate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Namespace)
	assert.Equal(t, config.KindFile, cfg.Storage.Kind)
	assert.Equal(t, 5*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 4*time.Second, cfg.NoticeTTL)
	assert.NotEmpty(t, cfg.Storage.Path)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
namespace: web
staleAfter: 10m
noticeTTL: 2s
storage:
  kind: redis
  snapshotTTL: 24h
  redis:
    addr: localhost:6379
    db: 2
    prefix: "user:42:"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "web", cfg.Namespace)
	assert.Equal(t, 10*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 2*time.Second, cfg.NoticeTTL)
	assert.Equal(t, config.KindRedis, cfg.Storage.Kind)
	assert.Equal(t, 24*time.Hour, cfg.Storage.SnapshotTTL)
	assert.Equal(t, "localhost:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 2, cfg.Storage.Redis.DB)
	assert.Equal(t, "user:42:", cfg.Storage.Redis.Prefix)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "namespace: web\n")
	t.Setenv("PAGESTATE_NAMESPACE", "mobile")
	t.Setenv("PAGESTATE_STORAGE", "memory")
	t.Setenv("PAGESTATE_STALE_AFTER", "90s")
	t.Setenv("PAGESTATE_REDIS_DB", "3")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mobile", cfg.Namespace)
	assert.Equal(t, config.KindMemory, cfg.Storage.Kind)
	assert.Equal(t, 90*time.Second, cfg.StaleAfter)
	assert.Equal(t, 3, cfg.Storage.Redis.DB)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "namespace: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("bad duration env", func(t *testing.T) {
		t.Setenv("PAGESTATE_NOTICE_TTL", "soon")
		_, err := config.Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid duration")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "storage:\n  kind: floppy\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown storage kind")
	})

	t.Run("empty namespace", func(t *testing.T) {
		t.Setenv("PAGESTATE_NAMESPACE", " ")
		_, err := config.Load("")
		require.Error(t, err)
	})
}

func TestValidate_RequiredPerKind(t *testing.T) {
	cases := map[string]config.Storage{
		"file":     {Kind: config.KindFile},
		"redis":    {Kind: config.KindRedis},
		"postgres": {Kind: config.KindPostgres},
	}
	for name, st := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage = st
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PAGESTATE_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("PAGESTATE_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("PAGESTATE_TEST_DOTENV"))

	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("PAGESTATE_TEST_DOTENV"))

	require.Error(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Path = t.TempDir()
		p, err := cfg.Open(ctx)
		require.NoError(t, err)
		assert.IsType(t, &file.Provider{}, p)
		require.NoError(t, p.Close(ctx))
	})

	t.Run("memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Kind = config.KindMemory
		p, err := cfg.Open(ctx)
		require.NoError(t, err)
		assert.IsType(t, &memory.Provider{}, p)
	})

	t.Run("ristretto", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Kind = config.KindRistretto
		p, err := cfg.Open(ctx)
		require.NoError(t, err)

		ok, err := p.Set(ctx, "pagestate:default", []byte("x"), 1, 0)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, p.Close(ctx))
	})

	t.Run("compressed memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Kind = config.KindMemory
		cfg.Storage.Compress = true
		p, err := cfg.Open(ctx)
		require.NoError(t, err)
		assert.IsType(t, &zstd.Provider{}, p)
		require.NoError(t, p.Close(ctx))
	})

	t.Run("bigcache", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Kind = config.KindBigcache
		p, err := cfg.Open(ctx)
		require.NoError(t, err)
		require.NoError(t, p.Close(ctx))
	})

	t.Run("postgres bad dsn", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Kind = config.KindPostgres
		cfg.Storage.Postgres.DSN = "postgres://%zz"
		_, err := cfg.Open(ctx)
		require.Error(t, err)
	})
}
