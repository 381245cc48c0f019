// Package config loads the pagestate CLI configuration and opens the
// configured storage provider.
package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	pr "github.com/unkn0wn-root/pagestate/provider"
	"github.com/unkn0wn-root/pagestate/provider/bigcache"
	"github.com/unkn0wn-root/pagestate/provider/file"
	"github.com/unkn0wn-root/pagestate/provider/memory"
	"github.com/unkn0wn-root/pagestate/provider/postgres"
	"github.com/unkn0wn-root/pagestate/provider/redis"
	"github.com/unkn0wn-root/pagestate/provider/ristretto"
	"github.com/unkn0wn-root/pagestate/provider/zstd"
)

// Storage kinds.
const (
	KindFile      = "file"
	KindMemory    = "memory"
	KindRedis     = "redis"
	KindPostgres  = "postgres"
	KindBigcache  = "bigcache"
	KindRistretto = "ristretto"
)

const envPrefix = "PAGESTATE_"

// Config is the content of pagestate.yaml.
type Config struct {
	Namespace  string        `yaml:"namespace"`
	StaleAfter time.Duration `yaml:"staleAfter"`
	NoticeTTL  time.Duration `yaml:"noticeTTL"`
	Storage    Storage       `yaml:"storage"`
}

// Storage selects and configures the provider.
type Storage struct {
	Kind        string          `yaml:"kind"`
	Path        string          `yaml:"path"`
	SnapshotTTL time.Duration   `yaml:"snapshotTTL"`
	Compress    bool            `yaml:"compress"`
	Redis       RedisConfig     `yaml:"redis"`
	Postgres    PostgresConfig  `yaml:"postgres"`
	Bigcache    BigcacheConfig  `yaml:"bigcache"`
	Ristretto   RistrettoConfig `yaml:"ristretto"`
}

// RedisConfig is the redis storage section.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// PostgresConfig is the postgres storage section.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	Table       string `yaml:"table"`
	CreateTable bool   `yaml:"createTable"`
}

// BigcacheConfig is the bigcache storage section.
type BigcacheConfig struct {
	LifeWindow   time.Duration `yaml:"lifeWindow"`
	MaxEntrySize int           `yaml:"maxEntrySize"`
}

// RistrettoConfig is the ristretto storage section.
type RistrettoConfig struct {
	MaxCost int64 `yaml:"maxCost"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Namespace:  "default",
		StaleAfter: 5 * time.Minute,
		NoticeTTL:  4 * time.Second,
		Storage: Storage{
			Kind: KindFile,
			Path: defaultDir(),
		},
	}
}

func defaultDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "pagestate")
	}
	return ".pagestate"
}

// LoadDotEnv reads .env style files into the process environment. Existing
// variables win. A missing default .env is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return zerr.Wrap(err, "failed to load env file")
	}
	return nil
}

// Load reads path (when non-empty) on top of Default, then applies PAGESTATE_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
		if err != nil {
			return nil, zerr.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to parse config file"), "path", path)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "invalid duration"), "env", envPrefix+name)
		}
		*dst = d
		return nil
	}

	str("NAMESPACE", &cfg.Namespace)
	str("STORAGE", &cfg.Storage.Kind)
	str("PATH", &cfg.Storage.Path)
	str("REDIS_ADDR", &cfg.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	str("REDIS_PREFIX", &cfg.Storage.Redis.Prefix)
	str("POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	str("POSTGRES_TABLE", &cfg.Storage.Postgres.Table)

	if v, ok := os.LookupEnv(envPrefix + "COMPRESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "invalid bool"), "env", envPrefix+"COMPRESS")
		}
		cfg.Storage.Compress = b
	}

	if v, ok := os.LookupEnv(envPrefix + "REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "invalid redis db"), "env", envPrefix+"REDIS_DB")
		}
		cfg.Storage.Redis.DB = n
	}
	if err := dur("STALE_AFTER", &cfg.StaleAfter); err != nil {
		return err
	}
	if err := dur("NOTICE_TTL", &cfg.NoticeTTL); err != nil {
		return err
	}
	return dur("SNAPSHOT_TTL", &cfg.Storage.SnapshotTTL)
}

// Validate checks that the selected storage has what it needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Namespace) == "" {
		return zerr.New("namespace is required")
	}
	switch c.Storage.Kind {
	case KindFile:
		if c.Storage.Path == "" {
			return zerr.With(zerr.New("storage path is required"), "kind", c.Storage.Kind)
		}
	case KindRedis:
		if c.Storage.Redis.Addr == "" {
			return zerr.With(zerr.New("redis addr is required"), "kind", c.Storage.Kind)
		}
	case KindPostgres:
		if c.Storage.Postgres.DSN == "" {
			return zerr.With(zerr.New("postgres dsn is required"), "kind", c.Storage.Kind)
		}
	case KindMemory, KindBigcache, KindRistretto:
	default:
		return zerr.With(zerr.New("unknown storage kind"), "kind", c.Storage.Kind)
	}
	return nil
}

// Open builds the provider selected by Storage.Kind, zstd compressed when
// Storage.Compress is set. The caller owns it and closes it through
// Provider.Close.
func (c *Config) Open(ctx context.Context) (pr.Provider, error) {
	p, err := c.openKind(ctx)
	if err != nil || !c.Storage.Compress {
		return p, err
	}
	z, err := zstd.New(zstd.Config{Inner: p})
	if err != nil {
		_ = p.Close(ctx)
		return nil, zerr.Wrap(err, "failed to open compressed storage")
	}
	return z, nil
}

func (c *Config) openKind(ctx context.Context) (pr.Provider, error) {
	st := c.Storage
	switch st.Kind {
	case KindFile:
		p, err := file.New(file.Config{Dir: st.Path})
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to open file storage"), "path", st.Path)
		}
		return p, nil

	case KindMemory:
		return memory.New(), nil

	case KindRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     st.Redis.Addr,
			Password: st.Redis.Password,
			DB:       st.Redis.DB,
		})
		p, err := redis.New(redis.Config{Client: client, Prefix: st.Redis.Prefix, CloseClient: true})
		if err != nil {
			_ = client.Close()
			return nil, zerr.Wrap(err, "failed to open redis storage")
		}
		return p, nil

	case KindPostgres:
		pool, err := pgxpool.New(ctx, st.Postgres.DSN)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to connect to postgres")
		}
		p, err := postgres.New(postgres.Config{DB: pool, Table: st.Postgres.Table, Close: pool.Close})
		if err != nil {
			pool.Close()
			return nil, zerr.With(zerr.Wrap(err, "failed to open postgres storage"), "table", st.Postgres.Table)
		}
		if st.Postgres.CreateTable {
			if err := p.EnsureTable(ctx); err != nil {
				pool.Close()
				return nil, zerr.Wrap(err, "failed to create postgres table")
			}
		}
		return p, nil

	case KindBigcache:
		p, err := bigcache.New(ctx, bigcache.Config{
			LifeWindow:   st.Bigcache.LifeWindow,
			MaxEntrySize: st.Bigcache.MaxEntrySize,
		})
		if err != nil {
			return nil, zerr.Wrap(err, "failed to open bigcache storage")
		}
		return p, nil

	case KindRistretto:
		maxCost := st.Ristretto.MaxCost
		if maxCost <= 0 {
			maxCost = 64 << 20
		}
		p, err := ristretto.New(ristretto.Config{
			NumCounters: 1e4,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, zerr.Wrap(err, "failed to open ristretto storage")
		}
		return p, nil
	}
	return nil, zerr.With(zerr.New("unknown storage kind"), "kind", st.Kind)
}
