// Package app wires configuration, logging and a pagestate store for the CLI.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"go.trai.ch/zerr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/pagestate"
	"github.com/unkn0wn-root/pagestate/hooks/async"
	"github.com/unkn0wn-root/pagestate/internal/config"
	logzap "github.com/unkn0wn-root/pagestate/log/zap"
	pr "github.com/unkn0wn-root/pagestate/provider"
	"github.com/unkn0wn-root/pagestate/sloghooks"
)

// ErrPageNotFound is returned by Reset for a page without a stored record.
var ErrPageNotFound = errors.New("page not found")

// Options are the global CLI flags.
type Options struct {
	ConfigPath string
	Namespace  string // overrides the configured namespace when set
	Verbose    bool
	Stderr     io.Writer // nil => os.Stderr
}

// Row is one record as shown by inspect.
type Row struct {
	pagestate.EntryInfo
	Age   time.Duration
	Stale bool
}

// App is an open store plus everything it owns.
type App struct {
	cfg   *config.Config
	log   *zap.Logger
	store *pagestate.Store
	hooks *asynchook.Hooks
}

// Open loads configuration, opens the provider and the store.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	if opts.Namespace != "" {
		cfg.Namespace = opts.Namespace
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	log := newLogger(stderr, opts.Verbose)

	provider, err := cfg.Open(ctx)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return openWith(ctx, cfg, provider, log, stderr, opts.Verbose)
}

func openWith(ctx context.Context, cfg *config.Config, provider pr.Provider, log *zap.Logger, stderr io.Writer, verbose bool) (*App, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	hooks := asynchook.New(
		sloghooks.New(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})), sloghooks.Options{}),
		1, 64,
	)

	store, err := pagestate.New(ctx, pagestate.Options{
		Namespace:   cfg.Namespace,
		Provider:    provider,
		Logger:      logzap.ZapLogger{L: log},
		Hooks:       hooks,
		StaleAfter:  cfg.StaleAfter,
		NoticeTTL:   cfg.NoticeTTL,
		SnapshotTTL: cfg.Storage.SnapshotTTL,
		Synchronous: true,
	})
	if err != nil {
		hooks.Close()
		_ = provider.Close(ctx)
		return nil, zerr.Wrap(err, "failed to open store")
	}

	log.Debug("store opened",
		zap.String("namespace", cfg.Namespace),
		zap.String("storage", cfg.Storage.Kind),
		zap.String("key", store.StorageKey()),
	)
	return &App{cfg: cfg, log: log, store: store, hooks: hooks}, nil
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// Namespace returns the namespace in use.
func (a *App) Namespace() string { return a.cfg.Namespace }

// Inspect lists every stored record, sorted by page key.
func (a *App) Inspect() []Row {
	entries := a.store.Entries()
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		age, _ := a.store.Age(e.PageKey)
		rows = append(rows, Row{
			EntryInfo: e,
			Age:       age,
			Stale:     a.store.IsStale(e.PageKey, 0),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PageKey < rows[j].PageKey })
	return rows
}

// Reset drops the stored record of page, which puts it back to its defaults
// on the next visit.
func (a *App) Reset(ctx context.Context, page string) error {
	found := false
	for _, e := range a.store.Entries() {
		if e.PageKey == page {
			found = true
			break
		}
	}
	if !found {
		return zerr.With(ErrPageNotFound, "page", page)
	}
	a.store.Reset(page)
	if err := a.store.Flush(ctx); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to persist reset"), "page", page)
	}
	a.log.Info("page reset", zap.String("page", page))
	return nil
}

// Clear drops every record of the namespace.
func (a *App) Clear(ctx context.Context) (int, error) {
	n := len(a.store.Entries())
	a.store.ClearAll()
	if err := a.store.Flush(ctx); err != nil {
		return 0, zerr.Wrap(err, "failed to persist clear")
	}
	a.log.Info("namespace cleared", zap.String("namespace", a.cfg.Namespace), zap.Int("records", n))
	return n, nil
}

// Close flushes and closes the store.
func (a *App) Close(ctx context.Context) error {
	err := a.store.Close(ctx)
	a.hooks.Close()
	_ = a.log.Sync()
	if err != nil {
		return zerr.Wrap(err, "failed to close store")
	}
	return nil
}
