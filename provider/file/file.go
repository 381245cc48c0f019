// Package file persists each storage key as one file inside a directory.
// Writes go to a temp file that is renamed over the target, so a crash mid-write
// leaves the last successful value in place.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/unkn0wn-root/pagestate/internal/util"
	pr "github.com/unkn0wn-root/pagestate/provider"
)

var ErrNoDir = errors.New("file provider: directory is required")

type Provider struct {
	dir  string
	perm fs.FileMode
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Dir  string
	Perm fs.FileMode // 0 => 0o600
}

func New(cfg Config) (*Provider, error) {
	if cfg.Dir == "" {
		return nil, ErrNoDir
	}
	perm := cfg.Perm
	if perm == 0 {
		perm = 0o600
	}
	dir := filepath.Clean(cfg.Dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("file provider: create dir: %w", err)
	}
	return &Provider{dir: dir, perm: perm}, nil
}

func (p *Provider) path(key string) string {
	return filepath.Join(p.dir, util.FileName(key))
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	//nolint:gosec // name derived from util.FileName, confined to p.dir
	b, err := os.ReadFile(p.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set ignores cost and ttl: page state lives until reset.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	tmp, err := os.CreateTemp(p.dir, ".tmp-*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Chmod(tmpName, p.perm); err != nil {
		return false, err
	}
	if err := os.Rename(tmpName, p.path(key)); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := os.Remove(p.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (p *Provider) Close(_ context.Context) error { return nil }
