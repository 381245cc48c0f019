// Package zstd wraps another provider and compresses snapshots with zstd.
// Get fully reverses Set, so the wrapper stays byte transparent to pagestate.
// Values without a zstd frame header (stored before compression was turned
// on) are returned as is; a damaged frame is reported as provider.ErrCorrupt.
package zstd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	pr "github.com/unkn0wn-root/pagestate/provider"
)

var ErrNilInner = errors.New("zstd provider: nil inner provider")

// frameMagic opens every zstd frame.
var frameMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type Provider struct {
	inner pr.Provider
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Inner pr.Provider
	Level zstd.EncoderLevel // 0 => zstd.SpeedDefault
}

func New(cfg Config) (*Provider, error) {
	if cfg.Inner == nil {
		return nil, ErrNilInner
	}
	level := cfg.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	return &Provider{inner: cfg.Inner, enc: enc, dec: dec}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok, err := p.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if !bytes.HasPrefix(b, frameMagic) {
		// written before compression was enabled
		return b, true, nil
	}
	out, err := p.dec.DecodeAll(b, nil)
	if err != nil {
		return nil, false, fmt.Errorf("zstd provider: decode %q: %w: %w", key, pr.ErrCorrupt, err)
	}
	return out, true, nil
}

// Set compresses value; cost is the compressed size when the caller passed
// the raw length.
func (p *Provider) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	b := p.enc.EncodeAll(value, make([]byte, 0, len(value)/2))
	if cost == int64(len(value)) {
		cost = int64(len(b))
	}
	return p.inner.Set(ctx, key, b, cost, ttl)
}

func (p *Provider) Del(ctx context.Context, key string) error { return p.inner.Del(ctx, key) }

func (p *Provider) Close(ctx context.Context) error {
	_ = p.enc.Close()
	p.dec.Close()
	return p.inner.Close(ctx)
}
