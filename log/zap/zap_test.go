package zap

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/pagestate"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsAreForwarded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ZapLogger{L: zap.New(core)}

	l.Warn("snapshot persist failed", pagestate.Fields{"key": "pagestate:app", "err": errors.New("disk full")})
	l.Debug("page reset", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["key"] != "pagestate:app" || ctx["err"] != "disk full" {
		t.Fatalf("unexpected context %v", ctx)
	}
	if entries[1].Level != zapcore.DebugLevel {
		t.Fatalf("level = %v", entries[1].Level)
	}
}
