package pagestate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/mock/gomock"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/pagestate/codec"
	"github.com/unkn0wn-root/pagestate/internal/mocks"
	pr "github.com/unkn0wn-root/pagestate/provider"
	"github.com/unkn0wn-root/pagestate/provider/memory"
)

func newStruct(m map[string]any) (*structpb.Struct, error) { return structpb.NewStruct(m) }

func newStructCodec() codec.Protobuf[*structpb.Struct] {
	return codec.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })
}

// ==============================
// Mount / Notice
// ==============================

func TestMountFirstVisitHasNoNotice(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(), clockwork.NewFakeClock(), nil)
	defer s.Close(ctx)

	jobs := mustRegister(t, s, "jobs", jobsDefaults, WithTitle("Jobs"))
	m := jobs.Mount()
	if m.Notice != nil || m.Stale || m.Record.Visited() {
		t.Fatalf("first visit should mount defaults silently: %+v", m)
	}
}

func TestMountResumedNotice(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	s := newTestStore(t, memory.New(), clk, nil)
	defer s.Close(ctx)

	jobs := mustRegister(t, s, "jobs", jobsDefaults, WithTitle("Jobs"))
	_ = jobs.Set(func(f *jobsState) { f.MinMatchScore = 50 })

	clk.Advance(6 * time.Minute)

	m := jobs.Mount()
	if m.Notice == nil {
		t.Fatalf("expected a resume notice")
	}
	if !m.Stale {
		t.Fatalf("6 minute old record should be stale with the 5 minute default")
	}
	if m.Record.Fields.MinMatchScore != 50 {
		t.Fatalf("mount record = %+v", m.Record)
	}

	msg := m.Notice.Message()
	if !strings.HasPrefix(msg, "Resumed Jobs, last visited ") || !strings.Contains(msg, "minutes ago") {
		t.Fatalf("Message = %q", msg)
	}
	if m.Notice.ID == "" || m.Notice.PageKey != "jobs" {
		t.Fatalf("notice identity missing: %+v", m.Notice)
	}
	m.Notice.Dismiss()
}

func TestNoticeAutoDismisses(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	s := newTestStore(t, memory.New(), clk, nil)
	defer s.Close(ctx)

	jobs := mustRegister(t, s, "jobs", jobsDefaults)
	_ = jobs.Set(func(f *jobsState) { f.MinMatchScore = 1 })

	n := jobs.Mount().Notice
	if n == nil || n.Dismissed() {
		t.Fatalf("notice should be showing")
	}

	clk.Advance(3 * time.Second)
	if n.Dismissed() {
		t.Fatalf("dismissed before the TTL")
	}
	clk.Advance(time.Second)

	select {
	case <-n.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("notice did not dismiss after 4s")
	}
	n.Dismiss() // idempotent
}

func TestNoticeWithoutTTLStaysUntilDismissed(t *testing.T) {
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	s := newTestStore(t, memory.New(), clk, func(o *Options) { o.NoticeTTL = -1 })
	defer s.Close(ctx)

	jobs := mustRegister(t, s, "jobs", jobsDefaults)
	_ = jobs.Set(func(f *jobsState) { f.MinMatchScore = 1 })
	n := jobs.Mount().Notice

	clk.Advance(time.Hour)
	if n.Dismissed() {
		t.Fatalf("notice with negative TTL should not time out")
	}
	n.Dismiss()
	if !n.Dismissed() {
		t.Fatalf("Dismiss had no effect")
	}
}

func TestNoticeResetToDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(), clockwork.NewFakeClock(), nil)
	defer s.Close(ctx)

	jobs := mustRegister(t, s, "jobs", jobsDefaults)
	_ = jobs.Set(func(f *jobsState) { f.MinMatchScore = 70 })

	n := jobs.Mount().Notice
	n.ResetToDefaults()

	if !n.Dismissed() {
		t.Fatalf("ResetToDefaults should dismiss")
	}
	if r := jobs.Get(); r.Visited() || r.Fields.MinMatchScore != 0 {
		t.Fatalf("page not reset: %+v", r)
	}
	if jobs.Mount().Notice != nil {
		t.Fatalf("no notice expected after reset")
	}
}

// ==============================
// Provider failures
// ==============================

func TestReadErrorStartsFromDefaults(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mp := mocks.NewMockProvider(ctrl)
	hooks := &recHooks{}

	mp.EXPECT().Get(gomock.Any(), "pagestate:test").Return(nil, false, errors.New("disk on fire"))
	mp.EXPECT().Close(gomock.Any()).Return(nil)

	s := newTestStore(t, mp, clockwork.NewFakeClock(), func(o *Options) {
		o.Hooks = hooks
		o.Synchronous = true
	})
	jobs := mustRegister(t, s, "jobs", jobsDefaults)
	if jobs.Get().Visited() {
		t.Fatalf("expected defaults")
	}
	if len(hooks.loadFailed) != 1 || hooks.loadFailed[0] != "read_error" {
		t.Fatalf("SnapshotLoadFailed = %v", hooks.loadFailed)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestProviderCorruptValueIsDropped(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mp := mocks.NewMockProvider(ctrl)
	hooks := &recHooks{}

	gomock.InOrder(
		mp.EXPECT().Get(gomock.Any(), "pagestate:test").Return(nil, false, fmt.Errorf("decode: %w", pr.ErrCorrupt)),
		mp.EXPECT().Del(gomock.Any(), "pagestate:test").Return(nil),
		mp.EXPECT().Close(gomock.Any()).Return(nil),
	)

	s := newTestStore(t, mp, clockwork.NewFakeClock(), func(o *Options) {
		o.Hooks = hooks
		o.Synchronous = true
	})
	jobs := mustRegister(t, s, "jobs", jobsDefaults)
	if jobs.Get().Visited() {
		t.Fatalf("expected defaults")
	}
	if len(hooks.loadFailed) != 1 || hooks.loadFailed[0] != "corrupt" {
		t.Fatalf("SnapshotLoadFailed = %v", hooks.loadFailed)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPersistFailureIsSwallowedAndRetried(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mp := mocks.NewMockProvider(ctrl)
	hooks := &recHooks{}
	boom := errors.New("quota exceeded")

	gomock.InOrder(
		mp.EXPECT().Get(gomock.Any(), "pagestate:test").Return(nil, false, nil),
		mp.EXPECT().Set(gomock.Any(), "pagestate:test", gomock.Any(), gomock.Any(), gomock.Any()).Return(false, boom),
		mp.EXPECT().Set(gomock.Any(), "pagestate:test", gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil),
		mp.EXPECT().Close(gomock.Any()).Return(nil),
	)

	s := newTestStore(t, mp, clockwork.NewFakeClock(), func(o *Options) {
		o.Hooks = hooks
		o.Synchronous = true
	})
	jobs := mustRegister(t, s, "jobs", jobsDefaults)

	if err := jobs.Set(func(f *jobsState) { f.MinMatchScore = 50 }); err != nil {
		t.Fatalf("Set surfaced a storage error: %v", err)
	}
	if got := jobs.Get().Fields.MinMatchScore; got != 50 {
		t.Fatalf("in-memory write lost after persist failure: %d", got)
	}
	if hooks.failed != 1 {
		t.Fatalf("PersistFailed = %d, want 1", hooks.failed)
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("retry Flush: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestProviderRejectionSurfacesFromFlush(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mp := mocks.NewMockProvider(ctrl)
	hooks := &recHooks{}

	mp.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, false, nil)
	mp.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
	mp.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	mp.EXPECT().Close(gomock.Any()).Return(nil)

	s := newTestStore(t, mp, clockwork.NewFakeClock(), func(o *Options) {
		o.Hooks = hooks
		o.Synchronous = true
	})
	jobs := mustRegister(t, s, "jobs", jobsDefaults)
	_ = jobs.Set(func(f *jobsState) { f.MinMatchScore = 1 })

	err := s.Flush(ctx)
	var pe *PersistError
	if !errors.As(err, &pe) || !pe.Rejected || pe.StorageKey != "pagestate:test" {
		t.Fatalf("Flush = %v, want rejected PersistError", err)
	}
	if hooks.rejected != 2 || hooks.failed != 2 {
		t.Fatalf("rejected=%d failed=%d", hooks.rejected, hooks.failed)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSnapshotCostAndTTLReachProvider(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mp := mocks.NewMockProvider(ctrl)

	mp.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, false, nil)
	mp.EXPECT().Set(gomock.Any(), "pagestate:test", gomock.Any(), int64(7), 24*time.Hour).Return(true, nil)
	mp.EXPECT().Close(gomock.Any()).Return(nil)

	s := newTestStore(t, mp, clockwork.NewFakeClock(), func(o *Options) {
		o.Synchronous = true
		o.SnapshotTTL = 24 * time.Hour
		o.ComputeSetCost = func(string, []byte) int64 { return 7 }
	})
	jobs := mustRegister(t, s, "jobs", jobsDefaults)
	_ = jobs.Set(func(f *jobsState) { f.MinMatchScore = 1 })
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
