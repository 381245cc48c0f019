package pagestate

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Notice is the transient "resumed" signal shown when a page restores state
// from an earlier visit. It dismisses itself after Options.NoticeTTL.
type Notice struct {
	ID          string
	PageKey     string
	Title       string
	LastVisited time.Time
	ShownAt     time.Time

	reset func()
	done  chan struct{}
	once  sync.Once

	mu    sync.Mutex
	timer clockwork.Timer
}

func (s *Store) newNotice(key, title string, lastVisited time.Time, reset func()) *Notice {
	n := &Notice{
		ID:          uuid.NewString(),
		PageKey:     key,
		Title:       title,
		LastVisited: lastVisited,
		ShownAt:     s.clock.Now(),
		reset:       reset,
		done:        make(chan struct{}),
	}
	if s.noticeTTL > 0 {
		t := s.clock.AfterFunc(s.noticeTTL, n.Dismiss)
		n.mu.Lock()
		n.timer = t
		n.mu.Unlock()
		// the timer may have fired before it was stored
		if n.Dismissed() {
			t.Stop()
		}
	}
	return n
}

// Message renders "Resumed {title}, last visited {relative time}".
func (n *Notice) Message() string {
	return fmt.Sprintf("Resumed %s, last visited %s", n.Title, humanize.RelTime(n.LastVisited, n.ShownAt, "ago", "from now"))
}

// Done is closed once the notice is dismissed, by timeout or by hand.
func (n *Notice) Done() <-chan struct{} { return n.done }

// Dismissed reports whether Done is closed.
func (n *Notice) Dismissed() bool {
	select {
	case <-n.done:
		return true
	default:
		return false
	}
}

// Dismiss closes the notice and cancels its timer. Safe to call repeatedly.
func (n *Notice) Dismiss() {
	n.once.Do(func() {
		close(n.done)
		n.mu.Lock()
		t := n.timer
		n.mu.Unlock()
		if t != nil {
			t.Stop()
		}
	})
}

// ResetToDefaults resets the page to its defaults and dismisses the notice.
func (n *Notice) ResetToDefaults() {
	if n.reset != nil {
		n.reset()
	}
	n.Dismiss()
}
