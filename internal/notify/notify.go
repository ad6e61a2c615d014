// Package notify implements the transient notification banner: the single
// channel for validation failures, backend error messages and success
// confirmations.
package notify

import (
	"sync"
	"time"
)

type Kind string

const (
	KindError   Kind = "error"
	KindSuccess Kind = "success"
)

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 4000 * time.Millisecond

// DefaultHistoryLimit is how many past notices History keeps.
const DefaultHistoryLimit = 50

// Notice is one banner message.
type Notice struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	ShownAt time.Time `json:"shown_at"`
}

// Title is the banner heading for the notice variant.
func (n Notice) Title() string {
	if n.Kind == KindSuccess {
		return "Success!"
	}
	return "Error:"
}

// Notifier holds the banner. A newer notice replaces the visible one; a notice
// is dismissed once its TTL has elapsed on the injected clock.
type Notifier struct {
	mu      sync.Mutex
	current *Notice
	ttl     time.Duration
	now     func() time.Time
	sink    func(Notice)
	history []Notice
	limit   int
}

type Option func(*Notifier)

func WithTTL(ttl time.Duration) Option {
	return func(n *Notifier) { n.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithHistoryLimit bounds History to the newest limit notices.
func WithHistoryLimit(limit int) Option {
	return func(n *Notifier) { n.limit = limit }
}

// WithSink receives every notice as it is shown, e.g. to print it.
func WithSink(fn func(Notice)) Option {
	return func(n *Notifier) { n.sink = fn }
}

func New(opts ...Option) *Notifier {
	n := &Notifier{ttl: DefaultTTL, now: time.Now, limit: DefaultHistoryLimit}
	for _, opt := range opts {
		opt(n)
	}
	if n.limit <= 0 {
		n.limit = DefaultHistoryLimit
	}
	return n
}

func (n *Notifier) Error(msg string) { n.Show(KindError, msg) }

func (n *Notifier) Success(msg string) { n.Show(KindSuccess, msg) }

func (n *Notifier) Show(kind Kind, msg string) {
	n.mu.Lock()
	notice := Notice{Kind: kind, Message: msg, ShownAt: n.now()}
	n.current = &notice
	n.history = append(n.history, notice)
	if over := len(n.history) - n.limit; over > 0 {
		n.history = append(n.history[:0], n.history[over:]...)
	}
	sink := n.sink
	n.mu.Unlock()

	if sink != nil {
		sink(notice)
	}
}

// Current returns the visible notice, if any.
func (n *Notifier) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return Notice{}, false
	}
	if n.now().Sub(n.current.ShownAt) >= n.ttl {
		n.current = nil
		return Notice{}, false
	}
	return *n.current, true
}

// History returns the most recent notices, oldest first.
func (n *Notifier) History() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notice, len(n.history))
	copy(out, n.history)
	return out
}
