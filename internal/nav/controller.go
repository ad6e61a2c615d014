// Package nav is the client's router: it maps requested locations onto the
// visible page, enforces auth-based access rules, manages the one-shot
// pending result and triggers per-page data refreshes.
package nav

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cardiocare/cardiocare/internal/session"
)

// NoticeNoResult is shown when the result page is requested with nothing to show.
const NoticeNoResult = "Please make a prediction first"

// maxRedirects bounds redirect chains. Every redirect target satisfies its own
// access class, so one hop is all that can happen.
const maxRedirects = 2

// ErrNoHandler is returned by Dispatch when the visible page has no handler
// for the event.
var ErrNoHandler = errors.New("nav: no handler")

// SessionView is the read side of the session store.
type SessionView interface {
	Current() session.Session
}

// Notifier surfaces user-visible error notices.
type Notifier interface {
	Error(msg string)
}

// RefreshFunc reloads the data of a page. It runs on its own goroutine and
// reports its failures through the notifier itself.
type RefreshFunc func(ctx context.Context)

// Form carries the fields of a submitted form or the arguments of an action.
type Form map[string]string

// Handler reacts to an event raised on a page.
type Handler func(ctx context.Context, form Form) error

type handlerKey struct {
	loc   Location
	event string
}

// Transition describes the outcome of one navigation request.
type Transition struct {
	Requested Location
	Shown     Location
	Redirects []Location
}

// Controller is the navigation state machine.
type Controller struct {
	navMu sync.Mutex // serializes Navigate

	mu        sync.RWMutex
	current   Location
	scroll    int
	refresh   map[Location]RefreshFunc
	handlers  map[handlerKey]Handler
	observers []func(Location)

	session SessionView
	pending *Pending
	notify  Notifier
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewController starts on Home with no refreshers or handlers registered.
func NewController(sess SessionView, pending *Pending, notify Notifier, logger zerolog.Logger) *Controller {
	return &Controller{
		current:  Home,
		refresh:  make(map[Location]RefreshFunc),
		handlers: make(map[handlerKey]Handler),
		session:  sess,
		pending:  pending,
		notify:   notify,
		logger:   logger,
	}
}

// OnRefresh registers the data refresh run whenever loc is shown.
func (c *Controller) OnRefresh(loc Location, fn RefreshFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh[loc] = fn
}

// On registers h for event raised while loc is visible. Use AnyLocation for
// events valid on every page.
func (c *Controller) On(loc Location, event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[handlerKey{loc: loc, event: event}] = h
}

// OnShow registers an observer called after every page change.
func (c *Controller) OnShow(fn func(Location)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Current returns the visible location.
func (c *Controller) Current() Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// ScrollOffset is the scroll position of the visible page.
func (c *Controller) ScrollOffset() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scroll
}

// Scroll moves the visible page by delta lines, never above the top.
func (c *Controller) Scroll(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scroll += delta
	if c.scroll < 0 {
		c.scroll = 0
	}
}

// Navigate resolves a raw location such as "#result" and shows the page it
// settles on. Unknown locations are treated as Home.
func (c *Controller) Navigate(ctx context.Context, raw string) Transition {
	return c.NavigateTo(ctx, ParseLocation(raw))
}

// NavigateTo runs the access and pending-result checks for target, follows at
// most one redirect and shows the page it settles on.
func (c *Controller) NavigateTo(ctx context.Context, target Location) Transition {
	c.navMu.Lock()
	defer c.navMu.Unlock()

	if !Known(target) {
		target = Home
	}
	tr := Transition{Requested: target}

	for hop := 0; ; hop++ {
		next, redirect := c.resolve(ctx, target)
		if !redirect {
			c.show(ctx, target)
			tr.Shown = target
			return tr
		}

		c.logger.Debug().
			Str("from", string(target)).
			Str("to", string(next)).
			Msg("redirect")
		tr.Redirects = append(tr.Redirects, next)

		if hop+1 >= maxRedirects {
			c.logger.Error().Str("location", string(next)).Msg("redirect limit reached, showing home")
			c.show(ctx, Home)
			tr.Shown = Home
			return tr
		}
		target = next
	}
}

// resolve applies the access rules and pending-result bookkeeping for l. It
// returns a redirect target and true, or l and false when l may be shown.
func (c *Controller) resolve(ctx context.Context, l Location) (Location, bool) {
	sess := c.session.Current()
	authed := sess.Authenticated()

	if authed && AccessOf(l) == PublicOnly {
		return Dashboard(sess.Role), true
	}
	if !authed && AccessOf(l) == Protected {
		return Login, true
	}

	c.pending.ExpireIfDue(ctx)

	if l == Result {
		_, cached := c.pending.Payload(ctx)
		if !cached && !c.pending.Active(ctx) {
			c.notify.Error(NoticeNoResult)
			return Dashboard(sess.Role), true
		}
		return l, false
	}

	if c.pending.Active(ctx) {
		c.logger.Debug().Str("location", string(l)).Msg("consuming pending result")
		c.pending.Clear(ctx)
	}
	return l, false
}

func (c *Controller) show(ctx context.Context, l Location) {
	c.mu.Lock()
	refresh := c.refresh[l]
	c.mu.Unlock()

	if refresh != nil {
		// Refreshes outlive the caller's request; they are never awaited.
		rctx := context.WithoutCancel(ctx)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			refresh(rctx)
		}()
	}

	c.mu.Lock()
	c.current = l
	c.scroll = 0
	observers := append([]func(Location){}, c.observers...)
	c.mu.Unlock()

	c.logger.Info().Str("location", string(l)).Msg("page shown")
	for _, fn := range observers {
		fn(l)
	}
}

// Wait blocks until every refresh started so far has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Dispatch runs the handler registered for event on the visible page, or
// the AnyLocation handler for event.
func (c *Controller) Dispatch(ctx context.Context, event string, form Form) error {
	c.mu.RLock()
	loc := c.current
	h, ok := c.handlers[handlerKey{loc: loc, event: event}]
	if !ok {
		h, ok = c.handlers[handlerKey{loc: AnyLocation, event: event}]
	}
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w for %q on %s", ErrNoHandler, event, loc)
	}
	if form == nil {
		form = Form{}
	}
	return h(ctx, form)
}

// Events lists the events that can be dispatched on the visible page.
func (c *Controller) Events() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	for k := range c.handlers {
		if k.loc == c.current || k.loc == AnyLocation {
			out = append(out, k.event)
		}
	}
	sort.Strings(out)
	return out
}
