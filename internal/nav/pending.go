package nav

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cardiocare/cardiocare/internal/platform/storage"
)

// Ephemeral storage keys of the pending result.
const (
	KeyPendingResult  = "pending_result"
	KeyPendingExpires = "pending_result_expires"
	KeyResultPayload  = "result_payload"
)

// DefaultResultWindow is how long a fresh prediction may be opened directly.
const DefaultResultWindow = 5000 * time.Millisecond

// Payload is the cached outcome shown on the result page.
type Payload struct {
	Prediction      string   `json:"prediction"`
	Probability     string   `json:"probability"`
	Recommendations []string `json:"recommendations"`
}

// Pending is the one-shot, time-boxed marker that a just-computed prediction
// may be shown on the result page. Its state lives only in the ephemeral
// store, so it survives a reload of the same tab and disappears on logout.
// Expiry is evaluated lazily by the caller; there is no timer.
type Pending struct {
	store  storage.Store
	window time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewPending keeps the pending result in store with the given window.
func NewPending(store storage.Store, window time.Duration, now func() time.Time, logger zerolog.Logger) *Pending {
	if window <= 0 {
		window = DefaultResultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Pending{store: store, window: window, now: now, logger: logger}
}

// Arm caches payload and opens the window. A storage failure is returned but
// the ephemeral store keeps the values for this process when it is a
// storage.WriteThrough.
func (p *Pending) Arm(ctx context.Context, payload Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	expires := p.now().Add(p.window).UnixMilli()

	if err := p.store.Set(ctx, KeyResultPayload, string(raw)); err != nil {
		return err
	}
	if err := p.store.Set(ctx, KeyPendingResult, "true"); err != nil {
		return err
	}
	return p.store.Set(ctx, KeyPendingExpires, strconv.FormatInt(expires, 10))
}

// Active reports whether the flag is set and not yet expired.
func (p *Pending) Active(ctx context.Context) bool {
	return p.flagSet(ctx) && !p.Expired(ctx)
}

// Expired reports whether an expiry is recorded and has passed.
func (p *Pending) Expired(ctx context.Context) bool {
	expires, ok := p.expiresAt(ctx)
	return ok && p.now().After(expires)
}

// ExpiresAt returns the recorded deadline.
func (p *Pending) ExpiresAt(ctx context.Context) (time.Time, bool) {
	return p.expiresAt(ctx)
}

// ExpireIfDue clears the pending result when its deadline has passed and
// reports whether it did.
func (p *Pending) ExpireIfDue(ctx context.Context) bool {
	if !p.Expired(ctx) {
		return false
	}
	p.logger.Debug().Msg("clearing expired pending result")
	p.Clear(ctx)
	return true
}

// Payload returns the cached result, if any.
func (p *Pending) Payload(ctx context.Context) (Payload, bool) {
	raw, ok := p.get(ctx, KeyResultPayload)
	if !ok {
		return Payload{}, false
	}
	var payload Payload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		p.logger.Warn().Err(err).Msg("discarding malformed cached result")
		return Payload{}, false
	}
	return payload, true
}

// Clear drops the flag, its deadline and the cached payload.
func (p *Pending) Clear(ctx context.Context) {
	for _, key := range []string{KeyPendingResult, KeyPendingExpires, KeyResultPayload} {
		if err := p.store.Delete(ctx, key); err != nil {
			p.logger.Warn().Err(err).Str("key", key).Msg("pending result cleared in memory only")
		}
	}
}

func (p *Pending) flagSet(ctx context.Context) bool {
	v, ok := p.get(ctx, KeyPendingResult)
	return ok && v == "true"
}

func (p *Pending) expiresAt(ctx context.Context) (time.Time, bool) {
	v, ok := p.get(ctx, KeyPendingExpires)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (p *Pending) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("ephemeral state unreadable")
		return "", false
	}
	return v, ok
}
