// Package liveness discards responses that arrive after the view that asked
// for them has been left or closed.
//
// A view owns one Tracker. Each outgoing call takes a Ticket; navigating away
// calls Advance, which invalidates every outstanding ticket and cancels the
// contexts handed to in-flight calls. Close does the same permanently.
package liveness

import (
	"context"
	"sync"
)

// Tracker is a per-view generation counter. The zero value is ready to use.
type Tracker struct {
	// applyMu is held across a result's live check and its apply, and by
	// Advance and Close, so a generation never changes mid-apply.
	applyMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	closed  bool
	cancels map[uint64][]context.CancelFunc
}

// Ticket identifies the generation a call was issued in.
type Ticket struct {
	tracker *Tracker
	gen     uint64
}

// Ticket returns a ticket for the current generation.
func (t *Tracker) Ticket() Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Ticket{tracker: t, gen: t.gen}
}

// Live reports whether the ticket's generation is still current.
func (k Ticket) Live() bool {
	if k.tracker == nil {
		return false
	}
	k.tracker.mu.Lock()
	defer k.tracker.mu.Unlock()
	return !k.tracker.closed && k.tracker.gen == k.gen
}

// Generation returns the current generation.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// Advance starts a new generation and cancels calls issued in the old one.
// It waits for an apply already in progress.
func (t *Tracker) Advance() {
	t.applyMu.Lock()
	t.mu.Lock()
	old := t.gen
	t.gen++
	cancels := t.cancels[old]
	delete(t.cancels, old)
	t.mu.Unlock()
	t.applyMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Close invalidates every ticket for good. It waits for an apply already in
// progress.
func (t *Tracker) Close() {
	t.applyMu.Lock()
	t.mu.Lock()
	t.closed = true
	all := t.cancels
	t.cancels = nil
	t.mu.Unlock()
	t.applyMu.Unlock()

	for _, cancels := range all {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Closed reports whether Close has been called.
func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// bind derives a context that is cancelled when the ticket goes stale.
func (t *Tracker) bind(ctx context.Context) (context.Context, Ticket, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		cancel()
		return ctx, Ticket{tracker: t, gen: t.gen}, cancel
	}
	if t.cancels == nil {
		t.cancels = make(map[uint64][]context.CancelFunc)
	}
	t.cancels[t.gen] = append(t.cancels[t.gen], cancel)
	return ctx, Ticket{tracker: t, gen: t.gen}, cancel
}

// Pending is an in-flight call started by Run.
type Pending struct {
	done    chan struct{}
	applied bool
}

// Wait blocks until the call finished and reports whether its result was
// applied.
func (p *Pending) Wait() bool {
	<-p.done
	return p.applied
}

// Done is closed when the call has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Run calls fn in a goroutine and hands its result to apply only if the
// tracker's generation has not moved on. apply runs on the Run goroutine;
// it must not call Advance or Close on the same tracker, nor wait on anything
// that does.
func Run[T any](ctx context.Context, t *Tracker, fn func(ctx context.Context) (T, error), apply func(T, error)) *Pending {
	callCtx, ticket, cancel := t.bind(ctx)
	p := &Pending{done: make(chan struct{})}

	go func() {
		defer close(p.done)
		defer cancel()

		result, err := fn(callCtx)

		t.applyMu.Lock()
		defer t.applyMu.Unlock()
		if !ticket.Live() {
			return
		}
		apply(result, err)
		p.applied = true
	}()
	return p
}
