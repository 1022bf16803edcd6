package denoiser

import (
	"sync"
	"sync/atomic"
	"time"
)

// Subscriber is the sink a StreamingPipeline publishes denoised fragments
// to (§4.10). Implementations must not block for long in OnNext/OnError/
// OnComplete; the pipeline's consumer thread calls these directly.
type Subscriber interface {
	OnSubscribe(sub *Subscription)
	OnNext(fragment []float64)
	OnError(err error)
	OnComplete()
}

// Subscription is the small record a Subscriber uses to request more
// fragments or cancel. It holds an atomic demand counter, a cancellation
// flag, and two wake callbacks installed by Publisher.Subscribe; those
// callbacks close over the Publisher (they lock it and broadcast its
// condition variable), so the Subscription does reach the Publisher
// through them. It holds no reference to the pipeline.
type Subscription struct {
	requested atomic.Int64
	cancelled atomic.Bool
	onRequest func()
	onCancel  func()
}

// Request adds n to the outstanding demand and wakes the publisher if it
// was parked waiting for demand. n <= 0 is ignored.
func (s *Subscription) Request(n int64) {
	if n <= 0 {
		return
	}
	s.requested.Add(n)
	if s.onRequest != nil {
		s.onRequest()
	}
}

// Cancel marks the subscription cancelled; subsequent emissions are
// dropped by the publisher (§4.10). Also wakes any goroutine parked in
// Publisher.WaitForCapacity, which otherwise waits on demand or
// completion that a cancelled subscriber will never produce.
func (s *Subscription) Cancel() {
	s.cancelled.Store(true)
	if s.onCancel != nil {
		s.onCancel()
	}
}

// Cancelled reports whether Cancel has been called.
func (s *Subscription) Cancelled() bool {
	return s.cancelled.Load()
}

// Publisher is a single-subscriber, demand-driven, back-pressured sink
// (§4.10). It never emits more fragments than outstanding demand allows;
// when demand is exhausted it parks at most one fragment in a bounded
// mailbox (capacity 1). The dispatch loop that drives it stops pulling
// new windows while the mailbox is full, using WaitForCapacity to park
// itself until demand or cancellation arrives.
type Publisher struct {
	mu   sync.Mutex
	cond *sync.Cond

	subscriber Subscriber
	sub        *Subscription

	mailbox    []float64
	hasMailbox bool

	completed bool
	errored   bool
}

// NewPublisher constructs an empty, unsubscribed Publisher.
func NewPublisher() *Publisher {
	p := &Publisher{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Subscribe attaches subscriber as the single subscriber. Re-subscribing
// before Close/fatal error fails with InvalidState (§4.9).
func (p *Publisher) Subscribe(subscriber Subscriber) error {
	p.mu.Lock()
	if p.subscriber != nil {
		p.mu.Unlock()
		return &InvalidStateError{Op: "Publisher.Subscribe", State: StateReady}
	}
	sub := &Subscription{}
	sub.onRequest = func() {
		p.mu.Lock()
		p.drainMailboxLocked()
		p.cond.Broadcast()
		p.mu.Unlock()
	}
	sub.onCancel = func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	}
	p.subscriber = subscriber
	p.sub = sub
	p.mu.Unlock()

	subscriber.OnSubscribe(sub)
	return nil
}

// drainMailboxLocked delivers the parked fragment, if any, while demand
// allows it. Must be called with p.mu held; unlocks around the OnNext
// call so a concurrent Request/Cancel is never blocked by a slow
// subscriber.
func (p *Publisher) drainMailboxLocked() {
	for p.hasMailbox && p.sub.requested.Load() > 0 && !p.sub.Cancelled() {
		pending := p.mailbox
		p.mailbox = nil
		p.hasMailbox = false
		p.sub.requested.Add(-1)
		p.mu.Unlock()
		p.subscriber.OnNext(pending)
		p.mu.Lock()
		p.cond.Broadcast()
	}
	if p.hasMailbox && p.sub.Cancelled() {
		p.mailbox = nil
		p.hasMailbox = false
		p.cond.Broadcast()
	}
}

// MailboxFull reports whether a fragment is already parked awaiting
// demand. The dispatch loop consults this before pulling another window
// (§4.9.d): while full, it must not call Publish again until capacity
// frees up.
func (p *Publisher) MailboxFull() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMailbox
}

// WaitForCapacity blocks until the mailbox is no longer full, or the
// subscription is cancelled, or the publisher completes/errors.
func (p *Publisher) WaitForCapacity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.hasMailbox && !p.sub.Cancelled() && !p.completed && !p.errored {
		p.cond.Wait()
	}
}

// WaitForCapacityTimeout blocks like WaitForCapacity but gives up after
// timeout elapses, returning false if the mailbox is still full (subscriber
// never caught up). A non-positive timeout checks MailboxFull once and
// returns immediately. Used by StreamingPipeline.Close's grace period
// (§4.9): the last fragment gets a bounded chance to drain before the
// pipeline forces completion.
func (p *Publisher) WaitForCapacityTimeout(timeout time.Duration) bool {
	if timeout <= 0 {
		return !p.MailboxFull()
	}

	timedOut := false
	timer := time.AfterFunc(timeout, func() {
		p.mu.Lock()
		timedOut = true
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.hasMailbox && !p.sub.Cancelled() && !p.completed && !p.errored && !timedOut {
		p.cond.Wait()
	}
	return !p.hasMailbox
}

// Publish delivers fragment immediately if outstanding demand allows it
// (after first draining any previously parked fragment), otherwise parks
// it in the single-slot mailbox (§4.10). Publish never blocks; callers
// must check MailboxFull before calling again once it returns with the
// fragment parked. Cancelled subscriptions silently drop fragments
// (pipeline continues consuming and discarding per §4.10).
func (p *Publisher) Publish(fragment []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.completed || p.errored || p.sub == nil {
		return
	}
	if p.sub.Cancelled() {
		return
	}

	p.drainMailboxLocked()

	if p.sub.Cancelled() {
		return
	}
	if p.sub.requested.Load() > 0 {
		p.sub.requested.Add(-1)
		p.mu.Unlock()
		p.subscriber.OnNext(fragment)
		p.mu.Lock()
		return
	}

	// No demand available: park. Caller observes via MailboxFull that it
	// must stop pulling new windows until WaitForCapacity returns.
	p.mailbox = fragment
	p.hasMailbox = true
}

// Complete delivers OnComplete exactly once; mutually exclusive with Fail
// (§4.10).
func (p *Publisher) Complete() {
	p.mu.Lock()
	if p.completed || p.errored {
		p.mu.Unlock()
		return
	}
	p.completed = true
	sub := p.subscriber
	p.cond.Broadcast()
	p.mu.Unlock()
	if sub != nil {
		sub.OnComplete()
	}
}

// Fail delivers OnError exactly once; mutually exclusive with Complete.
func (p *Publisher) Fail(err error) {
	p.mu.Lock()
	if p.completed || p.errored {
		p.mu.Unlock()
		return
	}
	p.errored = true
	sub := p.subscriber
	p.cond.Broadcast()
	p.mu.Unlock()
	if sub != nil {
		sub.OnError(err)
	}
}

// Subscription returns the current subscription, or nil if no subscriber
// has attached yet.
func (p *Publisher) Subscription() *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sub
}
