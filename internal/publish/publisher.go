// Package publish fans fused estimator outputs out to their
// consumers: the recorder, the UDP egress sender and the monitor.
package publish

import (
	"sync"
	"sync/atomic"

	"github.com/cwon789/adaptive-filter/internal/fusion"
	"github.com/cwon789/adaptive-filter/internal/monitoring"
)

// Event is one published estimator output. Exactly one field is set.
type Event struct {
	Estimate *fusion.Estimate
	Derived  *fusion.DerivedTwist
}

// Subscriber receives the event stream on a buffered channel. A
// subscriber that falls behind loses events rather than stalling the
// estimator.
type Subscriber struct {
	id string
	ch chan Event
}

// C returns the subscriber's event channel.
func (s *Subscriber) C() <-chan Event {
	return s.ch
}

// Publisher distributes events to all subscribers. The estimator
// publishes from its loop goroutine; distribution happens on a
// separate broadcast goroutine so a slow consumer never blocks a tick.
type Publisher struct {
	eventChan   chan Event
	subscribers map[string]*Subscriber
	subsMu      sync.RWMutex

	latestMu sync.RWMutex
	latest   *fusion.Estimate

	published       atomic.Uint64
	dropped         atomic.Uint64
	subscriberCount atomic.Int32

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int32  `json:"subscribers"`
	Running     bool   `json:"running"`
}

// NewPublisher creates a stopped publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		eventChan:   make(chan Event, 100),
		subscribers: make(map[string]*Subscriber),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the broadcast goroutine.
func (p *Publisher) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(1)
	go p.broadcastLoop()
}

// Stop halts distribution. Pending events are discarded.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	p.wg.Wait()
}

// Subscribe registers a consumer. The buffer bounds how far the
// consumer may lag before it starts losing events.
func (p *Publisher) Subscribe(id string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 10
	}
	sub := &Subscriber{id: id, ch: make(chan Event, buffer)}

	p.subsMu.Lock()
	p.subscribers[id] = sub
	p.subsMu.Unlock()

	p.subscriberCount.Add(1)
	return sub
}

// Unsubscribe removes a consumer and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.subsMu.Lock()
	sub, ok := p.subscribers[id]
	if ok {
		delete(p.subscribers, id)
	}
	p.subsMu.Unlock()

	if ok {
		close(sub.ch)
		p.subscriberCount.Add(-1)
	}
}

// PublishEstimate queues a fused estimate for distribution and
// retains it as the latest. Never blocks.
func (p *Publisher) PublishEstimate(e fusion.Estimate) {
	p.latestMu.Lock()
	p.latest = &e
	p.latestMu.Unlock()

	p.send(Event{Estimate: &e})
}

// PublishDerived queues a derived range twist for distribution.
// Never blocks.
func (p *Publisher) PublishDerived(d fusion.DerivedTwist) {
	p.send(Event{Derived: &d})
}

func (p *Publisher) send(ev Event) {
	if !p.running.Load() {
		return
	}
	select {
	case p.eventChan <- ev:
		p.published.Add(1)
	default:
		dropped := p.dropped.Add(1)
		if dropped%100 == 1 {
			monitoring.Logf("Publisher queue full, %d events dropped so far", dropped)
		}
	}
}

// Latest returns the most recently published estimate.
func (p *Publisher) Latest() (fusion.Estimate, bool) {
	p.latestMu.RLock()
	defer p.latestMu.RUnlock()
	if p.latest == nil {
		return fusion.Estimate{}, false
	}
	return *p.latest, true
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published:   p.published.Load(),
		Dropped:     p.dropped.Load(),
		Subscribers: p.subscriberCount.Load(),
		Running:     p.running.Load(),
	}
}

// broadcastLoop distributes events to all subscribers.
func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case ev := <-p.eventChan:
			p.subsMu.RLock()
			for _, sub := range p.subscribers {
				select {
				case sub.ch <- ev:
				default:
					// Subscriber is slow, drop the event for it.
					p.dropped.Add(1)
				}
			}
			p.subsMu.RUnlock()
		}
	}
}
