package terminal

import (
	"sync"

	"github.com/vserve/ordersync/internal/bus"
	"github.com/vserve/ordersync/internal/orders/domain"
)

// Feed shares one bus subscription per property across all views in a
// process. Dashboards used to open and tear down their own subscription per
// screen; ref-counting here keeps it to one upstream subscription and stops
// duplicate signal storms.
type Feed struct {
	bus *bus.Bus

	mu     sync.Mutex
	shared map[string]*sharedSub
}

func NewFeed(b *bus.Bus) *Feed {
	return &Feed{bus: b, shared: make(map[string]*sharedSub)}
}

type sharedSub struct {
	upstream *bus.Subscription
	refs     int
	mu       sync.Mutex
	outs     map[*Handle]struct{}
	done     chan struct{}
}

// Handle is one view's attachment to a property feed. Close is synchronous:
// after it returns no more signals are delivered.
type Handle struct {
	feed       *Feed
	propertyID string
	ch         chan domain.ChangeSignal
	once       sync.Once
}

func (h *Handle) Signals() <-chan domain.ChangeSignal { return h.ch }

func (h *Handle) Close() {
	h.once.Do(func() { h.feed.release(h) })
}

// Attach subscribes a view to a property's signals, reusing the upstream
// subscription when one is already open.
func (f *Feed) Attach(propertyID string) *Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.shared[propertyID]
	if !ok {
		s = &sharedSub{
			upstream: f.bus.Subscribe(propertyID),
			outs:     make(map[*Handle]struct{}),
			done:     make(chan struct{}),
		}
		f.shared[propertyID] = s
		go s.fanOut()
	}

	h := &Handle{feed: f, propertyID: propertyID, ch: make(chan domain.ChangeSignal, 1)}
	s.mu.Lock()
	s.outs[h] = struct{}{}
	s.mu.Unlock()
	s.refs++
	return h
}

func (f *Feed) release(h *Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.shared[h.propertyID]
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.outs, h)
	s.mu.Unlock()
	close(h.ch)

	s.refs--
	if s.refs == 0 {
		delete(f.shared, h.propertyID)
		s.upstream.Unsubscribe()
		<-s.done
	}
}

func (s *sharedSub) fanOut() {
	defer close(s.done)
	for sig := range s.upstream.Signals() {
		s.mu.Lock()
		for h := range s.outs {
			select {
			case h.ch <- sig:
			default:
			}
		}
		s.mu.Unlock()
	}
}
