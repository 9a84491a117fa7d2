// Package bus is the in-process change-signal plane: a broadcast channel per
// property. Signals are cues to reconcile, so delivery may coalesce but a
// subscriber with a pending signal never misses the state it points at.
package bus

import (
	"sync"

	"github.com/vserve/ordersync/internal/orders/domain"
)

type Bus struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[string]map[*Subscription]struct{})}
}

// Publish delivers sig to every subscriber of sig.PropertyID. It never
// blocks: when a subscriber already has a signal pending, the new one is
// coalesced into it.
func (b *Bus) Publish(sig domain.ChangeSignal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[sig.PropertyID] {
		select {
		case sub.ch <- sig:
		default:
		}
	}
}

func (b *Bus) Subscribe(propertyID string) *Subscription {
	sub := &Subscription{
		bus:        b,
		propertyID: propertyID,
		ch:         make(chan domain.ChangeSignal, 1),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[propertyID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[propertyID] = set
	}
	set[sub] = struct{}{}
	return sub
}

type Subscription struct {
	bus        *Bus
	propertyID string
	ch         chan domain.ChangeSignal
	once       sync.Once
}

func (s *Subscription) Signals() <-chan domain.ChangeSignal {
	return s.ch
}

// Unsubscribe synchronously stops delivery and closes the signal channel.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		set := s.bus.subs[s.propertyID]
		delete(set, s)
		if len(set) == 0 {
			delete(s.bus.subs, s.propertyID)
		}
		close(s.ch)
	})
}
