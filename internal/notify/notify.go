// Package notify fans out "owner's tasks changed" signals to live
// subscriptions. Signals carry no payload; subscribers re-read the store.
package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when subscribing to a closed notifier.
var ErrClosed = errors.New("notifier closed")

// Notifier publishes and receives change signals per owner.
type Notifier interface {
	// Publish signals that ownerID's tasks changed.
	Publish(ctx context.Context, ownerID string) error
	// Subscribe returns a channel that receives a value after every change.
	// Bursts of changes may be coalesced into a single signal. The returned
	// function cancels the subscription and closes the channel.
	Subscribe(ctx context.Context, ownerID string) (<-chan struct{}, func(), error)
	Close() error
}

// Local is an in-process Notifier.
type Local struct {
	mu     sync.Mutex
	subs   map[string]map[chan struct{}]struct{}
	closed bool
}

// NewLocal creates an in-process notifier.
func NewLocal() *Local {
	return &Local{subs: make(map[string]map[chan struct{}]struct{})}
}

// Publish implements Notifier.
func (l *Local) Publish(ctx context.Context, ownerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs[ownerID] {
		signal(ch)
	}
	return nil
}

// Subscribe implements Notifier.
func (l *Local) Subscribe(ctx context.Context, ownerID string) (<-chan struct{}, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, nil, ErrClosed
	}

	ch := make(chan struct{}, 1)
	if l.subs[ownerID] == nil {
		l.subs[ownerID] = make(map[chan struct{}]struct{})
	}
	l.subs[ownerID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if _, ok := l.subs[ownerID][ch]; ok {
				delete(l.subs[ownerID], ch)
				close(ch)
			}
			if len(l.subs[ownerID]) == 0 {
				delete(l.subs, ownerID)
			}
		})
	}, nil
}

// Close closes every open subscription.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for owner, chans := range l.subs {
		for ch := range chans {
			close(ch)
		}
		delete(l.subs, owner)
	}
	return nil
}

// signal does a non-blocking send; a pending signal already covers this one.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
