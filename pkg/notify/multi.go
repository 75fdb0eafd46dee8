package notify

import (
	"context"
	"sync"
)

// Multi fans an event out to several backends concurrently. Every
// backend gets the event even if another one fails; the first error
// seen is returned.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a notifier that delivers to all the given backends
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Notify(ctx context.Context, e Event) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, n := range m.notifiers {
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			if err := n.Notify(ctx, e); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(n)
	}

	wg.Wait()
	return firstErr
}

func (m *Multi) Name() string {
	return "multi"
}
