package fanout

import (
	"context"
	"sync"

	"github.com/andreyxaxa/crm-payments/pkg/logger"
)

// Sink - in-process multicast. Каждый подписчик получает события,
// отправленные после подписки, в порядке Emit.
// Emit никогда не блокируется: у подписчика своя очередь,
// которую разгребает отдельная горутина.
type Sink[T any] struct {
	mu     sync.Mutex
	subs   map[*subscriber[T]]struct{}
	closed bool

	maxBuffered int
	logger      logger.Interface
}

type subscriber[T any] struct {
	mu    sync.Mutex
	queue []T

	notify chan struct{}
	done   chan struct{}
	out    chan T
}

func New[T any](l logger.Interface, opts ...Option) *Sink[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return &Sink[T]{
		subs:        make(map[*subscriber[T]]struct{}),
		maxBuffered: o.maxBuffered,
		logger:      l,
	}
}

// Emit раздает v всем текущим подписчикам.
func (s *Sink[T]) Emit(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("fanout - Sink - Emit - sink closed, event dropped")

		return
	}

	subs := make([]*subscriber[T], 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if !sub.push(v, s.maxBuffered) {
			s.logger.Warn("fanout - Sink - Emit - subscriber buffer is full (%d), event dropped", s.maxBuffered)
		}
	}
}

// Subscribe returns a channel with every event emitted from now on.
// The channel is closed when ctx is done or the sink is closed.
func (s *Sink[T]) Subscribe(ctx context.Context) <-chan T {
	sub := &subscriber[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan T),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.out)

		return sub.out
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go s.pump(ctx, sub)

	return sub.out
}

func (s *Sink[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.subs)
}

// Close завершает все подписки; последующие Emit отбрасываются.
func (s *Sink[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for sub := range s.subs {
		close(sub.done)
		delete(s.subs, sub)
	}
}

func (s *Sink[T]) pump(ctx context.Context, sub *subscriber[T]) {
	defer func() {
		s.remove(sub)
		close(sub.out)
	}()

	for {
		for {
			v, ok := sub.pop()
			if !ok {
				break
			}

			select {
			case sub.out <- v:
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			}
		}

		select {
		case <-sub.notify:
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		}
	}
}

func (s *Sink[T]) remove(sub *subscriber[T]) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

func (sub *subscriber[T]) push(v T, maxBuffered int) bool {
	sub.mu.Lock()
	if maxBuffered > 0 && len(sub.queue) >= maxBuffered {
		sub.mu.Unlock()

		return false
	}
	sub.queue = append(sub.queue, v)
	sub.mu.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}

	return true
}

func (sub *subscriber[T]) pop() (T, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	var zero T
	if len(sub.queue) == 0 {
		return zero, false
	}

	v := sub.queue[0]
	sub.queue[0] = zero
	sub.queue = sub.queue[1:]

	return v, true
}
