package fanout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/crm-payments/pkg/logger"
)

func receive(t *testing.T, ch <-chan int) int {
	t.Helper()

	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	return 0
}

func waitClosed(t *testing.T, ch <-chan int) {
	t.Helper()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel was not closed")
		}
	}
}

func TestSinkDeliversInOrderToEverySubscriber(t *testing.T) {
	s := New[int](logger.Nop())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	for i := 1; i <= 100; i++ {
		s.Emit(i)
	}

	for i := 1; i <= 100; i++ {
		if got := receive(t, a); got != i {
			t.Fatalf("subscriber a: got %d, want %d", got, i)
		}
		if got := receive(t, b); got != i {
			t.Fatalf("subscriber b: got %d, want %d", got, i)
		}
	}
}

func TestSinkSkipsEventsEmittedBeforeSubscribe(t *testing.T) {
	s := New[int](logger.Nop())
	defer s.Close()

	s.Emit(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	s.Emit(2)

	if got := receive(t, ch); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
}

func TestSinkEmitDoesNotBlockOnSlowSubscriber(t *testing.T) {
	s := New[int](logger.Nop())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.Subscribe(ctx) // никто не читает

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			s.Emit(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked")
	}
}

func TestSinkMaxBufferedDropsOverflow(t *testing.T) {
	s := New[int](logger.Nop(), MaxBuffered(2))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)

	// pump держит одно событие вне очереди, поэтому доходит не больше 1 + 2
	for i := 1; i <= 10; i++ {
		s.Emit(i)
	}

	got := []int{}
	for {
		select {
		case v := <-ch:
			got = append(got, v)
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}

	if len(got) == 0 || len(got) > 3 {
		t.Fatalf("got %v, want between 1 and 3 events", got)
	}
	if got[0] != 1 {
		t.Fatalf("got %v, want the first event delivered", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("got %v, want increasing order", got)
		}
	}
}

func TestSinkUnsubscribesOnContextCancel(t *testing.T) {
	s := New[int](logger.Nop())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)

	if s.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", s.Subscribers())
	}

	cancel()
	waitClosed(t, ch)

	deadline := time.Now().Add(time.Second)
	for s.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Emit(1) // не должен паниковать
}

func TestSinkCloseEndsSubscriptions(t *testing.T) {
	s := New[int](logger.Nop())

	ch := s.Subscribe(context.Background())
	s.Close()
	waitClosed(t, ch)

	late := s.Subscribe(context.Background())
	waitClosed(t, late)

	s.Emit(1)
	s.Close()
}

func TestSinkConcurrentEmitters(t *testing.T) {
	s := New[int](logger.Nop())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)

	const emitters, perEmitter = 8, 200

	var wg sync.WaitGroup
	for e := 0; e < emitters; e++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perEmitter; i++ {
				s.Emit(i)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < emitters*perEmitter; i++ {
		receive(t, ch)
	}
}
