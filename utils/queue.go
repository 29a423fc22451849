package utils

import (
	"container/list"
	"sync"
	"time"
)

// Queue is a FIFO safe for any number of producers and consumers.
// Put never blocks; Get blocks until an item arrives, the timeout elapses or
// the queue is closed.
type Queue[T any] struct {
	sync.Mutex
	notEmptyNotify chan struct{}
	container      *list.List
	closed         bool
	done           chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		container:      list.New(),
		notEmptyNotify: make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
}

// Put appends item. Items put after Close are dropped and false is returned.
func (s *Queue[T]) Put(item T) bool {
	s.Lock()
	if s.closed {
		s.Unlock()
		return false
	}
	s.container.PushBack(item)
	s.Unlock()
	select {
	case s.notEmptyNotify <- struct{}{}:
	default:
	}
	return true
}

// Get removes the head of the queue. A timeout <= 0 waits until an item is
// available or the queue is closed. ok is false on timeout or close.
func (s *Queue[T]) Get(timeout time.Duration) (item T, ok bool) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		s.Lock()
		if front := s.container.Front(); front != nil {
			item = s.container.Remove(front).(T)
			more := s.container.Len() > 0
			s.Unlock()
			if more {
				// pass the wakeup on to the next waiter
				select {
				case s.notEmptyNotify <- struct{}{}:
				default:
				}
			}
			return item, true
		}
		if s.closed {
			s.Unlock()
			return item, false
		}
		s.Unlock()

		select {
		case <-s.notEmptyNotify:
		case <-s.done:
		case <-deadline:
			return item, false
		}
	}
}

// TryGet is Get without waiting.
func (s *Queue[T]) TryGet() (item T, ok bool) {
	s.Lock()
	defer s.Unlock()
	if front := s.container.Front(); front != nil {
		return s.container.Remove(front).(T), true
	}
	return item, false
}

// Peek returns the head of the queue without removing it.
func (s *Queue[T]) Peek() (item T, ok bool) {
	s.Lock()
	defer s.Unlock()
	if front := s.container.Front(); front != nil {
		return front.Value.(T), true
	}
	return item, false
}

func (s *Queue[T]) Len() int {
	s.Lock()
	defer s.Unlock()
	return s.container.Len()
}

// Close wakes every waiter. Items already queued can still be drained.
func (s *Queue[T]) Close() {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *Queue[T]) Closed() bool {
	s.Lock()
	defer s.Unlock()
	return s.closed
}
