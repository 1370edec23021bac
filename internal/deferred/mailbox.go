package deferred

import (
	"context"
)

// Mailbox is a bounded FIFO channel of actions. Any goroutine may enqueue;
// only the dispatch loop drains.
type Mailbox struct {
	ch chan Action
}

// NewMailbox creates a mailbox holding up to size pending actions.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = 1
	}
	return &Mailbox{ch: make(chan Action, size)}
}

// Enqueue appends a, blocking while the mailbox is full.
func (m *Mailbox) Enqueue(ctx context.Context, a Action) error {
	select {
	case m.ch <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue appends a without blocking. Reports false if the mailbox is full.
func (m *Mailbox) TryEnqueue(a Action) bool {
	select {
	case m.ch <- a:
		return true
	default:
		return false
	}
}

// Drain hands every queued action to fn in FIFO order and returns how many
// were handled. Actions enqueued while draining are handled too.
func (m *Mailbox) Drain(fn func(Action)) int {
	n := 0
	for {
		select {
		case a := <-m.ch:
			fn(a)
			n++
		default:
			return n
		}
	}
}

// Len returns the number of pending actions.
func (m *Mailbox) Len() int {
	return len(m.ch)
}
