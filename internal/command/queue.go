package command

// Queue is a FIFO of pending commands. The front is the next command tried
// against the lamp. Not safe for concurrent use; the dispatch loop owns it.
type Queue struct {
	items []Command
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends commands to the back.
func (q *Queue) Push(cmds ...Command) {
	q.items = append(q.items, cmds...)
}

// Front returns the next command without removing it.
func (q *Queue) Front() (Command, bool) {
	if len(q.items) == 0 {
		return Command{}, false
	}
	return q.items[0], true
}

// Pop removes the front command. No-op on an empty queue.
func (q *Queue) Pop() {
	if len(q.items) == 0 {
		return
	}
	q.items[0] = Command{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// release the backing array once drained
		q.items = nil
	}
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	return len(q.items)
}

// Clear drops all pending commands.
func (q *Queue) Clear() {
	q.items = nil
}

// Snapshot returns a copy of the pending commands, front first.
func (q *Queue) Snapshot() []Command {
	out := make([]Command, len(q.items))
	copy(out, q.items)
	return out
}
