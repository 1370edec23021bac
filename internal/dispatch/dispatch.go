// Package dispatch runs the single loop that owns the command queue: it
// checks the schedule, drains deferred actions and applies one command to the
// lamp per cycle.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/ledger"
	"github.com/dokzlo13/lampd/internal/scheduler"
	"github.com/dokzlo13/lampd/internal/timer"
)

// Applier sends one command to the lamp. A false result leaves the command
// at the front of the queue for the next cycle.
type Applier interface {
	Apply(ctx context.Context, cmd command.Command) bool
}

// Observer is told about every command that reached the lamp.
type Observer interface {
	CommandApplied(cmd command.Command)
}

// Dispatcher is the dispatch loop. Construct with New; Run from one goroutine.
type Dispatcher struct {
	applier  Applier
	mailbox  *deferred.Mailbox
	executor *deferred.Executor
	checker  *scheduler.Checker
	recorder scheduler.Recorder
	interval time.Duration

	queue     *command.Queue
	overflow  []deferred.Action
	observers []Observer

	pending  atomic.Int64
	snapshot atomic.Pointer[[]command.Command]
}

// Options wires a Dispatcher.
type Options struct {
	Applier  Applier
	Mailbox  *deferred.Mailbox
	Executor *deferred.Executor
	// Checker may be nil when no schedule is used.
	Checker *scheduler.Checker
	// Recorder may be nil.
	Recorder scheduler.Recorder
	Interval time.Duration
}

// New creates a dispatcher with an empty command queue.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		applier:  opts.Applier,
		mailbox:  opts.Mailbox,
		executor: opts.Executor,
		checker:  opts.Checker,
		recorder: opts.Recorder,
		interval: opts.Interval,
		queue:    command.NewQueue(),
	}
	empty := []command.Command{}
	d.snapshot.Store(&empty)
	return d
}

// AddObserver registers o. Call before Run.
func (d *Dispatcher) AddObserver(o Observer) {
	d.observers = append(d.observers, o)
}

// Pending returns the number of queued commands as of the last cycle.
// Safe to call from any goroutine.
func (d *Dispatcher) Pending() int {
	return int(d.pending.Load())
}

// Snapshot returns the queued commands as of the last cycle, front first.
// Safe to call from any goroutine.
func (d *Dispatcher) Snapshot() []command.Command {
	return *d.snapshot.Load()
}

// Run cycles until ctx is cancelled, sleeping the fixed interval after each
// cycle.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Dur("interval", d.interval).Msg("Dispatch loop started")

	wait := time.NewTimer(0)
	defer wait.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Int("pending", d.queue.Len()).Msg("Dispatch loop stopping")
			return nil
		case <-wait.C:
		}

		d.Cycle(ctx)
		wait.Reset(d.interval)
	}
}

// Cycle runs one iteration: schedule check, mailbox drain, one apply attempt.
func (d *Dispatcher) Cycle(ctx context.Context) {
	if d.checker != nil {
		d.checker.Check(d.enqueueFired)
	}

	d.mailbox.Drain(d.execute)
	// triggers that did not fit in the mailbox arrived after everything
	// drained above
	for _, a := range d.overflow {
		d.execute(a)
	}
	d.overflow = d.overflow[:0]

	d.applyFront(ctx)
	d.publish()
}

// enqueueFired never blocks: the loop itself is the mailbox consumer.
func (d *Dispatcher) enqueueFired(st timer.SimpleTimer) {
	if len(d.overflow) == 0 && d.mailbox.TryEnqueue(st.Action) {
		return
	}
	log.Debug().Str("action", st.Action.String()).Msg("Mailbox full, holding fired trigger until drain")
	d.overflow = append(d.overflow, st.Action)
}

func (d *Dispatcher) execute(a deferred.Action) {
	before := d.queue.Len()
	if err := d.executor.Apply(a, d.queue); err != nil {
		log.Error().Err(err).Str("action", a.String()).Msg("Failed to run deferred action")
		return
	}
	log.Debug().
		Str("action", a.String()).
		Int("added", d.queue.Len()-before).
		Int("pending", d.queue.Len()).
		Msg("Deferred action applied")
}

func (d *Dispatcher) applyFront(ctx context.Context) {
	cmd, ok := d.queue.Front()
	if !ok {
		return
	}

	if !d.applier.Apply(ctx, cmd) {
		log.Warn().Str("command", cmd.String()).Int("pending", d.queue.Len()).Msg("Command not applied, will retry")
		d.record(ledger.EventCommandFailed, cmd)
		return
	}

	d.queue.Pop()
	log.Info().Str("command", cmd.String()).Int("pending", d.queue.Len()).Msg("Command applied")
	d.record(ledger.EventCommandApplied, cmd)
	for _, o := range d.observers {
		o.CommandApplied(cmd)
	}
}

func (d *Dispatcher) record(t ledger.EventType, cmd command.Command) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Append(t, "dispatch", map[string]any{"command": cmd.String()}); err != nil {
		log.Warn().Err(err).Msg("Failed to record command")
	}
}

func (d *Dispatcher) publish() {
	snap := d.queue.Snapshot()
	d.snapshot.Store(&snap)
	d.pending.Store(int64(len(snap)))
}
