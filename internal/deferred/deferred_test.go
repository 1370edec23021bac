package deferred

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/scene"
	"github.com/dokzlo13/lampd/internal/sunrise"
)

func TestMailbox_FIFO(t *testing.T) {
	m := NewMailbox(8)
	ctx := context.Background()

	in := []Action{Clear(), Scene("nightlamp"), Command(command.Power(false)), Sunrise(time.Minute)}
	for _, a := range in {
		if err := m.Enqueue(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	var out []Action
	n := m.Drain(func(a Action) { out = append(out, a) })
	if n != len(in) {
		t.Errorf("Drain returned %d, want %d", n, len(in))
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("drained %v, want %v", out, in)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after drain", m.Len())
	}
}

func TestMailbox_Full(t *testing.T) {
	m := NewMailbox(1)
	if !m.TryEnqueue(Clear()) {
		t.Fatal("TryEnqueue on empty mailbox failed")
	}
	if m.TryEnqueue(Clear()) {
		t.Error("TryEnqueue on full mailbox succeeded")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Enqueue(ctx, Clear()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Enqueue on full mailbox error = %v, want deadline exceeded", err)
	}
}

func TestMailbox_EnqueueDuringDrain(t *testing.T) {
	m := NewMailbox(4)
	m.TryEnqueue(Scene("a"))

	var out []string
	m.Drain(func(a Action) {
		out = append(out, a.Scene)
		if a.Scene == "a" {
			m.TryEnqueue(Scene("b"))
		}
	})
	if !reflect.DeepEqual(out, []string{"a", "b"}) {
		t.Errorf("drained %v, want [a b]", out)
	}
}

func TestMailbox_ConcurrentProducers(t *testing.T) {
	m := NewMailbox(1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = m.Enqueue(ctx, Clear())
			}
		}()
	}
	wg.Wait()

	if n := m.Drain(func(Action) {}); n != 1000 {
		t.Errorf("drained %d actions, want 1000", n)
	}
}

func newTestExecutor() *Executor {
	gen := sunrise.NewGenerator(sunrise.DefaultParams, 6*time.Second, 500*time.Millisecond)
	return NewExecutor(scene.NewBook(scene.DefaultLamp), gen)
}

func TestExecutor_Apply(t *testing.T) {
	e := newTestExecutor()
	q := command.NewQueue()

	if err := e.Apply(Command(command.Color(1, 2, 3)), q); err != nil {
		t.Fatal(err)
	}
	if err := e.Apply(Scene(scene.Off), q); err != nil {
		t.Fatal(err)
	}
	want := []command.Command{command.Color(1, 2, 3), command.Brightness(15), command.Power(false)}
	if !reflect.DeepEqual(q.Snapshot(), want) {
		t.Errorf("queue = %v, want %v", q.Snapshot(), want)
	}

	if err := e.Apply(Clear(), q); err != nil {
		t.Fatal(err)
	}
	if q.Len() != 0 {
		t.Errorf("queue has %d commands after clear", q.Len())
	}
}

func TestExecutor_Sunrise(t *testing.T) {
	e := newTestExecutor()
	q := command.NewQueue()

	if err := e.Apply(Sunrise(time.Minute), q); err != nil {
		t.Fatal(err)
	}
	cmds := q.Snapshot()
	if len(cmds) != 1+2*4 {
		t.Fatalf("sunrise queued %d commands, want 9", len(cmds))
	}
	if cmds[0] != command.Power(true) {
		t.Errorf("first command = %s, want Power(true)", cmds[0])
	}
}

func TestExecutor_Errors(t *testing.T) {
	e := newTestExecutor()
	q := command.NewQueue()

	if err := e.Apply(Scene("disco"), q); !errors.Is(err, scene.ErrUnknownScene) {
		t.Errorf("unknown scene error = %v", err)
	}
	if err := e.Apply(Command(command.Brightness(0)), q); !errors.Is(err, command.ErrInvalidCommand) {
		t.Errorf("invalid command error = %v", err)
	}
	if err := e.Apply(Action{}, q); err == nil {
		t.Error("zero action applied without error")
	}
	if q.Len() != 0 {
		t.Errorf("failed actions queued %d commands", q.Len())
	}
}
