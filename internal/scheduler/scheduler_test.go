package scheduler

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/ledger"
	"github.com/dokzlo13/lampd/internal/scene"
	"github.com/dokzlo13/lampd/internal/timeday"
	"github.com/dokzlo13/lampd/internal/timer"
)

type memStore struct {
	timers  []timer.Timer
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load() ([]timer.Timer, error) { return m.timers, m.loadErr }
func (m *memStore) Save(t []timer.Timer) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.timers = t
	return nil
}
func (m *memStore) Clear() error { m.timers = nil; return nil }

type memRecorder struct {
	mu     sync.Mutex
	events []ledger.EventType
}

func (r *memRecorder) Append(t ledger.EventType, _ string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, t)
	return nil
}

func sunriseRule() timer.Timer {
	return timer.Timer{Enabled: true, Time: timeday.MustNew(7, 0, timeday.Monday), Action: timer.Sunrise(20, 5, 510, 60)}
}

func TestReplace(t *testing.T) {
	st := &memStore{}
	rec := &memRecorder{}
	s := NewSchedule(st, rec)

	rules := []timer.Timer{sunriseRule(), sunriseRule()}
	if err := s.Replace(rules); err != nil {
		t.Fatalf("Replace error = %v", err)
	}

	if got := s.Timers(); len(got) != 1 {
		t.Errorf("Timers() has %d rules, want 1 after dedupe", len(got))
	}
	if got := s.SimpleTimers(); len(got) != 4 {
		t.Errorf("SimpleTimers() has %d triggers, want 4", len(got))
	}
	if st.saves != 1 || len(st.timers) != 1 {
		t.Errorf("store saves = %d, stored = %d", st.saves, len(st.timers))
	}
	if !reflect.DeepEqual(rec.events, []ledger.EventType{ledger.EventTimersReplaced}) {
		t.Errorf("recorded %v", rec.events)
	}
}

func TestReplace_RejectsWholeBatch(t *testing.T) {
	st := &memStore{}
	s := NewSchedule(st, nil)
	if err := s.Replace([]timer.Timer{sunriseRule()}); err != nil {
		t.Fatal(err)
	}

	bad := []timer.Timer{
		{Enabled: true, Time: timeday.MustNew(9, 0, timeday.Friday), Action: timer.PowerState(true)},
		{Enabled: true, Time: timeday.MustNew(9, 0, timeday.Friday), Action: timer.BrightnessState(0)},
	}
	err := s.Replace(bad)
	if !errors.Is(err, timer.ErrInvalidTimer) {
		t.Fatalf("Replace error = %v, want ErrInvalidTimer", err)
	}

	if got := s.Timers(); !reflect.DeepEqual(got, []timer.Timer{sunriseRule()}) {
		t.Errorf("schedule changed after rejected batch: %v", got)
	}
	if st.saves != 1 {
		t.Errorf("rejected batch was saved")
	}
}

func TestReplace_SaveFailureIsSwallowed(t *testing.T) {
	s := NewSchedule(&memStore{saveErr: errors.New("disk full")}, nil)
	if err := s.Replace([]timer.Timer{sunriseRule()}); err != nil {
		t.Errorf("Replace error = %v, want nil on save failure", err)
	}
	if len(s.Timers()) != 1 {
		t.Error("schedule not applied after save failure")
	}
}

func TestRestore(t *testing.T) {
	s := NewSchedule(&memStore{timers: []timer.Timer{sunriseRule()}}, nil)
	if n := s.Restore(); n != 1 {
		t.Errorf("Restore() = %d, want 1", n)
	}
	if len(s.SimpleTimers()) != 4 {
		t.Errorf("SimpleTimers() = %d, want 4", len(s.SimpleTimers()))
	}

	s = NewSchedule(&memStore{loadErr: errors.New("garbage")}, nil)
	if n := s.Restore(); n != 0 {
		t.Errorf("Restore() on load error = %d, want 0", n)
	}

	invalid := timer.Timer{Enabled: true, Time: timeday.MustNew(1, 0, timeday.Monday), Action: timer.BrightnessState(0)}
	s = NewSchedule(&memStore{timers: []timer.Timer{sunriseRule(), invalid}}, nil)
	if n := s.Restore(); n != 0 {
		t.Errorf("Restore() with invalid rule = %d, want 0", n)
	}
}

func newTestChecker(s *Schedule, clock *time.Time, rec Recorder) *Checker {
	c := NewChecker(s, time.UTC, rec)
	c.now = func() time.Time { return *clock }
	return c
}

func TestCheck_OncePerMinute(t *testing.T) {
	s := NewSchedule(nil, nil)
	if err := s.Replace([]timer.Timer{sunriseRule()}); err != nil {
		t.Fatal(err)
	}

	// 2024-01-08 is a Monday
	clock := time.Date(2024, 1, 8, 6, 40, 0, 0, time.UTC)
	rec := &memRecorder{}
	c := newTestChecker(s, &clock, rec)

	var fired []deferred.Action
	emit := func(st timer.SimpleTimer) { fired = append(fired, st.Action) }

	if n := c.Check(emit); n != 1 {
		t.Fatalf("first Check matched %d, want 1", n)
	}
	clock = clock.Add(30 * time.Second)
	if n := c.Check(emit); n != 0 {
		t.Errorf("second Check in same minute matched %d, want 0", n)
	}
	if !reflect.DeepEqual(fired, []deferred.Action{deferred.Sunrise(20 * time.Minute)}) {
		t.Errorf("fired %v", fired)
	}
	if len(rec.events) != 1 || rec.events[0] != ledger.EventTimerFired {
		t.Errorf("recorded %v", rec.events)
	}

	clock = clock.Add(time.Minute)
	if n := c.Check(emit); n != 0 {
		t.Errorf("Check at 06:41 matched %d", n)
	}
	if c.LastChecked() != timeday.MustNew(6, 41, timeday.Monday) {
		t.Errorf("LastChecked() = %s", c.LastChecked())
	}
}

func TestCheck_DayMustMatch(t *testing.T) {
	s := NewSchedule(nil, nil)
	_ = s.Replace([]timer.Timer{sunriseRule()})

	// Tuesday 06:40
	clock := time.Date(2024, 1, 9, 6, 40, 0, 0, time.UTC)
	c := newTestChecker(s, &clock, nil)
	if n := c.Check(func(timer.SimpleTimer) {}); n != 0 {
		t.Errorf("Check on Tuesday matched %d", n)
	}

	// Sunday 21:30 fires the nightlamp of Monday's rule
	clock = time.Date(2024, 1, 7, 21, 30, 0, 0, time.UTC)
	var got deferred.Action
	if n := c.Check(func(st timer.SimpleTimer) { got = st.Action }); n != 1 {
		t.Fatalf("Check on Sunday 21:30 matched %d", n)
	}
	if got != deferred.Scene(scene.Nightlamp) {
		t.Errorf("fired %s", got)
	}
}

func TestCheck_EncounterOrder(t *testing.T) {
	at := timeday.MustNew(12, 0, timeday.Wednesday)
	s := NewSchedule(nil, nil)
	_ = s.Replace([]timer.Timer{
		{Enabled: true, Time: at, Action: timer.PowerState(true)},
		{Enabled: true, Time: at, Action: timer.BrightnessState(50)},
		{Enabled: true, Time: at, Action: timer.ColorState(1, 2, 3)},
	})

	clock := time.Date(2024, 1, 10, 12, 0, 59, 0, time.UTC)
	c := newTestChecker(s, &clock, nil)

	var got []deferred.Action
	c.Check(func(st timer.SimpleTimer) { got = append(got, st.Action) })

	want := []deferred.Action{
		deferred.Command(command.Power(true)),
		deferred.Command(command.Brightness(50)),
		deferred.Command(command.Color(1, 2, 3)),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fired %v, want %v", got, want)
	}
}

func TestCheck_UsesLocation(t *testing.T) {
	s := NewSchedule(nil, nil)
	_ = s.Replace([]timer.Timer{{Enabled: true, Time: timeday.MustNew(8, 0, timeday.Monday), Action: timer.PowerState(true)}})

	loc := time.FixedZone("UTC+2", 2*60*60)
	// 06:00 UTC Monday is 08:00 at UTC+2
	clock := time.Date(2024, 1, 8, 6, 0, 0, 0, time.UTC)
	c := NewChecker(s, loc, nil)
	c.now = func() time.Time { return clock }

	if n := c.Check(func(timer.SimpleTimer) {}); n != 1 {
		t.Errorf("Check matched %d, want 1", n)
	}
}
