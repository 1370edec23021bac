package timer

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/scene"
	"github.com/dokzlo13/lampd/internal/timeday"
)

func TestProcess_Sunrise(t *testing.T) {
	timers := []Timer{{
		Enabled: true,
		Time:    timeday.MustNew(7, 0, timeday.Monday),
		Action:  Sunrise(20, 5, 510, 60),
	}}

	got := Process(timers)
	if len(got) != 4 {
		t.Fatalf("Process produced %d triggers, want 4", len(got))
	}

	want := []struct {
		trigger timeday.TimeDay
		action  deferred.Action
	}{
		{timeday.MustNew(21, 30, timeday.Sunday), deferred.Scene(scene.Nightlamp)},
		{timeday.MustNew(22, 30, timeday.Sunday), deferred.Command(command.Power(false))},
		{timeday.MustNew(6, 40, timeday.Monday), deferred.Sunrise(20 * time.Minute)},
		{timeday.MustNew(7, 5, timeday.Monday), deferred.Scene(scene.Off)},
	}
	for i, w := range want {
		if got[i].Trigger != w.trigger {
			t.Errorf("trigger %d = %s, want %s", i, got[i].Trigger, w.trigger)
		}
		if got[i].Action != w.action {
			t.Errorf("action %d = %s, want %s", i, got[i].Action, w.action)
		}
		if got[i].Description == "" {
			t.Errorf("trigger %d has no description", i)
		}
	}
}

func TestProcess_SunriseWithoutNightlamp(t *testing.T) {
	got := Process([]Timer{{
		Enabled: true,
		Time:    timeday.MustNew(0, 10, timeday.Monday, timeday.Friday),
		Action:  Sunrise(30, 15, 0, 0),
	}})
	if len(got) != 2 {
		t.Fatalf("Process produced %d triggers, want 2", len(got))
	}
	if got[0].Trigger != timeday.MustNew(23, 40, timeday.Sunday, timeday.Thursday) {
		t.Errorf("sunrise trigger = %s", got[0].Trigger)
	}
	if got[1].Trigger != timeday.MustNew(0, 25, timeday.Monday, timeday.Friday) {
		t.Errorf("turn off trigger = %s", got[1].Trigger)
	}
}

func TestProcess_Immediate(t *testing.T) {
	at := timeday.MustNew(18, 0, timeday.Saturday)
	timers := []Timer{
		{Enabled: true, Time: at, Action: Action{Type: ActionReminder}},
		{Enabled: false, Time: at, Action: Action{Type: ActionDaylamp}},
		{Enabled: true, Time: at, Action: Action{Type: ActionNightlamp}},
		{Enabled: true, Time: at, Action: Action{Type: ActionDaylamp}},
		{Enabled: true, Time: at, Action: PowerState(true)},
		{Enabled: true, Time: at, Action: BrightnessState(42)},
		{Enabled: true, Time: at, Action: ColorState(10, 20, 30)},
	}

	var got []deferred.Action
	for _, st := range Process(timers) {
		if st.Trigger != at {
			t.Errorf("trigger = %s, want %s", st.Trigger, at)
		}
		got = append(got, st.Action)
	}

	want := []deferred.Action{
		deferred.Scene(scene.Reminder),
		deferred.Scene(scene.Nightlamp),
		deferred.Scene(scene.Daylamp),
		deferred.Command(command.Power(true)),
		deferred.Command(command.Brightness(42)),
		deferred.Command(command.Color(10, 20, 30)),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("actions = %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	at := timeday.MustNew(7, 0, timeday.Monday)

	tests := []struct {
		name    string
		timer   Timer
		wantErr bool
	}{
		{"sunrise", Timer{Time: at, Action: Sunrise(20, 5, 510, 60)}, false},
		{"sunrise no nightlamp short sleep", Timer{Time: at, Action: Sunrise(20, 5, 0, 0)}, false},
		{"sunrise sleep shorter than ramp", Timer{Time: at, Action: Sunrise(30, 5, 10, 60)}, true},
		{"sunrise zero duration", Timer{Time: at, Action: Sunrise(0, 5, 0, 0)}, true},
		{"sunrise negative stay", Timer{Time: at, Action: Sunrise(20, -1, 0, 0)}, true},
		{"sunrise over a day", Timer{Time: at, Action: Sunrise(20, 5, 2000, 60)}, true},
		{"brightness zero", Timer{Time: at, Action: BrightnessState(0)}, true},
		{"brightness 101", Timer{Time: at, Action: BrightnessState(101)}, true},
		{"brightness ok", Timer{Time: at, Action: BrightnessState(100)}, false},
		{"color out of range", Timer{Time: at, Action: ColorState(0, 256, 0)}, true},
		{"color ok", Timer{Time: at, Action: ColorState(0, 255, 0)}, false},
		{"missing time", Timer{Action: PowerState(true)}, true},
		{"missing type", Timer{Time: at}, true},
		{"unknown type", Timer{Time: at, Action: Action{Type: "strobe"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.timer.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTimer) {
				t.Errorf("Validate() error = %v, want ErrInvalidTimer", err)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	a := Timer{Enabled: true, Time: timeday.MustNew(7, 0, timeday.Monday), Action: PowerState(true)}
	b := Timer{Enabled: true, Time: timeday.MustNew(8, 0, timeday.Monday), Action: PowerState(true)}

	got := Dedupe([]Timer{a, b, a, b, a})
	if !reflect.DeepEqual(got, []Timer{a, b}) {
		t.Errorf("Dedupe = %v", got)
	}
}

func TestJSON(t *testing.T) {
	raw := `[
		{"time":{"hour":7,"minute":0,"days":[0,1,2,3,4]},"action":{"type":"sunrise","duration_min":20,"stay_on_for_min":5,"sleep_min":510,"nightlamp_min":60}},
		{"enabled":false,"time":{"hour":22,"minute":0,"days":[5]},"action":{"type":"brightness","brightness":5}}
	]`

	var timers []Timer
	if err := json.Unmarshal([]byte(raw), &timers); err != nil {
		t.Fatal(err)
	}
	if len(timers) != 2 {
		t.Fatalf("got %d timers", len(timers))
	}
	if !timers[0].Enabled || timers[1].Enabled {
		t.Errorf("enabled flags = %t, %t", timers[0].Enabled, timers[1].Enabled)
	}
	if timers[0].Action != Sunrise(20, 5, 510, 60) {
		t.Errorf("action = %+v", timers[0].Action)
	}

	data, err := json.Marshal(timers)
	if err != nil {
		t.Fatal(err)
	}
	var again []Timer
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(again, timers) {
		t.Errorf("re-decoded %v, want %v", again, timers)
	}

	bad := `[{"time":{"hour":25,"minute":0,"days":[0]},"action":{"type":"power"}}]`
	if err := json.Unmarshal([]byte(bad), &timers); !errors.Is(err, timeday.ErrOutOfRange) {
		t.Errorf("hour 25 error = %v, want ErrOutOfRange", err)
	}
}
