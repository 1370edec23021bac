package command

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	if _, ok := q.Front(); ok {
		t.Fatal("Front() on empty queue returned ok")
	}

	q.Push(Power(true), Brightness(10))
	q.Push(Color(1, 2, 3))

	want := []Command{Power(true), Brightness(10), Color(1, 2, 3)}
	if !reflect.DeepEqual(q.Snapshot(), want) {
		t.Fatalf("Snapshot() = %v, want %v", q.Snapshot(), want)
	}

	for i, w := range want {
		got, ok := q.Front()
		if !ok || got != w {
			t.Fatalf("step %d: Front() = %v, %v; want %v", i, got, ok, w)
		}
		q.Pop()
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after draining, want 0", q.Len())
	}

	q.Pop() // must not panic
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue()
	q.Push(Power(true), Power(false))
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", q.Len())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"color", Color(255, 181, 128), false},
		{"power", Power(false), false},
		{"brightness min", Brightness(1), false},
		{"brightness max", Brightness(100), false},
		{"brightness zero", Brightness(0), true},
		{"brightness over", Brightness(101), true},
		{"unknown kind", Command{Kind: "blink"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("Validate() error = %v, want ErrInvalidCommand", err)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal([]Command{Color(255, 181, 128), Brightness(40), Power(true)})
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"type":"color","color":[255,181,128]},{"type":"brightness","brightness":40},{"type":"power","power":true}]`
	if string(data) != want {
		t.Errorf("Marshal = %s\nwant       %s", data, want)
	}

	bad := []string{
		`{"type":"brightness","brightness":0}`,
		`{"type":"color","color":[1,2]}`,
		`{"type":"color","color":[1,2,256]}`,
		`{"type":"power"}`,
		`{"type":"strobe"}`,
	}
	for _, raw := range bad {
		var c Command
		if err := json.Unmarshal([]byte(raw), &c); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrInvalidCommand", raw, err)
		}
	}
}

func TestString(t *testing.T) {
	if got := Color(1, 2, 3).String(); got != "Color(1, 2, 3)" {
		t.Errorf("String() = %q", got)
	}
	if got := Brightness(7).String(); got != "Brightness(7)" {
		t.Errorf("String() = %q", got)
	}
}
