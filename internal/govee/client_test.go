package govee

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/lampd/internal/command"
)

type recorded struct {
	method string
	path   string
	query  string
	key    string
	body   controlRequest
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, key: r.Header.Get("Govee-API-Key")}
		if r.Body != nil && r.Method == http.MethodPut {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(url string) *Client {
	return NewClient(Options{BaseURL: url, APIKey: "secret", Device: "AA:BB", Model: "H6008"})
}

func TestApply_Success(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"message":"Success","data":{}}`))
	})
	c := newTestClient(srv.URL)

	cmds := []command.Command{command.Color(1, 2, 3), command.Brightness(40), command.Power(true)}
	for _, cmd := range cmds {
		if !c.Apply(context.Background(), cmd) {
			t.Fatalf("Apply(%s) = false", cmd)
		}
	}

	if len(*calls) != 3 {
		t.Fatalf("server saw %d calls", len(*calls))
	}
	first := (*calls)[0]
	if first.method != http.MethodPut || first.path != "/v1/devices/control" || first.key != "secret" {
		t.Errorf("request = %+v", first)
	}
	if first.body.Device != "AA:BB" || first.body.Model != "H6008" || first.body.Cmd.Name != "color" {
		t.Errorf("body = %+v", first.body)
	}
	color, _ := first.body.Cmd.Value.(map[string]any)
	if color["r"] != float64(1) || color["b"] != float64(3) {
		t.Errorf("color value = %v", first.body.Cmd.Value)
	}
	if (*calls)[1].body.Cmd.Name != "brightness" || (*calls)[1].body.Cmd.Value != float64(40) {
		t.Errorf("brightness body = %+v", (*calls)[1].body)
	}
	if (*calls)[2].body.Cmd.Name != "turn" || (*calls)[2].body.Cmd.Value != "on" {
		t.Errorf("power body = %+v", (*calls)[2].body)
	}
}

func TestApply_Failure(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"http error", http.StatusTooManyRequests, `{"code":429,"message":"rate limited"}`},
		{"api code", http.StatusOK, `{"code":400,"message":"Unsupported Cmd"}`},
		{"garbage", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			})
			if newTestClient(srv.URL).Apply(context.Background(), command.Power(false)) {
				t.Error("Apply = true, want false")
			}
		})
	}
}

func TestApply_Debug(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1", Debug: true, AvgApply: time.Millisecond})
	if !c.Apply(context.Background(), command.Power(true)) {
		t.Error("debug Apply = false")
	}
}

func TestControlFor_ClampsBrightness(t *testing.T) {
	ctl, err := controlFor(command.Command{Kind: command.KindBrightness, Brightness: 0})
	if err != nil {
		t.Fatal(err)
	}
	if ctl.Value != uint8(1) {
		t.Errorf("value = %v, want 1", ctl.Value)
	}
	ctl, _ = controlFor(command.Command{Kind: command.KindBrightness, Brightness: 250})
	if ctl.Value != uint8(100) {
		t.Errorf("value = %v, want 100", ctl.Value)
	}
}

func TestState(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"message":"Success","data":{"device":"AA:BB","model":"H6008","properties":[
			{"online":true},{"powerState":"on"},{"brightness":82},{"color":{"r":255,"g":181,"b":128}}
		]}}`))
	})

	st, err := newTestClient(srv.URL).State(context.Background())
	if err != nil {
		t.Fatalf("State error = %v", err)
	}
	want := State{Color: command.RGB{R: 255, G: 181, B: 128}, Brightness: 82, Power: true}
	if st != want {
		t.Errorf("State = %+v, want %+v", st, want)
	}

	c := (*calls)[0]
	if c.method != http.MethodGet || c.path != "/v1/devices/state" || c.query != "device=AA%3ABB&model=H6008" {
		t.Errorf("request = %+v", c)
	}
}

func TestState_Incomplete(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":{"properties":[{"powerState":"off"}]}}`))
	})
	_, err := newTestClient(srv.URL).State(context.Background())
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("State error = %v, want ErrRequestFailed", err)
	}
}

func TestApply_ControlLimiter(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"message":"Success"}`))
	})
	c := NewClient(Options{BaseURL: srv.URL, ControlRPM: 1})

	if !c.Apply(context.Background(), command.Power(true)) {
		t.Fatal("first Apply = false")
	}

	// the second token is a minute away
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if c.Apply(ctx, command.Power(false)) {
		t.Error("second Apply within the quota window = true")
	}
	if len(*calls) != 1 {
		t.Errorf("server saw %d calls, want 1", len(*calls))
	}
}
