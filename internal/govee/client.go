// Package govee is a minimal client for the Govee developer API (v1) that
// applies single commands to one device.
package govee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/lampd/internal/command"
)

// DefaultBaseURL is the public developer API endpoint.
const DefaultBaseURL = "https://developer-api.govee.com"

// ErrRequestFailed is returned when the API answers with a non-success code.
var ErrRequestFailed = errors.New("govee: request failed")

// State is the lamp state as reported by the API.
type State struct {
	Color      command.RGB `json:"color"`
	Brightness uint8       `json:"brightness"`
	Power      bool        `json:"power"`
}

// DefaultState is reported when the lamp cannot be reached.
var DefaultState = State{
	Color:      command.RGB{R: 255, G: 255, B: 255},
	Brightness: 100,
	Power:      false,
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Device  string
	Model   string
	Timeout time.Duration
	// Debug skips HTTP entirely and pretends every command succeeds after
	// AvgApply.
	Debug    bool
	AvgApply time.Duration
	// ControlRPM caps control requests per minute; 0 disables throttling.
	ControlRPM float64
	// StateRPS throttles state reads; 0 disables throttling.
	StateRPS float64
}

// Client talks to a single Govee device.
type Client struct {
	opts           Options
	httpClient     *http.Client
	controlLimiter *rate.Limiter
	stateLimiter   *rate.Limiter
}

// NewClient creates a new Govee client
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	control := rate.NewLimiter(rate.Inf, 1)
	if opts.ControlRPM > 0 {
		control = rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/opts.ControlRPM)), 1)
	}
	state := rate.NewLimiter(rate.Inf, 1)
	if opts.StateRPS > 0 {
		state = rate.NewLimiter(rate.Limit(opts.StateRPS), 1)
	}

	return &Client{
		opts:           opts,
		httpClient:     &http.Client{Timeout: opts.Timeout},
		controlLimiter: control,
		stateLimiter:   state,
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type controlRequest struct {
	Device string     `json:"device"`
	Model  string     `json:"model"`
	Cmd    controlCmd `json:"cmd"`
}

type controlCmd struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type rgbValue struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func controlFor(cmd command.Command) (controlCmd, error) {
	switch cmd.Kind {
	case command.KindColor:
		return controlCmd{Name: "color", Value: rgbValue{R: cmd.Color.R, G: cmd.Color.G, B: cmd.Color.B}}, nil
	case command.KindBrightness:
		b := min(max(cmd.Brightness, command.MinBrightness), command.MaxBrightness)
		return controlCmd{Name: "brightness", Value: b}, nil
	case command.KindPower:
		v := "off"
		if cmd.Power {
			v = "on"
		}
		return controlCmd{Name: "turn", Value: v}, nil
	default:
		return controlCmd{}, fmt.Errorf("%w: unknown kind %q", command.ErrInvalidCommand, cmd.Kind)
	}
}

// Apply sends cmd to the lamp and reports success. Failures are logged, not
// returned; the caller retries.
func (c *Client) Apply(ctx context.Context, cmd command.Command) bool {
	if err := c.apply(ctx, cmd); err != nil {
		log.Warn().Err(err).Str("command", cmd.String()).Msg("Failed to apply command")
		return false
	}
	return true
}

func (c *Client) apply(ctx context.Context, cmd command.Command) error {
	if c.opts.Debug {
		log.Debug().Str("command", cmd.String()).Msg("Debug mode, not sending command")
		select {
		case <-time.After(c.opts.AvgApply):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ctl, err := controlFor(cmd)
	if err != nil {
		return err
	}
	if err := c.controlLimiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(controlRequest{Device: c.opts.Device, Model: c.opts.Model, Cmd: ctl})
	if err != nil {
		return err
	}

	_, err = c.do(ctx, http.MethodPut, c.opts.BaseURL+"/v1/devices/control", bytes.NewReader(body))
	return err
}

// State reads the current lamp state.
func (c *Client) State(ctx context.Context) (State, error) {
	if c.opts.Debug {
		return DefaultState, nil
	}
	if err := c.stateLimiter.Wait(ctx); err != nil {
		return State{}, err
	}

	q := url.Values{}
	q.Set("device", c.opts.Device)
	q.Set("model", c.opts.Model)

	data, err := c.do(ctx, http.MethodGet, c.opts.BaseURL+"/v1/devices/state?"+q.Encode(), nil)
	if err != nil {
		return State{}, err
	}
	return parseState(data)
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Govee-API-Key", c.opts.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d: %s", ErrRequestFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if ar.Code != http.StatusOK {
		return nil, fmt.Errorf("%w: code %d: %s", ErrRequestFailed, ar.Code, ar.Message)
	}
	return ar.Data, nil
}

// parseState reads data.properties, a list of single-key objects such as
// {"powerState":"on"}, {"brightness":40} and {"color":{"r":..,"g":..,"b":..}}.
func parseState(data json.RawMessage) (State, error) {
	var payload struct {
		Properties []map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return State{}, fmt.Errorf("failed to decode state: %w", err)
	}

	var st State
	var seenPower, seenBri, seenColor bool
	for _, prop := range payload.Properties {
		if v, ok := prop["powerState"]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return State{}, fmt.Errorf("bad powerState: %w", err)
			}
			st.Power = s == "on"
			seenPower = true
		}
		if v, ok := prop["brightness"]; ok {
			if err := json.Unmarshal(v, &st.Brightness); err != nil {
				return State{}, fmt.Errorf("bad brightness: %w", err)
			}
			seenBri = true
		}
		if v, ok := prop["color"]; ok {
			var rgb rgbValue
			if err := json.Unmarshal(v, &rgb); err != nil {
				return State{}, fmt.Errorf("bad color: %w", err)
			}
			st.Color = command.RGB{R: rgb.R, G: rgb.G, B: rgb.B}
			seenColor = true
		}
	}

	if !seenPower || !seenBri || !seenColor {
		return State{}, fmt.Errorf("%w: incomplete state properties", ErrRequestFailed)
	}
	return st, nil
}
