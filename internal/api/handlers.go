package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/govee"
	"github.com/dokzlo13/lampd/internal/timeday"
	"github.com/dokzlo13/lampd/internal/timer"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.Lamp.State(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read lamp state, reporting default")
		state = govee.DefaultState
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Power *bool `json:"power"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Power == nil {
		writeValidationError(w, "power is required")
		return
	}
	s.enqueue(w, r, deferred.Command(command.Power(*body.Power)))
}

func (s *Server) handleBrightness(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Brightness *int `json:"brightness"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Brightness == nil {
		writeValidationError(w, "brightness is required")
		return
	}
	a, err := deferred.Request{Brightness: body.Brightness}.Action()
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	s.enqueue(w, r, a)
}

func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Color *command.RGB `json:"color"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Color == nil {
		writeValidationError(w, "color is required")
		return
	}
	s.enqueue(w, r, deferred.Command(command.Color(body.Color.R, body.Color.G, body.Color.B)))
}

func (s *Server) handleSunrise(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DurationMin int `json:"duration_min"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	d, err := deferred.SunriseDuration(body.DurationMin)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	s.enqueue(w, r, deferred.Sunrise(d))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, deferred.Clear())
}

func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"scenes": s.deps.Scenes.Names()})
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.deps.Scenes.Has(name) {
		writeNotFound(w, fmt.Sprintf("unknown scene %q", name))
		return
	}
	s.enqueue(w, r, deferred.Scene(name))
}

func (s *Server) handleGetTimers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]timer.Timer{"timers": s.deps.Schedule.Timers()})
}

func (s *Server) handlePutTimers(w http.ResponseWriter, r *http.Request) {
	var timers []timer.Timer
	if err := json.NewDecoder(r.Body).Decode(&timers); err != nil {
		if errors.Is(err, timeday.ErrOutOfRange) || errors.Is(err, timer.ErrInvalidTimer) {
			writeValidationError(w, err.Error())
			return
		}
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	if err := s.deps.Schedule.Replace(timers); err != nil {
		if errors.Is(err, timer.ErrInvalidTimer) {
			writeValidationError(w, err.Error())
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	log.Info().Int("timers", len(timers)).Str("request_id", requestID(r)).Msg("Timers replaced")
	writeJSON(w, http.StatusOK, map[string][]timer.Timer{"timers": s.deps.Schedule.Timers()})
}

func (s *Server) handleExpandedTimers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]timer.SimpleTimer{"triggers": s.deps.Schedule.SimpleTimers()})
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pending":  s.deps.Queue.Pending(),
		"commands": s.deps.Queue.Snapshot(),
		"mailbox":  s.deps.Mailbox.Len(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "ledger is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.deps.History.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read ledger")
		writeInternalError(w, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// enqueue hands a to the dispatch loop, blocking while the mailbox is full.
func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, a deferred.Action) {
	if err := s.deps.Mailbox.Enqueue(r.Context(), a); err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "request cancelled before it was queued")
		return
	}
	log.Info().Str("action", a.String()).Str("request_id", requestID(r)).Msg("Action queued")
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "action": a})
}

// decodeBody decodes a JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, command.ErrInvalidCommand) {
			writeValidationError(w, err.Error())
			return false
		}
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
