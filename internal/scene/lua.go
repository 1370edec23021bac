package scene

import (
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/lampd/internal/command"
)

// LoadFile runs a Lua script and merges its global `scenes` table into the
// book. Example:
//
//	scenes = {
//	  reading = { {power=true}, {brightness=80}, {color={255,240,220}} },
//	}
func (b *Book) LoadFile(path string) error {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoFile(path); err != nil {
		return fmt.Errorf("failed to run scene script %s: %w", path, err)
	}
	return b.loadGlobals(L)
}

// LoadString is LoadFile for an in-memory script.
func (b *Book) LoadString(src string) error {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(src); err != nil {
		return fmt.Errorf("failed to run scene script: %w", err)
	}
	return b.loadGlobals(L)
}

func (b *Book) loadGlobals(L *lua.LState) error {
	tbl, ok := L.GetGlobal("scenes").(*lua.LTable)
	if !ok {
		log.Warn().Msg("Scene script does not define a scenes table")
		return nil
	}

	parsed := make(map[string][]command.Command)
	var parseErr error
	tbl.ForEach(func(k, v lua.LValue) {
		if parseErr != nil {
			return
		}
		name, ok := k.(lua.LString)
		if !ok {
			parseErr = fmt.Errorf("scene keys must be strings, got %s", k.Type())
			return
		}
		steps, ok := v.(*lua.LTable)
		if !ok {
			parseErr = fmt.Errorf("scene %q must be a table of commands", string(name))
			return
		}
		cmds, err := commandsFromTable(steps)
		if err != nil {
			parseErr = fmt.Errorf("scene %q: %w", string(name), err)
			return
		}
		parsed[string(name)] = cmds
	})
	if parseErr != nil {
		return parseErr
	}

	// validate everything before touching the book
	for name, cmds := range parsed {
		for i, c := range cmds {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("scene %q command %d: %w", name, i+1, err)
			}
		}
	}
	for name, cmds := range parsed {
		if err := b.Set(name, cmds); err != nil {
			return err
		}
		log.Debug().Str("scene", name).Int("commands", len(cmds)).Msg("Scene loaded from script")
	}

	log.Info().Int("count", len(parsed)).Msg("Scenes loaded from script")
	return nil
}

func commandsFromTable(tbl *lua.LTable) ([]command.Command, error) {
	n := tbl.Len()
	if n == 0 {
		return nil, fmt.Errorf("no commands")
	}

	cmds := make([]command.Command, 0, n)
	for i := 1; i <= n; i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("command %d must be a table", i)
		}
		cmd, err := commandFromTable(entry)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// commandFromTable accepts {power=bool}, {brightness=n} or {color={r,g,b}}.
func commandFromTable(tbl *lua.LTable) (command.Command, error) {
	if v := tbl.RawGetString("power"); v != lua.LNil {
		b, ok := v.(lua.LBool)
		if !ok {
			return command.Command{}, fmt.Errorf("power must be a boolean")
		}
		return command.Power(bool(b)), nil
	}

	if v := tbl.RawGetString("brightness"); v != lua.LNil {
		n, ok := v.(lua.LNumber)
		if !ok {
			return command.Command{}, fmt.Errorf("brightness must be a number")
		}
		if n < command.MinBrightness || n > command.MaxBrightness {
			return command.Command{}, fmt.Errorf("%w: brightness has to be %d-%d, was %v",
				command.ErrInvalidCommand, command.MinBrightness, command.MaxBrightness, n)
		}
		return command.Brightness(uint8(n)), nil
	}

	if v := tbl.RawGetString("color"); v != lua.LNil {
		rgb, ok := v.(*lua.LTable)
		if !ok || rgb.Len() != 3 {
			return command.Command{}, fmt.Errorf("color must be {r, g, b}")
		}
		var c [3]uint8
		for i := 0; i < 3; i++ {
			n, ok := rgb.RawGetInt(i + 1).(lua.LNumber)
			if !ok || n < 0 || n > 255 {
				return command.Command{}, fmt.Errorf("%w: color components have to be 0-255", command.ErrInvalidCommand)
			}
			c[i] = uint8(n)
		}
		return command.Color(c[0], c[1], c[2]), nil
	}

	return command.Command{}, fmt.Errorf("expected one of power, brightness, color")
}
