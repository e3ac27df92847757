package store

import "fmt"

// Mode is one state of the layer editing state machine.
type Mode string

// Editing modes. ModeIdle is active when no other mode is.
const (
	ModeIdle    Mode = "idle"
	ModeDraw    Mode = "draw"
	ModeDrag    Mode = "drag"
	ModeCut     Mode = "cut"
	ModeEdit    Mode = "edit"
	ModeRemoval Mode = "removal"
	ModeRotate  Mode = "rotate"
)

// ParseMode validates a mode name coming from the map surface.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeDraw, ModeDrag, ModeCut, ModeEdit, ModeRemoval, ModeRotate:
		return m, nil
	default:
		return "", fmt.Errorf("unknown editing mode %q", s)
	}
}

// Editing holds one flag per editing mode.
type Editing struct {
	Draw    bool `json:"draw_mode"`
	Drag    bool `json:"drag_mode"`
	Cut     bool `json:"cut_mode"`
	Edit    bool `json:"edit_mode"`
	Removal bool `json:"removal_mode"`
	Rotate  bool `json:"rotate_mode"`
}

// Idle reports whether every flag is off.
func (e Editing) Idle() bool {
	return e == Editing{}
}

// Set switches the flag of mode m.
func (e *Editing) Set(m Mode, enabled bool) {
	switch m {
	case ModeDraw:
		e.Draw = enabled
	case ModeDrag:
		e.Drag = enabled
	case ModeCut:
		e.Cut = enabled
	case ModeEdit:
		e.Edit = enabled
	case ModeRemoval:
		e.Removal = enabled
	case ModeRotate:
		e.Rotate = enabled
	}
}

// Mode returns the active mode. When several flags are on the first one in
// draw, drag, cut, edit, removal, rotate order wins.
func (e Editing) Mode() Mode {
	switch {
	case e.Draw:
		return ModeDraw
	case e.Drag:
		return ModeDrag
	case e.Cut:
		return ModeCut
	case e.Edit:
		return ModeEdit
	case e.Removal:
		return ModeRemoval
	case e.Rotate:
		return ModeRotate
	default:
		return ModeIdle
	}
}
