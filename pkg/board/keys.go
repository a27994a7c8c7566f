package board

import "strings"

// KeyEvent is a key press. Key follows the DOM KeyboardEvent.key names
// ("z", "Delete", "Backspace").
type KeyEvent struct {
	Key   string
	Ctrl  bool
	Meta  bool
	Shift bool
}

type intent int

const (
	intentNone intent = iota
	intentUndo
	intentRedo
	intentCopy
	intentCut
	intentPaste
	intentDelete
)

func (k KeyEvent) intent() intent {
	if k.Key == "Delete" || k.Key == "Backspace" {
		return intentDelete
	}
	if !k.Ctrl && !k.Meta {
		return intentNone
	}
	switch strings.ToLower(k.Key) {
	case "z":
		if k.Shift {
			return intentRedo
		}
		return intentUndo
	case "y":
		return intentRedo
	case "c":
		return intentCopy
	case "x":
		return intentCut
	case "v":
		return intentPaste
	}
	return intentNone
}
