package canvas

// Key is a keyboard command understood by the editor.
type Key string

const (
	KeyEscape    Key = "Escape"
	KeyDelete    Key = "Delete"
	KeyBackspace Key = "Backspace"
	KeyUndo      Key = "Mod+Z"
	KeyRedo      Key = "Mod+Shift+Z"
)

// HandleKey applies a keyboard command. It reports whether the key was
// handled. Delete and Backspace are ignored while a gesture is in progress.
func (e *Editor) HandleKey(k Key) bool {
	switch k {
	case KeyEscape:
		e.Escape()
		return true
	case KeyDelete, KeyBackspace:
		if e.drag != nil || e.marquee != nil || e.composer.Active() {
			return false
		}
		return e.RemoveSelected() > 0
	case KeyUndo:
		return e.Undo()
	case KeyRedo:
		return e.Redo()
	}
	return false
}
