package allocation

// Field is a text input bound to a node value.
//
// Sync delivers the latest value from the node. While the field is dirty
// (edited locally but not committed) Sync only records the value and leaves
// the displayed text alone.
type Field struct {
	value  string
	synced string
	dirty  bool
	err    string
}

// Value returns the text to display.
func (f *Field) Value() string { return f.value }

// Synced returns the last value received from the node.
func (f *Field) Synced() string { return f.synced }

// Dirty reports whether the field holds an uncommitted local edit.
func (f *Field) Dirty() bool { return f.dirty }

// Error returns the inline validation message from the last commit, if any.
func (f *Field) Error() string { return f.err }

// Edit records local input.
func (f *Field) Edit(text string) {
	f.value = text
	f.dirty = true
	f.err = ""
}

// Sync records a value from the node, showing it only if the field is clean.
func (f *Field) Sync(text string) {
	f.synced = text
	if !f.dirty {
		f.value = text
	}
}

// Reset discards any local edit and shows text.
func (f *Field) Reset(text string) {
	f.value = text
	f.synced = text
	f.dirty = false
	f.err = ""
}

func (f *Field) fail(msg string) {
	f.err = msg
}

func (f *Field) committed() {
	f.synced = f.value
	f.dirty = false
	f.err = ""
}
