package canvas

// Selection is an insertion-ordered set of node ids.
type Selection struct {
	order []string
	set   map[string]struct{}
}

// NewSelection returns a selection holding ids, duplicates removed.
func NewSelection(ids ...string) *Selection {
	s := &Selection{set: make(map[string]struct{})}
	s.Replace(ids...)
	return s
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.set[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	return len(s.order)
}

// IDs returns a copy of the selected ids in selection order.
func (s *Selection) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Only reports whether id is the sole selected item.
func (s *Selection) Only(id string) bool {
	return len(s.order) == 1 && s.order[0] == id
}

// Replace sets the selection to exactly ids.
func (s *Selection) Replace(ids ...string) {
	s.order = s.order[:0]
	s.set = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.add(id)
	}
}

// Toggle adds id if absent and removes it if present.
func (s *Selection) Toggle(id string) {
	if s.Has(id) {
		s.Remove(id)
		return
	}
	s.add(id)
}

// Remove drops ids from the selection.
func (s *Selection) Remove(ids ...string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if s.Has(id) {
			drop[id] = true
			delete(s.set, id)
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.order = kept
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.Replace()
}

func (s *Selection) add(id string) {
	if id == "" || s.Has(id) {
		return
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
}
