package isolation

// SearchPathStack is an ordered list of directories searched for modules.
// Index 0 has the highest precedence.
type SearchPathStack struct {
	entries []string
}

// NewSearchPathStack returns a stack holding base, in order.
func NewSearchPathStack(base ...string) *SearchPathStack {
	return &SearchPathStack{entries: append([]string(nil), base...)}
}

// Entries returns a copy of the current entries.
func (s *SearchPathStack) Entries() []string {
	return append([]string(nil), s.entries...)
}

// Len returns the number of entries.
func (s *SearchPathStack) Len() int {
	return len(s.entries)
}

// PushFront inserts dirs at the front, keeping their relative order.
func (s *SearchPathStack) PushFront(dirs ...string) {
	next := make([]string, 0, len(dirs)+len(s.entries))
	next = append(next, dirs...)
	s.entries = append(next, s.entries...)
}

// HasPrefix reports whether the stack starts with dirs.
func (s *SearchPathStack) HasPrefix(dirs []string) bool {
	if len(dirs) > len(s.entries) {
		return false
	}
	for i, d := range dirs {
		if s.entries[i] != d {
			return false
		}
	}
	return true
}

// PopFront drops the first n entries.
func (s *SearchPathStack) PopFront(n int) {
	if n > len(s.entries) {
		n = len(s.entries)
	}
	s.entries = append([]string(nil), s.entries[n:]...)
}

// Remove deletes the first occurrence of dir and reports whether it was found.
func (s *SearchPathStack) Remove(dir string) bool {
	for i, e := range s.entries {
		if e == dir {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether dir is on the stack.
func (s *SearchPathStack) Contains(dir string) bool {
	for _, e := range s.entries {
		if e == dir {
			return true
		}
	}
	return false
}
