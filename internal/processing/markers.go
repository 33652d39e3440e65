package processing

// Marker is an event annotation pinned to a slot of the ring buffer. Position
// moves one slot to the left for every accepted sample.
type Marker struct {
	Label    string
	Position int
}

type Markers struct {
	items []Marker
}

func (m *Markers) Add(label string, position int) {
	m.items = append(m.items, Marker{Label: label, Position: position})
}

// Age shifts every marker one slot left and drops those that fell off the
// window. It returns the number of markers removed.
func (m *Markers) Age() int {
	kept := m.items[:0]
	for _, marker := range m.items {
		marker.Position--
		if marker.Position < 0 {
			continue
		}
		kept = append(kept, marker)
	}
	expired := len(m.items) - len(kept)
	m.items = kept
	return expired
}

func (m *Markers) Clear() {
	m.items = nil
}

func (m *Markers) Len() int {
	return len(m.items)
}

// List returns a copy of the active markers, oldest first.
func (m *Markers) List() []Marker {
	out := make([]Marker, len(m.items))
	copy(out, m.items)
	return out
}
