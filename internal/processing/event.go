package processing

// EventQueue is a single-slot register for the next annotation. A new label
// replaces one that has not been taken yet.
type EventQueue struct {
	label   string
	pending bool
}

func (q *EventQueue) Set(label string) {
	q.label = label
	q.pending = true
}

// Take returns the pending label and clears it. ok is false when nothing is
// pending.
func (q *EventQueue) Take() (label string, ok bool) {
	if !q.pending {
		return "", false
	}
	label = q.label
	q.label = ""
	q.pending = false
	return label, true
}

func (q *EventQueue) Pending() (string, bool) {
	return q.label, q.pending
}
