// Package classify labels movement from smoothed intensity and short sample
// windows.
package classify

const (
	activeAbove = 2.5
	movingAbove = 2.0
	idleBelow   = 1.5 // [idleBelow, movingAbove] keeps the previous state
)

type State int

const (
	Idle State = iota
	Moving
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case Active:
		return "active"
	}
	return "unknown"
}

// Machine is the hysteretic movement-state classifier. It is driven once per
// sampler tick and is not safe for concurrent use.
type Machine struct {
	state State
}

func NewMachine() *Machine { return &Machine{} }

// Update folds in one smoothed intensity and returns the resulting state and
// whether it differs from the previous one.
func (m *Machine) Update(v float64) (State, bool) {
	next := m.state
	switch {
	case v > activeAbove:
		next = Active
	case v > movingAbove:
		next = Moving
	case v < idleBelow:
		next = Idle
	}
	changed := next != m.state
	m.state = next
	return next, changed
}

func (m *Machine) State() State { return m.state }

func (m *Machine) Reset() { m.state = Idle }
