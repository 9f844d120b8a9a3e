package fixer

import "fmt"

// State is a step in the fix of a single file.
//
//	pending → backed_up | backup_failed
//	pending | backed_up → appended | failed
//	appended → persisted | persist_failed
//
// Without a backup the fix goes from pending straight to appended. A file
// that is never started ends as skipped.
type State string

const (
	StatePending       State = "pending"
	StateBackedUp      State = "backed_up"
	StateBackupFailed  State = "backup_failed"
	StateAppended      State = "appended"
	StatePersisted     State = "persisted"
	StatePersistFailed State = "persist_failed"
	StateFailed        State = "failed"
	StateSkipped       State = "skipped"
)

var transitions = map[State][]State{
	StatePending:  {StateBackedUp, StateBackupFailed, StateAppended, StateFailed, StateSkipped},
	StateBackedUp: {StateAppended, StateFailed},
	StateAppended: {StatePersisted, StatePersistFailed},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// Succeeded reports whether the fix reached persistence.
func (s State) Succeeded() bool {
	return s == StatePersisted
}

func (s State) canMove(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// machine tracks one file through the states above.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StatePending}
}

func (m *machine) to(next State) {
	if !m.state.canMove(next) {
		panic(fmt.Sprintf("fixer: invalid transition %s → %s", m.state, next))
	}
	m.state = next
}
