package raat

import "condor-raat/core/store"

// Open is the only non-terminal state, and every terminal state is
// permanently terminal. Reopening a case means registering a new linked
// incident, never mutating the closed one.

var terminalStatuses = map[string]struct{}{
	store.IncidentClosed:       {},
	store.IncidentWithSequelae: {},
	store.IncidentConsolidated: {},
}

func isTerminalStatus(status string) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// CheckTransition validates a lifecycle change. Only open -> terminal is
// permitted; everything else, including terminal -> terminal and any move
// back to open, is rejected with the offending pair.
func CheckTransition(from, to string) error {
	if from != store.IncidentOpen {
		return &TransitionError{From: from, To: to}
	}
	if !isTerminalStatus(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
