package transaction

// State is transaction state. this is stored in the slot table of the state file
// see https://github.com/postgres/postgres/blob/20432f8731404d2cef2a155144aca5ab3ae98e95/src/backend/access/transam/xact.c#L137-L148
type State uint8

const (
	// the slot is not used
	StateNone State = iota
	// during transaction
	StateInProgress
	// transaction committed
	StateCommitted
	// transaction aborted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateInProgress:
		return "in progress"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// IsCompleted checks whether the transaction has been committed or aborted
func (s State) IsCompleted() bool {
	return s == StateCommitted || s == StateAborted
}
