package payout

// broadcastState is the bounded retry machine for a single plan entry:
// attempting -> retrying(n) -> ... -> succeeded | failed. Keeping it as an
// explicit machine makes retry-exhaustion behavior testable on its own,
// separate from the executor's sleeping and recording.

type attemptState int

const (
	stateAttempting attemptState = iota
	stateRetrying
	stateSucceeded
	stateFailed
)

func (s attemptState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateRetrying:
		return "retrying"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

type broadcastState struct {
	maxRetries int
	retries    int
	state      attemptState
}

func newBroadcastState(maxRetries int) *broadcastState {
	return &broadcastState{maxRetries: maxRetries, state: stateAttempting}
}

// observe feeds one attempt's result into the machine and returns the new
// state. Transient failures move to retrying until the retry budget is
// spent; fatal and non-transient failures terminate immediately.
func (s *broadcastState) observe(err error) attemptState {
	switch {
	case err == nil:
		s.state = stateSucceeded
	case IsFatal(err):
		s.state = stateFailed
	case IsTransient(err) && s.retries < s.maxRetries:
		s.retries++
		s.state = stateRetrying
	default:
		s.state = stateFailed
	}
	return s.state
}
