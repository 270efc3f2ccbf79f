package domain

import "time"

// Step is one element of a rendered message sequence. It is a closed sum:
// PayloadStep carries an outbound payload, PauseStep suspends the dispatch
// loop. The loop type-switches over these two cases exhaustively.
type Step interface {
	step()
}

// PayloadStep is an outbound message. Before dispatch the payload is the
// renderer's platform-agnostic map; after the engine runs it through the
// channel's outgoing processor it is whatever that channel delivers.
type PayloadStep struct {
	Payload any
}

// PauseStep suspends the dispatch loop for Duration. Nothing is delivered.
type PauseStep struct {
	Duration time.Duration
}

func (PayloadStep) step() {}
func (PauseStep) step()   {}

// Pause builds a PauseStep from a millisecond count, the unit render
// functions and content data use.
func Pause(ms int) PauseStep {
	return PauseStep{Duration: time.Duration(ms) * time.Millisecond}
}
