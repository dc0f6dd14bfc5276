package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
)

// State is a step of one credential exchange.
type State string

const (
	StateManifestPublished    State = "manifest_published"
	StateApplicationComposed  State = "application_composed"
	StateApplicationDecoded   State = "application_decoded"
	StateApplicationEvaluated State = "application_evaluated"
	StateFulfillmentIssued    State = "fulfillment_issued"
	StateFailed               State = "failed"
)

// transitions lists the legal next states. An issuer first sees an exchange
// when the application arrives, so decoding may follow publication directly.
var transitions = map[State][]State{
	StateManifestPublished:    {StateApplicationComposed, StateApplicationDecoded, StateFailed},
	StateApplicationComposed:  {StateApplicationDecoded, StateFailed},
	StateApplicationDecoded:   {StateApplicationEvaluated, StateFailed},
	StateApplicationEvaluated: {StateFulfillmentIssued, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Exchange tracks one manifest/application/fulfillment round. It is owned by
// a single request; the mutex only guards concurrent readers such as loggers.
type Exchange struct {
	ID         string
	ManifestID string

	mu      sync.Mutex
	state   State
	err     error
	history []Transition
	now     func() time.Time
}

// NewExchange starts an exchange in StateManifestPublished.
func NewExchange(id, manifestID string) *Exchange {
	return &Exchange{
		ID:         id,
		ManifestID: manifestID,
		state:      StateManifestPublished,
		now:        time.Now,
	}
}

// State returns the current state.
func (e *Exchange) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the failure that ended the exchange, if any.
func (e *Exchange) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// History returns a copy of the recorded transitions.
func (e *Exchange) History() []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Transition(nil), e.history...)
}

// Advance moves the exchange to next.
func (e *Exchange) Advance(next State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advance(next)
}

// Fail moves the exchange to StateFailed and records err.
func (e *Exchange) Fail(err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if terr := e.advance(StateFailed); terr != nil {
		return terr
	}
	e.err = err
	return nil
}

// FailureKind returns the verification kind of the failure, or "".
func (e *Exchange) FailureKind() verification.Kind {
	return verification.KindOf(e.Err())
}

func (e *Exchange) advance(next State) error {
	if !e.state.CanTransition(next) {
		return fmt.Errorf("exchange %s: illegal transition %s -> %s", e.ID, e.state, next)
	}
	e.history = append(e.history, Transition{From: e.state, To: next, At: e.now()})
	e.state = next
	return nil
}
