package signin

import (
	"fmt"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/policy/engine"
)

// State is where a sign-in journey stands. It travels in the continuation token.
type State string

const (
	StateAnonymous                  State = "anonymous"
	StateTwoFactorPending           State = "two_factor_pending"
	StatePasskeySetupPending        State = "passkey_setup_pending"
	StatePasskeyVerificationPending State = "passkey_verification_pending"
	StateAuthenticated              State = "authenticated"
)

// NextStepVerifyCode tells the client to submit the emailed code.
const NextStepVerifyCode = "verify-code"

var transitions = map[State][]State{
	StateAnonymous:                  {StateTwoFactorPending, StateAuthenticated},
	StateTwoFactorPending:           {StateTwoFactorPending, StatePasskeySetupPending, StatePasskeyVerificationPending},
	StatePasskeySetupPending:        {StateAuthenticated},
	StatePasskeyVerificationPending: {StateAuthenticated},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateAnonymous, StateTwoFactorPending, StatePasskeySetupPending,
		StatePasskeyVerificationPending, StateAuthenticated:
		return true
	}
	return false
}

// CanTransition reports whether the journey may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

func transition(from, to State) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("signin: illegal transition %s -> %s", from, to)
	}
	return nil
}

// stateForStep maps the next-step decision after the code to the pending passkey state.
func stateForStep(step engine.NextStep) State {
	if step == engine.NextStepVerifyPasskey {
		return StatePasskeyVerificationPending
	}
	return StatePasskeySetupPending
}
