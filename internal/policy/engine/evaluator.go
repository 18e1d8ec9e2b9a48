package engine

import "context"

// NextStep is the step a user is sent to after the email code succeeds.
type NextStep string

const (
	NextStepSetupPasskey  NextStep = "setup-passkey"
	NextStepVerifyPasskey NextStep = "verify-passkey"
)

// Valid reports whether s is a known step.
func (s NextStep) Valid() bool {
	return s == NextStepSetupPasskey || s == NextStepVerifyPasskey
}

// Input is what the next-step policy sees about the user.
type Input struct {
	UserID       string
	PasskeyCount int
	// Methods are the factors already satisfied in this sign-in (e.g. pwd, otp).
	Methods []string
}

// Evaluator decides the post-code step for a user.
type Evaluator interface {
	NextStep(ctx context.Context, in Input) (NextStep, error)
}

// DefaultNextStep is the built-in rule: users with at least one passkey verify it, the rest set one up.
func DefaultNextStep(passkeyCount int) NextStep {
	if passkeyCount >= 1 {
		return NextStepVerifyPasskey
	}
	return NextStepSetupPasskey
}
