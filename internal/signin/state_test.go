package signin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/policy/engine"
)

func TestState_Transitions(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateAnonymous, StateTwoFactorPending, true},
		{StateAnonymous, StatePasskeySetupPending, false},
		{StateTwoFactorPending, StatePasskeySetupPending, true},
		{StateTwoFactorPending, StatePasskeyVerificationPending, true},
		{StateTwoFactorPending, StateAuthenticated, false},
		{StatePasskeySetupPending, StateAuthenticated, true},
		{StatePasskeyVerificationPending, StateAuthenticated, true},
		{StatePasskeyVerificationPending, StateTwoFactorPending, false},
		{StateAuthenticated, StateAnonymous, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransition(t *testing.T) {
	assert.NoError(t, transition(StateAnonymous, StateAuthenticated))
	assert.NoError(t, transition(StatePasskeyVerificationPending, StateAuthenticated))
	assert.Error(t, transition(StateTwoFactorPending, StateAuthenticated))
	assert.Error(t, transition(State("forged"), StateAuthenticated))
}

func TestState_Valid(t *testing.T) {
	assert.True(t, StateTwoFactorPending.Valid())
	assert.False(t, State("password_verified").Valid())
	assert.False(t, State("").Valid())
}

func TestStateForStep(t *testing.T) {
	assert.Equal(t, StatePasskeyVerificationPending, stateForStep(engine.NextStepVerifyPasskey))
	assert.Equal(t, StatePasskeySetupPending, stateForStep(engine.NextStepSetupPasskey))
}
