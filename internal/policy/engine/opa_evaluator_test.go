package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx, "", nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_NextStep_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx, "", nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	cases := []struct {
		count int
		want  NextStep
	}{
		{0, NextStepSetupPasskey},
		{1, NextStepVerifyPasskey},
		{3, NextStepVerifyPasskey},
	}
	for _, tc := range cases {
		got, err := e.NextStep(ctx, Input{UserID: "u1", PasskeyCount: tc.count, Methods: []string{"pwd", "otp"}})
		if err != nil {
			t.Fatalf("NextStep(%d): %v", tc.count, err)
		}
		if got != tc.want {
			t.Errorf("NextStep(%d) = %q, want %q", tc.count, got, tc.want)
		}
		if got != DefaultNextStep(tc.count) {
			t.Errorf("policy and DefaultNextStep disagree for count %d", tc.count)
		}
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	ctx := context.Background()
	// Always require a fresh passkey setup.
	policy := `package signin.next_step

default step = "setup-passkey"
`
	e, err := NewOPAEvaluator(ctx, policy, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	got, err := e.NextStep(ctx, Input{PasskeyCount: 2})
	if err != nil {
		t.Fatalf("NextStep: %v", err)
	}
	if got != NextStepSetupPasskey {
		t.Errorf("NextStep = %q, want %q", got, NextStepSetupPasskey)
	}
}

func TestOPAEvaluator_UnknownStepFallsBack(t *testing.T) {
	ctx := context.Background()
	policy := `package signin.next_step

default step = "skip"
`
	e, err := NewOPAEvaluator(ctx, policy, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	got, err := e.NextStep(ctx, Input{PasskeyCount: 1})
	if err != nil {
		t.Fatalf("NextStep: %v", err)
	}
	if got != NextStepVerifyPasskey {
		t.Errorf("NextStep = %q, want fallback %q", got, NextStepVerifyPasskey)
	}
	if err := e.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck should fail for a policy returning an unknown step")
	}
}

func TestOPAEvaluator_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), "package broken\n\nstep = ", nil); err == nil {
		t.Fatal("NewOPAEvaluator should reject an invalid module")
	}
}

func TestLoadPolicyFile(t *testing.T) {
	got, err := LoadPolicyFile("")
	if err != nil {
		t.Fatalf("LoadPolicyFile(\"\"): %v", err)
	}
	if got != defaultRegoPolicy {
		t.Error("empty path should return the built-in policy")
	}

	path := filepath.Join(t.TempDir(), "next_step.rego")
	if err := os.WriteFile(path, []byte(defaultRegoPolicy), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err = LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("LoadPolicyFile: %v", err)
	}
	if got != defaultRegoPolicy {
		t.Error("policy file content mismatch")
	}

	if _, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Error("LoadPolicyFile should fail for a missing file")
	}
}

func TestDefaultNextStep(t *testing.T) {
	if DefaultNextStep(0) != NextStepSetupPasskey {
		t.Error("zero passkeys should set one up")
	}
	if DefaultNextStep(1) != NextStepVerifyPasskey {
		t.Error("one passkey should verify")
	}
	if NextStep("other").Valid() {
		t.Error("unknown step should be invalid")
	}
}
