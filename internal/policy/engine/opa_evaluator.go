package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"
)

const nextStepQuery = "data.signin.next_step.step"

// Default Rego policy matching DefaultNextStep.
const defaultRegoPolicy = `package signin.next_step

default step = "setup-passkey"

step = "verify-passkey" if {
	input.passkey_count >= 1
}
`

// OPAEvaluator decides the next sign-in step with an OPA Rego policy.
// Evaluation errors and unknown results fall back to DefaultNextStep.
type OPAEvaluator struct {
	query  rego.PreparedEvalQuery
	logger *zap.Logger
}

// NewOPAEvaluator compiles policy (the built-in policy when empty) and prepares the next-step query.
// A custom policy must define data.signin.next_step.step.
func NewOPAEvaluator(ctx context.Context, policy string, logger *zap.Logger) (*OPAEvaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == "" {
		policy = defaultRegoPolicy
	}
	query, err := prepare(ctx, policy)
	if err != nil {
		return nil, err
	}
	return &OPAEvaluator{query: query, logger: logger}, nil
}

// LoadPolicyFile reads a Rego module from path. An empty path returns the built-in policy.
func LoadPolicyFile(path string) (string, error) {
	if path == "" {
		return defaultRegoPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read policy file: %w", err)
	}
	return string(b), nil
}

func prepare(ctx context.Context, policy string) (rego.PreparedEvalQuery, error) {
	compiler, err := ast.CompileModules(map[string]string{"next_step.rego": policy})
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compile policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(nextStepQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("prepare policy: %w", err)
	}
	return q, nil
}

// HealthCheck verifies that the prepared query evaluates to a known step for a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	step, err := e.eval(ctx, Input{})
	if err != nil {
		return err
	}
	if !step.Valid() {
		return fmt.Errorf("policy returned unknown step %q", step)
	}
	return nil
}

// NextStep evaluates the policy for in.
func (e *OPAEvaluator) NextStep(ctx context.Context, in Input) (NextStep, error) {
	step, err := e.eval(ctx, in)
	if err != nil {
		e.logger.Warn("policy: evaluation failed, using default", zap.Error(err))
		return DefaultNextStep(in.PasskeyCount), nil
	}
	if !step.Valid() {
		e.logger.Warn("policy: unknown step, using default", zap.String("step", string(step)))
		return DefaultNextStep(in.PasskeyCount), nil
	}
	return step, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, in Input) (NextStep, error) {
	methods := make([]interface{}, 0, len(in.Methods))
	for _, m := range in.Methods {
		methods = append(methods, m)
	}
	input := map[string]interface{}{
		"user_id":       in.UserID,
		"passkey_count": in.PasskeyCount,
		"methods":       methods,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("policy query returned no result")
	}
	s, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("policy result is %T, want string", rs[0].Expressions[0].Value)
	}
	return NextStep(s), nil
}
