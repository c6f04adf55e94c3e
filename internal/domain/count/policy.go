package count

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// ApprovalPolicy decides whether a discrepancy qualifies for automatic
// approval during reconciliation. The rule is a CEL expression over the
// item's numbers, configured per deployment, for example:
//
//	discrepancy >= -2 && discrepancy <= 2
//	counted > 0 && discrepancy < 0 && expected - counted <= 1
type ApprovalPolicy struct {
	expr    string
	program cel.Program
}

// NewApprovalPolicy compiles the expression. The expression must evaluate
// to a boolean.
func NewApprovalPolicy(expr string) (*ApprovalPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("expected", cel.IntType),
		cel.Variable("counted", cel.IntType),
		cel.Variable("discrepancy", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create policy environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile approval policy %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("approval policy %q must evaluate to a boolean, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build approval policy: %w", err)
	}
	return &ApprovalPolicy{expr: expr, program: program}, nil
}

// Approve evaluates the policy for one counted item.
func (p *ApprovalPolicy) Approve(expected, counted int) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		"expected":    expected,
		"counted":     counted,
		"discrepancy": counted - expected,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate approval policy %q: %w", p.expr, err)
	}
	approved, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("approval policy %q returned %T, want bool", p.expr, out.Value())
	}
	return approved, nil
}

// String returns the source expression.
func (p *ApprovalPolicy) String() string { return p.expr }
