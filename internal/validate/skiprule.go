package validate

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// SkipRule is an operator-configurable escape hatch: a boolean expr program
// evaluated against a validation summary, letting deployments silence specific
// categories of warning (or, in test fixtures, specific errors) without forking the
// validator itself. Validate does not consult a SkipRule; the caller evaluates it
// against a result's error and warning counts.
type SkipRule struct {
	program *vm.Program
}

// CompileSkipRule compiles a SKIP_VALIDATION_IF-style expression. The expression is
// evaluated with two variables in scope: ErrorCount and WarningCount.
func CompileSkipRule(exprSrc string) (*SkipRule, error) {
	if exprSrc == "" {
		return nil, nil
	}
	program, err := expr.Compile(exprSrc, expr.Env(skipRuleEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("validate: compiling skip rule: %w", err)
	}
	return &SkipRule{program: program}, nil
}

type skipRuleEnv struct {
	ErrorCount   int
	WarningCount int
}

// Skip evaluates the rule against the given counts. A nil SkipRule never skips.
func (r *SkipRule) Skip(errorCount, warningCount int) (bool, error) {
	if r == nil {
		return false, nil
	}
	out, err := expr.Run(r.program, skipRuleEnv{ErrorCount: errorCount, WarningCount: warningCount})
	if err != nil {
		return false, fmt.Errorf("validate: evaluating skip rule: %w", err)
	}
	skip, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("validate: skip rule did not evaluate to a bool")
	}
	return skip, nil
}
