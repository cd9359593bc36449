// Package gate evaluates CEL rules over an inspection so CI can pass or fail
// a policy change.
package gate

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/lockaudit/lockaudit/internal/models"
)

// Engine is the gate evaluation engine using CEL
type Engine struct {
	env *cel.Env
}

func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// Evaluate runs every rule against input, in config order
func (e *Engine) Evaluate(config *models.GateConfig, input Input) []models.GateResult {
	results := make([]models.GateResult, 0, len(config.Rules))
	m := input.ToMap()
	for _, rule := range config.Rules {
		results = append(results, e.evaluateRule(rule, m))
	}
	return results
}

// evaluateRule never errors; compile and runtime problems fail the rule
func (e *Engine) evaluateRule(rule models.GateRule, input map[string]any) models.GateResult {
	fail := func(msg string) models.GateResult {
		return models.GateResult{
			RuleName:    rule.Name,
			Passed:      false,
			Severity:    rule.EffectiveSeverity(),
			FailureMsg:  msg,
			ControlRefs: rule.ControlRefs,
		}
	}

	ast, issues := e.env.Compile(rule.Expr)
	if issues != nil && issues.Err() != nil {
		return fail(fmt.Sprintf("CEL compile error: %v", issues.Err()))
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return fail(fmt.Sprintf("CEL program error: %v", err))
	}

	out, _, err := prg.Eval(map[string]any{
		"input": input,
	})
	if err != nil {
		return fail(fmt.Sprintf("CEL evaluation error: %v", err))
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return fail(fmt.Sprintf("Rule expression must return boolean, got %T", out.Value()))
	}

	result := models.GateResult{
		RuleName:    rule.Name,
		Passed:      passed,
		Severity:    rule.EffectiveSeverity(),
		ControlRefs: rule.ControlRefs,
	}
	if !passed {
		result.FailureMsg = rule.FailureMsg
	}
	return result
}

// CompileAndValidate reports every rule that does not compile
func (e *Engine) CompileAndValidate(config *models.GateConfig) error {
	var errs []string

	for _, rule := range config.Rules {
		_, issues := e.env.Compile(rule.Expr)
		if issues != nil && issues.Err() != nil {
			errs = append(errs, fmt.Sprintf("rule %q: %v", rule.Name, issues.Err()))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("gate validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return nil
}

// Status of a gate run
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Outcome folds rule results under the config's mode. In strict mode
// (the default) warn-severity failures fail the gate as well.
type Outcome struct {
	Status  Status
	Results []models.GateResult
	Reasons []string
}

// Passed is true for pass and warn
func (o Outcome) Passed() bool {
	return o.Status != StatusFail
}

// Failed returns the rules that did not pass
func (o Outcome) Failed() []models.GateResult {
	var out []models.GateResult
	for _, r := range o.Results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Decide computes the gate status
func Decide(config *models.GateConfig, results []models.GateResult) Outcome {
	o := Outcome{Status: StatusPass, Results: results}
	hasErrors, hasWarnings := false, false
	for _, r := range results {
		if r.Passed {
			continue
		}
		o.Reasons = append(o.Reasons, fmt.Sprintf("%s: %s", r.RuleName, r.FailureMsg))
		if r.Severity == models.GateSeverityWarn {
			hasWarnings = true
		} else {
			hasErrors = true
		}
	}

	switch {
	case hasErrors:
		o.Status = StatusFail
	case hasWarnings && config.Mode == models.GateModeWarn:
		o.Status = StatusWarn
	case hasWarnings:
		o.Status = StatusFail
	}
	return o
}

// Run compiles, evaluates and decides in one call
func (e *Engine) Run(config *models.GateConfig, input Input) (Outcome, error) {
	if err := e.CompileAndValidate(config); err != nil {
		return Outcome{Status: StatusFail}, err
	}
	return Decide(config, e.Evaluate(config, input)), nil
}
