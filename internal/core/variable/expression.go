package variable

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Expression is a custom variable backed by a CEL expression evaluated over
// the generation context. The expression sees the context as a map named
// `ctx`, e.g.
//
//	ctx["region"] == "EU" ? "E" : "W"
//
// Expressions are compiled once at registration time, so a malformed
// expression fails at startup rather than during generation.
type Expression struct {
	name    string
	source  string
	program cel.Program
}

// NewExpression compiles src and returns a variable registered under name.
func NewExpression(name, src string) (*Expression, error) {
	env, err := cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}

	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression for %s: %w", name, issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program for %s: %w", name, err)
	}

	return &Expression{
		name:    strings.ToUpper(strings.TrimSpace(name)),
		source:  src,
		program: program,
	}, nil
}

// Name implements CustomVariable.
func (e *Expression) Name() string { return e.name }

// Source returns the original expression text.
func (e *Expression) Source() string { return e.source }

// Resolve implements CustomVariable by evaluating the expression.
func (e *Expression) Resolve(ctx Context, _ time.Time) (string, error) {
	activation := map[string]any{"ctx": map[string]string(ctx)}
	if ctx == nil {
		activation["ctx"] = map[string]string{}
	}

	out, _, err := e.program.Eval(activation)
	if err != nil {
		return "", fmt.Errorf("evaluate %s: %w", e.name, err)
	}

	if s, ok := out.Value().(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", out.Value()), nil
}

// Validate implements CustomVariable. Compilation already happened in
// NewExpression; evaluation errors (e.g. missing map keys) surface at render
// time where the service falls back to the degraded format.
func (e *Expression) Validate(Context) ValidationResult {
	return OK()
}

var _ CustomVariable = (*Expression)(nil)
