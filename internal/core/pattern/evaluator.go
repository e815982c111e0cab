package pattern

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"seqgen/internal/core/apperror"
	"seqgen/internal/core/variable"
)

// Evaluator renders templates against a variable registry. Rendering and
// validation are pure CPU-bound computation; neither holds any lock or
// touches the counter store.
type Evaluator struct {
	registry *variable.Registry
}

// NewEvaluator creates an evaluator over the given registry.
func NewEvaluator(registry *variable.Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Input carries everything a template needs to produce a value.
type Input struct {
	// Counter is the consumed counter value.
	Counter int64

	// Padding is the default COUNTER width when the token gives none.
	Padding int

	// Now is the generation timestamp.
	Now time.Time

	// Context supplies values for custom variables and conditionals.
	Context variable.Context
}

// Validate checks that every variable in the template can resolve against the
// given context: all names are known, parameters are supported, and required
// context keys are present. It must be called before any counter mutation.
func (e *Evaluator) Validate(t *Template, ctx variable.Context) error {
	return e.validateTokens(t.Tokens(), ctx, true)
}

// ValidateStructure checks names and parameters only, ignoring context
// requirements. Used at provisioning time when no generation context exists.
func (e *Evaluator) ValidateStructure(t *Template) error {
	return e.validateTokens(t.Tokens(), nil, false)
}

func (e *Evaluator) validateTokens(tokens []Token, ctx variable.Context, checkContext bool) error {
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenLiteral:
			// nothing to check

		case TokenVariable:
			if err := e.validateVariable(tok, ctx, checkContext); err != nil {
				return err
			}

		case TokenConditional:
			// The conditional name is a context key, not a registry entry.
			// Names and parameters must be valid in both branches, but
			// context requirements apply only to the branch that will
			// render. A required key inside the untaken branch must not
			// block generation.
			thenCtx, elseCtx := false, false
			if checkContext {
				if conditionHolds(tok, ctx) {
					thenCtx = true
				} else {
					elseCtx = true
				}
			}
			if err := e.validateTokens(tok.Then, ctx, thenCtx); err != nil {
				return err
			}
			if err := e.validateTokens(tok.Else, ctx, elseCtx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Evaluator) validateVariable(tok Token, ctx variable.Context, checkContext bool) error {
	if variable.IsBuiltin(tok.Name) {
		return validateBuiltinParam(tok)
	}

	v, ok := e.registry.Get(tok.Name)
	if !ok {
		return apperror.NewUnknownVariable(tok.Name)
	}

	if tok.Param != "" {
		if !variable.SupportsParameters(v) {
			return apperror.NewUnsupportedParameter(tok.Name, tok.Param)
		}
		if !variable.SupportsParameter(v, tok.Param) {
			return apperror.NewUnsupportedParameter(tok.Name, tok.Param)
		}
	}

	if checkContext {
		if result := v.Validate(ctx); !result.Valid {
			return apperror.NewPatternValidation(
				fmt.Sprintf("variable %q cannot resolve: %s", tok.Name, strings.Join(result.Errors, "; "))).
				WithDetail("variable", tok.Name)
		}
	}
	return nil
}

// validateBuiltinParam enforces the parameter rules of built-in tokens:
// COUNTER:N pads to N in [1,20], YEAR:N keeps the last N in [1,4] digits,
// MONTH and DAY accept no parameter.
func validateBuiltinParam(tok Token) error {
	if tok.Param == "" {
		return nil
	}
	switch tok.Name {
	case variable.BuiltinCounter:
		n, err := strconv.Atoi(tok.Param)
		if err != nil || n < 1 || n > 20 {
			return apperror.NewUnsupportedParameter(tok.Name, tok.Param)
		}
	case variable.BuiltinYear:
		n, err := strconv.Atoi(tok.Param)
		if err != nil || n < 1 || n > 4 {
			return apperror.NewUnsupportedParameter(tok.Name, tok.Param)
		}
	default:
		return apperror.NewUnsupportedParameter(tok.Name, tok.Param)
	}
	return nil
}

// Render produces the final identifier string. Callers are expected to have
// validated the template first; resolution errors here surface so the caller
// can fall back to a degraded format (the counter is already consumed).
func (e *Evaluator) Render(t *Template, in Input) (string, error) {
	var b strings.Builder
	if err := e.renderTokens(&b, t.Tokens(), in); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (e *Evaluator) renderTokens(b *strings.Builder, tokens []Token, in Input) error {
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenLiteral:
			b.WriteString(tok.Text)

		case TokenVariable:
			s, err := e.renderVariable(tok, in)
			if err != nil {
				return err
			}
			b.WriteString(s)

		case TokenConditional:
			branch := tok.Else
			if conditionHolds(tok, in.Context) {
				branch = tok.Then
			}
			if err := e.renderTokens(b, branch, in); err != nil {
				return err
			}
		}
	}
	return nil
}

// conditionHolds evaluates the conditional token against the context:
// equality for the ?NAME=VALUE form, truthiness otherwise.
func conditionHolds(tok Token, ctx variable.Context) bool {
	if tok.HasEquals {
		v, ok := ctx.Lookup(tok.Name)
		return ok && v == tok.Equals
	}
	return ctx.Truthy(tok.Name)
}

func (e *Evaluator) renderVariable(tok Token, in Input) (string, error) {
	switch tok.Name {
	case variable.BuiltinCounter:
		width := in.Padding
		if tok.Param != "" {
			width, _ = strconv.Atoi(tok.Param)
		}
		// Counters wider than the padding are emitted in full; truncating
		// would silently corrupt identifiers.
		return fmt.Sprintf("%0*d", width, in.Counter), nil

	case variable.BuiltinYear:
		year := fmt.Sprintf("%04d", in.Now.Year())
		if tok.Param != "" {
			n, _ := strconv.Atoi(tok.Param)
			if n > 0 && n < len(year) {
				year = year[len(year)-n:]
			}
		}
		return year, nil

	case variable.BuiltinMonth:
		return fmt.Sprintf("%02d", int(in.Now.Month())), nil

	case variable.BuiltinDay:
		return fmt.Sprintf("%02d", in.Now.Day()), nil
	}

	v, ok := e.registry.Get(tok.Name)
	if !ok {
		return "", apperror.NewUnknownVariable(tok.Name)
	}

	if tok.Param != "" {
		pv, isParam := v.(variable.ParameterizedVariable)
		if !isParam {
			return "", apperror.NewUnsupportedParameter(tok.Name, tok.Param)
		}
		return pv.ResolveWithParameter(in.Context, in.Now, tok.Param)
	}
	return v.Resolve(in.Context, in.Now)
}
