// Package pattern implements parsing and evaluation of identifier patterns.
// A pattern mixes literal runs with variable tokens delimited by braces:
//
//	INV-{YEAR}-{COUNTER:5}                  -> INV-2025-00042
//	{?DEPARTMENT?{DEPARTMENT:ABBREV}:GEN}   -> SLS or GEN
//
// Parsing is pure and deterministic: the same pattern string always yields a
// structurally equal template, which makes templates safe to cache.
package pattern

import (
	"strings"
	"sync"

	"seqgen/internal/core/apperror"
)

// TokenKind discriminates template tokens.
type TokenKind int

const (
	// TokenLiteral is a verbatim run of characters.
	TokenLiteral TokenKind = iota
	// TokenVariable is a simple substitution: NAME or NAME:PARAM.
	TokenVariable
	// TokenConditional is ?NAME?THEN:ELSE or ?NAME=VALUE?THEN:ELSE.
	TokenConditional
)

// Token is one parsed segment of a pattern.
type Token struct {
	Kind TokenKind

	// Text is the literal content (TokenLiteral only).
	Text string

	// Name is the variable name or conditional context key, uppercased.
	Name string

	// Param is the optional variable parameter (TokenVariable only).
	Param string

	// Equals holds the comparison value for the ?NAME=VALUE form.
	Equals    string
	HasEquals bool

	// Then and Else are the conditional branches. They may contain variable
	// tokens but not further conditionals (single-level nesting only).
	Then []Token
	Else []Token
}

// Template is an immutable parsed pattern.
type Template struct {
	raw    string
	tokens []Token
}

// Raw returns the original pattern string.
func (t *Template) Raw() string { return t.raw }

// Tokens returns the parsed token list.
func (t *Template) Tokens() []Token { return t.tokens }

// Parse tokenizes a pattern string. It fails with a PATTERN_SYNTAX error on
// unmatched braces, empty variable names, or malformed conditionals.
func Parse(raw string) (*Template, error) {
	tokens, err := parseSegment(raw, 0, true)
	if err != nil {
		return nil, err
	}
	return &Template{raw: raw, tokens: tokens}, nil
}

var templateCache sync.Map // pattern string -> *Template

// ParseCached parses with a process-wide cache. Safe because parsing is
// deterministic and templates are immutable.
func ParseCached(raw string) (*Template, error) {
	if cached, ok := templateCache.Load(raw); ok {
		return cached.(*Template), nil
	}
	tpl, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	actual, _ := templateCache.LoadOrStore(raw, tpl)
	return actual.(*Template), nil
}

// parseSegment tokenizes s. base is the offset of s within the full pattern,
// used for error positions. Conditionals are rejected when allowConditional
// is false (inside conditional branches).
func parseSegment(s string, base int, allowConditional bool) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(s) {
		switch s[i] {
		case '{':
			end, ok := matchingBrace(s, i)
			if !ok {
				return nil, apperror.NewPatternSyntax("unmatched '{'", base+i)
			}
			tok, err := parseToken(s[i+1:end], base+i+1, allowConditional)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = end + 1
		case '}':
			return nil, apperror.NewPatternSyntax("unmatched '}'", base+i)
		default:
			j := i
			for j < len(s) && s[j] != '{' && s[j] != '}' {
				j++
			}
			tokens = append(tokens, Token{Kind: TokenLiteral, Text: s[i:j]})
			i = j
		}
	}
	return tokens, nil
}

// matchingBrace returns the index of the brace closing s[open].
func matchingBrace(s string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// parseToken parses the content between one brace pair.
func parseToken(inner string, pos int, allowConditional bool) (Token, error) {
	if strings.HasPrefix(inner, "?") {
		if !allowConditional {
			return Token{}, apperror.NewPatternSyntax("nested conditionals are not supported", pos)
		}
		return parseConditional(inner, pos)
	}

	if strings.ContainsAny(inner, "{}") {
		return Token{}, apperror.NewPatternSyntax("unexpected brace in variable token", pos)
	}

	name, param, _ := strings.Cut(inner, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return Token{}, apperror.NewPatternSyntax("empty variable name", pos)
	}

	return Token{
		Kind:  TokenVariable,
		Name:  strings.ToUpper(name),
		Param: strings.TrimSpace(param),
	}, nil
}

// parseConditional parses ?NAME[=VALUE]?THEN:ELSE. The branches may contain
// variable tokens, so the THEN/ELSE separator is the first colon outside
// braces.
func parseConditional(inner string, pos int) (Token, error) {
	body := inner[1:] // leading '?'

	sep := strings.IndexByte(body, '?')
	if sep < 0 {
		return Token{}, apperror.NewPatternSyntax("conditional missing '?' separator", pos)
	}

	cond := strings.TrimSpace(body[:sep])
	branches := body[sep+1:]

	tok := Token{Kind: TokenConditional}
	if name, value, found := strings.Cut(cond, "="); found {
		tok.Name = strings.ToUpper(strings.TrimSpace(name))
		tok.Equals = value
		tok.HasEquals = true
	} else {
		tok.Name = strings.ToUpper(cond)
	}
	if tok.Name == "" {
		return Token{}, apperror.NewPatternSyntax("empty variable name", pos)
	}

	colon := topLevelColon(branches)
	if colon < 0 {
		return Token{}, apperror.NewPatternSyntax("conditional missing ':' separator", pos)
	}

	branchBase := pos + 1 + sep + 1
	thenTokens, err := parseSegment(branches[:colon], branchBase, false)
	if err != nil {
		return Token{}, err
	}
	elseTokens, err := parseSegment(branches[colon+1:], branchBase+colon+1, false)
	if err != nil {
		return Token{}, err
	}

	tok.Then = thenTokens
	tok.Else = elseTokens
	return tok, nil
}

// topLevelColon finds the first ':' not enclosed in braces, or -1.
func topLevelColon(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
