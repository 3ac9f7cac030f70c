package profiles

import (
	"fmt"
	"strings"
)

// ExprKind tags the supported derived-field expression forms.
type ExprKind int

const (
	// ExprContains is true when any source column contains the needle,
	// case-insensitive.
	ExprContains ExprKind = iota
)

// Expr is a parsed derived-field expression. Unsupported forms fail at
// config-load time rather than silently producing empty values.
type Expr struct {
	Kind   ExprKind
	Needle string
}

// ParseExpr parses an expression text such as `contains(Reinvest)`.
// The legacy two-argument spelling `contains(Description, Reinvest)` is
// accepted; the first argument is ignored since the match scans every
// source column.
func ParseExpr(raw string) (Expr, error) {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "contains(") || !strings.HasSuffix(text, ")") {
		return Expr{}, fmt.Errorf("unsupported expression %q", raw)
	}
	inner := text[len("contains(") : len(text)-1]
	if idx := strings.LastIndex(inner, ","); idx >= 0 {
		inner = inner[idx+1:]
	}
	needle := strings.Trim(strings.TrimSpace(inner), `'"`)
	if needle == "" {
		return Expr{}, fmt.Errorf("contains() needs a needle in %q", raw)
	}
	return Expr{Kind: ExprContains, Needle: needle}, nil
}

// Eval evaluates the expression against one source row.
func (e Expr) Eval(source map[string]string) bool {
	switch e.Kind {
	case ExprContains:
		needle := strings.ToLower(e.Needle)
		for _, v := range source {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
	}
	return false
}
