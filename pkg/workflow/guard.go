package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type (
	// GuardOp is the comparison operator of a guard expression
	GuardOp string

	// Guard is a step's flow-control condition, parsed once at workflow
	// load time. Only equality and inequality over string-coerced
	// scalars are supported
	Guard struct {
		Key   string
		Op    GuardOp
		Value string
	}
)

const (
	OpEqual    GuardOp = "=="
	OpNotEqual GuardOp = "!="
)

// ErrInvalidGuard is raised when a guard expression contains neither
// comparison operator
var ErrInvalidGuard = errors.New("invalid guard expression")

// ParseGuard parses a "key == value" or "key != value" expression. An
// empty expression yields a nil Guard. Values may be quoted with single
// or double quotes
func ParseGuard(expr string) (*Guard, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	// != must be tested before == so an inequality is never split on
	// the wrong operator
	op := OpNotEqual
	key, value, found := strings.Cut(expr, string(OpNotEqual))
	if !found {
		op = OpEqual
		key, value, found = strings.Cut(expr, string(OpEqual))
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGuard, expr)
	}

	return &Guard{
		Key:   strings.TrimSpace(key),
		Op:    op,
		Value: strings.Trim(strings.TrimSpace(value), `'"`),
	}, nil
}

// ShouldSkip reports whether the comparison against the given
// flow-control state says the step must be skipped. Equality guards
// skip when the actual value differs, inequality guards skip when it
// matches. A missing key compares as the empty string
func (g *Guard) ShouldSkip(flow map[string]any) bool {
	if g == nil {
		return false
	}
	actual := coerceString(flow[g.Key])
	if g.Op == OpNotEqual {
		return actual == g.Value
	}
	return actual != g.Value
}

func (g *Guard) String() string {
	if g == nil {
		return ""
	}
	return fmt.Sprintf("%s %s %s", g.Key, g.Op, g.Value)
}

func coerceString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
