package condition

// Evaluator evaluates rule conditions against an event payload. It is
// fail-safe by contract: it never panics and never returns an error to the
// caller. A malformed expression, a missing field, or a type mismatch all
// resolve to false rather than aborting rule evaluation for the rest of the
// workflow.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// ValidateExpression is the compile-time check used by the administrative
// surface before a rule condition is persisted. Unlike Evaluate, it does
// surface the parse error so an operator gets real feedback.
func (e *Evaluator) ValidateExpression(raw string) error {
	if raw == "" {
		return nil
	}
	_, err := Parse(raw)
	return err
}

// Evaluate parses and runs raw against payload. An empty condition always
// matches (CatchAll). Any failure - parse error, unresolved field path, a
// type mismatch between the literal and the resolved value - yields false.
func (e *Evaluator) Evaluate(raw string, payload map[string]interface{}) bool {
	defer func() { recover() }() //nolint:errcheck // fail-safe: never let a bad expression take the engine down

	if raw == "" {
		return true
	}

	expr, err := Parse(raw)
	if err != nil {
		return false
	}

	return e.EvaluateExpr(expr, payload)
}

// EvaluateExpr runs an already-parsed Expression. Exposed separately so
// callers that compile rule conditions once (e.g. on workflow load) can
// re-evaluate cheaply per event without re-parsing.
func (e *Evaluator) EvaluateExpr(expr Expression, payload map[string]interface{}) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()

	if expr.CatchAll || expr.Compare == nil {
		return expr.CatchAll
	}

	value, ok := resolveField(payload, expr.Compare.FieldPath)
	if !ok {
		return false
	}

	switch expr.Compare.Op {
	case OpEqual:
		return compareEqual(value, expr.Compare.Literal)
	case OpNotEqual:
		return !compareEqual(value, expr.Compare.Literal)
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		return compareOrdering(value, expr.Compare.Literal, expr.Compare.Op)
	default:
		return false
	}
}

func resolveField(payload map[string]interface{}, path string) (interface{}, bool) {
	if payload == nil {
		return nil, false
	}

	parts := splitPath(path)
	var current interface{} = payload
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

func compareEqual(value interface{}, literal Literal) bool {
	switch literal.Kind {
	case LiteralString:
		str, ok := value.(string)
		return ok && str == literal.Str
	case LiteralBool:
		b, ok := value.(bool)
		return ok && b == literal.Bool
	case LiteralInt:
		num, ok := toFloat(value)
		return ok && num == float64(literal.Int)
	case LiteralDecimal:
		num, ok := toFloat(value)
		return ok && num == literal.Decimal
	default:
		return false
	}
}

func compareOrdering(value interface{}, literal Literal, op Operator) bool {
	num, ok := toFloat(value)
	if !ok {
		return false
	}

	var litNum float64
	switch literal.Kind {
	case LiteralInt:
		litNum = float64(literal.Int)
	case LiteralDecimal:
		litNum = literal.Decimal
	default:
		return false
	}

	switch op {
	case OpGreaterThan:
		return num > litNum
	case OpGreaterOrEqual:
		return num >= litNum
	case OpLessThan:
		return num < litNum
	case OpLessOrEqual:
		return num <= litNum
	default:
		return false
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
