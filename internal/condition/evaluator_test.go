package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "empty is catch-all", expr: "", wantError: false},
		{name: "string equality", expr: `status == "active"`, wantError: false},
		{name: "payload-prefixed field", expr: `payload.status == "active"`, wantError: false},
		{name: "not equal", expr: `status != "active"`, wantError: false},
		{name: "greater or equal before greater", expr: `amount >= 100`, wantError: false},
		{name: "less or equal before less", expr: `amount <= 100.5`, wantError: false},
		{name: "boolean literal", expr: `enabled == true`, wantError: false},
		{name: "mixed-case boolean literal", expr: `enabled == True`, wantError: false},
		{name: "single-quoted string", expr: `plan == 'enterprise'`, wantError: false},
		{name: "no operator", expr: `status`, wantError: true},
		{name: "empty field path", expr: `== "active"`, wantError: true},
		{name: "bare word falls back to raw string", expr: `status == active`, wantError: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParse_OperatorLongestMatchFirst(t *testing.T) {
	expr, err := Parse(`amount != 5`)
	require.NoError(t, err)
	require.NotNil(t, expr.Compare)
	assert.Equal(t, OpNotEqual, expr.Compare.Op)

	expr, err = Parse(`amount >= 5`)
	require.NoError(t, err)
	require.NotNil(t, expr.Compare)
	assert.Equal(t, OpGreaterOrEqual, expr.Compare.Op)

	expr, err = Parse(`amount > 5`)
	require.NoError(t, err)
	require.NotNil(t, expr.Compare)
	assert.Equal(t, OpGreaterThan, expr.Compare.Op)
}

func TestEvaluate(t *testing.T) {
	eval := NewEvaluator()
	payload := map[string]interface{}{
		"status": "active",
		"amount": 150.0,
		"nested": map[string]interface{}{
			"flag": true,
		},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "string equality true", expr: `status == "active"`, want: true},
		{name: "string equality false", expr: `status == "inactive"`, want: false},
		{name: "single-quoted string equality true", expr: `status == 'active'`, want: true},
		{name: "not equal true", expr: `status != "inactive"`, want: true},
		{name: "mixed-case boolean literal", expr: `nested.flag == True`, want: true},
		{name: "unquoted literal compares as raw string", expr: `status == active`, want: true},
		{name: "numeric greater true", expr: `amount > 100`, want: true},
		{name: "numeric greater false", expr: `amount > 200`, want: false},
		{name: "numeric greater-or-equal boundary", expr: `amount >= 150`, want: true},
		{name: "nested field", expr: `nested.flag == true`, want: true},
		{name: "missing field is false", expr: `missing == "x"`, want: false},
		{name: "type mismatch is false", expr: `status > 10`, want: false},
		{name: "malformed expression is false", expr: `not a condition`, want: false},
		{name: "empty condition is catch-all", expr: ``, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.Evaluate(tt.expr, payload))
		})
	}
}

func TestEvaluate_NeverPanics(t *testing.T) {
	eval := NewEvaluator()
	assert.NotPanics(t, func() {
		eval.Evaluate(`a.b.c == "x"`, nil)
	})
}
