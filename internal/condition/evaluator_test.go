package condition_test

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/condition"
)

func eval(t *testing.T, conditions string, payload map[string]any) bool {
	t.Helper()
	e := condition.NewEvaluator(zap.NewNop())
	return e.Evaluate(json.RawMessage(conditions), payload)
}

func TestEvaluate_EmptyOrAbsentConditions(t *testing.T) {
	e := condition.NewEvaluator(zap.NewNop())

	if !e.Evaluate(nil, map[string]any{"x": 1}) {
		t.Fatal("absent conditions should evaluate to true")
	}
	if !e.Evaluate(json.RawMessage(`[]`), map[string]any{"x": 1}) {
		t.Fatal("empty conditions should evaluate to true")
	}
}

func TestEvaluate_MalformedConditionsFailOpen(t *testing.T) {
	if !eval(t, `{not valid json`, map[string]any{}) {
		t.Fatal("malformed conditions should evaluate to true (fail-open)")
	}
	if !eval(t, `"a string, not a list"`, map[string]any{}) {
		t.Fatal("wrong-shaped conditions should evaluate to true (fail-open)")
	}
}

func TestEvaluate_GreaterThan(t *testing.T) {
	conditions := `[{"field":"amount","operator":"gt","value":1000}]`

	if !eval(t, conditions, map[string]any{"amount": 1500.0}) {
		t.Fatal("amount=1500 should pass gt 1000")
	}
	if eval(t, conditions, map[string]any{"amount": 500.0}) {
		t.Fatal("amount=500 should fail gt 1000")
	}
	if eval(t, conditions, map[string]any{"amount": 1000.0}) {
		t.Fatal("amount=1000 should fail gt 1000 (strict)")
	}
}

func TestEvaluate_Operators(t *testing.T) {
	payload := map[string]any{
		"status": "approved",
		"score":  42.0,
		"nested": map[string]any{"city": "Istanbul"},
	}

	tests := []struct {
		name       string
		conditions string
		want       bool
	}{
		{"eq match", `[{"field":"status","operator":"eq","value":"approved"}]`, true},
		{"eq mismatch", `[{"field":"status","operator":"eq","value":"rejected"}]`, false},
		{"ne match", `[{"field":"status","operator":"ne","value":"rejected"}]`, true},
		{"ne mismatch", `[{"field":"status","operator":"ne","value":"approved"}]`, false},
		{"lt pass", `[{"field":"score","operator":"lt","value":100}]`, true},
		{"lt fail", `[{"field":"score","operator":"lt","value":10}]`, false},
		{"contains pass", `[{"field":"status","operator":"contains","value":"rov"}]`, true},
		{"contains fail", `[{"field":"status","operator":"contains","value":"xyz"}]`, false},
		{"contains non-string resolved", `[{"field":"score","operator":"contains","value":"4"}]`, false},
		{"dot path", `[{"field":"nested.city","operator":"eq","value":"Istanbul"}]`, true},
		{"dot path absent segment", `[{"field":"nested.country","operator":"eq","value":"TR"}]`, false},
		{"absent field eq", `[{"field":"missing","operator":"eq","value":"x"}]`, false},
		{"absent field ne", `[{"field":"missing","operator":"ne","value":"x"}]`, true},
		{"unknown operator fail-open", `[{"field":"status","operator":"regex","value":".*"}]`, true},
		{"implicit AND all pass", `[
			{"field":"status","operator":"eq","value":"approved"},
			{"field":"score","operator":"gt","value":40}]`, true},
		{"implicit AND one fails", `[
			{"field":"status","operator":"eq","value":"approved"},
			{"field":"score","operator":"gt","value":50}]`, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := eval(t, tc.conditions, payload); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEvaluate_NumericTypesCompareEqual(t *testing.T) {
	// JSON decoding yields float64, but payloads built in Go may carry ints.
	conditions := `[{"field":"count","operator":"eq","value":3}]`
	if !eval(t, conditions, map[string]any{"count": 3}) {
		t.Fatal("int payload value should equal numeric condition value")
	}
}
