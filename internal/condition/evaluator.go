// Package condition implements the predicate engine that guards hooks.
//
// Every decision here is fail-open: an empty, absent, or malformed condition
// list evaluates to true, and so does an unrecognized operator. The pipeline
// favors delivering a notification over silently dropping one.
package condition

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/notifyhub/signal-pipeline/internal/domain"
)

// Evaluator applies hook conditions to signal payloads. It holds only a
// logger; evaluation itself is a pure function of its inputs.
type Evaluator struct {
	logger *zap.Logger
}

func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate returns true when every condition in raw passes against payload
// (implicit AND).
func (e *Evaluator) Evaluate(raw json.RawMessage, payload map[string]any) bool {
	if len(raw) == 0 {
		return true
	}

	var conditions []domain.Condition
	if err := json.Unmarshal(raw, &conditions); err != nil {
		e.logger.Warn("malformed hook conditions, processing anyway", zap.Error(err))
		return true
	}

	for _, c := range conditions {
		if !e.evaluateOne(c, payload) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(c domain.Condition, payload map[string]any) bool {
	resolved, found := resolvePath(payload, c.Field)

	switch c.Operator {
	case domain.OpEq:
		return found && valuesEqual(resolved, c.Value)
	case domain.OpNe:
		return !found || !valuesEqual(resolved, c.Value)
	case domain.OpGt:
		a, aok := toFloat(resolved)
		b, bok := toFloat(c.Value)
		return found && aok && bok && a > b
	case domain.OpLt:
		a, aok := toFloat(resolved)
		b, bok := toFloat(c.Value)
		return found && aok && bok && a < b
	case domain.OpContains:
		// contains only applies to string values
		s, sok := resolved.(string)
		sub, subok := c.Value.(string)
		return found && sok && subok && strings.Contains(s, sub)
	default:
		e.logger.Warn("unrecognized condition operator, processing anyway",
			zap.String("operator", c.Operator),
			zap.String("field", c.Field))
		return true
	}
}

// resolvePath traverses payload through each dot-separated segment of field.
// An absent segment yields (nil, false).
func resolvePath(payload map[string]any, field string) (any, bool) {
	if field == "" {
		return nil, false
	}

	var current any = payload
	for _, segment := range strings.Split(field, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// valuesEqual compares payload values against condition values. Numbers are
// compared numerically regardless of their decoded Go type, so a payload
// int matches a condition float and vice versa.
func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
