package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/onurcolak/sms-dispatch-service/internal/domain"
)

// validateConditions rejects unknown operators anywhere in the list.
func validateConditions(conditions []domain.Condition) error {
	for _, c := range conditions {
		if !c.Operator.IsValid() {
			return fmt.Errorf("unsupported condition operator %q on field %q", c.Operator, c.Field)
		}
	}
	return nil
}

// evaluateConditions applies every condition to data with AND semantics. An
// empty list matches. A condition on a field missing from data is false. The
// whole list is validated first, so a bad operator fails every event.
func evaluateConditions(conditions []domain.Condition, data map[string]any) (bool, error) {
	if err := validateConditions(conditions); err != nil {
		return false, err
	}

	for _, c := range conditions {
		value, ok := lookupField(data, c.Field)
		if !ok {
			return false, nil
		}

		matched, err := compare(stringify(value), c.Operator, c.Value)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// lookupField resolves dotted paths such as "caller.country" through nested
// maps.
func lookupField(data map[string]any, field string) (any, bool) {
	if v, ok := data[field]; ok {
		return v, true
	}

	parts := strings.Split(field, ".")
	var current any = data
	for _, p := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[p]; !ok {
			return nil, false
		}
	}
	return current, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// compare orders numerically when both sides parse as numbers, otherwise as
// strings.
func compare(actual string, op domain.Operator, expected string) (bool, error) {
	a, aErr := strconv.ParseFloat(strings.TrimSpace(actual), 64)
	e, eErr := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	numeric := aErr == nil && eErr == nil

	switch op {
	case domain.OpEqual:
		if numeric {
			return a == e, nil
		}
		return actual == expected, nil
	case domain.OpNotEqual:
		if numeric {
			return a != e, nil
		}
		return actual != expected, nil
	case domain.OpGreater:
		if numeric {
			return a > e, nil
		}
		return actual > expected, nil
	case domain.OpLess:
		if numeric {
			return a < e, nil
		}
		return actual < expected, nil
	case domain.OpGreaterEqual:
		if numeric {
			return a >= e, nil
		}
		return actual >= expected, nil
	case domain.OpLessEqual:
		if numeric {
			return a <= e, nil
		}
		return actual <= expected, nil
	case domain.OpContains:
		return strings.Contains(actual, expected), nil
	case domain.OpStartsWith:
		return strings.HasPrefix(actual, expected), nil
	case domain.OpEndsWith:
		return strings.HasSuffix(actual, expected), nil
	default:
		return false, fmt.Errorf("unsupported condition operator %q", op)
	}
}
