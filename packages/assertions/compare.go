package assertions

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Check applies op to actual and expected. It returns nil on success and an
// *AssertionError naming path otherwise.
func Check(path string, actual any, op Operator, expected any) error {
	passed, msg := Compare(actual, op, expected)
	if passed {
		return nil
	}

	err := &AssertionError{
		Path:     path,
		Operator: op,
		Expected: expected,
		Actual:   actual,
	}
	if op == OpEquals {
		err.Diff = Diff(expected, actual)
	} else {
		err.Message = msg
	}
	return err
}

// Compare evaluates a single operator and explains a failure.
func Compare(actual any, op Operator, expected any) (bool, string) {
	switch op {
	case OpEquals:
		return equals(actual, expected)
	case OpNotEquals:
		passed, _ := equals(actual, expected)
		return invert(passed, fmt.Sprintf("expected not to equal %s", Describe(expected)))
	case OpGreaterThan:
		return compareNumeric(actual, expected, ">")
	case OpGreaterOrEqual:
		return compareNumeric(actual, expected, ">=")
	case OpLessThan:
		return compareNumeric(actual, expected, "<")
	case OpLessOrEqual:
		return compareNumeric(actual, expected, "<=")
	case OpContains:
		return contains(actual, expected)
	case OpNotContains:
		passed, _ := contains(actual, expected)
		return invert(passed, fmt.Sprintf("expected not to contain %v", expected))
	case OpStartsWith:
		return startsWith(actual, expected)
	case OpEndsWith:
		return endsWith(actual, expected)
	case OpMatches:
		return matches(actual, expected)
	case OpExists:
		return exists(actual)
	case OpNotExists:
		passed, _ := exists(actual)
		return invert(passed, "expected not to exist")
	case OpLength:
		return length(actual, expected)
	case OpIncludes:
		return includes(actual, expected)
	case OpNotIncludes:
		passed, _ := includes(actual, expected)
		return invert(passed, fmt.Sprintf("expected not to include %v", expected))
	case OpIn:
		return in(actual, expected)
	case OpNotIn:
		passed, _ := in(actual, expected)
		return invert(passed, fmt.Sprintf("expected not to be in %v", expected))
	case OpType:
		return typeCheck(actual, expected)
	case OpEach:
		return each(actual, expected)
	case OpSchema:
		if err := ValidateSchema(actual, expected); err != nil {
			return false, err.Error()
		}
		return true, ""
	default:
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
}

func invert(passed bool, msg string) (bool, string) {
	if passed {
		return false, msg
	}
	return true, ""
}

func equals(actual, expected any) (bool, string) {
	if Equal(expected, actual) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s, got %s", Describe(expected), Describe(actual))
}

func compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := parseNumber(actual)
	expectedNum, eOk := parseNumber(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

// parseNumber also accepts numeric strings, so header values such as
// Content-Length can be ordered.
func parseNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return toFloat64(v)
}

func contains(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.Contains(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func startsWith(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.HasPrefix(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func endsWith(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.HasSuffix(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
}

func matches(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	pattern := fmt.Sprintf("%v", expected)

	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}

	if re.MatchString(actualStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

func exists(actual any) (bool, string) {
	if actual == nil {
		return false, "expected to exist"
	}
	return true, ""
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		if actual == nil {
			return -1
		}
		rv := reflect.ValueOf(actual)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
			return rv.Len()
		default:
			return -1
		}
	}
}

func length(actual, expected any) (bool, string) {
	expectedLen, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := computeLength(actual)
	if actualLen == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}

	if actualLen == expectedLen {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", expectedLen, actualLen)
}

func includes(actual, expected any) (bool, string) {
	arr, ok := toSlice(actual)
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}

	for _, item := range arr {
		if Equal(expected, item) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func in(actual, expected any) (bool, string) {
	arr, ok := toSlice(expected)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}

	for _, item := range arr {
		if Equal(item, actual) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func typeCheck(actual, expected any) (bool, string) {
	expectedType := fmt.Sprintf("%v", expected)
	actualType := jsonType(actual)

	if actualType == expectedType {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, actualType)
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if _, ok := toFloat64(v); ok {
		return "number"
	}
	return reflect.TypeOf(v).String()
}

// each checks every element against expected, which is either a plain value
// or a map with "operator" and "value" keys.
func each(actual, expected any) (bool, string) {
	arr, ok := toSlice(actual)
	if !ok {
		return false, fmt.Sprintf("expected array for 'each' operator, got %T", actual)
	}

	op := OpEquals
	value := expected
	if m, isMap := expected.(map[string]any); isMap {
		rawOp, hasOp := m["operator"]
		val, hasVal := m["value"]
		if hasOp && hasVal {
			parsed, err := ParseOperator(fmt.Sprintf("%v", rawOp))
			if err != nil {
				return false, err.Error()
			}
			op, value = parsed, val
		}
	}

	for i, item := range arr {
		if passed, msg := Compare(item, op, value); !passed {
			return false, fmt.Sprintf("item[%d]: %s", i, msg)
		}
	}
	return true, ""
}

func toSlice(v any) ([]any, bool) {
	if arr, ok := v.([]any); ok {
		return arr, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
		return 0, false
	}
	if f, ok := toFloat64(v); ok {
		return int(f), true
	}
	return 0, false
}
