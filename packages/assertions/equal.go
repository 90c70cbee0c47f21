package assertions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	jd "github.com/josephburnett/jd/lib"
	"github.com/stretchr/testify/assert"
)

// AssertionError reports a failed check. Diff is a rendered JSON diff when
// both sides are structured values.
type AssertionError struct {
	Path     string
	Operator Operator
	Expected any
	Actual   any
	Message  string
	Diff     string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "assertion failed for %q: ", e.Path)
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		fmt.Fprintf(&b, "expected %s, got %s", Describe(e.Expected), Describe(e.Actual))
	}
	if e.Diff != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(e.Diff, "\n"))
	}
	return b.String()
}

// Describe renders a value with its type so that 200 and "200" read differently.
func Describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		return fmt.Sprintf("%q ([]byte)", val)
	}
	if isStructured(v) {
		if data, err := json.Marshal(v); err == nil {
			return fmt.Sprintf("%s (%T)", data, v)
		}
	}
	return fmt.Sprintf("%v (%T)", v, v)
}

// Equal reports whether actual strictly equals expected.
func Equal(expected, actual any) bool {
	if assert.ObjectsAreEqual(expected, actual) {
		return true
	}

	// Two integers compare exactly, so values above 2^53 keep their identity.
	if e, ok := toBigInt(expected); ok {
		if a, ok := toBigInt(actual); ok {
			return e.Cmp(a) == 0
		}
	}

	if e, ok := toFloat64(expected); ok {
		a, ok := toFloat64(actual)
		return ok && a == e
	}

	if isStructured(expected) && isStructured(actual) {
		en, err := normalize(expected)
		if err != nil {
			return false
		}
		an, err := normalize(actual)
		if err != nil {
			return false
		}
		return reflect.DeepEqual(en, an)
	}

	return false
}

// Diff renders the structural difference between two JSON-encodable values,
// or "" when either side is a scalar or cannot be encoded.
func Diff(expected, actual any) string {
	if !isStructured(expected) || !isStructured(actual) {
		return ""
	}
	ej, err := json.Marshal(expected)
	if err != nil {
		return ""
	}
	aj, err := json.Marshal(actual)
	if err != nil {
		return ""
	}
	first, err := jd.ReadJsonString(string(ej))
	if err != nil {
		return ""
	}
	second, err := jd.ReadJsonString(string(aj))
	if err != nil {
		return ""
	}
	return first.Diff(second).Render()
}

func isStructured(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Struct, reflect.Array:
		return true
	case reflect.Slice:
		_, isBytes := v.([]byte)
		return !isBytes
	}
	return false
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func toBigInt(v any) (*big.Int, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()), true
	}
	return nil, false
}

// toFloat64 converts numeric kinds only. Strings are never numbers here.
func toFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
