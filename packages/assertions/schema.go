package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaError lists every violation found by ValidateSchema.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Violations, "; "))
}

// ValidateSchema checks value against a JSON schema. schema is inline JSON
// (a string starting with '{', []byte, or a map), or the path of a schema file.
func ValidateSchema(value any, schema any) error {
	schemaData, err := loadSchema(schema)
	if err != nil {
		return err
	}

	actualJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal actual value: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaData)
	documentLoader := gojsonschema.NewBytesLoader(actualJSON)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &SchemaError{Violations: violations}
}

func loadSchema(schema any) ([]byte, error) {
	switch s := schema.(type) {
	case []byte:
		return s, nil
	case string:
		if strings.HasPrefix(strings.TrimSpace(s), "{") {
			return []byte(s), nil
		}
		data, err := os.ReadFile(s)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		return data, nil
	case nil:
		return nil, fmt.Errorf("no schema given")
	default:
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
		return data, nil
	}
}
