package jobfile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed job.schema.json
var schemaJSON string

const schemaURL = "batchrun://job.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func jobSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// ValidationError is a job document that does not match the job schema.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid job: %s", e.Message)
	}
	return fmt.Sprintf("invalid job at %s: %s", e.Path, e.Message)
}

// validate checks a decoded document against the job schema. The document
// is round-tripped through JSON so every decoder's types look alike.
func validate(doc any) error {
	s, err := jobSchema()
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal job for validation: %w", err)
	}
	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshal job for validation: %w", err)
	}

	if err := s.Validate(obj); err != nil {
		return mapSchemaError(err)
	}
	return nil
}

func mapSchemaError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationError{Message: err.Error()}
	}

	var result *ValidationError
	collectSchemaErrors(ve, &result)
	if result != nil {
		return result
	}
	return &ValidationError{Message: ve.Message}
}

// collectSchemaErrors finds the first leaf cause, which names the field.
func collectSchemaErrors(err *jsonschema.ValidationError, result **ValidationError) {
	if len(err.Causes) == 0 {
		*result = &ValidationError{
			Path:    pointerToPath(err.InstanceLocation),
			Message: err.Message,
		}
		return
	}

	for _, cause := range err.Causes {
		if *result == nil {
			collectSchemaErrors(cause, result)
		}
	}
}

// pointerToPath turns "/tasks/0/kind" into "tasks[0].kind".
func pointerToPath(pointer string) string {
	if pointer == "" || pointer == "/" {
		return ""
	}

	var b strings.Builder
	for _, part := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		if part != "" && strings.Trim(part, "0123456789") == "" {
			fmt.Fprintf(&b, "[%s]", part)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		b.WriteString(part)
	}
	return b.String()
}
