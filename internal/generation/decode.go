package generation

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// fencedBlock captures the body of the first ``` or ```json block.
var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// Result is the outcome of decoding one LLM response: either a value or the
// reason it was rejected. Callers choose whether a rejection is fatal or
// worth another attempt with a stricter prompt.
type Result[T any] struct {
	value  T
	reason string
	ok     bool
}

// Ok wraps a decoded value.
func Ok[T any](v T) Result[T] { return Result[T]{value: v, ok: true} }

// Err records why a response was rejected.
func Err[T any](reason string) Result[T] { return Result[T]{reason: reason} }

// IsOk reports whether decoding succeeded.
func (r Result[T]) IsOk() bool { return r.ok }

// Value returns the decoded value and whether it is valid.
func (r Result[T]) Value() (T, bool) { return r.value, r.ok }

// Reason is empty for Ok results.
func (r Result[T]) Reason() string { return r.reason }

// Unwrap converts an Err into a ValidationError wrapping ErrSchemaValidation.
func (r Result[T]) Unwrap(task string) (T, error) {
	if !r.ok {
		var zero T
		return zero, llmerrors.NewSchemaError(task, r.reason)
	}
	return r.value, nil
}

// Decoder turns raw completion text into T: fenced-block extraction, JSON
// parsing, schema validation, then typed decoding. Nothing is coerced; a
// response that violates the schema is rejected.
type Decoder[T any] struct {
	name   string
	schema *jsonschema.Schema
}

// NewDecoder compiles the embedded schema schemas/<name>.schema.json.
func NewDecoder[T any](name string) (*Decoder[T], error) {
	file := name + ".schema.json"
	raw, err := schemaFS.ReadFile("schemas/" + file)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", file, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", file, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(file, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema %s: %w", file, err)
	}
	schema, err := compiler.Compile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", file, err)
	}
	return &Decoder[T]{name: name, schema: schema}, nil
}

func mustDecoder[T any](name string) *Decoder[T] {
	d, err := NewDecoder[T](name)
	if err != nil {
		panic(err)
	}
	return d
}

// Decode parses content into T.
func (d *Decoder[T]) Decode(content string) Result[T] {
	body := ExtractJSON(content)
	if body == "" {
		return Err[T]("empty response")
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Err[T](fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := d.schema.Validate(doc); err != nil {
		return Err[T](fmt.Sprintf("schema %s: %v", d.name, err))
	}

	var out T
	if err := mapstructure.Decode(doc, &out); err != nil {
		return Err[T](fmt.Sprintf("decode %s: %v", d.name, err))
	}
	return Ok(out)
}

// ExtractJSON returns the body of the first fenced code block, or the
// trimmed content when there is none.
func ExtractJSON(content string) string {
	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}
