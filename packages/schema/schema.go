package schema

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// Countries is the name of the bundled REST Countries schema.
const Countries = "restcountries"

//go:embed schemas/*.json
var bundled embed.FS

var (
	cacheMu sync.Mutex
	cache   = make(map[string]*Schema)
)

// contextRoot is how gojsonschema names the document root in contexts.
const contextRoot = "(root)"

// ErrUnknownSchema is returned by Load for names that are not bundled.
var ErrUnknownSchema = errors.New("unknown schema")

// Schema is a compiled JSON schema.
type Schema struct {
	Name   string
	schema *gojsonschema.Schema
}

// Load returns a bundled schema by name. Compiled schemas are cached.
func Load(name string) (*Schema, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if s, ok := cache[name]; ok {
		return s, nil
	}

	data, err := bundled.ReadFile(path.Join("schemas", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}

	s, err := compile(name, data)
	if err != nil {
		return nil, err
	}
	cache[name] = s
	return s, nil
}

// LoadFile compiles a schema document from disk.
func LoadFile(file string) (*Schema, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return compile(file, data)
}

// Names lists the bundled schemas.
func Names() []string {
	entries, err := bundled.ReadDir("schemas")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names
}

func compile(name string, data []byte) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}
	return &Schema{Name: name, schema: s}, nil
}

// Validate checks doc against the schema. It returns a *ValidationError when
// the document is well-formed JSON that violates the schema.
func (s *Schema) Validate(doc []byte) error {
	if !gjson.ValidBytes(doc) {
		return fmt.Errorf("document is not valid JSON")
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: s.Name}
	for _, re := range result.Errors() {
		verr.Violations = append(verr.Violations, Violation{
			Pointer: pointer(re.Context()),
			Field:   re.Field(),
			Type:    re.Type(),
			Message: re.Description(),
		})
	}
	return verr
}

// pointer renders a gojsonschema context as a JSON pointer fragment, "#" for
// the document root and "#/0/name/common" below it.
func pointer(ctx *gojsonschema.JsonContext) string {
	if ctx == nil {
		return "#"
	}
	return "#" + strings.TrimPrefix(ctx.String("/"), contextRoot)
}

// RequireArray fails unless the document root is a JSON array.
func RequireArray(doc []byte) error {
	if !gjson.ValidBytes(doc) {
		return fmt.Errorf("document is not valid JSON")
	}
	root := gjson.ParseBytes(doc)
	if root.IsArray() {
		return nil
	}
	return fmt.Errorf("expected root JSON array but got: %s", TypeName(root))
}

// TypeName names the JSON type of a parsed value.
func TypeName(v gjson.Result) string {
	switch {
	case v.IsArray():
		return "array"
	case v.IsObject():
		return "object"
	}
	switch v.Type {
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	case gjson.Null:
		return "null"
	}
	return "unknown"
}
