package policy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "swarmguard-policy.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// compiledSchema compiles the embedded document schema once.
func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add policy schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile policy schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Load reads, parses and validates a policy file.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read policy: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, err
	}
	if err := Validate(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Parse decodes a single YAML policy document after checking it against the
// embedded schema. Schema violations are reported as a ValidationError.
func Parse(data []byte) (Document, error) {
	raw, err := decodeRaw(data)
	if err != nil {
		return Document{}, err
	}
	if err := validateSchema(raw); err != nil {
		return Document{}, err
	}

	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("parse policy: %w", err)
	}
	return doc, nil
}

// decodeRaw decodes exactly one YAML document into its JSON data model.
func decodeRaw(data []byte) (any, error) {
	var raw any
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse policy: empty document")
		}
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("parse policy: multiple YAML documents are not supported")
		}
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	var out any
	jd := json.NewDecoder(bytes.NewReader(encoded))
	jd.UseNumber()
	if err := jd.Decode(&out); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return out, nil
}

// validateSchema checks raw against the embedded schema.
func validateSchema(raw any) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	err = s.Validate(raw)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate policy: %w", err)
	}
	var c issueCollector
	collectSchemaIssues(&c, ve)
	return c.result()
}

// collectSchemaIssues records the leaf causes of a schema failure.
func collectSchemaIssues(c *issueCollector, ve *jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		c.add(fieldFromPointer(ve.InstanceLocation), ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaIssues(c, cause)
	}
}

// fieldFromPointer converts a JSON pointer into a dotted field path.
func fieldFromPointer(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return "document"
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}
