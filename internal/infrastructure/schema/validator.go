// Package schema validates workspace config documents before they are
// decoded and persisted.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fastygo/botfleet/domain"
)

// Document names a workspace config document.
type Document string

const (
	Settings  Document = "settings"
	Templates Document = "templates"
	Keywords  Document = "keywords"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type Validator struct {
	schemas map[Document]*jsonschema.Schema
}

// NewValidator compiles the embedded document schemas.
func NewValidator() (*Validator, error) {
	schemas := make(map[Document]*jsonschema.Schema)
	for _, doc := range []Document{Settings, Templates, Keywords} {
		raw, err := schemaFS.ReadFile("schemas/" + string(doc) + ".json")
		if err != nil {
			return nil, err
		}
		id := "https://botfleet.fastygo.dev/schemas/" + string(doc) + ".json"
		compiled, err := jsonschema.CompileString(id, string(raw))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", doc, err)
		}
		schemas[doc] = compiled
	}
	return &Validator{schemas: schemas}, nil
}

// MustNewValidator panics if the embedded schemas do not compile.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks raw JSON against the schema of doc. Any failure is reported
// as ErrInvalidDocument.
func (v *Validator) Validate(doc Document, raw []byte) error {
	if v == nil {
		return nil
	}
	schema, ok := v.schemas[doc]
	if !ok {
		return fmt.Errorf("unknown document %q", doc)
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidDocument.Message, err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
	}
	return nil
}
