package feature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	schemafs "scenctl/schema"
)

var (
	featureSchema *jsonschema.Schema
	compileOnce   sync.Once
	compileErr    error
)

// compileSchema compiles the embedded feature schema once.
func compileSchema() error {
	compileOnce.Do(func() {
		data, err := schemafs.FS.ReadFile("feature.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("read feature schema: %w", err)
			return
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal feature schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("feature.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add feature schema resource: %w", err)
			return
		}

		featureSchema, err = compiler.Compile("feature.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile feature schema: %w", err)
		}
	})

	return compileErr
}

// ValidateFeature checks YAML feature data against the embedded schema.
func ValidateFeature(data []byte) error {
	if err := compileSchema(); err != nil {
		return err
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("feature is not representable as JSON: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := featureSchema.Validate(doc); err != nil {
		return fmt.Errorf("feature validation failed: %w", err)
	}

	return nil
}
