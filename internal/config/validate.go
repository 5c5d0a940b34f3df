// CUE schema validation code
package config

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// ErrSchema is returned when a document does not match its schema.
var ErrSchema = errors.New("schema validation failed")

// ValidateYAML checks the YAML document data against the CUE definition
// named definition (for example "#Config") in schema. An empty definition
// validates against the whole schema value.
func ValidateYAML(filename string, data, schema []byte, definition string) error {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileBytes(schema, cue.Filename("schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", err)
	}
	if definition != "" {
		schemaVal = schemaVal.LookupPath(cue.ParsePath(definition))
		if !schemaVal.Exists() {
			return fmt.Errorf("CUE schema has no %s", definition)
		}
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("cannot parse YAML: %w", err)
	}
	dataVal := ctx.BuildFile(file)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("cannot build YAML value: %w", err)
	}

	final := schemaVal.Unify(dataVal)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrSchema, cueerrors.Details(err, nil))
	}
	return nil
}

// ValidateWithCue validates a YAML configuration file using a CUE schema file.
func ValidateWithCue(configFile, cueFile string) error {
	yamlBytes, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	schemaBytes, err := os.ReadFile(cueFile)
	if err != nil {
		return fmt.Errorf("cannot read CUE schema: %w", err)
	}
	return ValidateYAML(configFile, yamlBytes, schemaBytes, "#Config")
}
