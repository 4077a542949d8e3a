// Package schema provides JSON schema validation for conform suite files and
// engine options.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	schemafs "github.com/AndreyAkinshin/conform/schema"
)

const (
	suiteSchemaName   = "suite.schema.json"
	optionsSchemaName = "options.schema.json"
)

var (
	suiteSchema   *jsonschema.Schema
	optionsSchema *jsonschema.Schema
	compileOnce   sync.Once
	compileErr    error
)

// compileSchemas compiles all embedded schemas once.
func compileSchemas() error {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		for _, name := range []string{suiteSchemaName, optionsSchemaName} {
			data, err := schemafs.FS.ReadFile(name)
			if err != nil {
				compileErr = fmt.Errorf("read %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("unmarshal %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, doc); err != nil {
				compileErr = fmt.Errorf("add %s resource: %w", name, err)
				return
			}
		}

		var err error
		if suiteSchema, err = compiler.Compile(suiteSchemaName); err != nil {
			compileErr = fmt.Errorf("compile suite schema: %w", err)
			return
		}
		if optionsSchema, err = compiler.Compile(optionsSchemaName); err != nil {
			compileErr = fmt.Errorf("compile options schema: %w", err)
		}
	})

	return compileErr
}

func validate(s **jsonschema.Schema, what string, data []byte) error {
	if err := compileSchemas(); err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := (*s).Validate(v); err != nil {
		return fmt.Errorf("%s validation failed: %w", what, err)
	}

	return nil
}

// ValidateSuite validates JSON data against the suite schema.
func ValidateSuite(data []byte) error {
	return validate(&suiteSchema, "suite", data)
}

// ValidateOptions validates JSON data against the engine options schema.
func ValidateOptions(data []byte) error {
	return validate(&optionsSchema, "options", data)
}
