package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/schema"
)

// Load reads and parses a suite file. The format follows the extension:
// .yaml or .yml, .toml, anything else is JSON.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, conformerrors.WrapConfig(err, "failed to read suite file")
	}

	normalized, err := ToJSON(path, data)
	if err != nil {
		return nil, err
	}
	return decode(path, normalized)
}

// LoadAndValidate reads a suite file, validates it against the suite
// schema, applies defaults, validates the values and returns warnings.
func LoadAndValidate(path string) (*Suite, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, conformerrors.WrapConfig(err, "failed to read suite file")
	}

	normalized, err := ToJSON(path, data)
	if err != nil {
		return nil, nil, err
	}
	if err := schema.ValidateSuite(normalized); err != nil {
		return nil, nil, conformerrors.WrapConfig(err, fmt.Sprintf("invalid suite file %s", path))
	}

	suite, err := decode(path, normalized)
	if err != nil {
		return nil, nil, err
	}
	unknownWarnings := detectUnknownFields(normalized)

	applyDefaults(suite)

	validationWarnings, err := Validate(suite)

	allWarnings := make([]string, 0, len(unknownWarnings)+len(validationWarnings))
	allWarnings = append(allWarnings, unknownWarnings...)
	allWarnings = append(allWarnings, validationWarnings...)

	if err != nil {
		return nil, allWarnings, conformerrors.WrapConfig(err, fmt.Sprintf("invalid suite file %s", path))
	}

	return suite, allWarnings, nil
}

// ToJSON converts suite file data to JSON according to the file extension.
func ToJSON(path string, data []byte) ([]byte, error) {
	var v any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, conformerrors.WrapConfig(err, "failed to parse suite file")
		}
	case ".toml":
		m := map[string]any{}
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, conformerrors.WrapConfig(err, "failed to parse suite file")
		}
		v = m
	default:
		if !json.Valid(data) {
			var probe any
			err := json.Unmarshal(data, &probe)
			return nil, conformerrors.WrapConfig(err, "failed to parse suite file")
		}
		return data, nil
	}

	out, err := json.Marshal(v)
	if err != nil {
		return nil, conformerrors.WrapConfig(err, "failed to convert suite file to JSON")
	}
	return out, nil
}

func decode(path string, data []byte) (*Suite, error) {
	var suite Suite
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&suite); err != nil {
		return nil, conformerrors.WrapConfig(err, "failed to parse suite file")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, conformerrors.Wrap(err, "failed to resolve suite file path")
	}
	suite.Dir = filepath.Dir(abs)
	return &suite, nil
}

// Path resolves p against the suite directory. Absolute and empty paths are
// returned unchanged.
func (s *Suite) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || s.Dir == "" {
		return p
	}
	return filepath.Join(s.Dir, p)
}
