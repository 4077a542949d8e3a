package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/AndreyAkinshin/conform/internal/engine"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/schema"
)

// LoadOptions reads engine options given either as a JSON object or as the
// path of a file holding one. An empty value yields empty options.
func LoadOptions(value string) (engine.Options, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return engine.Options{}, nil
	}

	data := []byte(value)
	source := "--options"
	if !strings.HasPrefix(value, "{") {
		var err error
		data, err = os.ReadFile(value)
		if err != nil {
			return nil, conformerrors.WrapConfig(err, "failed to read options file")
		}
		source = value
	}

	if err := schema.ValidateOptions(data); err != nil {
		return nil, conformerrors.WrapConfig(err, fmt.Sprintf("invalid engine options in %s", source))
	}

	var opts engine.Options
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, conformerrors.WrapConfig(err, fmt.Sprintf("invalid engine options in %s", source))
	}
	return opts, nil
}
