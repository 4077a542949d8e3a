package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// detectUnknownFields compares the raw JSON of a suite with the known struct
// fields. It is called after the data decoded successfully.
func detectUnknownFields(data []byte) []string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []string{"internal: failed to re-parse suite for unknown field detection"}
	}

	warnings := unknownKeys(raw, reflect.TypeOf(Suite{}), "at root level")

	if engineRaw, ok := raw["engine"]; ok {
		var fields map[string]json.RawMessage
		if json.Unmarshal(engineRaw, &fields) == nil {
			warnings = append(warnings, unknownKeys(fields, reflect.TypeOf(EngineConfig{}), "in engine")...)
		}
	}

	if additionalRaw, ok := raw["additional_constraints"]; ok {
		warnings = append(warnings, checkAdditionalUnknownFields(additionalRaw)...)
	}

	return warnings
}

func checkAdditionalUnknownFields(data json.RawMessage) []string {
	var warnings []string

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return []string{"internal: failed to re-parse additional_constraints for unknown field detection"}
	}

	for i, entry := range entries {
		where := fmt.Sprintf("in additional_constraints[%d]", i)
		warnings = append(warnings, unknownKeys(entry, reflect.TypeOf(AdditionalConfig{}), where)...)

		var constraints []map[string]json.RawMessage
		if json.Unmarshal(entry["constraints"], &constraints) != nil {
			continue
		}
		for j, c := range constraints {
			where := fmt.Sprintf("in additional_constraints[%d].constraints[%d]", i, j)
			warnings = append(warnings, unknownKeys(c, reflect.TypeOf(ConstraintConfig{}), where)...)
		}
	}

	return warnings
}

// unknownKeys returns a warning per key of raw that t does not declare, in
// key order.
func unknownKeys(raw map[string]json.RawMessage, t reflect.Type, where string) []string {
	known := getJSONFields(t)
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var warnings []string
	for _, key := range keys {
		if key == "$schema" {
			continue
		}
		if !known[key] {
			warnings = append(warnings, fmt.Sprintf("unknown field %q %s (ignored)", key, where))
		}
	}
	return warnings
}

// getJSONFields returns a map of known JSON field names for a struct type.
func getJSONFields(t reflect.Type) map[string]bool {
	fields := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			fields[name] = true
		}
	}
	return fields
}
