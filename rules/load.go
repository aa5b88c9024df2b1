package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadTableFile reads a rule table from a .yaml, .yml or .json file and validates it
func LoadTableFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseTableJSON(data)
	case ".yaml", ".yml":
		return ParseTableYAML(data)
	default:
		return nil, fmt.Errorf("unsupported rule table format %q", filepath.Ext(path))
	}
}

// ParseTableYAML decodes and validates a YAML rule table
func ParseTableYAML(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse rule table YAML: %w", err)
	}
	return finishTable(&table)
}

// ParseTableJSON decodes and validates a JSON rule table
func ParseTableJSON(data []byte) (*Table, error) {
	var table Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse rule table JSON: %w", err)
	}
	return finishTable(&table)
}

// finishTable fills omitted attribute defaults and validates the result
func finishTable(table *Table) (*Table, error) {
	for name, attr := range table.Attributes {
		if attr.Default == (FactorRule{}) {
			attr.Default = DefaultFactor
			table.Attributes[name] = attr
		}
	}
	if err := ValidateTable(table); err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}
	return table, nil
}
