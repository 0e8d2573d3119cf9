package merge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/protoverse/protomerge/pkg/wrappererr"
)

// FieldMapping forces fields with different numbers across versions to merge
// under one identity, for schemas that renumbered a field between versions.
// Without an explicit VersionNumbers map, fields are matched by proto name.
type FieldMapping struct {
	// Message is the top-level message the mapping applies to.
	Message string `yaml:"message"`
	// FieldName is the canonical proto name of the field.
	FieldName string `yaml:"field"`
	// VersionNumbers optionally pins the field number per version, e.g.
	// {v1: 4, v2: 12}. Versions not listed fall back to name matching.
	VersionNumbers map[string]int `yaml:"versions,omitempty"`
}

// Validate rejects malformed mappings. Called before any merge work starts so
// a bad override never fails mid-merge.
func (m FieldMapping) Validate() error {
	if m.Message == "" {
		return wrappererr.New(wrappererr.CodeSchemaInvalid, "field mapping: message name is required")
	}
	if m.FieldName == "" {
		return wrappererr.New(wrappererr.CodeSchemaInvalid,
			"field mapping for message %s: field name is required", m.Message)
	}
	for version, number := range m.VersionNumbers {
		if number <= 0 {
			return wrappererr.New(wrappererr.CodeSchemaInvalid,
				"field mapping %s.%s: field number for version %s must be positive, got %d",
				m.Message, m.FieldName, version, number)
		}
	}
	return nil
}

// Key returns the "Message.field" identity of the mapping.
func (m FieldMapping) Key() string { return m.Message + "." + m.FieldName }

type mappingFile struct {
	Mappings []FieldMapping `yaml:"mappings"`
}

// LoadFieldMappings reads field mappings from a YAML file and validates each
// entry.
func LoadFieldMappings(path string) ([]FieldMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field mappings: %w", err)
	}
	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, wrappererr.Wrap(wrappererr.CodeSchemaInvalid, err, "parse field mappings %s", path)
	}
	if err := ValidateFieldMappings(file.Mappings); err != nil {
		return nil, err
	}
	return file.Mappings, nil
}

// ValidateFieldMappings validates every mapping, reporting the first bad one.
func ValidateFieldMappings(mappings []FieldMapping) error {
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}
