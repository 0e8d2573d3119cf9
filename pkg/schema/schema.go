package schema

import (
	"fmt"
)

// VersionSchema is the raw schema of a single named version: its top-level
// messages and enums in declaration order.
type VersionSchema struct {
	version string

	messages      []*MessageInfo
	messagesByKey map[string]*MessageInfo
	enums         []*EnumInfo
	enumsByKey    map[string]*EnumInfo
}

// NewVersionSchema creates an empty schema for the given version identifier.
func NewVersionSchema(version string) *VersionSchema {
	return &VersionSchema{
		version:       version,
		messagesByKey: make(map[string]*MessageInfo),
		enumsByKey:    make(map[string]*EnumInfo),
	}
}

// Version returns the version identifier, e.g. "v1".
func (s *VersionSchema) Version() string { return s.version }

// AddMessage registers a top-level message. A message added twice under the
// same name replaces the earlier entry, keeping its original position.
func (s *VersionSchema) AddMessage(m *MessageInfo) {
	if _, ok := s.messagesByKey[m.Name]; !ok {
		s.messages = append(s.messages, m)
	} else {
		for i, existing := range s.messages {
			if existing.Name == m.Name {
				s.messages[i] = m
				break
			}
		}
	}
	s.messagesByKey[m.Name] = m
}

// AddEnum registers a top-level enum.
func (s *VersionSchema) AddEnum(e *EnumInfo) {
	if _, ok := s.enumsByKey[e.Name]; !ok {
		s.enums = append(s.enums, e)
	} else {
		for i, existing := range s.enums {
			if existing.Name == e.Name {
				s.enums[i] = e
				break
			}
		}
	}
	s.enumsByKey[e.Name] = e
}

// Message returns the top-level message with the given name.
func (s *VersionSchema) Message(name string) (*MessageInfo, bool) {
	m, ok := s.messagesByKey[name]
	return m, ok
}

// Enum returns the top-level enum with the given name.
func (s *VersionSchema) Enum(name string) (*EnumInfo, bool) {
	e, ok := s.enumsByKey[name]
	return e, ok
}

// Messages returns all top-level messages in declaration order.
func (s *VersionSchema) Messages() []*MessageInfo { return s.messages }

// Enums returns all top-level enums in declaration order.
func (s *VersionSchema) Enums() []*EnumInfo { return s.enums }

// MessageNames returns top-level message names in declaration order.
func (s *VersionSchema) MessageNames() []string {
	names := make([]string, len(s.messages))
	for i, m := range s.messages {
		names[i] = m.Name
	}
	return names
}

// EnumNames returns top-level enum names in declaration order.
func (s *VersionSchema) EnumNames() []string {
	names := make([]string, len(s.enums))
	for i, e := range s.enums {
		names[i] = e.Name
	}
	return names
}

// Stats summarizes the schema for log output.
func (s *VersionSchema) Stats() string {
	fields := 0
	nested := 0
	for _, m := range s.messages {
		fields += len(m.Fields())
		nested += len(m.NestedMessages())
	}
	return fmt.Sprintf("version %s: %d messages, %d enums, %d fields, %d nested types",
		s.version, len(s.messages), len(s.enums), fields, nested)
}

func (s *VersionSchema) String() string { return s.Stats() }
