package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Analyzer extracts a VersionSchema from a compiled descriptor set.
//
// Descriptor sets are produced either by `protoc --descriptor_set_out` or by
// the in-process Compiler in this package.
type Analyzer struct {
	// Logger receives per-file extraction diagnostics. Defaults to the
	// standard logrus logger.
	Logger *logrus.Logger
}

func (a *Analyzer) logger() *logrus.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return logrus.StandardLogger()
}

// AnalyzeFile reads a binary FileDescriptorSet from disk and extracts the
// schema for the given version.
func (a *Analyzer) AnalyzeFile(path, version string) (*VersionSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor set: %w", err)
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse descriptor set %s: %w", path, err)
	}
	return a.Analyze(&set, version), nil
}

// Analyze extracts the schema for the given version from a descriptor set.
func (a *Analyzer) Analyze(set *descriptorpb.FileDescriptorSet, version string) *VersionSchema {
	return a.AnalyzeWithPrefix(set, version, "")
}

// AnalyzeWithPrefix extracts the schema, keeping only files whose path starts
// with sourcePrefix (e.g. "v1/"). An empty prefix keeps everything. Well-known
// google.protobuf types are always skipped; they are runtime library types,
// not part of the versioned schema.
func (a *Analyzer) AnalyzeWithPrefix(set *descriptorpb.FileDescriptorSet, version, sourcePrefix string) *VersionSchema {
	s := NewVersionSchema(version)

	for _, file := range set.GetFile() {
		if strings.HasPrefix(file.GetPackage(), "google.protobuf") {
			continue
		}
		if sourcePrefix != "" && !strings.HasPrefix(file.GetName(), sourcePrefix) {
			continue
		}

		pkg := file.GetPackage()
		for _, msg := range file.GetMessageType() {
			info := NewMessageInfo(msg, pkg, file.GetName())
			if info.IsMapEntry() {
				continue
			}
			s.AddMessage(info)
		}
		for _, enum := range file.GetEnumType() {
			s.AddEnum(NewEnumInfo(enum, file.GetName()))
		}
	}

	a.logger().WithFields(logrus.Fields{
		"version":  version,
		"messages": len(s.Messages()),
		"enums":    len(s.Enums()),
	}).Debug("extracted schema")

	return s
}
