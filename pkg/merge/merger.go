package merge

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/protoverse/protomerge/pkg/schema"
	"github.com/protoverse/protomerge/pkg/wrappererr"
)

// Config tunes the merge. The field mappings are the only input that changes
// merge semantics; everything else is mechanical.
type Config struct {
	// FieldMappings force cross-version field identities for renumbered
	// fields. Validated before any merge work starts.
	FieldMappings []FieldMapping
	// Parallel merges independent top-level messages concurrently. Each
	// per-message merge touches no shared mutable state, so this is safe.
	Parallel bool
}

// Merger unifies N version schemas into one MergedSchema. A Merger is
// stateless between calls and safe for concurrent use.
type Merger struct {
	Config Config
	Logger *logrus.Logger
}

// NewMerger creates a Merger with default configuration.
func NewMerger() *Merger {
	return &Merger{}
}

func (m *Merger) logger() *logrus.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return logrus.StandardLogger()
}

// Merge unifies the given version schemas. The merge always completes when
// inputs are structurally sound: type conflicts, including INCOMPATIBLE ones,
// are recorded on the merged fields, never returned as errors. Errors are
// reserved for invalid configuration and structural impossibilities such as
// cyclic nesting.
func (m *Merger) Merge(ctx context.Context, schemas []*schema.VersionSchema) (*MergedSchema, error) {
	if len(schemas) == 0 {
		return nil, wrappererr.New(wrappererr.CodeSchemaInvalid, "at least one schema required")
	}
	if err := ValidateFieldMappings(m.Config.FieldMappings); err != nil {
		return nil, err
	}

	versions := make([]string, len(schemas))
	for i, s := range schemas {
		versions[i] = s.Version()
	}
	merged := newMergedSchema(versions)

	messageNames := unionNames(schemas, func(s *schema.VersionSchema) []string { return s.MessageNames() })
	enumNames := unionNames(schemas, func(s *schema.VersionSchema) []string { return s.EnumNames() })

	mergeOne := func(name string) (*MergedMessage, error) {
		msgs := make([]msgWithVersion, 0, len(schemas))
		for _, s := range schemas {
			if msg, ok := s.Message(name); ok {
				msgs = append(msgs, msgWithVersion{version: s.Version(), msg: msg})
			}
		}
		return m.mergeMessage(name, msgs, versions, nil)
	}

	results := make([]*MergedMessage, len(messageNames))
	if m.Config.Parallel {
		g, _ := errgroup.WithContext(ctx)
		for i, name := range messageNames {
			i, name := i, name
			g.Go(func() error {
				mm, err := mergeOne(name)
				if err != nil {
					return err
				}
				results[i] = mm
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, name := range messageNames {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			mm, err := mergeOne(name)
			if err != nil {
				return nil, err
			}
			results[i] = mm
		}
	}
	for _, mm := range results {
		if mm != nil {
			merged.addMessage(mm)
		}
	}

	for _, name := range enumNames {
		entries := make([]enumWithVersion, 0, len(schemas))
		for _, s := range schemas {
			if e, ok := s.Enum(name); ok {
				entries = append(entries, enumWithVersion{version: s.Version(), info: e})
			}
		}
		if me := mergeEnumInfos(name, entries); me != nil {
			merged.addEnum(me)
		}
	}

	m.detectEquivalentEnums(merged, schemas)
	m.collectConflictEnums(merged, schemas)

	m.logger().WithFields(logrus.Fields{
		"versions": versions,
		"messages": len(merged.Messages()),
		"enums":    len(merged.Enums()),
	}).Debug("merged schemas")

	return merged, nil
}

// mergeMessage recursively unifies one message name across versions. The path
// tracks the active nesting chain for cycle detection; a message name
// reappearing on its own path is a structural impossibility and fails the
// merge with the offending chain.
func (m *Merger) mergeMessage(name string, msgs []msgWithVersion, allVersions, path []string) (*MergedMessage, error) {
	for _, ancestor := range path {
		if ancestor == name {
			return nil, wrappererr.NewCycleError(append(append([]string(nil), path...), name))
		}
	}
	path = append(path, name)

	if len(msgs) == 0 {
		return nil, nil
	}

	merged := newMergedMessage(name)
	for _, mv := range msgs {
		merged.addVersion(mv.version)
		if mv.msg.SourceFile != "" {
			merged.addSourceFile(mv.version, mv.msg.SourceFile)
		}
	}

	for _, group := range alignFields(name, msgs, m.Config.FieldMappings) {
		merged.addField(m.buildMergedField(name, group))
	}

	for _, nestedName := range nestedMessageNames(msgs) {
		var nested []msgWithVersion
		for _, mv := range msgs {
			for _, n := range mv.msg.NestedMessages() {
				if n.Name == nestedName {
					nested = append(nested, msgWithVersion{version: mv.version, msg: n})
				}
			}
		}
		nm, err := m.mergeMessage(nestedName, nested, allVersions, path)
		if err != nil {
			return nil, err
		}
		if nm != nil {
			merged.nestedMessages = append(merged.nestedMessages, nm)
		}
	}

	for _, enumName := range nestedEnumNames(msgs) {
		var entries []enumWithVersion
		for _, mv := range msgs {
			for _, e := range mv.msg.NestedEnums() {
				if e.Name == enumName {
					entries = append(entries, enumWithVersion{version: mv.version, info: e})
				}
			}
		}
		if ne := mergeEnumInfos(enumName, entries); ne != nil {
			merged.nestedEnums = append(merged.nestedEnums, ne)
		}
	}

	m.mergeOneofs(merged, name, msgs, allVersions)

	return merged, nil
}

// buildMergedField classifies one aligned group and assembles the merged
// field.
func (m *Merger) buildMergedField(messageName string, g *fieldGroup) *MergedField {
	f := newMergedField(g.name, g.number)
	for _, fv := range g.entries {
		f.addVersionField(fv.version, fv.field)
	}

	f.Conflict, f.Unified = classify(g.entries)
	if f.Conflict == ConflictIntEnum && f.Unified.TypeName == "" {
		f.Unified.TypeName = schema.CamelCase(g.name)
	}
	f.MapValueConflict, f.UnifiedMapValue = classifyMapValue(g.entries)

	if f.Conflict != ConflictNone || f.MapValueConflict != ConflictNone {
		tag := f.Conflict
		if tag == ConflictNone {
			tag = f.MapValueConflict
		}
		m.logger().WithFields(logrus.Fields{
			"message":  messageName,
			"field":    g.name,
			"number":   g.number,
			"conflict": tag.String(),
			"unified":  f.Unified.String(),
		}).Warn("field type conflict")
	}

	return f
}

// mergeOneofs unifies the oneof groups of one message. Renamed groups (same
// member numbers, different names) merge under the most common name; the rest
// merge by name. Membership changes are message-level conflicts since the
// field may not belong to any surviving group.
func (m *Merger) mergeOneofs(merged *MergedMessage, messageName string, msgs []msgWithVersion, allVersions []string) {
	detector := &oneofDetector{}

	presentVersions := make([]string, 0, len(msgs))
	oneofsByVersion := make(map[string][]*schema.OneofInfo)
	for _, mv := range msgs {
		presentVersions = append(presentVersions, mv.version)
		oneofsByVersion[mv.version] = mv.msg.Oneofs()
	}

	var allNames []string
	seenName := make(map[string]bool)
	for _, mv := range msgs {
		for _, o := range mv.msg.Oneofs() {
			if !seenName[o.Name] {
				seenName[o.Name] = true
				allNames = append(allNames, o.Name)
			}
		}
	}
	if len(allNames) == 0 {
		return
	}

	renamed := detector.detectRenamedOneofs(messageName, presentVersions, oneofsByVersion)
	var renamedSets []map[int]bool
	processed := make(map[string]bool)

	for _, rg := range renamed {
		renamedSets = append(renamedSets, rg.fieldNumbers)

		mo := newMergedOneof(rg.mostCommonName())
		mo.MergedFromNames = rg.allNames()
		for _, name := range mo.MergedFromNames {
			processed[name] = true
		}
		for _, mv := range msgs {
			versionName, ok := rg.versionNames[mv.version]
			if !ok {
				continue
			}
			if o, found := mv.msg.OneofByName(versionName); found {
				mo.addVersionOneof(mv.version, o)
			}
		}
		mo.Conflicts = append(mo.Conflicts, rg.conflictInfo())
		m.logger().WithFields(logrus.Fields{
			"message": messageName,
			"oneof":   mo.Name,
			"names":   rg.versionNames,
		}).Warn("oneof renamed across versions")

		m.finishOneof(mo, merged, messageName, detector, allVersions)
	}

	for _, oneofName := range allNames {
		if processed[oneofName] {
			continue
		}
		if overlapsRenamed(oneofName, msgs, renamedSets) {
			continue
		}

		mo := newMergedOneof(oneofName)
		for _, mv := range msgs {
			if o, found := mv.msg.OneofByName(oneofName); found {
				mo.addVersionOneof(mv.version, o)
			}
		}
		m.finishOneof(mo, merged, messageName, detector, allVersions)
	}

	membership := detector.detectFieldMembershipChanges(messageName, allVersions, msgs)
	merged.membershipConflicts = append(merged.membershipConflicts, membership...)
	for _, c := range membership {
		m.logger().WithFields(logrus.Fields{
			"message": messageName,
			"field":   c.FieldName,
			"inOneof": c.InOneofVersions,
			"regular": c.RegularVersions,
		}).Warn("oneof membership changed across versions")
	}
}

func (m *Merger) finishOneof(mo *MergedOneof, merged *MergedMessage, messageName string,
	detector *oneofDetector, allVersions []string) {

	group := newVersionOneofs()
	memberNumbers := make(map[int]bool)
	for _, v := range mo.versions {
		o := mo.versionOneofs[v]
		group.add(v, o)
		for _, n := range o.FieldNumbers() {
			memberNumbers[n] = true
		}
	}

	for _, f := range merged.Fields() {
		if memberNumbers[f.Number] {
			mo.Fields = append(mo.Fields, f)
		}
	}
	mo.Cases = buildCaseConstants(mo.Fields)

	mo.Conflicts = append(mo.Conflicts,
		detector.detectConflicts(mo.Name, messageName, group, mo.Fields, allVersions)...)
	mo.Conflicts = append(mo.Conflicts,
		detector.detectFieldNumberChanges(mo.Name, messageName, group)...)

	for _, c := range mo.Conflicts {
		if c.Type == OneofRenamed {
			continue
		}
		m.logger().WithFields(logrus.Fields{
			"message":  messageName,
			"oneof":    mo.Name,
			"conflict": c.Type.String(),
		}).Warn(c.Description)
	}

	merged.oneofs = append(merged.oneofs, mo)
}

// overlapsRenamed reports whether a oneof's member numbers intersect a
// renamed group already merged under its canonical name.
func overlapsRenamed(oneofName string, msgs []msgWithVersion, renamedSets []map[int]bool) bool {
	for _, mv := range msgs {
		o, ok := mv.msg.OneofByName(oneofName)
		if !ok {
			continue
		}
		for _, n := range o.FieldNumbers() {
			for _, set := range renamedSets {
				if set[n] {
					return true
				}
			}
		}
	}
	return false
}

// collectConflictEnums builds the synthetic unified enum for every field with
// an INT_ENUM conflict, pooling values from all enum-typed versions.
func (m *Merger) collectConflictEnums(merged *MergedSchema, schemas []*schema.VersionSchema) {
	schemaByVersion := make(map[string]*schema.VersionSchema, len(schemas))
	for _, s := range schemas {
		schemaByVersion[s.Version()] = s
	}
	for _, msg := range merged.Messages() {
		m.collectConflictEnumsForMessage(merged, msg, schemaByVersion)
	}
}

func (m *Merger) collectConflictEnumsForMessage(merged *MergedSchema, msg *MergedMessage,
	schemaByVersion map[string]*schema.VersionSchema) {

	for _, f := range msg.Fields() {
		if f.Conflict != ConflictIntEnum {
			continue
		}
		info := m.buildConflictEnum(msg.Name, f, schemaByVersion)
		if info == nil {
			m.logger().WithFields(logrus.Fields{
				"message": msg.Name,
				"field":   f.Name,
			}).Warn("no enum definition found for int/enum conflict")
			continue
		}
		merged.conflictEnums = append(merged.conflictEnums, info)
		m.logger().WithFields(logrus.Fields{
			"enum":   info.EnumName,
			"path":   info.FullPath(),
			"values": len(info.Values),
		}).Info("created conflict enum")
	}

	for _, nested := range msg.NestedMessages() {
		m.collectConflictEnumsForMessage(merged, nested, schemaByVersion)
	}
}

func (m *Merger) buildConflictEnum(messageName string, f *MergedField,
	schemaByVersion map[string]*schema.VersionSchema) *ConflictEnumInfo {

	info := &ConflictEnumInfo{
		MessageName:      messageName,
		FieldName:        f.Name,
		EnumName:         schema.CamelCase(f.Name),
		versionEnumTypes: make(map[string]string),
	}

	seen := make(map[schema.EnumValue]bool)
	for _, version := range f.PresentInVersions() {
		fi, _ := f.VersionField(version)
		if !fi.IsEnum() {
			continue
		}
		s := schemaByVersion[version]
		if s == nil {
			continue
		}
		enumDef := findEnumForField(s, messageName, fi)
		if enumDef == nil {
			continue
		}
		for _, v := range enumDef.Values {
			if !seen[v] {
				seen[v] = true
				info.Values = append(info.Values, v)
			}
		}
		info.versionEnumTypes[version] = fi.TypeName
		info.enumVersions = append(info.enumVersions, version)
	}

	if len(info.Values) == 0 {
		return nil
	}
	sort.Slice(info.Values, func(i, j int) bool {
		if info.Values[i].Number != info.Values[j].Number {
			return info.Values[i].Number < info.Values[j].Number
		}
		return info.Values[i].Name < info.Values[j].Name
	})
	return info
}

// findEnumForField resolves the enum definition an enum-typed field refers
// to: first among the containing message's nested enums, then among the
// version's top-level enums.
func findEnumForField(s *schema.VersionSchema, messageName string, fi *schema.FieldInfo) *schema.EnumInfo {
	enumName := fi.TypeIdentity()
	if msg, ok := s.Message(messageName); ok {
		for _, e := range msg.NestedEnums() {
			if e.Name == enumName {
				return e
			}
		}
	}
	if e, ok := s.Enum(enumName); ok {
		return e
	}
	return nil
}

// enumWithVersion pairs one version's enum definition with its version id.
type enumWithVersion struct {
	version string
	info    *schema.EnumInfo
}

// mergeEnumInfos unifies one enum name across versions, value by value.
// Values align by number; the first version's name wins for a number.
func mergeEnumInfos(name string, entries []enumWithVersion) *MergedEnum {
	if len(entries) == 0 {
		return nil
	}
	merged := newMergedEnum(name)
	byNumber := make(map[int]*MergedEnumValue)
	for _, ev := range entries {
		merged.addVersion(ev.version)
		if ev.info.SourceFile != "" {
			merged.sourceFiles[ev.version] = ev.info.SourceFile
		}
		for _, v := range ev.info.Values {
			mv, ok := byNumber[v.Number]
			if !ok {
				mv = &MergedEnumValue{Name: v.Name, Number: v.Number}
				byNumber[v.Number] = mv
				merged.values = append(merged.values, mv)
			}
			mv.addVersion(ev.version)
		}
	}
	return merged
}

// nestedMessageNames unions the nested message names across versions of one
// message, deduplicated in first-seen declaration order.
func nestedMessageNames(msgs []msgWithVersion) []string {
	var out []string
	seen := make(map[string]bool)
	for _, mv := range msgs {
		for _, n := range mv.msg.NestedMessages() {
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		}
	}
	return out
}

// nestedEnumNames unions the nested enum names across versions of one
// message, deduplicated in first-seen declaration order.
func nestedEnumNames(msgs []msgWithVersion) []string {
	var out []string
	seen := make(map[string]bool)
	for _, mv := range msgs {
		for _, e := range mv.msg.NestedEnums() {
			if !seen[e.Name] {
				seen[e.Name] = true
				out = append(out, e.Name)
			}
		}
	}
	return out
}

func unionNames(schemas []*schema.VersionSchema, names func(*schema.VersionSchema) []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range schemas {
		for _, n := range names(s) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
