package merge

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/protoverse/protomerge/pkg/schema"
)

// OneofConflictType classifies one structural difference in a oneof group
// across versions. A single group may carry several conflicts at once; none
// of them is fatal.
type OneofConflictType int

const (
	// OneofPartialExistence: the group exists in some versions but not all.
	OneofPartialExistence OneofConflictType = iota
	// OneofFieldSetDifference: the member-number set differs between versions.
	OneofFieldSetDifference
	// OneofRenamed: identical member-number sets under different group names.
	OneofRenamed
	// OneofFieldMembershipChange: a field is union member in some versions
	// and a regular field in others.
	OneofFieldMembershipChange
	// OneofFieldTypeConflict: a member field carries a type conflict.
	OneofFieldTypeConflict
	// OneofFieldRemoved: a member present in an older version is gone from
	// the union in a newer one.
	OneofFieldRemoved
	// OneofFieldNumberChange: a member matched by proto name has different
	// numbers across versions.
	OneofFieldNumberChange
)

var oneofConflictNames = map[OneofConflictType]string{
	OneofPartialExistence:      "PARTIAL_EXISTENCE",
	OneofFieldSetDifference:    "FIELD_SET_DIFFERENCE",
	OneofRenamed:               "RENAMED",
	OneofFieldMembershipChange: "FIELD_MEMBERSHIP_CHANGE",
	OneofFieldTypeConflict:     "FIELD_TYPE_CONFLICT",
	OneofFieldRemoved:          "FIELD_REMOVED",
	OneofFieldNumberChange:     "FIELD_NUMBER_CHANGE",
}

func (t OneofConflictType) String() string {
	if name, ok := oneofConflictNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// OneofConflictInfo is one detected conflict with enough structured context
// for downstream consumers to branch without parsing the description.
type OneofConflictInfo struct {
	Type        OneofConflictType
	OneofName   string
	MessageName string
	Description string

	AffectedVersions []string

	// FieldName and FieldConflict are set for field-scoped conflict types.
	FieldName     string
	FieldConflict ConflictType

	// InOneofVersions and RegularVersions are both populated for
	// FIELD_MEMBERSHIP_CHANGE. Direction matters: the accessor strategy for
	// a field unioned only in v2 differs from one unioned only in v1.
	InOneofVersions []string
	RegularVersions []string

	// VersionNumbers maps version -> field number for FIELD_NUMBER_CHANGE.
	VersionNumbers map[string]int

	// VersionNames maps version -> historical group name for RENAMED.
	VersionNames map[string]string

	// RemovedFields lists "name (last in vN)" entries for FIELD_REMOVED.
	RemovedFields []string
}

// oneofDetector enumerates structural oneof conflicts. Versions are always
// supplied as an ordered slice; detection results are deterministic in that
// order.
type oneofDetector struct{}

// versionOneofs is an ordered version -> oneof view of one logical group.
type versionOneofs struct {
	versions []string
	byVer    map[string]*schema.OneofInfo
}

func newVersionOneofs() *versionOneofs {
	return &versionOneofs{byVer: make(map[string]*schema.OneofInfo)}
}

func (vo *versionOneofs) add(version string, info *schema.OneofInfo) {
	if _, ok := vo.byVer[version]; !ok {
		vo.versions = append(vo.versions, version)
	}
	vo.byVer[version] = info
}

func (vo *versionOneofs) len() int { return len(vo.versions) }

// detectConflicts runs the per-group detections: partial existence, field set
// difference, member type conflicts and member removal.
func (d *oneofDetector) detectConflicts(
	oneofName, messageName string,
	group *versionOneofs,
	memberFields []*MergedField,
	allVersions []string,
) []OneofConflictInfo {
	var conflicts []OneofConflictInfo
	conflicts = append(conflicts, d.detectPartialExistence(oneofName, messageName, group, allVersions)...)
	conflicts = append(conflicts, d.detectFieldSetDifferences(oneofName, messageName, group)...)
	conflicts = append(conflicts, d.detectFieldTypeConflicts(oneofName, messageName, memberFields)...)
	conflicts = append(conflicts, d.detectFieldRemoval(oneofName, messageName, group)...)
	return conflicts
}

func (d *oneofDetector) detectPartialExistence(
	oneofName, messageName string,
	group *versionOneofs,
	allVersions []string,
) []OneofConflictInfo {
	var missing []string
	for _, v := range allVersions {
		if _, ok := group.byVer[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []OneofConflictInfo{{
		Type:        OneofPartialExistence,
		OneofName:   oneofName,
		MessageName: messageName,
		Description: fmt.Sprintf("oneof %q exists only in versions %v, missing in %v",
			oneofName, group.versions, missing),
		AffectedVersions: missing,
	}}
}

func (d *oneofDetector) detectFieldSetDifferences(
	oneofName, messageName string,
	group *versionOneofs,
) []OneofConflictInfo {
	if group.len() <= 1 {
		return nil
	}

	numberToVersions := make(map[int][]string)
	numberToName := make(map[int]string)
	var numberOrder []int
	for _, v := range group.versions {
		for _, f := range group.byVer[v].Fields {
			if _, seen := numberToVersions[f.Number]; !seen {
				numberOrder = append(numberOrder, f.Number)
			}
			numberToVersions[f.Number] = append(numberToVersions[f.Number], v)
			numberToName[f.Number] = f.Name
		}
	}

	affected := make(map[string][]int)
	var affectedOrder []string
	for _, n := range numberOrder {
		if len(numberToVersions[n]) == group.len() {
			continue
		}
		for _, v := range numberToVersions[n] {
			if _, seen := affected[v]; !seen {
				affectedOrder = append(affectedOrder, v)
			}
			affected[v] = append(affected[v], n)
		}
	}
	if len(affected) == 0 {
		return nil
	}

	var parts []string
	for _, v := range affectedOrder {
		names := make([]string, 0, len(affected[v]))
		for _, n := range affected[v] {
			names = append(names, memberName(numberToName, n))
		}
		parts = append(parts, fmt.Sprintf("%s has %v", v, names))
	}

	return []OneofConflictInfo{{
		Type:        OneofFieldSetDifference,
		OneofName:   oneofName,
		MessageName: messageName,
		Description: "different member fields across versions: " +
			strings.Join(parts, "; "),
		AffectedVersions: affectedOrder,
	}}
}

func (d *oneofDetector) detectFieldTypeConflicts(
	oneofName, messageName string,
	memberFields []*MergedField,
) []OneofConflictInfo {
	var conflicts []OneofConflictInfo
	for _, f := range memberFields {
		if f.Conflict == ConflictNone {
			continue
		}
		conflicts = append(conflicts, OneofConflictInfo{
			Type:        OneofFieldTypeConflict,
			OneofName:   oneofName,
			MessageName: messageName,
			Description: fmt.Sprintf("member field %q has type conflict %s",
				f.Name, f.Conflict),
			AffectedVersions: f.PresentInVersions(),
			FieldName:        f.Name,
			FieldConflict:    f.Conflict,
		})
	}
	return conflicts
}

// detectFieldRemoval reports members whose last appearance is before the
// newest version of the group. Versions are ordered by their embedded number
// ("v2" before "v10"), falling back to 0 for non-numeric identifiers.
func (d *oneofDetector) detectFieldRemoval(
	oneofName, messageName string,
	group *versionOneofs,
) []OneofConflictInfo {
	if group.len() <= 1 {
		return nil
	}

	sorted := append([]string(nil), group.versions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return versionOrdinal(sorted[i]) < versionOrdinal(sorted[j])
	})

	numberToName := make(map[int]string)
	lastSeen := make(map[int]string)
	var numberOrder []int
	for _, v := range sorted {
		for _, f := range group.byVer[v].Fields {
			if _, seen := lastSeen[f.Number]; !seen {
				numberOrder = append(numberOrder, f.Number)
			}
			lastSeen[f.Number] = v
			numberToName[f.Number] = f.Name
		}
	}

	latest := sorted[len(sorted)-1]
	var removed []string
	var affected []string
	seenAffected := make(map[string]bool)
	for _, n := range numberOrder {
		last := lastSeen[n]
		if last == latest {
			continue
		}
		removed = append(removed, fmt.Sprintf("%s (last in %s)", memberName(numberToName, n), last))
		if !seenAffected[last] {
			seenAffected[last] = true
			affected = append(affected, last)
		}
	}
	if len(removed) == 0 {
		return nil
	}

	return []OneofConflictInfo{{
		Type:        OneofFieldRemoved,
		OneofName:   oneofName,
		MessageName: messageName,
		Description: "member fields removed in newer versions: " +
			strings.Join(removed, ", "),
		AffectedVersions: affected,
		RemovedFields:    removed,
	}}
}

// renamedOneofGroup is a set of per-version oneofs with identical member
// numbers but different names, inferred to be one logical union renamed.
type renamedOneofGroup struct {
	fieldNumbers map[int]bool
	versionOrder []string
	versionNames map[string]string
	messageName  string
}

// mostCommonName picks the canonical name: the most frequent historical name,
// first-seen winning ties.
func (g *renamedOneofGroup) mostCommonName() string {
	counts := make(map[string]int)
	for _, v := range g.versionOrder {
		counts[g.versionNames[v]]++
	}
	best := ""
	bestCount := 0
	for _, v := range g.versionOrder {
		name := g.versionNames[v]
		if counts[name] > bestCount {
			best = name
			bestCount = counts[name]
		}
	}
	return best
}

// allNames returns every historical name in first-seen order.
func (g *renamedOneofGroup) allNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, v := range g.versionOrder {
		if name := g.versionNames[v]; !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func (g *renamedOneofGroup) conflictInfo() OneofConflictInfo {
	return OneofConflictInfo{
		Type:             OneofRenamed,
		OneofName:        g.mostCommonName(),
		MessageName:      g.messageName,
		Description:      fmt.Sprintf("oneof renamed across versions: %v", g.versionNames),
		AffectedVersions: append([]string(nil), g.versionOrder...),
		VersionNames:     g.versionNames,
	}
}

// detectRenamedOneofs finds groups whose member-number sets are identical
// across versions while the group name differs. Identical sets under
// identical names are ordinary groups; differing sets under differing names
// are unrelated groups, not renames.
func (d *oneofDetector) detectRenamedOneofs(
	messageName string,
	versions []string,
	oneofsByVersion map[string][]*schema.OneofInfo,
) []*renamedOneofGroup {
	type setKey string
	keyOf := func(o *schema.OneofInfo) setKey {
		nums := o.FieldNumbers()
		sort.Ints(nums)
		parts := make([]string, len(nums))
		for i, n := range nums {
			parts[i] = strconv.Itoa(n)
		}
		return setKey(strings.Join(parts, ","))
	}

	groups := make(map[setKey]*renamedOneofGroup)
	var order []setKey
	for _, v := range versions {
		for _, o := range oneofsByVersion[v] {
			k := keyOf(o)
			g, ok := groups[k]
			if !ok {
				g = &renamedOneofGroup{
					fieldNumbers: o.NumberSet(),
					versionNames: make(map[string]string),
					messageName:  messageName,
				}
				groups[k] = g
				order = append(order, k)
			}
			if _, seen := g.versionNames[v]; !seen {
				g.versionOrder = append(g.versionOrder, v)
			}
			g.versionNames[v] = o.Name
		}
	}

	var renamed []*renamedOneofGroup
	for _, k := range order {
		if len(groups[k].allNames()) > 1 {
			renamed = append(renamed, groups[k])
		}
	}
	return renamed
}

// detectFieldMembershipChanges finds fields that are union members in some
// versions and regular fields in others, recording both direction sets.
func (d *oneofDetector) detectFieldMembershipChanges(
	messageName string,
	versions []string,
	msgs []msgWithVersion,
) []OneofConflictInfo {
	msgByVer := make(map[string]*schema.MessageInfo)
	for _, mv := range msgs {
		msgByVer[mv.version] = mv.msg
	}

	type membership struct {
		name    string
		inOneof []string
		regular []string
	}
	byNumber := make(map[int]*membership)
	var numberOrder []int

	for _, v := range versions {
		msg := msgByVer[v]
		if msg == nil {
			continue
		}
		inOneof := make(map[int]bool)
		for _, o := range msg.Oneofs() {
			for _, f := range o.Fields {
				inOneof[f.Number] = true
			}
		}
		for _, f := range msg.Fields() {
			m, ok := byNumber[f.Number]
			if !ok {
				m = &membership{name: f.Name}
				byNumber[f.Number] = m
				numberOrder = append(numberOrder, f.Number)
			}
			if inOneof[f.Number] {
				m.inOneof = append(m.inOneof, v)
			} else {
				m.regular = append(m.regular, v)
			}
		}
	}

	var conflicts []OneofConflictInfo
	for _, n := range numberOrder {
		m := byNumber[n]
		if len(m.inOneof) == 0 || len(m.regular) == 0 {
			continue
		}
		conflicts = append(conflicts, OneofConflictInfo{
			Type:        OneofFieldMembershipChange,
			MessageName: messageName,
			Description: fmt.Sprintf("field %q is in a oneof in versions %v but a regular field in %v",
				m.name, m.inOneof, m.regular),
			AffectedVersions: append([]string(nil), versions...),
			FieldName:        m.name,
			InOneofVersions:  m.inOneof,
			RegularVersions:  m.regular,
		})
	}
	return conflicts
}

// detectFieldNumberChanges finds members that kept their proto name but
// changed field number between versions. Number-based alignment treats those
// as unrelated fields, so this runs on names independently.
func (d *oneofDetector) detectFieldNumberChanges(
	oneofName, messageName string,
	group *versionOneofs,
) []OneofConflictInfo {
	nameToNumbers := make(map[string]map[string]int)
	var nameOrder []string
	for _, v := range group.versions {
		for _, f := range group.byVer[v].Fields {
			m, ok := nameToNumbers[f.Name]
			if !ok {
				m = make(map[string]int)
				nameToNumbers[f.Name] = m
				nameOrder = append(nameOrder, f.Name)
			}
			m[v] = f.Number
		}
	}

	var conflicts []OneofConflictInfo
	for _, name := range nameOrder {
		numbers := nameToNumbers[name]
		unique := make(map[int]bool)
		var affected []string
		for _, v := range group.versions {
			if n, ok := numbers[v]; ok {
				unique[n] = true
				affected = append(affected, v)
			}
		}
		if len(unique) <= 1 {
			continue
		}
		conflicts = append(conflicts, OneofConflictInfo{
			Type:        OneofFieldNumberChange,
			OneofName:   oneofName,
			MessageName: messageName,
			Description: fmt.Sprintf("member field %q has different numbers across versions: %v",
				name, numbers),
			AffectedVersions: affected,
			FieldName:        name,
			VersionNumbers:   numbers,
		})
	}
	return conflicts
}

func memberName(numberToName map[int]string, number int) string {
	if name, ok := numberToName[number]; ok {
		return name
	}
	return "field_" + strconv.Itoa(number)
}

// versionOrdinal extracts the numeric part of a version id for chronological
// ordering, e.g. "v10" -> 10. Non-numeric ids order as 0.
func versionOrdinal(version string) int {
	var digits strings.Builder
	for _, r := range version {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}
