package bloodhound

import (
	"os"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gofrs/uuid"
	"github.com/lkarlslund/snaphound/modules/snapshot"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
	"github.com/pkg/errors"
)

// Extended right, validated write and property set GUIDs the builtin rules
// and rule file aliases know.
var (
	GetChangesGUID              = uuid.Must(uuid.FromString("1131f6aa-9c07-11d1-f79f-00c04fc2dcd2"))
	GetChangesAllGUID           = uuid.Must(uuid.FromString("1131f6ad-9c07-11d1-f79f-00c04fc2dcd2"))
	GetChangesInFilteredSetGUID = uuid.Must(uuid.FromString("89e95b76-444d-4c62-991a-0facbeda640c"))
	ForceChangePasswordGUID     = uuid.Must(uuid.FromString("00299570-246d-11d0-a768-00aa006e0529"))
	WriteMemberGUID             = uuid.Must(uuid.FromString("bf9679c0-0de6-11d0-a285-00aa003049e2"))
	WriteAllowedToActGUID       = uuid.Must(uuid.FromString("3f78c3e5-f79a-46bd-a0b8-9d18116ddc79"))
	WriteSPNGUID                = uuid.Must(uuid.FromString("f3a64788-5306-11d1-a9c5-0000f80367c1"))
	AddKeyCredentialLinkGUID    = uuid.Must(uuid.FromString("5b47d60f-6090-40b2-9f37-2a4de88f3063"))
	UserAccountRestrictionsGUID = uuid.Must(uuid.FromString("4c164200-20c0-11d0-a768-00aa006e0529"))
	PKINameFlagGUID             = uuid.Must(uuid.FromString("ea1dddc4-60ff-416e-8cc0-17cee534bce7"))
	PKIEnrollmentFlagGUID       = uuid.Must(uuid.FromString("d15ef7d8-f226-46db-ae79-b34e560bd12c"))
	EnrollGUID                  = uuid.Must(uuid.FromString("0e10c968-78fb-11d2-90d4-00c04f79dc55"))
	AutoEnrollGUID              = uuid.Must(uuid.FromString("a05b8cc2-17bc-4802-a710-e7c15ab866a2"))
)

// guidAliases are the names a rule file may use instead of spelling out a
// GUID.
var guidAliases = map[string]uuid.UUID{
	"getchanges":              GetChangesGUID,
	"getchangesall":           GetChangesAllGUID,
	"getchangesinfilteredset": GetChangesInFilteredSetGUID,
	"forcechangepassword":     ForceChangePasswordGUID,
	"writemember":             WriteMemberGUID,
	"writeallowedtoact":       WriteAllowedToActGUID,
	"writespn":                WriteSPNGUID,
	"addkeycredentiallink":    AddKeyCredentialLinkGUID,
	"useraccountrestrictions": UserAccountRestrictionsGUID,
	"pkinameflag":             PKINameFlagGUID,
	"pkienrollmentflag":       PKIEnrollmentFlagGUID,
	"enroll":                  EnrollGUID,
	"autoenroll":              AutoEnrollGUID,
}

// KindSet is a bitmask of object kinds. The zero value matches every kind.
type KindSet uint32

// Kinds builds a KindSet from object kinds.
func Kinds(kinds ...snapshot.ObjectKind) KindSet {
	var ks KindSet
	for _, kind := range kinds {
		ks |= KindSet(kind.Bit())
	}
	return ks
}

// Contains reports whether the set covers the kind.
func (ks KindSet) Contains(kind snapshot.ObjectKind) bool {
	return ks == 0 || ks&KindSet(kind.Bit()) != 0
}

// ObjectTypeMatch states what an ACE's object type GUID must look like for
// a rule to apply.
type ObjectTypeMatch int

const (
	// EmptyObjectType requires the GUID to be absent or all zero, the wire
	// form of a blanket grant.
	EmptyObjectType ObjectTypeMatch = iota
	// AnyObjectType skips the GUID check.
	AnyObjectType
	// SpecificObjectType requires the rule's own GUID.
	SpecificObjectType
	// LAPSObjectType requires the schema GUID of the local administrator
	// password attribute, which varies per forest and is resolved from the
	// snapshot dictionary.
	LAPSObjectType
)

// EdgeRule maps one ACE shape onto one edge kind. The rules are data so
// that a platform schema change is an input change, not a code change.
type EdgeRule struct {
	// Mask qualifies an ACE when any of its bits are set.
	Mask windowssecurity.Mask
	// ExcludeMask disqualifies an ACE when any of its bits are set.
	ExcludeMask windowssecurity.Mask
	// Kinds limits the rule to some target kinds, zero means all.
	Kinds KindSet
	// RequireLAPS limits the rule to computers carrying a local
	// administrator password expiry attribute.
	RequireLAPS bool

	ObjectType ObjectTypeMatch
	GUID       uuid.UUID

	// Edge is the emitted edge kind, blank for rules that only exist to
	// stop evaluation.
	Edge string
	// Terminal stops evaluation for the ACE once the rule applies.
	Terminal bool
}

func (rule EdgeRule) applies(ace windowssecurity.ACE, kind snapshot.ObjectKind, hasLAPS bool, lapsGUID uuid.UUID) bool {
	if ace.Mask&rule.Mask == 0 {
		return false
	}
	if ace.Mask&rule.ExcludeMask != 0 {
		return false
	}
	if !rule.Kinds.Contains(kind) {
		return false
	}
	if rule.RequireLAPS && !hasLAPS {
		return false
	}
	switch rule.ObjectType {
	case EmptyObjectType:
		return ace.ObjectType == windowssecurity.NullGUID
	case SpecificObjectType:
		return ace.ObjectType == rule.GUID
	case LAPSObjectType:
		return lapsGUID != windowssecurity.NullGUID && ace.ObjectType == lapsGUID
	}
	return true
}

// RuleTable is an ordered edge rule set. Order matters twice: terminal
// rules cut evaluation short, and ACEs granting several rights emit them in
// table order.
type RuleTable struct {
	Version string
	Rules   []EdgeRule
}

// Rights returns the edge kinds one ACE grants over a target of the given
// kind, in table order and without duplicates.
func (rt RuleTable) Rights(ace windowssecurity.ACE, kind snapshot.ObjectKind, hasLAPS bool, lapsGUID uuid.UUID) []string {
	var rights []string
	for _, rule := range rt.Rules {
		if !rule.applies(ace, kind, hasLAPS, lapsGUID) {
			continue
		}
		if rule.Edge != "" && !slices.Contains(rights, rule.Edge) {
			rights = append(rights, rule.Edge)
		}
		if rule.Terminal {
			break
		}
	}
	return rights
}

// BuiltinRules is the rule set matching BloodHound CE graph schema
// version 5.
func BuiltinRules() RuleTable {
	anyTarget := KindSet(0)
	accounts := Kinds(snapshot.KindUser, snapshot.KindComputer)
	writable := Kinds(snapshot.KindUser, snapshot.KindGroup, snapshot.KindComputer, snapshot.KindGPO)
	propertyWrite := windowssecurity.RIGHT_GENERIC_WRITE | windowssecurity.RIGHT_DS_WRITE_PROPERTY

	return RuleTable{
		Version: "bhce-v5",
		Rules: []EdgeRule{
			// Full control subsumes every other edge. Scoped to a specific
			// property it grants nothing the scoped rules would not.
			{Mask: windowssecurity.RIGHT_GENERIC_ALL, Kinds: anyTarget, ObjectType: EmptyObjectType, Edge: "GenericAll", Terminal: true},
			{Mask: windowssecurity.RIGHT_GENERIC_ALL, Kinds: anyTarget, ObjectType: AnyObjectType, Terminal: true},

			{Mask: windowssecurity.RIGHT_WRITE_DACL, Kinds: anyTarget, ObjectType: AnyObjectType, Edge: "WriteDacl"},
			{Mask: windowssecurity.RIGHT_WRITE_OWNER, Kinds: anyTarget, ObjectType: AnyObjectType, Edge: "WriteOwner"},

			// The validated write to member only matters on its own, paired
			// with a property write the AddMember rule already covers it.
			{
				Mask:        windowssecurity.RIGHT_DS_WRITE_PROPERTY_EXTENDED,
				ExcludeMask: propertyWrite,
				Kinds:       Kinds(snapshot.KindGroup),
				ObjectType:  SpecificObjectType,
				GUID:        WriteMemberGUID,
				Edge:        "AddSelf",
			},

			// Control access rights.
			{Mask: windowssecurity.RIGHT_DS_CONTROL_ACCESS, Kinds: Kinds(snapshot.KindDomain), ObjectType: SpecificObjectType, GUID: GetChangesGUID, Edge: "GetChanges"},
			{Mask: windowssecurity.RIGHT_DS_CONTROL_ACCESS, Kinds: Kinds(snapshot.KindDomain), ObjectType: SpecificObjectType, GUID: GetChangesAllGUID, Edge: "GetChangesAll"},
			{Mask: windowssecurity.RIGHT_DS_CONTROL_ACCESS, Kinds: Kinds(snapshot.KindDomain), ObjectType: SpecificObjectType, GUID: GetChangesInFilteredSetGUID, Edge: "GetChangesInFilteredSet"},
			{Mask: windowssecurity.RIGHT_DS_CONTROL_ACCESS, Kinds: Kinds(snapshot.KindDomain), ObjectType: EmptyObjectType, Edge: "AllExtendedRights"},
			{Mask: windowssecurity.RIGHT_DS_CONTROL_ACCESS, Kinds: Kinds(snapshot.KindUser), ObjectType: SpecificObjectType, GUID: ForceChangePasswordGUID, Edge: "ForceChangePassword"},
			{Mask: windowssecurity.RIGHT_DS_CONTROL_ACCESS, Kinds: Kinds(snapshot.KindUser), ObjectType: EmptyObjectType, Edge: "AllExtendedRights"},
			{Mask: windowssecurity.RIGHT_DS_CONTROL_ACCESS, Kinds: Kinds(snapshot.KindComputer), RequireLAPS: true, ObjectType: EmptyObjectType, Edge: "AllExtendedRights"},
			{Mask: windowssecurity.RIGHT_DS_CONTROL_ACCESS, Kinds: Kinds(snapshot.KindComputer), RequireLAPS: true, ObjectType: LAPSObjectType, Edge: "ReadLAPSPassword"},

			// Property writes.
			{Mask: propertyWrite, Kinds: writable, ObjectType: EmptyObjectType, Edge: "GenericWrite"},
			{Mask: propertyWrite, Kinds: Kinds(snapshot.KindUser), ObjectType: SpecificObjectType, GUID: WriteSPNGUID, Edge: "WriteSPN"},
			{Mask: propertyWrite, Kinds: Kinds(snapshot.KindComputer), ObjectType: SpecificObjectType, GUID: WriteAllowedToActGUID, Edge: "AddAllowedToAct"},
			{Mask: propertyWrite, Kinds: Kinds(snapshot.KindComputer), ObjectType: SpecificObjectType, GUID: UserAccountRestrictionsGUID, Edge: "WriteAccountRestrictions"},
			{Mask: propertyWrite, Kinds: Kinds(snapshot.KindGroup), ObjectType: SpecificObjectType, GUID: WriteMemberGUID, Edge: "AddMember"},
			{Mask: propertyWrite, Kinds: accounts, ObjectType: SpecificObjectType, GUID: AddKeyCredentialLinkGUID, Edge: "AddKeyCredentialLink"},
		},
	}
}

// ruleFile is the JSON form of a rule table.
type ruleFile struct {
	Version string     `json:"version"`
	Rules   []ruleSpec `json:"rules"`
}

type ruleSpec struct {
	Mask        uint32   `json:"mask"`
	ExcludeMask uint32   `json:"excludemask"`
	Kinds       []string `json:"kinds"`
	ObjectType  string   `json:"objecttype"`
	RequireLAPS bool     `json:"requirelaps"`
	Edge        string   `json:"edge"`
	Terminal    bool     `json:"terminal"`
}

// LoadRuleTable reads a rule table from a JSON file, replacing the builtin
// set wholesale.
func LoadRuleTable(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleTable{}, errors.Wrap(err, "reading edge rules")
	}
	table, err := ParseRuleTable(data)
	if err != nil {
		return RuleTable{}, errors.Wrapf(err, "parsing edge rules from %v", path)
	}
	return table, nil
}

// ParseRuleTable decodes a rule table. The object type may be blank for
// absent, "*" for any, "laps", a known right's name, or a spelled out GUID.
// Edge names are free text so new platform edges need no support here.
func ParseRuleTable(data []byte) (RuleTable, error) {
	var file ruleFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return RuleTable{}, errors.Wrap(err, "decoding edge rules")
	}
	if file.Version == "" {
		return RuleTable{}, errors.New("edge rules carry no version")
	}

	table := RuleTable{Version: file.Version, Rules: make([]EdgeRule, 0, len(file.Rules))}
	for i, spec := range file.Rules {
		rule := EdgeRule{
			Mask:        windowssecurity.Mask(spec.Mask),
			ExcludeMask: windowssecurity.Mask(spec.ExcludeMask),
			RequireLAPS: spec.RequireLAPS,
			Edge:        spec.Edge,
			Terminal:    spec.Terminal,
		}
		if rule.Mask == 0 {
			return RuleTable{}, errors.Errorf("rule %v has an empty access mask", i)
		}
		for _, name := range spec.Kinds {
			kind, err := snapshot.ParseObjectKind(name)
			if err != nil {
				return RuleTable{}, errors.Wrapf(err, "rule %v", i)
			}
			rule.Kinds |= KindSet(kind.Bit())
		}
		switch objectType := strings.ToLower(spec.ObjectType); objectType {
		case "":
			rule.ObjectType = EmptyObjectType
		case "*":
			rule.ObjectType = AnyObjectType
		case "laps":
			rule.ObjectType = LAPSObjectType
		default:
			rule.ObjectType = SpecificObjectType
			if guid, found := guidAliases[objectType]; found {
				rule.GUID = guid
			} else {
				guid, err := uuid.FromString(spec.ObjectType)
				if err != nil {
					return RuleTable{}, errors.Errorf("rule %v names unknown object type %v", i, spec.ObjectType)
				}
				rule.GUID = guid
			}
		}
		table.Rules = append(table.Rules, rule)
	}
	return table, nil
}
