package bloodhound

import (
	"strings"

	"github.com/lkarlslund/snaphound/modules/snapshot"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
	"github.com/pkg/errors"
)

// GroupList is the groups category document.
type GroupList struct {
	Meta Meta    `json:"meta"`
	Data []Group `json:"data"`
}

type Group struct {
	Properties       GroupProperties  `json:"Properties"`
	Members          []TypedPrincipal `json:"Members"`
	Aces             []ACE            `json:"Aces"`
	ObjectIdentifier string           `json:"ObjectIdentifier"`
	IsDeleted        bool             `json:"IsDeleted"`
	IsACLProtected   bool             `json:"IsACLProtected"`
}

type GroupProperties struct {
	Domain            string  `json:"domain"`
	DomainSID         string  `json:"domainsid"`
	HighValue         bool    `json:"highvalue"`
	Name              string  `json:"name"`
	DistinguishedName string  `json:"distinguishedname"`
	AdminCount        bool    `json:"admincount"`
	Description       *string `json:"description"`
	WhenCreated       int64   `json:"whencreated"`
}

func (m *mapper) groups() GroupList {
	groups := make([]Group, 0)
	for _, o := range m.snap.Objects {
		if o.HasClass("group") {
			groups = append(groups, m.group(o))
		}
	}
	return GroupList{
		Meta: Meta{Methods: collectionMethods, Type: "groups", Count: len(groups), Version: 5},
		Data: groups,
	}
}

func (m *mapper) group(o *snapshot.Object) Group {
	dn := o.DistinguishedName()
	domain := strings.ToUpper(domainFromDN(dn))
	sid := objectIdentifier(o)

	// Builtin groups share their SID across every domain, prefixing the
	// domain SID keeps each domain's node distinct.
	identifier := sid
	if windowssecurity.IsWellKnownSID(sid) {
		identifier = m.domainSID + "-" + sid
	}

	return Group{
		Properties: GroupProperties{
			Domain:            domain,
			DomainSID:         m.domainSID,
			HighValue:         isHighValue(sid),
			Name:              strings.ToUpper(firstString(o, "name")) + "@" + domain,
			DistinguishedName: dn,
			AdminCount:        adminCount(o),
			Description:       optionalString(o, "description"),
			WhenCreated:       unixTimeOr(o, "whenCreated", 0),
		},
		Members:          m.members(o),
		Aces:             m.aces(o),
		ObjectIdentifier: identifier,
		IsDeleted:        isDeleted(o),
		IsACLProtected:   isACLProtected(o),
	}
}

// members resolves the member attribute's distinguished names. Foreign
// security principals fall back to the SID their name spells out, anything
// else unresolved is counted and dropped.
func (m *mapper) members(o *snapshot.Object) []TypedPrincipal {
	members := make([]TypedPrincipal, 0)
	for _, dn := range o.Attr("member").StringSlice() {
		if member, found := m.snap.ObjectByDN(dn); found {
			members = append(members, TypedPrincipal{
				ObjectIdentifier: objectIdentifier(member),
				ObjectType:       typeString(member),
			})
			continue
		}
		if sid, found := foreignPrincipalSID(dn); found {
			if windowssecurity.IsWellKnownSID(sid.String()) {
				members = append(members, TypedPrincipal{
					ObjectIdentifier: m.domainSID + "-" + sid.String(),
					ObjectType:       "Group",
				})
				continue
			}
			members = append(members, TypedPrincipal{
				ObjectIdentifier: sid.String(),
				ObjectType:       "Unknown",
			})
			continue
		}
		m.snap.Diagnostics.DanglingReference(errors.Errorf("group member %v is not in the snapshot", dn))
	}
	return members
}

// highValueBuiltins are builtin groups marked high value beyond the high
// value RIDs: Administrators, Print Operators, Server Operators, Replicator
// and Account Operators.
var highValueBuiltins = map[string]struct{}{
	"S-1-5-32-544": {},
	"S-1-5-32-550": {},
	"S-1-5-32-549": {},
	"S-1-5-32-551": {},
	"S-1-5-32-548": {},
}

// isHighValue marks the groups attackers prize: domain admins, enterprise
// admins, schema admins, domain controllers and a handful of builtins.
func isHighValue(sid string) bool {
	if strings.HasSuffix(sid, "-512") ||
		strings.HasSuffix(sid, "-516") ||
		strings.HasSuffix(sid, "-519") ||
		strings.HasSuffix(sid, "-520") {
		return true
	}
	_, found := highValueBuiltins[sid]
	return found
}
