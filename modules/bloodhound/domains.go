package bloodhound

import (
	"strings"

	"github.com/lkarlslund/snaphound/modules/snapshot"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
	"github.com/pkg/errors"
)

// DomainList is the domains category document.
type DomainList struct {
	Meta DomainMeta `json:"meta"`
	Data []Domain   `json:"data"`
}

type Domain struct {
	Properties       DomainProperties `json:"Properties"`
	ChildObjects     []TypedPrincipal `json:"ChildObjects"`
	Trusts           []Trust          `json:"Trusts"`
	Links            []Link           `json:"Links"`
	Aces             []ACE            `json:"Aces"`
	ObjectIdentifier string           `json:"ObjectIdentifier"`
	IsDeleted        bool             `json:"IsDeleted"`
	IsACLProtected   bool             `json:"IsACLProtected"`
}

type DomainProperties struct {
	Name              string  `json:"name"`
	Domain            string  `json:"domain"`
	DistinguishedName string  `json:"distinguishedname"`
	DomainSID         string  `json:"domainsid"`
	Description       *string `json:"description"`
	FunctionalLevel   string  `json:"functionallevel"`
	WhenCreated       int64   `json:"whencreated"`
	HighValue         bool    `json:"highvalue"`
}

var functionalLevels = map[int64]string{
	0: "2000 Mixed/Native",
	1: "2003 Interim",
	2: "2003",
	3: "2008",
	4: "2008 R2",
	5: "2012",
	6: "2012 R2",
	7: "2016",
}

func functionalLevel(o *snapshot.Object) string {
	if level, found := o.Attr("msDS-Behavior-Version").FirstInt(); found {
		if name, known := functionalLevels[level]; known {
			return name
		}
	}
	return "Unknown"
}

// domains emits the snapshot's naming context root. AD Explorer connects to
// one domain, so there is at most one.
func (m *mapper) domains() DomainList {
	domains := make([]Domain, 0)
	if root, found := m.snap.RootDomain(); found {
		domains = append(domains, m.domain(root))
	}
	return DomainList{
		Meta: DomainMeta{Methods: collectionMethods, Type: "domains", Count: len(domains)},
		Data: domains,
	}
}

func (m *mapper) domain(o *snapshot.Object) Domain {
	name := firstString(o, "name")
	return Domain{
		Properties: DomainProperties{
			Name:              name,
			Domain:            strings.ToUpper(name),
			DistinguishedName: o.DistinguishedName(),
			DomainSID:         m.domainSID,
			Description:       optionalString(o, "description"),
			FunctionalLevel:   functionalLevel(o),
			WhenCreated:       unixTimeOr(o, "creationTime", 0),
			HighValue:         true,
		},
		ChildObjects:     m.childObjects(o),
		Trusts:           m.trusts(),
		Links:            policyLinks(o),
		Aces:             m.aces(o),
		ObjectIdentifier: guidIdentifier(o),
		IsDeleted:        isDeleted(o),
		IsACLProtected:   isACLProtected(o),
	}
}

var trustDirections = map[int64]string{
	0: "Disabled",
	1: "Inbound",
	2: "Outbound",
	3: "Bidirectional",
}

var trustTypes = map[int64]string{
	1: "WINDOWS_NON_ACTIVE_DIRECTORY",
	2: "WINDOWS_ACTIVE_DIRECTORY",
	3: "MIT",
}

func trustLabel(table map[int64]string, value int64) string {
	if label, found := table[value]; found {
		return label
	}
	return "Unknown"
}

// trusts decodes every trustedDomain object in the snapshot. Bit 1 of
// trustAttributes marks a non transitive trust, bit 0x40 treats SIDs from
// the other side as filtered.
func (m *mapper) trusts() []Trust {
	trusts := make([]Trust, 0)
	for _, o := range m.snap.Trusts() {
		name, found := o.Attr("name").FirstString()
		if !found {
			m.snap.Diagnostics.SchemaViolation(errors.Errorf("trusted domain %v carries no name", o.DistinguishedName()))
			continue
		}

		targetSID := "Unknown"
		if blob, ok := o.Attr("securityIdentifier").FirstBlob(); ok {
			if sid, _, err := windowssecurity.ParseSID(blob); err == nil {
				targetSID = sid.String()
			}
		}

		attributes, _ := o.Attr("trustAttributes").FirstInt()
		direction, _ := o.Attr("trustDirection").FirstInt()
		trustType, _ := o.Attr("trustType").FirstInt()

		trusts = append(trusts, Trust{
			TargetDomainSID:     targetSID,
			TargetDomainName:    name,
			IsTransitive:        attributes&0x1 == 0,
			SidFilteringEnabled: attributes&0x40 != 0,
			TrustDirection:      trustLabel(trustDirections, direction),
			TrustType:           trustLabel(trustTypes, trustType),
		})
	}
	return trusts
}
