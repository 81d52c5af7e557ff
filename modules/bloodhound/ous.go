package bloodhound

import (
	"strings"

	"github.com/lkarlslund/snaphound/modules/snapshot"
)

// OUList is the ous category document.
type OUList struct {
	Meta Meta `json:"meta"`
	Data []OU `json:"data"`
}

type OU struct {
	Properties       OUProperties     `json:"Properties"`
	Links            []Link           `json:"Links"`
	ChildObjects     []TypedPrincipal `json:"ChildObjects"`
	Aces             []ACE            `json:"Aces"`
	ObjectIdentifier string           `json:"ObjectIdentifier"`
	IsDeleted        bool             `json:"IsDeleted"`
	IsACLProtected   bool             `json:"IsACLProtected"`
}

type OUProperties struct {
	Domain            string  `json:"domain"`
	Name              string  `json:"name"`
	DistinguishedName string  `json:"distinguishedname"`
	DomainSID         string  `json:"domainsid"`
	Description       *string `json:"description"`
	WhenCreated       int64   `json:"whencreated"`
	BlocksInheritance bool    `json:"blocksinheritance"`
}

func (m *mapper) ous() OUList {
	ous := make([]OU, 0)
	for _, o := range m.snap.Objects {
		if o.Kind() == snapshot.KindOU {
			ous = append(ous, m.ou(o))
		}
	}
	return OUList{
		Meta: Meta{Methods: collectionMethods, Type: "ous", Count: len(ous), Version: 5},
		Data: ous,
	}
}

func (m *mapper) ou(o *snapshot.Object) OU {
	dn := o.DistinguishedName()
	domain := strings.ToUpper(domainFromDN(dn))
	gpOptions, _ := o.Attr("gPOptions").FirstInt()

	return OU{
		Properties: OUProperties{
			Domain:            domain,
			Name:              strings.ToUpper(firstString(o, "name")) + "@" + domain,
			DistinguishedName: dn,
			DomainSID:         m.domainSID,
			Description:       optionalString(o, "description"),
			WhenCreated:       unixTimeOr(o, "whenCreated", 0),
			BlocksInheritance: gpOptions&1 != 0,
		},
		Links:            policyLinks(o),
		ChildObjects:     m.childObjects(o),
		Aces:             m.aces(o),
		ObjectIdentifier: guidIdentifier(o),
		IsDeleted:        isDeleted(o),
		IsACLProtected:   isACLProtected(o),
	}
}
