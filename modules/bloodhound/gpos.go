package bloodhound

import (
	"strings"

	"github.com/lkarlslund/snaphound/modules/snapshot"
)

// GPOList is the gpos category document. Policy documents are one format
// revision ahead of the other categories.
type GPOList struct {
	Meta Meta  `json:"meta"`
	Data []GPO `json:"data"`
}

type GPO struct {
	Properties       GPOProperties `json:"Properties"`
	Aces             []ACE         `json:"Aces"`
	ObjectIdentifier string        `json:"ObjectIdentifier"`
	IsDeleted        bool          `json:"IsDeleted"`
	IsACLProtected   bool          `json:"IsACLProtected"`
}

type GPOProperties struct {
	Domain            string `json:"domain"`
	Name              string `json:"name"`
	DistinguishedName string `json:"distinguishedname"`
	DomainSID         string `json:"domainsid"`
	WhenCreated       int64  `json:"whencreated"`
	GPCPath           string `json:"gpcpath"`
}

func (m *mapper) gpos() GPOList {
	gpos := make([]GPO, 0)
	for _, o := range m.snap.Objects {
		if o.Kind() == snapshot.KindGPO {
			gpos = append(gpos, m.gpo(o))
		}
	}
	return GPOList{
		Meta: Meta{Methods: collectionMethods, Type: "gpos", Count: len(gpos), Version: 6},
		Data: gpos,
	}
}

func (m *mapper) gpo(o *snapshot.Object) GPO {
	dn := o.DistinguishedName()
	domain := domainFromDN(dn)

	return GPO{
		Properties: GPOProperties{
			Domain:            domain,
			Name:              strings.ToUpper(firstString(o, "displayName")) + "@" + strings.ToUpper(domain),
			DistinguishedName: dn,
			DomainSID:         m.domainSID,
			WhenCreated:       unixTimeOr(o, "whenCreated", 0),
			GPCPath:           firstString(o, "gPCFileSysPath"),
		},
		Aces:             m.aces(o),
		ObjectIdentifier: guidIdentifier(o),
		IsDeleted:        isDeleted(o),
		IsACLProtected:   isACLProtected(o),
	}
}
