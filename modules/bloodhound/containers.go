package bloodhound

import (
	"github.com/lkarlslund/snaphound/modules/snapshot"
)

// ContainerList is the containers category document.
type ContainerList struct {
	Meta Meta        `json:"meta"`
	Data []Container `json:"data"`
}

type Container struct {
	Properties       ContainerProperties `json:"Properties"`
	ChildObjects     []TypedPrincipal    `json:"ChildObjects"`
	Aces             []ACE               `json:"Aces"`
	ObjectIdentifier string              `json:"ObjectIdentifier"`
	IsDeleted        bool                `json:"IsDeleted"`
	IsACLProtected   bool                `json:"IsACLProtected"`
}

// Containers carry far fewer properties than the other kinds.
type ContainerProperties struct {
	Domain            string `json:"domain"`
	Name              string `json:"name"`
	DistinguishedName string `json:"distinguishedname"`
	DomainSID         string `json:"domainsid"`
}

func (m *mapper) containers() ContainerList {
	containers := make([]Container, 0)
	for _, o := range m.snap.Objects {
		if o.Kind() == snapshot.KindContainer {
			containers = append(containers, m.container(o))
		}
	}
	return ContainerList{
		Meta: Meta{Methods: collectionMethods, Type: "containers", Count: len(containers), Version: 5},
		Data: containers,
	}
}

func (m *mapper) container(o *snapshot.Object) Container {
	dn := o.DistinguishedName()
	domain := domainFromDN(dn)

	return Container{
		Properties: ContainerProperties{
			Domain:            domain,
			Name:              firstString(o, "name") + "@" + domain,
			DistinguishedName: dn,
			DomainSID:         m.domainSID,
		},
		ChildObjects:     m.childObjects(o),
		Aces:             m.aces(o),
		ObjectIdentifier: guidIdentifier(o),
		IsDeleted:        isDeleted(o),
		IsACLProtected:   isACLProtected(o),
	}
}
