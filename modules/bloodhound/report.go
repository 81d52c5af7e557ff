package bloodhound

import (
	"github.com/lkarlslund/snaphound/modules/snapshot"
)

// Report holds every category document generated from one snapshot.
type Report struct {
	Domains    DomainList
	Users      UserList
	Computers  ComputerList
	Groups     GroupList
	OUs        OUList
	Containers ContainerList
	GPOs       GPOList
}

// Generate maps a decoded snapshot onto the BloodHound categories. The
// same snapshot always yields the same report, nodes and their edges come
// out in file order. Dangling references and schema oddities are tallied
// on the snapshot's diagnostics rather than failing the run.
func Generate(snap *snapshot.Snapshot, rules RuleTable) *Report {
	m := newMapper(snap, rules)
	return &Report{
		Domains:    m.domains(),
		Users:      m.users(),
		Computers:  m.computers(),
		Groups:     m.groups(),
		OUs:        m.ous(),
		Containers: m.containers(),
		GPOs:       m.gpos(),
	}
}
