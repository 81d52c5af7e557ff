package snapshot

import (
	"strconv"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/lkarlslund/snaphound/modules/util"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
)

// buildCaches resolves every object's identity and builds the lookup
// indexes. Runs sequentially after the value decode fan-out has finished,
// nothing may touch the indexes before this completes.
func (sn *Snapshot) buildCaches() {
	sn.attributeIndex = make(map[string]Attribute, len(sn.Header.Properties.Props))
	for i, prop := range sn.Header.Properties.Props {
		name := strings.ToLower(string(prop.Name))
		if _, exists := sn.attributeIndex[name]; !exists {
			sn.attributeIndex[name] = Attribute(i)
		}
	}

	sn.classIndex = make(map[string]int, len(sn.Header.Classes.Classes)*3)
	for i, class := range sn.Header.Classes.Classes {
		sn.classIndex[string(class.ClassName)] = i
		sn.classIndex[string(class.DN)] = i
		if segment, _, found := strings.Cut(string(class.DN), ","); found {
			if _, cn, found := strings.Cut(segment, "="); found {
				sn.classIndex[cn] = i
			}
		}
	}

	sn.sidIndex = make(map[windowssecurity.SID]int, len(sn.Objects))
	sn.dnIndex = make(map[string]int, len(sn.Objects))
	sn.childrenIndex = make(map[string][]int)
	sn.computerIndex = make(map[string]int)
	sn.rootDomain = -1

	for i, o := range sn.Objects {
		o.resolveIdentity()

		if !o.sid.IsBlank() {
			sn.sidIndex[o.sid] = i
		}

		if o.dn != "" {
			upper := strings.ToUpper(o.dn)
			sn.dnIndex[upper] = i
			if parent := util.ParentDistinguishedName(o.dn); parent != "" {
				parentUpper := strings.ToUpper(parent)
				sn.childrenIndex[parentUpper] = append(sn.childrenIndex[parentUpper], i)
			}
		}

		if sn.rootDomain < 0 && o.HasClass("domain") {
			sn.rootDomain = i
			sn.domainSID = o.sid
		}

		if accountType, _ := o.Attr("sAMAccountType").FirstInt(); accountType == SAM_MACHINE_ACCOUNT {
			if hostname, found := o.Attr("dNSHostName").FirstString(); found {
				sn.computerIndex[strings.ToUpper(hostname)] = i
			}
			if name, found := o.Attr("name").FirstString(); found {
				sn.computerIndex[strings.ToUpper(name)] = i
			}
		}

		if o.HasClass("trustedDomain") {
			sn.trusts = append(sn.trusts, i)
		}
	}
}

// AttributeIndex resolves an attribute name to its dictionary index, case
// insensitively.
func (sn *Snapshot) AttributeIndex(name string) (Attribute, bool) {
	attr, found := sn.attributeIndex[strings.ToLower(name)]
	return attr, found
}

// AttributeName is the dictionary name for an attribute index.
func (sn *Snapshot) AttributeName(attr Attribute) string {
	if int(attr) < len(sn.Header.Properties.Props) {
		return string(sn.Header.Properties.Props[attr].Name)
	}
	return "#" + strconv.Itoa(int(attr))
}

// PropertyGUID is the schemaIDGUID of a property, in display byte order for
// matching against ACE object type GUIDs.
func (sn *Snapshot) PropertyGUID(name string) (uuid.UUID, bool) {
	attr, found := sn.AttributeIndex(name)
	if !found {
		return uuid.UUID{}, false
	}
	return util.SwapUUIDEndianess(sn.Header.Properties.Props[attr].SchemaIDGUID), true
}

func (sn *Snapshot) ObjectBySID(sid windowssecurity.SID) (*Object, bool) {
	i, found := sn.sidIndex[sid]
	if !found {
		return nil, false
	}
	return sn.Objects[i], true
}

func (sn *Snapshot) ObjectByDN(dn string) (*Object, bool) {
	i, found := sn.dnIndex[strings.ToUpper(dn)]
	if !found {
		return nil, false
	}
	return sn.Objects[i], true
}

// ObjectByComputerName resolves a computer account by dNSHostName or name,
// case insensitively. Only machine accounts are indexed.
func (sn *Snapshot) ObjectByComputerName(name string) (*Object, bool) {
	i, found := sn.computerIndex[strings.ToUpper(name)]
	if !found {
		return nil, false
	}
	return sn.Objects[i], true
}

// ChildrenOf returns the direct children of a container DN in arena order.
func (sn *Snapshot) ChildrenOf(dn string) []*Object {
	indexes := sn.childrenIndex[strings.ToUpper(dn)]
	children := make([]*Object, len(indexes))
	for i, idx := range indexes {
		children[i] = sn.Objects[idx]
	}
	return children
}

// RootDomain is the first object carrying the domain class.
func (sn *Snapshot) RootDomain() (*Object, bool) {
	if sn.rootDomain < 0 {
		return nil, false
	}
	return sn.Objects[sn.rootDomain], true
}

// DomainSID is the objectSid of the root domain, blank when the snapshot
// has no domain object.
func (sn *Snapshot) DomainSID() windowssecurity.SID {
	return sn.domainSID
}

// Trusts returns the trustedDomain objects in arena order.
func (sn *Snapshot) Trusts() []*Object {
	trusts := make([]*Object, len(sn.trusts))
	for i, idx := range sn.trusts {
		trusts[i] = sn.Objects[idx]
	}
	return trusts
}

// CategoryClassName resolves an objectCategory DN to the schema class name
// it points at.
func (sn *Snapshot) CategoryClassName(categoryDN string) (string, bool) {
	i, found := sn.classIndex[categoryDN]
	if !found {
		return "", false
	}
	return string(sn.Header.Classes.Classes[i].ClassName), true
}
