package bloodhound

import (
	"strconv"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/lkarlslund/snaphound/modules/snapshot"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
	"github.com/lkarlslund/stringsplus"
	"github.com/pkg/errors"
)

// unknownIdentifier marks principals whose stable identifier could not be
// determined from the snapshot.
const unknownIdentifier = "ERR_UNKNOWN"

// mapper carries what every category writer needs: the snapshot, the edge
// rule table, and values resolved once per run.
type mapper struct {
	snap      *snapshot.Snapshot
	rules     RuleTable
	domainSID string
	lapsGUID  uuid.UUID
}

func newMapper(snap *snapshot.Snapshot, rules RuleTable) *mapper {
	m := &mapper{snap: snap, rules: rules}
	if sid := snap.DomainSID(); !sid.IsBlank() {
		m.domainSID = sid.String()
	}
	if guid, found := snap.PropertyGUID("ms-Mcs-AdmPwd"); found {
		m.lapsGUID = guid
	}
	return m
}

// domainFromDN joins the dc components of a distinguished name into a DNS
// style domain name, keeping the casing the directory uses.
func domainFromDN(dn string) string {
	var parts []string
	for _, element := range strings.Split(dn, ",") {
		if stringsplus.EqualFoldHasPrefix(element, "dc=") {
			parts = append(parts, element[3:])
		}
	}
	return strings.Join(parts, ".")
}

// typeString is the principal type label BloodHound understands. Trusts
// have no node kind of their own.
func typeString(o *snapshot.Object) string {
	switch o.Kind() {
	case snapshot.KindTrust, snapshot.KindUnknown:
		return "Unknown"
	}
	return o.Kind().String()
}

// objectIdentifier is the stable identifier other nodes reference a
// principal by: the SID for accounts, groups and domains, the GUID for the
// structural kinds.
func objectIdentifier(o *snapshot.Object) string {
	switch o.Kind() {
	case snapshot.KindUser, snapshot.KindComputer, snapshot.KindGroup, snapshot.KindDomain:
		if sid := o.SID(); !sid.IsBlank() {
			return sid.String()
		}
	case snapshot.KindOU, snapshot.KindContainer, snapshot.KindGPO:
		if guid, found := o.GUID(); found {
			return strings.ToUpper(guid.String())
		}
	}
	return unknownIdentifier
}

// guidIdentifier is the node identifier of the GUID keyed kinds, blank when
// the snapshot carries no objectGUID.
func guidIdentifier(o *snapshot.Object) string {
	if guid, found := o.GUID(); found {
		return strings.ToUpper(guid.String())
	}
	return ""
}

func firstString(o *snapshot.Object, name string) string {
	s, _ := o.Attr(name).FirstString()
	return s
}

// optionalString keeps absent attributes apart from empty ones, they come
// out as null.
func optionalString(o *snapshot.Object, name string) *string {
	if s, found := o.Attr(name).FirstString(); found {
		return &s
	}
	return nil
}

func unixTimeOr(o *snapshot.Object, name string, missing int64) int64 {
	if t, found := o.Attr(name).FirstUnixTime(); found {
		return t
	}
	return missing
}

func stringList(o *snapshot.Object, name string) []string {
	list := o.Attr(name).StringSlice()
	if list == nil {
		list = []string{}
	}
	return list
}

// sidValues parses every value of a binary SID attribute, skipping what
// does not parse.
func sidValues(values snapshot.AttributeValues) []windowssecurity.SID {
	var sids []windowssecurity.SID
	for _, value := range values {
		blob, ok := value.Raw().([]byte)
		if !ok {
			continue
		}
		sid, _, err := windowssecurity.ParseSID(blob)
		if err != nil {
			continue
		}
		sids = append(sids, sid)
	}
	return sids
}

func sidStrings(values snapshot.AttributeValues) []string {
	list := []string{}
	for _, sid := range sidValues(values) {
		list = append(list, sid.String())
	}
	return list
}

func isDeleted(o *snapshot.Object) bool {
	deleted, _ := o.Attr("isDeleted").FirstBool()
	return deleted
}

func isACLProtected(o *snapshot.Object) bool {
	sd := o.SecurityDescriptor()
	return sd != nil && sd.IsProtected()
}

func adminCount(o *snapshot.Object) bool {
	count, _ := o.Attr("adminCount").FirstInt()
	return count == 1
}

// childObjects lists the direct children of a container style node in file
// order.
func (m *mapper) childObjects(o *snapshot.Object) []TypedPrincipal {
	children := make([]TypedPrincipal, 0)
	for _, child := range m.snap.ChildrenOf(o.DistinguishedName()) {
		children = append(children, TypedPrincipal{
			ObjectIdentifier: objectIdentifier(child),
			ObjectType:       typeString(child),
		})
	}
	return children
}

// policyLinks parses the first gPLink value into link entries.
func policyLinks(o *snapshot.Object) []Link {
	links := []Link{}
	if gplink, found := o.Attr("gPLink").FirstString(); found {
		links = append(links, ParseGPLink(gplink)...)
	}
	return links
}

// primaryGroupSID is implied rather than stored: every account belongs to
// the domain group its primaryGroupID names, Domain Users when unset.
func (m *mapper) primaryGroupSID(o *snapshot.Object) string {
	groupID, found := o.Attr("primaryGroupID").FirstInt()
	if !found {
		groupID = 513
	}
	return m.domainSID + "-" + strconv.FormatInt(groupID, 10)
}

// delegationTargets resolves constrained delegation service names to the
// computers behind them. A dotted hostname outside the snapshot is kept
// verbatim, the machine may live in another domain.
func (m *mapper) delegationTargets(o *snapshot.Object) []TypedPrincipal {
	targets := make([]TypedPrincipal, 0)
	for _, host := range o.Attr("msDS-AllowedToDelegateTo").StringSlice() {
		target := host
		if parts := strings.Split(host, "/"); len(parts) > 1 {
			target = parts[1]
		}
		if computer, found := m.snap.ObjectByComputerName(target); found {
			targets = append(targets, TypedPrincipal{
				ObjectIdentifier: objectIdentifier(computer),
				ObjectType:       typeString(computer),
			})
		} else if strings.Contains(target, ".") {
			targets = append(targets, TypedPrincipal{
				ObjectIdentifier: strings.ToUpper(target),
				ObjectType:       "Computer",
			})
		} else {
			m.snap.Diagnostics.DanglingReference(errors.Errorf("delegation target %v is not in the snapshot", host))
		}
	}
	return targets
}

// sidHistoryPrincipals resolves migrated identities. A SID from a dead
// forest keeps the fallback type of the account kind carrying it.
func (m *mapper) sidHistoryPrincipals(o *snapshot.Object, fallback string) []TypedPrincipal {
	principals := make([]TypedPrincipal, 0)
	for _, sid := range sidValues(o.Attr("sIDHistory")) {
		principal := TypedPrincipal{ObjectIdentifier: sid.String(), ObjectType: fallback}
		if previous, found := m.snap.ObjectBySID(sid); found {
			principal.ObjectType = typeString(previous)
		}
		principals = append(principals, principal)
	}
	return principals
}

// foreignPrincipalSID recovers the SID a foreign security principal's
// distinguished name spells out.
func foreignPrincipalSID(dn string) (windowssecurity.SID, bool) {
	if !stringsplus.EqualFoldHasPrefix(dn, "cn=s-1-") {
		return "", false
	}
	name, _, _ := strings.Cut(dn[3:], ",")
	sid, err := windowssecurity.ParseStringSID(name)
	if err != nil {
		return "", false
	}
	return sid, true
}
