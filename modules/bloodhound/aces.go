package bloodhound

import (
	"github.com/lkarlslund/snaphound/modules/snapshot"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
)

// aces flattens an object's security descriptor into the entries BloodHound
// reads: ownership plus every right the DACL grants. Deny entries and
// entries that exist only to be inherited by children grant nothing here.
// Principals outside the snapshot cannot be typed and are dropped.
func (m *mapper) aces(o *snapshot.Object) []ACE {
	aces := make([]ACE, 0)
	sd := o.SecurityDescriptor()
	if sd == nil {
		return aces
	}

	if !sd.Owner.IsBlank() {
		if owner, found := m.snap.ObjectBySID(sd.Owner); found {
			aces = append(aces, ACE{
				PrincipalSID:  sd.Owner.String(),
				PrincipalType: typeString(owner),
				RightName:     "Owns",
				IsInherited:   false,
			})
		}
	}

	kind := o.Kind()
	hasLAPS := o.HasAttr("ms-Mcs-AdmPwdExpirationTime")

	for _, entry := range sd.DACL.Entries {
		if entry.Type != windowssecurity.ACETYPE_ACCESS_ALLOWED &&
			entry.Type != windowssecurity.ACETYPE_ACCESS_ALLOWED_OBJECT {
			continue
		}
		if !entry.AppliesToTarget() {
			continue
		}
		principal, found := m.snap.ObjectBySID(entry.SID)
		if !found {
			continue
		}
		for _, right := range m.rules.Rights(entry, kind, hasLAPS, m.lapsGUID) {
			aces = append(aces, ACE{
				PrincipalSID:  entry.SID.String(),
				PrincipalType: typeString(principal),
				RightName:     right,
				IsInherited:   entry.IsInherited(),
			})
		}
	}
	return aces
}
