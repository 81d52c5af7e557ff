package snapshot

import (
	"strings"

	"github.com/gofrs/uuid"
	"github.com/lkarlslund/snaphound/modules/util"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
)

// Object is one directory object from the snapshot. The arena index is its
// stable handle, objects never move after decode. The distinguished name,
// class list, SID, GUID and kind are resolved once during the cache pass,
// everything else goes through the attribute bag.
type Object struct {
	snap       *Snapshot
	attributes AttributeBag

	index    int
	position int64

	dn      string
	classes []string
	kind    ObjectKind
	sid     windowssecurity.SID
	guid    uuid.UUID
	hasGUID bool

	sd *windowssecurity.SecurityDescriptor
}

func (o *Object) Index() int {
	return o.index
}

func (o *Object) Kind() ObjectKind {
	return o.kind
}

func (o *Object) DistinguishedName() string {
	return o.dn
}

// SID is the object's objectSid, blank for objects that have none.
func (o *Object) SID() windowssecurity.SID {
	return o.sid
}

// GUID is the object's objectGUID in display byte order.
func (o *Object) GUID() (uuid.UUID, bool) {
	return o.guid, o.hasGUID
}

// Classes returns the objectClass chain in snapshot order, most general
// class first.
func (o *Object) Classes() []string {
	return o.classes
}

func (o *Object) HasClass(name string) bool {
	for _, c := range o.classes {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// SecurityDescriptor is the parsed nTSecurityDescriptor, nil when the object
// has none or the blob was malformed.
func (o *Object) SecurityDescriptor() *windowssecurity.SecurityDescriptor {
	return o.sd
}

// Attr looks an attribute up by name, case insensitively. Missing
// attributes come back as an empty value list.
func (o *Object) Attr(name string) AttributeValues {
	attr, found := o.snap.AttributeIndex(name)
	if !found {
		return nil
	}
	values, _ := o.attributes.Get(attr)
	return values
}

func (o *Object) HasAttr(name string) bool {
	attr, found := o.snap.AttributeIndex(name)
	if !found {
		return false
	}
	_, found = o.attributes.Get(attr)
	return found
}

// AttrValues looks up by dictionary index for callers that already resolved
// the name.
func (o *Object) AttrValues(attr Attribute) (AttributeValues, bool) {
	return o.attributes.Get(attr)
}

func (o *Object) Iterate(f func(attr Attribute, values AttributeValues) bool) {
	o.attributes.Iterate(f)
}

// resolveIdentity fills the fields every later stage keys on. Runs once per
// object during the cache pass.
func (o *Object) resolveIdentity() {
	o.dn, _ = o.Attr("distinguishedName").FirstString()
	o.classes = o.Attr("objectClass").StringSlice()

	if blob, found := o.Attr("objectSid").FirstBlob(); found {
		if sid, _, err := windowssecurity.ParseSID(blob); err == nil {
			o.sid = sid
		} else {
			o.snap.Diagnostics.SchemaViolation(err)
		}
	}

	if blob, found := o.Attr("objectGUID").FirstBlob(); found && len(blob) == 16 {
		if raw, err := uuid.FromBytes(blob); err == nil {
			o.guid = util.SwapUUIDEndianess(raw)
			o.hasGUID = true
		}
	}

	o.kind = o.resolveKind()
}
