package windowssecurity

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/lkarlslund/snaphound/modules/ui"
	"github.com/lkarlslund/snaphound/modules/util"
	"github.com/pkg/errors"
)

// ErrMalformedSecurityDescriptor covers every way a self-relative security
// descriptor blob can fail to parse. Wrapped errors carry the detail.
var ErrMalformedSecurityDescriptor = errors.New("malformed security descriptor")

type SecurityDescriptorControlFlag uint16
type Mask uint32

// http://www.selfadsi.org/deep-inside/ad-security-descriptors.htm

const (
	CONTROLFLAG_OWNER_DEFAULTED     SecurityDescriptorControlFlag = 0x0001
	CONTROLFLAG_GROUP_DEFAULTED     SecurityDescriptorControlFlag = 0x0002
	CONTROLFLAG_DACL_PRESENT        SecurityDescriptorControlFlag = 0x0004
	CONTROLFLAG_DACL_DEFAULTED      SecurityDescriptorControlFlag = 0x0008
	CONTROLFLAG_SACL_PRESENT        SecurityDescriptorControlFlag = 0x0010
	CONTROLFLAG_SACL_DEFAULTED      SecurityDescriptorControlFlag = 0x0020
	CONTROLFLAG_DACL_AUTO_INHERITED SecurityDescriptorControlFlag = 0x0400
	CONTROLFLAG_SACL_AUTO_INHERITED SecurityDescriptorControlFlag = 0x0800
	CONTROLFLAG_DACL_PROTECTED      SecurityDescriptorControlFlag = 0x1000
	CONTROLFLAG_SACL_PROTECTED      SecurityDescriptorControlFlag = 0x2000
	CONTROLFLAG_SELF_RELATIVE       SecurityDescriptorControlFlag = 0x8000

	// ACE.Type
	ACETYPE_ACCESS_ALLOWED        = 0x00
	ACETYPE_ACCESS_DENIED         = 0x01
	ACETYPE_ACCESS_ALLOWED_OBJECT = 0x05
	ACETYPE_ACCESS_DENIED_OBJECT  = 0x06

	// ACE.ACEFlags
	ACEFLAG_OBJECT_INHERIT_ACE       = 0x01 // Noncontainer children inherit this ACE
	ACEFLAG_INHERIT_ACE              = 0x02 // Child objects inherit this ACE
	ACEFLAG_NO_PROPAGATE_INHERIT_ACE = 0x04 // Only the NEXT child inherits this, not further down the line
	ACEFLAG_INHERIT_ONLY_ACE         = 0x08 // Not valid for this object, only for children
	ACEFLAG_INHERITED_ACE            = 0x10 // This ACE was inherited from parent object

	// ACE.Flags - present if this is a ACETYPE_ACCESS_*_OBJECT Type
	OBJECT_TYPE_PRESENT           = 0x01
	INHERITED_OBJECT_TYPE_PRESENT = 0x02
)

const (
	RIGHT_GENERIC_READ    Mask = 0x80000000
	RIGHT_GENERIC_WRITE   Mask = 0x40000000
	RIGHT_GENERIC_EXECUTE Mask = 0x20000000
	RIGHT_GENERIC_ALL     Mask = 0x10000000

	RIGHT_SYNCRONIZE   Mask = 0x00100000
	RIGHT_WRITE_OWNER  Mask = 0x00080000 /* The right to modify the owner section of the security descriptor. */
	RIGHT_WRITE_DACL   Mask = 0x00040000 /* The right to modify the DACL for the object. */
	RIGHT_READ_CONTROL Mask = 0x00020000 /* The right to read all data from the security descriptor except the SACL. */
	RIGHT_DELETE       Mask = 0x00010000 /* The right to delete the object. */

	RIGHT_DS_CONTROL_ACCESS Mask = 0x00000100 /*
		A specific control access right (if the ObjectType GUID refers to an extended right registered in the forest schema)
		or the right to read a confidential property (if the ObjectType GUID refers to a confidential property).
		If the GUID is not present, then all extended rights are granted */
	RIGHT_DS_LIST_OBJECT             Mask = 0x00000080
	RIGHT_DS_DELETE_TREE             Mask = 0x00000040
	RIGHT_DS_WRITE_PROPERTY          Mask = 0x00000020 /*
		The right to write one or more properties of the object specified by the ObjectType GUID.
		If the ObjectType GUID is not present or is all 0s, then the right to write all properties is granted. */
	RIGHT_DS_READ_PROPERTY           Mask = 0x00000010
	RIGHT_DS_WRITE_PROPERTY_EXTENDED Mask = 0x00000008 /* The right to execute a validated write access right. AKA DsSelf */
	RIGHT_DS_LIST_CONTENTS           Mask = 0x00000004
	RIGHT_DS_DELETE_CHILD            Mask = 0x00000002
	RIGHT_DS_CREATE_CHILD            Mask = 0x00000001
)

var (
	NullGUID = uuid.UUID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

type SecurityDescriptor struct {
	Owner   SID
	Group   SID
	SACL    ACL
	DACL    ACL
	Control SecurityDescriptorControlFlag
}

type ACL struct {
	Entries  []ACE
	Revision byte
}

type ACE struct {
	SID                 SID
	Mask                Mask
	Flags               uint32
	InheritedObjectType uuid.UUID
	ObjectType          uuid.UUID
	ACEFlags            byte
	Type                byte
}

func ParseSecurityDescriptor(data []byte) (SecurityDescriptor, error) {
	var result SecurityDescriptor
	if len(data) < 20 {
		return result, errors.Wrap(ErrMalformedSecurityDescriptor, "not enough data for header")
	}
	if data[0] != 1 {
		return result, errors.Wrapf(ErrMalformedSecurityDescriptor, "unknown revision %v", data[0])
	}
	if data[1] != 0 {
		return result, errors.Wrap(ErrMalformedSecurityDescriptor, "unknown Sbz1")
	}
	result.Control = SecurityDescriptorControlFlag(binary.LittleEndian.Uint16(data[2:4]))
	offsetOwner := binary.LittleEndian.Uint32(data[4:8])
	if result.Control&CONTROLFLAG_OWNER_DEFAULTED == 0 && offsetOwner == 0 {
		ui.Trace().Msgf("Security descriptor has no owner, and does not default")
	}
	offsetGroup := binary.LittleEndian.Uint32(data[8:12])
	if result.Control&CONTROLFLAG_GROUP_DEFAULTED == 0 && offsetGroup == 0 {
		ui.Trace().Msgf("Security descriptor has no group, and does not default")
	}
	offsetSACL := binary.LittleEndian.Uint32(data[12:16])
	if result.Control&CONTROLFLAG_SACL_PRESENT != 0 && offsetSACL == 0 {
		ui.Trace().Msgf("Security descriptor has no SACL, but claims to have it")
	}
	offsetDACL := binary.LittleEndian.Uint32(data[16:20])
	if result.Control&CONTROLFLAG_DACL_PRESENT != 0 && offsetDACL == 0 {
		ui.Trace().Msgf("Security descriptor has no DACL, but claims to have it")
	}

	var err error
	if offsetOwner > 0 {
		if int(offsetOwner) >= len(data) {
			return result, errors.Wrap(ErrMalformedSecurityDescriptor, "owner offset exceeds available data")
		}
		result.Owner, _, err = ParseSID(data[offsetOwner:])
		if err != nil {
			return result, errors.Wrap(ErrMalformedSecurityDescriptor, err.Error())
		}
	}
	if offsetGroup > 0 {
		if int(offsetGroup) >= len(data) {
			return result, errors.Wrap(ErrMalformedSecurityDescriptor, "group offset exceeds available data")
		}
		result.Group, _, err = ParseSID(data[offsetGroup:])
		if err != nil {
			return result, errors.Wrap(ErrMalformedSecurityDescriptor, err.Error())
		}
	}
	if offsetSACL > 0 {
		if int(offsetSACL) >= len(data) {
			return result, errors.Wrap(ErrMalformedSecurityDescriptor, "SACL offset exceeds available data")
		}
		result.SACL, err = ParseACL(data[offsetSACL:])
		if err != nil {
			return result, err
		}
	}
	if offsetDACL > 0 {
		if int(offsetDACL) >= len(data) {
			return result, errors.Wrap(ErrMalformedSecurityDescriptor, "DACL offset exceeds available data")
		}
		result.DACL, err = ParseACL(data[offsetDACL:])
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func ParseACL(data []byte) (ACL, error) {
	var acl ACL
	if len(data) < 8 {
		return acl, errors.Wrap(ErrMalformedSecurityDescriptor, "not enough data to be an ACL")
	}
	acl.Revision = data[0]
	if acl.Revision != 1 && acl.Revision != 2 && acl.Revision != 4 {
		return acl, errors.Wrapf(ErrMalformedSecurityDescriptor, "unsupported ACL revision %v", acl.Revision)
	}
	if data[1] != 0 {
		return acl, errors.Wrap(ErrMalformedSecurityDescriptor, "bad Sbz1")
	}
	aclsize := int(binary.LittleEndian.Uint16(data[2:4]))
	if aclsize > len(data) {
		return acl, errors.Wrap(ErrMalformedSecurityDescriptor, "the ACL size exceeds available data")
	}
	aclcount := int(binary.LittleEndian.Uint16(data[4:6]))
	if data[6] != 0 {
		return acl, errors.Wrap(ErrMalformedSecurityDescriptor, "bad Sbz2")
	}

	acledata := data[8:aclsize]

	acl.Entries = make([]ACE, aclcount)

	for i := 0; i < aclcount; i++ {
		var err error
		var ace ACE
		ace, acledata, err = ParseACLentry(acledata)
		if err != nil {
			return acl, err
		}
		acl.Entries[i] = ace
	}

	return acl, nil
}

func ParseACLentry(odata []byte) (ACE, []byte, error) {
	var ace ACE
	var err error
	// ACEHEADER
	if len(odata) < 8 {
		return ace, odata, errors.Wrap(ErrMalformedSecurityDescriptor, "not enough data for ACE header")
	}
	ace.Type = odata[0]
	ace.ACEFlags = odata[1]
	acesize := int(binary.LittleEndian.Uint16(odata[2:]))
	if acesize < 8 || acesize > len(odata) {
		return ace, odata, errors.Wrapf(ErrMalformedSecurityDescriptor, "ACE size %v exceeds available data", acesize)
	}
	ace.Mask = Mask(binary.LittleEndian.Uint32(odata[4:]))

	data := odata[8:acesize]
	if ace.Type == ACETYPE_ACCESS_ALLOWED_OBJECT || ace.Type == ACETYPE_ACCESS_DENIED_OBJECT {
		if len(data) < 4 {
			return ace, odata, errors.Wrap(ErrMalformedSecurityDescriptor, "not enough data for object ACE flags")
		}
		ace.Flags = binary.LittleEndian.Uint32(data[0:])
		data = data[4:]
		if ace.Flags&OBJECT_TYPE_PRESENT != 0 {
			if len(data) < 16 {
				return ace, odata, errors.Wrap(ErrMalformedSecurityDescriptor, "not enough data for object type GUID")
			}
			ace.ObjectType, err = uuid.FromBytes(data[0:16])
			if err != nil {
				return ace, data, errors.Wrap(ErrMalformedSecurityDescriptor, err.Error())
			}
			ace.ObjectType = util.SwapUUIDEndianess(ace.ObjectType)
			data = data[16:]
		}
		if ace.Flags&INHERITED_OBJECT_TYPE_PRESENT != 0 {
			if len(data) < 16 {
				return ace, odata, errors.Wrap(ErrMalformedSecurityDescriptor, "not enough data for inherited object type GUID")
			}
			ace.InheritedObjectType, err = uuid.FromBytes(data[0:16])
			if err != nil {
				return ace, data, errors.Wrap(ErrMalformedSecurityDescriptor, err.Error())
			}
			ace.InheritedObjectType = util.SwapUUIDEndianess(ace.InheritedObjectType)
			data = data[16:]
		}
	}

	switch ace.Type {
	case ACETYPE_ACCESS_ALLOWED, ACETYPE_ACCESS_DENIED, ACETYPE_ACCESS_ALLOWED_OBJECT, ACETYPE_ACCESS_DENIED_OBJECT:
		ace.SID, _, err = ParseSID(data)
		if err != nil {
			return ace, odata, errors.Wrap(ErrMalformedSecurityDescriptor, err.Error())
		}
	default:
		// Not an access ACE, skip it by its declared size
	}
	return ace, odata[acesize:], nil
}

// IsInherited is true when the ACE came down from a parent object rather
// than being set on the object itself.
func (a ACE) IsInherited() bool {
	return a.ACEFlags&ACEFLAG_INHERITED_ACE != 0
}

// AppliesToTarget is false for inherit-only ACEs, which describe what
// children will get and grant nothing on the object carrying them.
func (a ACE) AppliesToTarget() bool {
	return a.ACEFlags&ACEFLAG_INHERIT_ONLY_ACE == 0
}

func (a ACE) String() string {
	var result string
	switch a.Type {
	case ACETYPE_ACCESS_ALLOWED:
		result += "Allow"
	case ACETYPE_ACCESS_ALLOWED_OBJECT:
		result += "Allow object"
	case ACETYPE_ACCESS_DENIED:
		result += "Deny"
	case ACETYPE_ACCESS_DENIED_OBJECT:
		result += "Deny object"
	default:
		result += fmt.Sprintf("Unknown type %v", a.Type)
	}

	result += " " + a.SID.String()

	if a.Flags&OBJECT_TYPE_PRESENT != 0 {
		result += " object type " + a.ObjectType.String()
	}
	if a.Flags&INHERITED_OBJECT_TYPE_PRESENT != 0 {
		result += " inherited object type " + a.InheritedObjectType.String()
	}

	result += fmt.Sprintf(" %08x", uint32(a.Mask))

	var rights []string
	if a.Mask&RIGHT_GENERIC_READ != 0 {
		rights = append(rights, "GENERIC_READ")
	}
	if a.Mask&RIGHT_GENERIC_WRITE != 0 {
		rights = append(rights, "GENERIC_WRITE")
	}
	if a.Mask&RIGHT_GENERIC_EXECUTE != 0 {
		rights = append(rights, "GENERIC_EXECUTE")
	}
	if a.Mask&RIGHT_GENERIC_ALL != 0 {
		rights = append(rights, "GENERIC_ALL")
	}
	if a.Mask&RIGHT_SYNCRONIZE != 0 {
		rights = append(rights, "SYNCRONIZE")
	}
	if a.Mask&RIGHT_WRITE_OWNER != 0 {
		rights = append(rights, "WRITE_OWNER")
	}
	if a.Mask&RIGHT_WRITE_DACL != 0 {
		rights = append(rights, "WRITE_DACL")
	}
	if a.Mask&RIGHT_READ_CONTROL != 0 {
		rights = append(rights, "READ_CONTROL")
	}
	if a.Mask&RIGHT_DELETE != 0 {
		rights = append(rights, "DELETE")
	}
	if a.Mask&RIGHT_DS_CONTROL_ACCESS != 0 {
		rights = append(rights, "DS_CONTROL_ACCESS")
	}
	if a.Mask&RIGHT_DS_LIST_OBJECT != 0 {
		rights = append(rights, "DS_LIST_OBJECT")
	}
	if a.Mask&RIGHT_DS_DELETE_TREE != 0 {
		rights = append(rights, "DS_DELETE_TREE")
	}
	if a.Mask&RIGHT_DS_WRITE_PROPERTY != 0 {
		rights = append(rights, "DS_WRITE_PROPERTY")
	}
	if a.Mask&RIGHT_DS_READ_PROPERTY != 0 {
		rights = append(rights, "DS_READ_PROPERTY")
	}
	if a.Mask&RIGHT_DS_WRITE_PROPERTY_EXTENDED != 0 {
		rights = append(rights, "DS_WRITE_PROPERTY_EXTENDED")
	}
	if a.Mask&RIGHT_DS_LIST_CONTENTS != 0 {
		rights = append(rights, "DS_LIST_CONTENTS")
	}
	if a.Mask&RIGHT_DS_DELETE_CHILD != 0 {
		rights = append(rights, "DS_DELETE_CHILD")
	}
	if a.Mask&RIGHT_DS_CREATE_CHILD != 0 {
		rights = append(rights, "DS_CREATE_CHILD")
	}
	result += " " + strings.Join(rights, " | ")
	return result
}

func (sd SecurityDescriptor) String() string {
	var flags []string
	if sd.Control&CONTROLFLAG_OWNER_DEFAULTED != 0 {
		flags = append(flags, "OWNER_DEFAULTED")
	}
	if sd.Control&CONTROLFLAG_GROUP_DEFAULTED != 0 {
		flags = append(flags, "GROUP_DEFAULTED")
	}
	if sd.Control&CONTROLFLAG_DACL_PRESENT != 0 {
		flags = append(flags, "DACL_PRESENT")
	}
	if sd.Control&CONTROLFLAG_DACL_DEFAULTED != 0 {
		flags = append(flags, "DACL_DEFAULTED")
	}
	if sd.Control&CONTROLFLAG_SACL_PRESENT != 0 {
		flags = append(flags, "SACL_PRESENT")
	}
	if sd.Control&CONTROLFLAG_SACL_DEFAULTED != 0 {
		flags = append(flags, "SACL_DEFAULTED")
	}
	if sd.Control&CONTROLFLAG_DACL_AUTO_INHERITED != 0 {
		flags = append(flags, "DACL_AUTO_INHERITED")
	}
	if sd.Control&CONTROLFLAG_SACL_AUTO_INHERITED != 0 {
		flags = append(flags, "SACL_AUTO_INHERITED")
	}
	if sd.Control&CONTROLFLAG_DACL_PROTECTED != 0 {
		flags = append(flags, "DACL_PROTECTED")
	}
	if sd.Control&CONTROLFLAG_SACL_PROTECTED != 0 {
		flags = append(flags, "SACL_PROTECTED")
	}
	result := "SecurityDescriptor: " + strings.Join(flags, " | ") + "\n"
	if !sd.Owner.IsNull() {
		result += "Owner: " + sd.Owner.String() + "\n"
	}
	if !sd.Group.IsNull() {
		result += "Group: " + sd.Group.String() + "\n"
	}
	if sd.Control&CONTROLFLAG_DACL_PRESENT != 0 {
		result += "DACL:\n" + sd.DACL.String()
	}
	if sd.Control&CONTROLFLAG_SACL_PRESENT != 0 {
		result += "SACL:\n" + sd.SACL.String()
	}
	return result
}

func (a ACL) String() string {
	result := fmt.Sprintf("ACL revision %v:\n", a.Revision)
	for _, ace := range a.Entries {
		result += "ACE: " + ace.String() + "\n"
	}
	return result
}

// IsProtected is true when the DACL blocks inheritance from containers above.
func (sd SecurityDescriptor) IsProtected() bool {
	return sd.Control&CONTROLFLAG_DACL_PROTECTED != 0
}
