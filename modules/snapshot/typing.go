package snapshot

import (
	"strings"

	"github.com/pkg/errors"
)

// userAccountControl bits.
const (
	UAC_SCRIPT                         = 0x0001
	UAC_ACCOUNTDISABLE                 = 0x0002
	UAC_HOMEDIR_REQUIRED               = 0x0008
	UAC_LOCKOUT                        = 0x0010
	UAC_PASSWD_NOTREQD                 = 0x0020
	UAC_PASSWD_CANT_CHANGE             = 0x0040
	UAC_NORMAL_ACCOUNT                 = 0x0200
	UAC_INTERDOMAIN_TRUST_ACCOUNT      = 0x0800
	UAC_WORKSTATION_TRUST_ACCOUNT      = 0x1000
	UAC_SERVER_TRUST_ACCOUNT           = 0x2000
	UAC_DONT_EXPIRE_PASSWORD           = 0x10000
	UAC_SMARTCARD_REQUIRED             = 0x40000
	UAC_TRUSTED_FOR_DELEGATION         = 0x80000
	UAC_NOT_DELEGATED                  = 0x100000
	UAC_USE_DES_KEY_ONLY               = 0x200000
	UAC_DONT_REQ_PREAUTH               = 0x400000
	UAC_PASSWORD_EXPIRED               = 0x800000
	UAC_TRUSTED_TO_AUTH_FOR_DELEGATION = 0x1000000
)

// SAM_MACHINE_ACCOUNT is the sAMAccountType of computer accounts,
// SAM_TRUST_ACCOUNT of interdomain trust accounts.
const (
	SAM_MACHINE_ACCOUNT = 805306369
	SAM_TRUST_ACCOUNT   = 805306370
)

// ObjectKind is the graph category an object belongs to, fixed before any
// edge mapping happens.
type ObjectKind int

const (
	KindUnknown ObjectKind = iota
	KindUser
	KindComputer
	KindGroup
	KindDomain
	KindOU
	KindContainer
	KindGPO
	KindTrust
)

var kindNames = map[ObjectKind]string{
	KindUnknown:   "Unknown",
	KindUser:      "User",
	KindComputer:  "Computer",
	KindGroup:     "Group",
	KindDomain:    "Domain",
	KindOU:        "OU",
	KindContainer: "Container",
	KindGPO:       "GPO",
	KindTrust:     "Trust",
}

func (k ObjectKind) String() string {
	if name, found := kindNames[k]; found {
		return name
	}
	return "Unknown"
}

// Bit returns the kind as a bitmask bit for kind set matching.
func (k ObjectKind) Bit() uint32 {
	return 1 << uint(k)
}

func ParseObjectKind(s string) (ObjectKind, error) {
	for kind, name := range kindNames {
		if strings.EqualFold(s, name) {
			return kind, nil
		}
	}
	return KindUnknown, errors.Errorf("%s is not a known object kind", s)
}

// resolveKind types the object. A gPCFileSysPath is decisive on its own,
// some policy objects lack the groupPolicyContainer class. After that the
// most specific objectClass wins, so a computer (which also carries the
// user class) is a Computer, never a User.
func (o *Object) resolveKind() ObjectKind {
	if o.HasAttr("gPCFileSysPath") {
		return KindGPO
	}
	if o.HasClass("computer") {
		return KindComputer
	}
	if o.HasClass("user") {
		if _, found := o.Attr("userAccountControl").FirstInt(); found {
			return KindUser
		}
	}
	if o.HasClass("group") {
		return KindGroup
	}
	if o.HasClass("domain") {
		return KindDomain
	}
	if o.HasClass("organizationalUnit") {
		return KindOU
	}
	if o.HasClass("container") {
		return KindContainer
	}
	if o.HasClass("groupPolicyContainer") {
		return KindGPO
	}
	if o.HasClass("trustedDomain") {
		return KindTrust
	}
	return KindUnknown
}

// UserAccountControl returns the object's UAC bits, zero when absent.
func (o *Object) UserAccountControl() int64 {
	uac, _ := o.Attr("userAccountControl").FirstInt()
	return uac
}

// Disabled is the ACCOUNTDISABLE bit of userAccountControl.
func (o *Object) Disabled() bool {
	return o.UserAccountControl()&UAC_ACCOUNTDISABLE != 0
}
