package bloodhound

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/gofrs/uuid"
	"github.com/lkarlslund/snaphound/modules/snapshot"
	"github.com/lkarlslund/snaphound/modules/util"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
)

// The helpers below assemble a small but realistic snapshot file in memory:
// a domain with an OU holding two users and a computer, a policy, the Users
// container with a group, a builtin group and a trust. The security
// descriptors exercise ownership, allow, deny, inherit only and object
// scoped entries.

type fixtureWriter struct {
	bytes.Buffer
}

func (b *fixtureWriter) u16(v uint16) {
	var t [2]byte
	binary.LittleEndian.PutUint16(t[:], v)
	b.Write(t[:])
}

func (b *fixtureWriter) u32(v uint32) {
	var t [4]byte
	binary.LittleEndian.PutUint32(t[:], v)
	b.Write(t[:])
}

func (b *fixtureWriter) u64(v uint64) {
	var t [8]byte
	binary.LittleEndian.PutUint64(t[:], v)
	b.Write(t[:])
}

// fixedWide writes s as UTF-16, NUL padded to chars units.
func (b *fixtureWriter) fixedWide(s string, chars int) {
	units := utf16.Encode([]rune(s))
	for i := 0; i < chars; i++ {
		var u uint16
		if i < len(units) {
			u = units[i]
		}
		b.u16(u)
	}
}

// lenWide writes the length prefixed wide string form the dictionaries use.
func (b *fixtureWriter) lenWide(s string) {
	units := utf16.Encode([]rune(s))
	b.u32(uint32(len(units) + 1))
	for _, u := range units {
		b.u16(u)
	}
	b.u16(0)
}

type fixtureProperty struct {
	name   string
	syntax snapshot.AttributeSyntax
	guid   []byte
}

type fixtureEntry struct {
	attr uint32
	off  int
}

type fixtureObject struct {
	entries []fixtureEntry
	values  fixtureWriter
}

func (fo *fixtureObject) add(attr int, value []byte) {
	fo.entries = append(fo.entries, fixtureEntry{attr: uint32(attr), off: fo.values.Len()})
	fo.values.Write(value)
}

type fixtureSnapshot struct {
	fixtureWriter
	properties []fixtureProperty
}

func newFixtureSnapshot(objectCount int, properties []fixtureProperty) *fixtureSnapshot {
	fs := &fixtureSnapshot{properties: properties}
	fs.WriteString("win-ad-ob")
	fs.WriteByte(0)
	fs.u32(0x00010001)
	fs.u64(133444736000000000)
	fs.fixedWide("Snapshot of testlab", 260)
	fs.fixedWide("DC01.testlab.local", 260)
	fs.u32(uint32(objectCount))
	fs.u32(uint32(len(properties)))
	fs.u64(0) // dictionary offset, patched by finish
	fs.u64(0) // end offset, patched by finish
	return fs
}

func (fs *fixtureSnapshot) object(fo *fixtureObject) {
	headerSize := 8 + len(fo.entries)*8
	fs.u32(uint32(headerSize + fo.values.Len()))
	fs.u32(uint32(len(fo.entries)))
	for _, e := range fo.entries {
		fs.u32(e.attr)
		fs.u32(uint32(int32(headerSize + e.off)))
	}
	fs.Write(fo.values.Bytes())
}

func (fs *fixtureSnapshot) finish() []byte {
	offsetProperties := fs.Len()

	fs.u32(uint32(len(fs.properties)))
	for _, p := range fs.properties {
		fs.lenWide(p.name)
		fs.u32(0)
		fs.u32(uint32(p.syntax))
		fs.lenWide("CN=" + p.name + ",CN=Schema,CN=Configuration,DC=testlab,DC=local")
		guid := p.guid
		if guid == nil {
			guid = make([]byte, 16)
		}
		fs.Write(guid)
		fs.Write(make([]byte, 16))
		fs.u32(0)
	}

	classes := []struct{ name, cn string }{
		{"top", "Top"},
		{"person", "Person"},
		{"computer", "Computer"},
		{"group", "Group"},
	}
	fs.u32(uint32(len(classes)))
	for _, c := range classes {
		fs.lenWide(c.name)
		fs.lenWide("CN=" + c.cn + ",CN=Schema,CN=Configuration,DC=testlab,DC=local")
		fs.lenWide(c.name)
		fs.lenWide("top")
		fs.Write(make([]byte, 16))
		fs.u32(0) // offset data
		fs.u32(0) // blocks
		fs.u32(0) // unknown 16 byte records
		fs.u32(0) // possible superiors
		fs.u32(0) // auxiliary classes
	}

	fs.u32(0) // no rights

	data := fs.Bytes()
	binary.LittleEndian.PutUint64(data[1070:], uint64(offsetProperties))
	binary.LittleEndian.PutUint64(data[1078:], uint64(len(data)))
	return data
}

// Value block encoders, one per attribute syntax the fixture uses.

func appendUint16(data []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(data, b[:]...)
}

func appendUint32(data []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(data, b[:]...)
}

func appendUint64(data []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(data, b[:]...)
}

func encodeStrings(values ...string) []byte {
	data := appendUint32(nil, uint32(len(values)))
	var chars []byte
	offsets := make([]uint32, len(values))
	base := 4 + 4*len(values)
	for i, s := range values {
		offsets[i] = uint32(base + len(chars))
		for _, u := range utf16.Encode([]rune(s)) {
			chars = appendUint16(chars, u)
		}
		chars = appendUint16(chars, 0)
	}
	for _, off := range offsets {
		data = appendUint32(data, off)
	}
	return append(data, chars...)
}

func encodeInts(values ...uint32) []byte {
	data := appendUint32(nil, uint32(len(values)))
	for _, v := range values {
		data = appendUint32(data, v)
	}
	return data
}

func encodeLargeInts(values ...int64) []byte {
	data := appendUint32(nil, uint32(len(values)))
	for _, v := range values {
		data = appendUint64(data, uint64(v))
	}
	return data
}

func encodeBools(values ...bool) []byte {
	data := appendUint32(nil, uint32(len(values)))
	for _, v := range values {
		var u uint32
		if v {
			u = 1
		}
		data = appendUint32(data, u)
	}
	return data
}

func encodeOctets(blobs ...[]byte) []byte {
	data := appendUint32(nil, uint32(len(blobs)))
	for _, b := range blobs {
		data = appendUint32(data, uint32(len(b)))
	}
	for _, b := range blobs {
		data = append(data, b...)
	}
	return data
}

func encodeUTCTimes(times ...time.Time) []byte {
	data := appendUint32(nil, uint32(len(times)))
	for _, t := range times {
		data = appendUint16(data, uint16(t.Year()))
		data = appendUint16(data, uint16(t.Month()))
		data = appendUint16(data, uint16(t.Weekday()))
		data = appendUint16(data, uint16(t.Day()))
		data = appendUint16(data, uint16(t.Hour()))
		data = appendUint16(data, uint16(t.Minute()))
		data = appendUint16(data, uint16(t.Second()))
		data = appendUint16(data, uint16(t.Nanosecond()/1e6))
	}
	return data
}

func encodeDescriptor(blob []byte) []byte {
	data := appendUint32(nil, 1)
	data = appendUint32(data, uint32(len(blob)))
	return append(data, blob...)
}

// sidBlob builds a binary NT authority SID from its subauthorities.
func sidBlob(subauthorities ...uint32) []byte {
	b := []byte{1, byte(len(subauthorities)), 0, 0, 0, 0, 0, 5}
	for _, s := range subauthorities {
		b = appendUint32(b, s)
	}
	return b
}

// adWireGUID converts a display form GUID to the mixed endian layout the
// directory stores, the swap is its own inverse.
func adWireGUID(display uuid.UUID) []byte {
	wire := util.SwapUUIDEndianess(display)
	return wire.Bytes()
}

// Security descriptor builders.

func allowACE(sid []byte, mask windowssecurity.Mask, aceflags byte) []byte {
	ace := []byte{windowssecurity.ACETYPE_ACCESS_ALLOWED, aceflags}
	ace = appendUint16(ace, uint16(8+len(sid)))
	ace = appendUint32(ace, uint32(mask))
	return append(ace, sid...)
}

func denyACE(sid []byte, mask windowssecurity.Mask) []byte {
	ace := []byte{windowssecurity.ACETYPE_ACCESS_DENIED, 0}
	ace = appendUint16(ace, uint16(8+len(sid)))
	ace = appendUint32(ace, uint32(mask))
	return append(ace, sid...)
}

func allowObjectACE(sid []byte, mask windowssecurity.Mask, aceflags byte, objectType uuid.UUID) []byte {
	body := appendUint32(nil, uint32(mask))
	if objectType == uuid.Nil {
		body = appendUint32(body, 0)
	} else {
		body = appendUint32(body, windowssecurity.OBJECT_TYPE_PRESENT)
		body = append(body, adWireGUID(objectType)...)
	}
	body = append(body, sid...)

	ace := []byte{windowssecurity.ACETYPE_ACCESS_ALLOWED_OBJECT, aceflags}
	ace = appendUint16(ace, uint16(4+len(body)))
	return append(ace, body...)
}

func buildSD(owner []byte, control windowssecurity.SecurityDescriptorControlFlag, aces ...[]byte) []byte {
	sd := []byte{1, 0}
	sd = appendUint16(sd, uint16(control|windowssecurity.CONTROLFLAG_SELF_RELATIVE))

	cursor := uint32(20)
	offOwner := uint32(0)
	if owner != nil {
		offOwner = cursor
		cursor += uint32(len(owner))
	}
	offDACL := uint32(0)
	if len(aces) > 0 {
		offDACL = cursor
	}

	sd = appendUint32(sd, offOwner)
	sd = appendUint32(sd, 0) // group
	sd = appendUint32(sd, 0) // SACL
	sd = appendUint32(sd, offDACL)
	if owner != nil {
		sd = append(sd, owner...)
	}
	if len(aces) > 0 {
		var size int
		for _, ace := range aces {
			size += len(ace)
		}
		sd = append(sd, 4, 0)
		sd = appendUint16(sd, uint16(8+size))
		sd = appendUint16(sd, uint16(len(aces)))
		sd = appendUint16(sd, 0)
		for _, ace := range aces {
			sd = append(sd, ace...)
		}
	}
	return sd
}

// Attribute indices of the fixture dictionary.
const (
	attrDistinguishedName = iota
	attrObjectClass
	attrName
	attrObjectSid
	attrObjectGUID
	attrObjectCategory
	attrSAMAccountType
	attrSAMAccountName
	attrUserAccountControl
	attrDNSHostName
	attrWhenCreated
	attrCreationTime
	attrLastLogon
	attrLastLogonTimestamp
	attrPwdLastSet
	attrDescription
	attrDisplayName
	attrAdminCount
	attrPrimaryGroupID
	attrServicePrincipalName
	attrAllowedToDelegateTo
	attrSIDHistory
	attrMember
	attrIsDeleted
	attrNTSecurityDescriptor
	attrGPLink
	attrGPOptions
	attrGPCFileSysPath
	attrBehaviorVersion
	attrAdmPwdExpiration
	attrAdmPwd
	attrOperatingSystem
	attrOperatingSystemSP
	attrSecurityIdentifier
	attrTrustDirection
	attrTrustType
	attrTrustAttributes
	attrAllowedToActSD
)

var (
	domainGUID = uuid.Must(uuid.FromString("11111111-2222-3333-4444-555555555555"))
	ouGUID     = uuid.Must(uuid.FromString("26f0bd2a-b302-46f0-a123-9e3a18f00c11"))
	aliceGUID  = uuid.Must(uuid.FromString("01020304-0506-0708-090a-0b0c0d0e0f10"))
	srvGUID    = uuid.Must(uuid.FromString("9e107d9d-372b-41a2-8f6e-71a7fd83804a"))
	gpoGUID    = uuid.Must(uuid.FromString("deadbeef-cafe-babe-f00d-feedfacef00d"))
	usersGUID  = uuid.Must(uuid.FromString("31337000-aaaa-bbbb-cccc-dddddddddddd"))
	admPwdGUID = uuid.Must(uuid.FromString("aa000000-1111-2222-3333-444444444444"))
)

var (
	domainSIDBlob   = sidBlob(21, 1, 2, 3)
	aliceSIDBlob    = sidBlob(21, 1, 2, 3, 1104)
	srvSIDBlob      = sidBlob(21, 1, 2, 3, 1105)
	bobSIDBlob      = sidBlob(21, 1, 2, 3, 1106)
	groupSIDBlob    = sidBlob(21, 1, 2, 3, 1107)
	builtinSIDBlob  = sidBlob(32, 544)
	trustSIDBlob    = sidBlob(21, 5, 5, 5)
	strangerSIDBlob = sidBlob(21, 9, 9, 9, 999)
	historySIDBlob  = sidBlob(21, 7, 7, 7, 500)
	actorSIDBlob    = sidBlob(21, 8, 8, 8, 777)
)

const (
	ticks1700000000 = 133444736000000000
	unix1700000000  = 1700000000
	unixCreated     = 1715689845 // 2024-05-14T12:30:45Z
)

var fixtureCreated = time.Date(2024, 5, 14, 12, 30, 45, 0, time.UTC)

func fixtureProperties() []fixtureProperty {
	return []fixtureProperty{
		{name: "distinguishedName", syntax: snapshot.ADSTYPE_DN_STRING},
		{name: "objectClass", syntax: snapshot.ADSTYPE_OBJECT_CLASS},
		{name: "name", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "objectSid", syntax: snapshot.ADSTYPE_OCTET_STRING},
		{name: "objectGUID", syntax: snapshot.ADSTYPE_OCTET_STRING},
		{name: "objectCategory", syntax: snapshot.ADSTYPE_DN_STRING},
		{name: "sAMAccountType", syntax: snapshot.ADSTYPE_INTEGER},
		{name: "sAMAccountName", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "userAccountControl", syntax: snapshot.ADSTYPE_INTEGER},
		{name: "dNSHostName", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "whenCreated", syntax: snapshot.ADSTYPE_UTC_TIME},
		{name: "creationTime", syntax: snapshot.ADSTYPE_LARGE_INTEGER},
		{name: "lastLogon", syntax: snapshot.ADSTYPE_LARGE_INTEGER},
		{name: "lastLogonTimestamp", syntax: snapshot.ADSTYPE_LARGE_INTEGER},
		{name: "pwdLastSet", syntax: snapshot.ADSTYPE_LARGE_INTEGER},
		{name: "description", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "displayName", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "adminCount", syntax: snapshot.ADSTYPE_INTEGER},
		{name: "primaryGroupID", syntax: snapshot.ADSTYPE_INTEGER},
		{name: "servicePrincipalName", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "msDS-AllowedToDelegateTo", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "sIDHistory", syntax: snapshot.ADSTYPE_OCTET_STRING},
		{name: "member", syntax: snapshot.ADSTYPE_DN_STRING},
		{name: "isDeleted", syntax: snapshot.ADSTYPE_BOOLEAN},
		{name: "nTSecurityDescriptor", syntax: snapshot.ADSTYPE_NT_SECURITY_DESCRIPTOR},
		{name: "gPLink", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "gPOptions", syntax: snapshot.ADSTYPE_INTEGER},
		{name: "gPCFileSysPath", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "msDS-Behavior-Version", syntax: snapshot.ADSTYPE_INTEGER},
		{name: "ms-Mcs-AdmPwdExpirationTime", syntax: snapshot.ADSTYPE_LARGE_INTEGER},
		{name: "ms-Mcs-AdmPwd", syntax: snapshot.ADSTYPE_OCTET_STRING, guid: adWireGUID(admPwdGUID)},
		{name: "operatingSystem", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "operatingSystemServicePack", syntax: snapshot.ADSTYPE_CASE_IGNORE_STRING},
		{name: "securityIdentifier", syntax: snapshot.ADSTYPE_OCTET_STRING},
		{name: "trustDirection", syntax: snapshot.ADSTYPE_INTEGER},
		{name: "trustType", syntax: snapshot.ADSTYPE_INTEGER},
		{name: "trustAttributes", syntax: snapshot.ADSTYPE_INTEGER},
		{name: "msDS-AllowedToActOnBehalfOfOtherIdentity", syntax: snapshot.ADSTYPE_NT_SECURITY_DESCRIPTOR},
	}
}

const policyGUID = "31B2F340-016D-11D2-945F-00C04FB984F9"
const secondPolicyGUID = "6AC1786C-016F-11D2-945F-00C04FB984F9"

const gpcPath = `\\testlab.local\sysvol\testlab.local\Policies\{31B2F340-016D-11D2-945F-00C04FB984F9}`

// buildLabSnapshot assembles the fixture file and decodes it.
func buildLabSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()

	fs := newFixtureSnapshot(10, fixtureProperties())

	domain := &fixtureObject{}
	domain.add(attrDistinguishedName, encodeStrings("DC=testlab,DC=local"))
	domain.add(attrObjectClass, encodeStrings("top", "domain", "domainDNS"))
	domain.add(attrName, encodeStrings("testlab"))
	domain.add(attrObjectSid, encodeOctets(domainSIDBlob))
	domain.add(attrObjectGUID, encodeOctets(adWireGUID(domainGUID)))
	domain.add(attrDescription, encodeStrings("Root domain"))
	domain.add(attrCreationTime, encodeLargeInts(ticks1700000000))
	domain.add(attrBehaviorVersion, encodeInts(7))
	domain.add(attrGPLink, encodeStrings("[LDAP://cn={"+policyGUID+"},CN=Policies,CN=System,DC=testlab,DC=local;2]"))
	domain.add(attrNTSecurityDescriptor, encodeDescriptor(buildSD(groupSIDBlob, 0,
		allowObjectACE(aliceSIDBlob, windowssecurity.RIGHT_DS_CONTROL_ACCESS, 0, GetChangesGUID),
		allowACE(groupSIDBlob, windowssecurity.RIGHT_GENERIC_ALL, 0),
		denyACE(aliceSIDBlob, windowssecurity.RIGHT_GENERIC_ALL),
		allowACE(aliceSIDBlob, windowssecurity.RIGHT_GENERIC_ALL, windowssecurity.ACEFLAG_INHERIT_ONLY_ACE),
		allowACE(strangerSIDBlob, windowssecurity.RIGHT_GENERIC_ALL, 0),
	)))
	fs.object(domain)

	ou := &fixtureObject{}
	ou.add(attrDistinguishedName, encodeStrings("OU=Corp,DC=testlab,DC=local"))
	ou.add(attrObjectClass, encodeStrings("top", "organizationalUnit"))
	ou.add(attrName, encodeStrings("Corp"))
	ou.add(attrObjectGUID, encodeOctets(adWireGUID(ouGUID)))
	ou.add(attrDescription, encodeStrings("Servers and admins"))
	ou.add(attrWhenCreated, encodeUTCTimes(fixtureCreated))
	ou.add(attrGPOptions, encodeInts(1))
	ou.add(attrGPLink, encodeStrings(
		"[LDAP://cn={"+policyGUID+"},CN=Policies,CN=System,DC=testlab,DC=local;0]"+
			"[LDAP://cn={"+secondPolicyGUID+"},CN=Policies,CN=System,DC=testlab,DC=local;2]"))
	ou.add(attrNTSecurityDescriptor, encodeDescriptor(buildSD(aliceSIDBlob, 0,
		allowACE(aliceSIDBlob, windowssecurity.RIGHT_GENERIC_WRITE, 0),
		allowACE(groupSIDBlob, windowssecurity.RIGHT_WRITE_DACL, windowssecurity.ACEFLAG_INHERITED_ACE),
	)))
	fs.object(ou)

	alice := &fixtureObject{}
	alice.add(attrDistinguishedName, encodeStrings("CN=Alice,OU=Corp,DC=testlab,DC=local"))
	alice.add(attrObjectClass, encodeStrings("top", "person", "organizationalPerson", "user"))
	alice.add(attrName, encodeStrings("Alice"))
	alice.add(attrObjectSid, encodeOctets(aliceSIDBlob))
	alice.add(attrObjectGUID, encodeOctets(adWireGUID(aliceGUID)))
	alice.add(attrObjectCategory, encodeStrings("CN=Person,CN=Schema,CN=Configuration,DC=testlab,DC=local"))
	alice.add(attrSAMAccountType, encodeInts(805306368))
	alice.add(attrSAMAccountName, encodeStrings("alice"))
	alice.add(attrUserAccountControl, encodeInts(512|snapshot.UAC_TRUSTED_FOR_DELEGATION|snapshot.UAC_DONT_REQ_PREAUTH))
	alice.add(attrWhenCreated, encodeUTCTimes(fixtureCreated))
	alice.add(attrLastLogon, encodeLargeInts(ticks1700000000))
	alice.add(attrLastLogonTimestamp, encodeLargeInts(ticks1700000000))
	alice.add(attrPwdLastSet, encodeLargeInts(ticks1700000000))
	alice.add(attrDisplayName, encodeStrings("Alice Admin"))
	alice.add(attrAdminCount, encodeInts(1))
	alice.add(attrPrimaryGroupID, encodeInts(512))
	alice.add(attrServicePrincipalName, encodeStrings("MSSQLSvc/srv01.testlab.local:1433", "HTTP/web.testlab.local"))
	alice.add(attrAllowedToDelegateTo, encodeStrings("cifs/SRV01", "ldap/external.example.com:389", "junk"))
	alice.add(attrSIDHistory, encodeOctets(historySIDBlob, srvSIDBlob))
	alice.add(attrNTSecurityDescriptor, encodeDescriptor(buildSD(groupSIDBlob, 0,
		allowObjectACE(bobSIDBlob, windowssecurity.RIGHT_DS_CONTROL_ACCESS, 0, ForceChangePasswordGUID),
	)))
	fs.object(alice)

	srv := &fixtureObject{}
	srv.add(attrDistinguishedName, encodeStrings("CN=SRV01,OU=Corp,DC=testlab,DC=local"))
	srv.add(attrObjectClass, encodeStrings("top", "person", "organizationalPerson", "user", "computer"))
	srv.add(attrName, encodeStrings("SRV01"))
	srv.add(attrObjectSid, encodeOctets(srvSIDBlob))
	srv.add(attrObjectGUID, encodeOctets(adWireGUID(srvGUID)))
	srv.add(attrObjectCategory, encodeStrings("CN=Computer,CN=Schema,CN=Configuration,DC=testlab,DC=local"))
	srv.add(attrSAMAccountType, encodeInts(805306369))
	srv.add(attrSAMAccountName, encodeStrings("SRV01$"))
	srv.add(attrUserAccountControl, encodeInts(snapshot.UAC_WORKSTATION_TRUST_ACCOUNT))
	srv.add(attrDNSHostName, encodeStrings("srv01.testlab.local"))
	srv.add(attrWhenCreated, encodeUTCTimes(fixtureCreated))
	srv.add(attrPrimaryGroupID, encodeInts(515))
	srv.add(attrOperatingSystem, encodeStrings("Windows Server 2022"))
	srv.add(attrOperatingSystemSP, encodeStrings("SP1"))
	srv.add(attrAdmPwdExpiration, encodeLargeInts(133544736000000000))
	srv.add(attrAllowedToActSD, encodeDescriptor(buildSD(nil, 0,
		allowACE(bobSIDBlob, windowssecurity.RIGHT_GENERIC_ALL, 0),
		allowACE(actorSIDBlob, windowssecurity.RIGHT_GENERIC_ALL, 0),
	)))
	srv.add(attrNTSecurityDescriptor, encodeDescriptor(buildSD(groupSIDBlob, 0,
		allowObjectACE(aliceSIDBlob, windowssecurity.RIGHT_DS_CONTROL_ACCESS, 0, admPwdGUID),
		allowObjectACE(aliceSIDBlob, windowssecurity.RIGHT_DS_CONTROL_ACCESS, 0, uuid.Nil),
		allowObjectACE(groupSIDBlob, windowssecurity.RIGHT_DS_WRITE_PROPERTY, 0, WriteAllowedToActGUID),
	)))
	fs.object(srv)

	bob := &fixtureObject{}
	bob.add(attrDistinguishedName, encodeStrings("CN=Bob,OU=Corp,DC=testlab,DC=local"))
	bob.add(attrObjectClass, encodeStrings("top", "person", "organizationalPerson", "user"))
	bob.add(attrName, encodeStrings("Bob"))
	bob.add(attrObjectSid, encodeOctets(bobSIDBlob))
	bob.add(attrObjectCategory, encodeStrings("CN=Person,CN=Schema,CN=Configuration,DC=testlab,DC=local"))
	bob.add(attrSAMAccountType, encodeInts(805306368))
	bob.add(attrSAMAccountName, encodeStrings("bob"))
	bob.add(attrUserAccountControl, encodeInts(512|snapshot.UAC_ACCOUNTDISABLE|snapshot.UAC_DONT_EXPIRE_PASSWORD))
	fs.object(bob)

	gpo := &fixtureObject{}
	gpo.add(attrDistinguishedName, encodeStrings("CN={"+policyGUID+"},CN=Policies,CN=System,DC=testlab,DC=local"))
	gpo.add(attrObjectClass, encodeStrings("top", "container", "groupPolicyContainer"))
	gpo.add(attrName, encodeStrings("{"+policyGUID+"}"))
	gpo.add(attrObjectGUID, encodeOctets(adWireGUID(gpoGUID)))
	gpo.add(attrDisplayName, encodeStrings("Default Domain Policy"))
	gpo.add(attrWhenCreated, encodeUTCTimes(fixtureCreated))
	gpo.add(attrGPCFileSysPath, encodeStrings(gpcPath))
	fs.object(gpo)

	users := &fixtureObject{}
	users.add(attrDistinguishedName, encodeStrings("CN=Users,DC=testlab,DC=local"))
	users.add(attrObjectClass, encodeStrings("top", "container"))
	users.add(attrName, encodeStrings("Users"))
	users.add(attrObjectGUID, encodeOctets(adWireGUID(usersGUID)))
	fs.object(users)

	trust := &fixtureObject{}
	trust.add(attrDistinguishedName, encodeStrings("CN=external.local,CN=System,DC=testlab,DC=local"))
	trust.add(attrObjectClass, encodeStrings("top", "leaf", "trustedDomain"))
	trust.add(attrName, encodeStrings("external.local"))
	trust.add(attrSecurityIdentifier, encodeOctets(trustSIDBlob))
	trust.add(attrTrustDirection, encodeInts(3))
	trust.add(attrTrustType, encodeInts(2))
	trust.add(attrTrustAttributes, encodeInts(0x40))
	fs.object(trust)

	group := &fixtureObject{}
	group.add(attrDistinguishedName, encodeStrings("CN=Admins,CN=Users,DC=testlab,DC=local"))
	group.add(attrObjectClass, encodeStrings("top", "group"))
	group.add(attrName, encodeStrings("Admins"))
	group.add(attrObjectSid, encodeOctets(groupSIDBlob))
	group.add(attrDescription, encodeStrings("Tier zero"))
	group.add(attrWhenCreated, encodeUTCTimes(fixtureCreated))
	group.add(attrAdminCount, encodeInts(1))
	group.add(attrIsDeleted, encodeBools(false))
	group.add(attrMember, encodeStrings(
		"CN=Alice,OU=Corp,DC=testlab,DC=local",
		"CN=SRV01,OU=Corp,DC=testlab,DC=local",
		"CN=S-1-5-21-8-8-8-1000,CN=ForeignSecurityPrincipals,DC=testlab,DC=local",
		"CN=S-1-5-11,CN=ForeignSecurityPrincipals,DC=testlab,DC=local",
		"CN=Ghost,OU=Gone,DC=testlab,DC=local",
	))
	group.add(attrNTSecurityDescriptor, encodeDescriptor(buildSD(aliceSIDBlob, windowssecurity.CONTROLFLAG_DACL_PROTECTED,
		allowObjectACE(aliceSIDBlob, windowssecurity.RIGHT_DS_WRITE_PROPERTY_EXTENDED, 0, WriteMemberGUID),
		allowObjectACE(bobSIDBlob, windowssecurity.RIGHT_DS_WRITE_PROPERTY, 0, WriteMemberGUID),
	)))
	fs.object(group)

	builtin := &fixtureObject{}
	builtin.add(attrDistinguishedName, encodeStrings("CN=Administrators,CN=Builtin,DC=testlab,DC=local"))
	builtin.add(attrObjectClass, encodeStrings("top", "group"))
	builtin.add(attrName, encodeStrings("Administrators"))
	builtin.add(attrObjectSid, encodeOctets(builtinSIDBlob))
	builtin.add(attrAdminCount, encodeInts(1))
	fs.object(builtin)

	sn, err := snapshot.Load(fs.finish(), 1)
	if err != nil {
		t.Fatalf("decoding the fixture: %v", err)
	}
	return sn
}
