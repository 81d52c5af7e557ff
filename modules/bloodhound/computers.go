package bloodhound

import (
	"strings"

	"github.com/lkarlslund/snaphound/modules/snapshot"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
	"github.com/pkg/errors"
)

// ComputerList is the computers category document.
type ComputerList struct {
	Meta Meta       `json:"meta"`
	Data []Computer `json:"data"`
}

type Computer struct {
	Properties         ComputerProperties `json:"Properties"`
	AllowedToDelegate  []TypedPrincipal   `json:"AllowedToDelegate"`
	AllowedToAct       []TypedPrincipal   `json:"AllowedToAct"`
	PrimaryGroupSID    string             `json:"PrimaryGroupSID"`
	HasSIDHistory      []TypedPrincipal   `json:"HasSIDHistory"`
	Sessions           SessionCollection  `json:"Sessions"`
	PrivilegedSessions SessionCollection  `json:"PrivilegedSessions"`
	RegistrySessions   SessionCollection  `json:"RegistrySessions"`
	LocalGroups        []LocalGroup       `json:"LocalGroups"`
	Aces               []ACE              `json:"Aces"`
	ObjectIdentifier   string             `json:"ObjectIdentifier"`
	IsDeleted          bool               `json:"IsDeleted"`
	IsACLProtected     bool               `json:"IsACLProtected"`
}

type ComputerProperties struct {
	Domain                  string   `json:"domain"`
	Name                    string   `json:"name"`
	DistinguishedName       string   `json:"distinguishedname"`
	DomainSID               string   `json:"domainsid"`
	HasLAPS                 bool     `json:"haslaps"`
	Description             *string  `json:"description"`
	WhenCreated             int64    `json:"whencreated"`
	Enabled                 bool     `json:"enabled"`
	UnconstrainedDelegation bool     `json:"unconstraineddelegation"`
	TrustedToAuth           bool     `json:"trustedtoauth"`
	LastLogon               int64    `json:"lastlogon"`
	LastLogonTimestamp      int64    `json:"lastlogontimestamp"`
	PwdLastSet              int64    `json:"pwdlastset"`
	ServicePrincipalNames   []string `json:"serviceprincipalnames"`
	OperatingSystem         *string  `json:"operatingsystem"`
	SIDHistory              []string `json:"sidhistory"`
	SAMAccountName          *string  `json:"samaccountname"`
}

func (m *mapper) computers() ComputerList {
	computers := make([]Computer, 0)
	for _, o := range m.snap.Objects {
		if accountType, found := o.Attr("sAMAccountType").FirstInt(); found && accountType == snapshot.SAM_MACHINE_ACCOUNT {
			computers = append(computers, m.computer(o))
		}
	}
	return ComputerList{
		Meta: Meta{Methods: collectionMethods, Type: "computers", Count: len(computers), Version: 5},
		Data: computers,
	}
}

func (m *mapper) computer(o *snapshot.Object) Computer {
	dn := o.DistinguishedName()
	domain := strings.ToUpper(domainFromDN(dn))
	uac := o.UserAccountControl()

	var operatingSystem *string
	if os, found := o.Attr("operatingSystem").FirstString(); found {
		if pack, packFound := o.Attr("operatingSystemServicePack").FirstString(); packFound {
			os = os + " " + pack
		}
		operatingSystem = &os
	}

	hasLAPS := false
	if expires, found := o.Attr("ms-Mcs-AdmPwdExpirationTime").FirstInt(); found {
		hasLAPS = expires != 0
	}

	return Computer{
		Properties: ComputerProperties{
			Domain:                  domain,
			Name:                    strings.ToUpper(firstString(o, "name")) + "@" + domain,
			DistinguishedName:       dn,
			DomainSID:               m.domainSID,
			HasLAPS:                 hasLAPS,
			Description:             optionalString(o, "description"),
			WhenCreated:             unixTimeOr(o, "whenCreated", 0),
			Enabled:                 !o.Disabled(),
			UnconstrainedDelegation: uac&snapshot.UAC_TRUSTED_FOR_DELEGATION != 0,
			TrustedToAuth:           uac&snapshot.UAC_TRUSTED_TO_AUTH_FOR_DELEGATION != 0,
			LastLogon:               unixTimeOr(o, "lastLogon", 0),
			LastLogonTimestamp:      unixTimeOr(o, "lastLogonTimestamp", -1),
			PwdLastSet:              unixTimeOr(o, "pwdLastSet", 0),
			ServicePrincipalNames:   stringList(o, "servicePrincipalName"),
			OperatingSystem:         operatingSystem,
			SIDHistory:              sidStrings(o.Attr("sIDHistory")),
			SAMAccountName:          optionalString(o, "sAMAccountName"),
		},
		AllowedToDelegate:  m.delegationTargets(o),
		AllowedToAct:       m.allowedToAct(o),
		PrimaryGroupSID:    m.primaryGroupSID(o),
		HasSIDHistory:      m.sidHistoryPrincipals(o, "Computer"),
		Sessions:           emptySessions(),
		PrivilegedSessions: emptySessions(),
		RegistrySessions:   emptySessions(),
		LocalGroups:        []LocalGroup{},
		Aces:               m.aces(o),
		ObjectIdentifier:   objectIdentifier(o),
		IsDeleted:          isDeleted(o),
		IsACLProtected:     isACLProtected(o),
	}
}

// sessions are live collection data no directory snapshot can carry.
func emptySessions() SessionCollection {
	return SessionCollection{Results: []SessionResult{}}
}

// allowedToAct unpacks the resource based constrained delegation
// descriptor. Each principal the embedded DACL allows may impersonate users
// against this computer.
func (m *mapper) allowedToAct(o *snapshot.Object) []TypedPrincipal {
	principals := make([]TypedPrincipal, 0)
	blob, found := o.Attr("msDS-AllowedToActOnBehalfOfOtherIdentity").FirstBlob()
	if !found {
		return principals
	}
	sd, err := windowssecurity.CacheOrParseSecurityDescriptor(blob)
	if err != nil {
		m.snap.Diagnostics.MalformedDescriptor(errors.Wrapf(err, "delegation descriptor on %v", o.DistinguishedName()))
		return principals
	}
	for _, entry := range sd.DACL.Entries {
		if entry.Type != windowssecurity.ACETYPE_ACCESS_ALLOWED &&
			entry.Type != windowssecurity.ACETYPE_ACCESS_ALLOWED_OBJECT {
			continue
		}
		principal := TypedPrincipal{ObjectIdentifier: entry.SID.String(), ObjectType: "Computer"}
		if actor, found := m.snap.ObjectBySID(entry.SID); found {
			principal.ObjectIdentifier = objectIdentifier(actor)
			principal.ObjectType = typeString(actor)
		}
		principals = append(principals, principal)
	}
	return principals
}
