package bloodhound

import (
	"strconv"
	"strings"

	"github.com/lkarlslund/snaphound/modules/snapshot"
	"github.com/pkg/errors"
)

// UserList is the users category document.
type UserList struct {
	Meta Meta   `json:"meta"`
	Data []User `json:"data"`
}

type User struct {
	Properties        UserProperties   `json:"Properties"`
	AllowedToDelegate []TypedPrincipal `json:"AllowedToDelegate"`
	PrimaryGroupSID   string           `json:"PrimaryGroupSID"`
	HasSIDHistory     []TypedPrincipal `json:"HasSIDHistory"`
	SPNTargets        []SPNTarget      `json:"SpnTargets"`
	Aces              []ACE            `json:"Aces"`
	ObjectIdentifier  string           `json:"ObjectIdentifier"`
	IsDeleted         bool             `json:"IsDeleted"`
	IsACLProtected    bool             `json:"IsACLProtected"`
}

type UserProperties struct {
	Domain                  string   `json:"domain"`
	Name                    string   `json:"name"`
	DistinguishedName       string   `json:"distinguishedname"`
	DomainSID               string   `json:"domainsid"`
	Description             *string  `json:"description"`
	WhenCreated             int64    `json:"whencreated"`
	Sensitive               bool     `json:"sensitive"`
	DontReqPreAuth          bool     `json:"dontreqpreauth"`
	PasswordNotRequired     bool     `json:"passwordnotreqd"`
	UnconstrainedDelegation bool     `json:"unconstraineddelegation"`
	PwdNeverExpires         bool     `json:"pwdneverexpires"`
	Enabled                 bool     `json:"enabled"`
	TrustedToAuth           bool     `json:"trustedtoauth"`
	LastLogon               int64    `json:"lastlogon"`
	LastLogonTimestamp      int64    `json:"lastlogontimestamp"`
	PwdLastSet              int64    `json:"pwdlastset"`
	ServicePrincipalNames   []string `json:"serviceprincipalnames"`
	HasSPN                  bool     `json:"hasspn"`
	DisplayName             *string  `json:"displayname"`
	AdminCount              bool     `json:"admincount"`
	SIDHistory              []string `json:"sidhistory"`
}

func (m *mapper) users() UserList {
	users := make([]User, 0)
	for _, o := range m.snap.Objects {
		if m.isUser(o) {
			users = append(users, m.user(o))
		}
	}
	return UserList{
		Meta: Meta{Methods: collectionMethods, Type: "users", Count: len(users), Version: 5},
		Data: users,
	}
}

// isUser selects person accounts and group managed service accounts.
// Interdomain trust accounts look like users on the class chain but never
// are, their sAMAccountType gives them away.
func (m *mapper) isUser(o *snapshot.Object) bool {
	accountType, found := o.Attr("sAMAccountType").FirstInt()
	if !found || accountType == snapshot.SAM_TRUST_ACCOUNT {
		return false
	}
	if o.HasClass("ms-DS-Group-Managed-Service-Account") {
		return true
	}
	if !o.HasClass("user") {
		return false
	}
	category, _ := o.Attr("objectCategory").FirstString()
	class, found := m.snap.CategoryClassName(category)
	return found && strings.EqualFold(class, "person")
}

func (m *mapper) user(o *snapshot.Object) User {
	dn := o.DistinguishedName()
	domain := strings.ToUpper(domainFromDN(dn))
	uac := o.UserAccountControl()
	spns := stringList(o, "servicePrincipalName")

	return User{
		Properties: UserProperties{
			Domain:                  domain,
			Name:                    strings.ToUpper(firstString(o, "name")) + "@" + domain,
			DistinguishedName:       dn,
			DomainSID:               m.domainSID,
			Description:             optionalString(o, "description"),
			WhenCreated:             unixTimeOr(o, "whenCreated", 0),
			Sensitive:               uac&snapshot.UAC_NOT_DELEGATED != 0,
			DontReqPreAuth:          uac&snapshot.UAC_DONT_REQ_PREAUTH != 0,
			PasswordNotRequired:     uac&snapshot.UAC_PASSWD_NOTREQD != 0,
			UnconstrainedDelegation: uac&snapshot.UAC_TRUSTED_FOR_DELEGATION != 0,
			PwdNeverExpires:         uac&snapshot.UAC_DONT_EXPIRE_PASSWORD != 0,
			Enabled:                 !o.Disabled(),
			TrustedToAuth:           uac&snapshot.UAC_TRUSTED_TO_AUTH_FOR_DELEGATION != 0,
			LastLogon:               unixTimeOr(o, "lastLogon", 0),
			LastLogonTimestamp:      unixTimeOr(o, "lastLogonTimestamp", -1),
			PwdLastSet:              unixTimeOr(o, "pwdLastSet", 0),
			ServicePrincipalNames:   spns,
			HasSPN:                  len(spns) > 0,
			DisplayName:             optionalString(o, "displayName"),
			AdminCount:              adminCount(o),
			SIDHistory:              sidStrings(o.Attr("sIDHistory")),
		},
		AllowedToDelegate: m.delegationTargets(o),
		PrimaryGroupSID:   m.primaryGroupSID(o),
		HasSIDHistory:     m.sidHistoryPrincipals(o, "User"),
		SPNTargets:        m.spnTargets(o),
		Aces:              m.aces(o),
		ObjectIdentifier:  objectIdentifier(o),
		IsDeleted:         isDeleted(o),
		IsACLProtected:    isACLProtected(o),
	}
}

// spnTargets extracts SQL admin targets from MSSQL service principal names.
// SPNs naming other services, or carrying a user rather than a host, grant
// no edge.
func (m *mapper) spnTargets(o *snapshot.Object) []SPNTarget {
	targets := make([]SPNTarget, 0)
	for _, spn := range o.Attr("servicePrincipalName").StringSlice() {
		if strings.Contains(spn, "@") {
			continue
		}
		parts := strings.Split(spn, "/")
		if len(parts) < 2 {
			continue
		}
		if !strings.Contains(strings.ToLower(parts[0]), "mssqlsvc") {
			continue
		}

		hostport := parts[1]
		target, _, _ := strings.Cut(hostport, ":")
		port, found := 0, false
		if len(parts) > 2 {
			// named instance form, the port hides at the end of the
			// instance segment when there is one
			instance := parts[2]
			if i := strings.LastIndexByte(instance, ':'); i >= 0 {
				instance = instance[i+1:]
			}
			port, found = parsePort(instance)
		}
		if !found {
			if _, after, cut := strings.Cut(hostport, ":"); cut {
				second, _, _ := strings.Cut(after, ":")
				port, found = parsePort(second)
			}
		}
		if !found {
			port = 1433
		}

		if computer, resolved := m.snap.ObjectByComputerName(target); resolved {
			targets = append(targets, SPNTarget{ComputerSID: objectIdentifier(computer), Port: port, Service: "SQLAdmin"})
		} else if strings.Contains(target, ".") {
			targets = append(targets, SPNTarget{ComputerSID: strings.ToUpper(target), Port: port, Service: "SQLAdmin"})
		} else {
			m.snap.Diagnostics.DanglingReference(errors.Errorf("service principal name %v points outside the snapshot", spn))
		}
	}
	return targets
}

func parsePort(s string) (int, bool) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 {
		return 0, false
	}
	return port, true
}
