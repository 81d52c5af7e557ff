// Package bloodhound maps decoded snapshot objects onto the node and edge
// documents the BloodHound analysis platform ingests.
//
// Every document is a category file (users.json, computers.json and so on)
// with a meta header and a data array, the shape SharpHound collectors
// upload. Field order and null handling matter to some ingest pipelines, so
// the structs below keep both stable.
package bloodhound

// collectionMethods is the collection method bitmask stamped into every
// document header.
const collectionMethods = 46067

// Meta heads every category document.
type Meta struct {
	Methods int    `json:"methods"`
	Type    string `json:"type"`
	Count   int    `json:"count"`
	Version int    `json:"version"`
}

// DomainMeta heads the domains document, which carries no version field.
type DomainMeta struct {
	Methods int    `json:"methods"`
	Type    string `json:"type"`
	Count   int    `json:"count"`
}

// ACE is one entry of a node's Aces list, a principal holding a named right
// over the node.
type ACE struct {
	PrincipalSID  string `json:"PrincipalSID"`
	PrincipalType string `json:"PrincipalType"`
	RightName     string `json:"RightName"`
	IsInherited   bool   `json:"IsInherited"`
}

// TypedPrincipal references another node by its stable identifier, used by
// group members, child objects, delegation lists and SID history.
type TypedPrincipal struct {
	ObjectIdentifier string `json:"ObjectIdentifier"`
	ObjectType       string `json:"ObjectType"`
}

// Link is one group policy link of a domain or organizational unit.
type Link struct {
	IsEnforced bool   `json:"IsEnforced"`
	GUID       string `json:"GUID"`
}

// SessionCollection reports session data, which a directory snapshot cannot
// carry. It is emitted uncollected so ingest treats it as absent rather
// than empty.
type SessionCollection struct {
	Results       []SessionResult `json:"results"`
	Collected     bool            `json:"collected"`
	FailureReason *string         `json:"failure_reason"`
}

// SessionResult is one logon session on a computer.
type SessionResult struct {
	UserSID     string `json:"UserSID"`
	ComputerSID string `json:"ComputerSID"`
}

// LocalGroup is the membership of one local group on a computer.
type LocalGroup struct {
	Collected        bool             `json:"collected"`
	FailureReason    string           `json:"failure_reason"`
	Results          []TypedPrincipal `json:"Results"`
	LocalNames       []string         `json:"LocalName"`
	Name             string           `json:"name"`
	ObjectIdentifier string           `json:"ObjectIdentifier"`
}

// SPNTarget is a computer a service principal name points at, together
// with the edge the service grants.
type SPNTarget struct {
	ComputerSID string `json:"ComputerSID"`
	Port        int    `json:"port"`
	Service     string `json:"service"`
}

// Trust is one edge of the domain trust graph.
type Trust struct {
	TargetDomainSID     string `json:"TargetDomainSid"`
	TargetDomainName    string `json:"TargetDomainName"`
	IsTransitive        bool   `json:"IsTransitive"`
	SidFilteringEnabled bool   `json:"SidFilteringEnabled"`
	TrustDirection      string `json:"TrustDirection"`
	TrustType           string `json:"TrustType"`
}
