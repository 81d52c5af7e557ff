package bloodhound

import (
	"strings"

	"github.com/lkarlslund/stringsplus"
)

const gplinkPrefix = "LDAP://cn="

// ParseGPLink unpacks a gPLink attribute value, a run of
// "[LDAP://cn={<guid>},<policies container>;<flags>]" entries. Flag 2 marks
// the link enforced, flag 0 a plain link. Parsing stops at the first entry
// that leaves the grammar and returns what was read until then.
func ParseGPLink(value string) []Link {
	links := []Link{}
	rest := value
	for {
		if len(rest) == 0 || rest[0] != '[' {
			return links
		}
		entry := rest[1:]
		if !stringsplus.EqualFoldHasPrefix(entry, gplinkPrefix) {
			return links
		}
		entry = entry[len(gplinkPrefix):]
		if len(entry) == 0 || entry[0] != '{' {
			return links
		}
		closing := strings.IndexByte(entry, '}')
		if closing < 2 {
			return links
		}
		guid := strings.ToUpper(entry[1:closing])
		entry = entry[closing+1:]

		// the policy DN sits between the brace and the flag separator
		semicolon := strings.IndexByte(entry, ';')
		if semicolon < 1 {
			return links
		}
		entry = entry[semicolon:]

		enforced := false
		switch {
		case strings.HasPrefix(entry, ";2"):
			enforced = true
			entry = entry[2:]
		case strings.HasPrefix(entry, ";0"):
			entry = entry[2:]
		}
		if len(entry) == 0 || entry[0] != ']' {
			return links
		}
		links = append(links, Link{IsEnforced: enforced, GUID: guid})
		rest = entry[1:]
	}
}
