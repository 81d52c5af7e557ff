package windowssecurity

// WellKnownSIDs holds the identifiers every domain shares, from the NULL
// authority over the builtin groups to the enterprise key accounts. They
// never identify an object on their own, consumers qualify them with the
// SID of the domain they were seen in.
var WellKnownSIDs = map[string]struct{}{
	"S-1-0":              {},
	"S-1-0-0":            {},
	"S-1-1":              {},
	"S-1-1-0":            {},
	"S-1-2":              {},
	"S-1-2-0":            {},
	"S-1-2-1":            {},
	"S-1-3":              {},
	"S-1-3-0":            {},
	"S-1-3-1":            {},
	"S-1-3-2":            {},
	"S-1-3-3":            {},
	"S-1-3-4":            {},
	"S-1-5-1":            {},
	"S-1-5-2":            {},
	"S-1-5-3":            {},
	"S-1-5-4":            {},
	"S-1-5-6":            {},
	"S-1-5-7":            {},
	"S-1-5-8":            {},
	"S-1-5-9":            {},
	"S-1-5-10":           {},
	"S-1-5-11":           {},
	"S-1-5-12":           {},
	"S-1-5-13":           {},
	"S-1-5-14":           {},
	"S-1-5-15":           {},
	"S-1-5-17":           {},
	"S-1-5-18":           {},
	"S-1-5-19":           {},
	"S-1-5-20":           {},
	"S-1-5-21-0-0-0-496": {},
	"S-1-5-21-0-0-0-497": {},
	"S-1-5-32-544":       {},
	"S-1-5-32-545":       {},
	"S-1-5-32-546":       {},
	"S-1-5-32-547":       {},
	"S-1-5-32-548":       {},
	"S-1-5-32-549":       {},
	"S-1-5-32-550":       {},
	"S-1-5-32-551":       {},
	"S-1-5-32-552":       {},
	"S-1-5-32-554":       {},
	"S-1-5-32-555":       {},
	"S-1-5-32-556":       {},
	"S-1-5-32-557":       {},
	"S-1-5-32-558":       {},
	"S-1-5-32-559":       {},
	"S-1-5-32-560":       {},
	"S-1-5-32-561":       {},
	"S-1-5-32-562":       {},
	"S-1-5-32-568":       {},
	"S-1-5-32-569":       {},
	"S-1-5-32-573":       {},
	"S-1-5-32-574":       {},
	"S-1-5-32-575":       {},
	"S-1-5-32-576":       {},
	"S-1-5-32-577":       {},
	"S-1-5-32-578":       {},
	"S-1-5-32-579":       {},
	"S-1-5-32-580":       {},
}

// IsWellKnownSID reports whether the textual SID is domain agnostic.
func IsWellKnownSID(sid string) bool {
	_, found := WellKnownSIDs[sid]
	return found
}
