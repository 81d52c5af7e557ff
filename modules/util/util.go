package util

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/uuid"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var legalMatch = regexp.MustCompile("[[:alnum:] _.=,-]") // dash must be LAST! doh

// CleanFilename strips diacritics and anything that isn't safe in a filename.
func CleanFilename(input string) string {
	normalized, _, _ := transform.String(transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r) // Mn: nonspacing marks
	}), norm.NFC), input)

	var output string

	for _, chr := range normalized {
		if legalMatch.MatchString(string(chr)) {
			output += string(chr)
		}
	}
	return output
}

func SwapUUIDEndianess(u uuid.UUID) uuid.UUID {
	var r uuid.UUID
	r[0], r[1], r[2], r[3] = u[3], u[2], u[1], u[0]
	r[4], r[5] = u[5], u[4]
	r[6], r[7] = u[7], u[6]
	copy(r[8:], u[8:])
	return r
}

var nolaterthan, _ = time.Parse("20060102", "99991231")

// FiletimeToTime converts 100-nanosecond intervals since Jan 1, 1601 UTC to time.Time
func FiletimeToTime(filetime uint64) time.Time {
	// We assume that a zero time is a blank time
	if filetime == 0 || filetime == 0xFFFFFFFFFFFFFFFF {
		return time.Time{}
	}

	// First convert 100-ns intervals to microseconds, then adjust for the epoch difference
	unixsec := int64((filetime / 10000000) - 11644473600)
	unixns := int64((filetime * 10) % 1000000000)

	t := time.Unix(unixsec, unixns)

	if t.After(nolaterthan) {
		t = nolaterthan
	}

	return t
}

func Hexify(s string) string {
	var o string
	for _, c := range s {
		if unicode.IsPrint(c) {
			o += string(c)
		} else {
			o += "\\x" + strconv.FormatInt(int64(c), 16)
		}
	}
	return o
}

func ParentDistinguishedName(dn string) string {
	for {
		firstcomma := strings.Index(dn, ",")
		if firstcomma == -1 {
			return "" // At the top
		}
		if firstcomma > 0 {
			if dn[firstcomma-1] == '\\' {
				// False alarm, strip it and go on
				dn = dn[firstcomma+1:]
				continue
			}
		}
		dn = dn[firstcomma+1:]
		break
	}
	return dn
}
