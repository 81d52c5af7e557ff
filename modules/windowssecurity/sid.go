package windowssecurity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	gsync "github.com/SaveTheRbtz/generic-sync-map-go"
)

var ErrorOnlySIDVersion1Supported = errors.New("only SID version 1 supported")

type SID string

// Windows representation
// 0 = revision (always 1)
// 1 = subauthority count
// 2-7 = authority
// 8-11+ = chunks of 4 with subauthorities

// Our representation
// 0-5 = authority
// 6-9+ = chunks of 4 with subauthorities

var sidDeduplicator gsync.MapOf[SID, SID]

func ParseSID(data []byte) (SID, []byte, error) {
	if len(data) == 0 {
		return "", data, errors.New("No data supplied")
	}
	if data[0] != 0x01 {
		if len(data) > 32 {
			data = data[:32]
		}
		return "", data, fmt.Errorf("SID revision must be 1 (dump %x ...)", data)
	}
	subauthoritycount := int(data[1])
	if subauthoritycount > 15 {
		return "", data, errors.New("SID subauthority count is more than 15")
	}
	sidend := 8 + 4*subauthoritycount
	if len(data) < sidend {
		return "", data, errors.New("SID is truncated")
	}

	// two step lookup to avoid unnecessary allocations
	if cached, found := sidDeduplicator.Load(SID(string(data[2:sidend]))); found {
		return cached, data[sidend:], nil
	}
	// not found, create new and try again
	lookup := SID(string(data[2:sidend]))
	cached, _ := sidDeduplicator.LoadOrStore(lookup, lookup)
	return cached, data[sidend:], nil
}

func ParseStringSID(input string) (SID, error) {
	if len(input) < 5 {
		return "", errors.New("SID string is too short to be a SID")
	}
	subauthoritycount := strings.Count(input, "-") - 2
	if subauthoritycount < 0 {
		return "", errors.New("Less than one subauthority found")
	}
	if input[0] != 'S' {
		return "", errors.New("SID must start with S")
	}
	var sid = make([]byte, 6+4*subauthoritycount)

	strnums := strings.Split(input, "-")

	version, err := strconv.ParseUint(strnums[1], 10, 8)
	if err != nil {
		return "", err
	}
	if version != 1 {
		return "", ErrorOnlySIDVersion1Supported
	}

	authority, err := strconv.ParseInt(strnums[2], 10, 48)
	if err != nil {
		return "", err
	}
	authslice := make([]byte, 8)
	binary.BigEndian.PutUint64(authslice, uint64(authority)<<16) // dirty tricks
	copy(sid[0:], authslice[0:6])

	for i := range subauthoritycount {
		subauthority, err := strconv.ParseUint(strnums[3+i], 10, 32)
		if err != nil {
			return "", err
		}
		binary.LittleEndian.PutUint32(sid[6+4*i:], uint32(subauthority))
	}

	// two step lookup to avoid unnecessary allocations
	if cached, found := sidDeduplicator.Load(SID(sid)); found {
		return cached, nil
	}
	// not found, create new and try again
	lookup := SID(sid)
	cached, _ := sidDeduplicator.LoadOrStore(lookup, lookup)
	return cached, nil
}

func MustParseStringSID(input string) SID {
	sid, err := ParseStringSID(input)
	if err != nil {
		panic(err)
	}
	return sid
}

func (sid SID) IsNull() bool {
	return sid == ""
}

func (sid SID) String() string {
	if sid == "" {
		return "NULL SID"
	}
	var authority uint64
	for i := 0; i <= 5; i++ {
		authority = authority<<8 | uint64(sid[i])
	}
	s := fmt.Sprintf("S-1-%d", authority)

	// Subauthorities
	for i := 6; i < len(sid); i += 4 {
		subauthority := binary.LittleEndian.Uint32([]byte(sid[i:]))
		s += fmt.Sprintf("-%d", subauthority)
	}
	return s
}

func (sid SID) RID() uint32 {
	if len(sid) <= 6 {
		return 0
	}
	l := len(sid) - 4
	return binary.LittleEndian.Uint32([]byte(sid[l:]))
}

func (sid SID) IsBlank() bool {
	return sid == ""
}

func (sid SID) AddComponent(component uint32) SID {
	newsid := make([]byte, len(sid)+4)
	copy(newsid, sid)
	binary.LittleEndian.PutUint32(newsid[len(sid):], component)
	return SID(newsid)
}
