package snapshot

import (
	"strconv"
	"time"
	"unicode"

	"github.com/lkarlslund/snaphound/modules/dedup"
	"github.com/lkarlslund/snaphound/modules/util"
	"github.com/pkg/errors"
)

// ErrSchemaViolation indicates a mapping entry or value block that
// contradicts the snapshot's own dictionaries, for example an attribute
// index past the property table or an ADSTYPE we have no layout for. The
// attribute is dropped and counted, the object survives.
var ErrSchemaViolation = errors.New("schema violation")

// ErrInvalidEncoding flags UTF-16 data with unpaired surrogates. The decoded
// string keeps U+FFFD in place of the bad units and the substitution is
// counted, so it only ever shows up in diagnostics.
var ErrInvalidEncoding = errors.New("invalid string encoding")

// Windows FILETIME counts 100ns ticks since 1601-01-01, Unix time seconds
// since 1970-01-01.
const (
	filetimeEpochOffset = 116444736000000000
	ticksPerSecond      = 10000000
)

// FiletimeToUnixEpoch converts a FILETIME carried in a LargeInteger
// attribute to Unix seconds. Zero stays zero, meaning "never happened".
func FiletimeToUnixEpoch(filetime int64) int64 {
	if filetime == 0 {
		return 0
	}
	return (filetime - filetimeEpochOffset) / ticksPerSecond
}

// AttributeValue is one decoded value of a directory attribute.
type AttributeValue interface {
	String() string
	Raw() any
}

type ValueString string

func (as ValueString) String() string {
	return string(as)
}

func (as ValueString) Raw() any {
	return string(as)
}

type ValueBlob []byte

func (ab ValueBlob) String() string {
	return util.Hexify(string(ab))
}

func (ab ValueBlob) Raw() any {
	return []byte(ab)
}

type ValueBool bool

func (ab ValueBool) String() string {
	return strconv.FormatBool(bool(ab))
}

func (ab ValueBool) Raw() any {
	return bool(ab)
}

type ValueInt int64

func (ai ValueInt) String() string {
	return strconv.FormatInt(int64(ai), 10)
}

func (ai ValueInt) Raw() any {
	return int64(ai)
}

type ValueTime time.Time

func (at ValueTime) String() string {
	return time.Time(at).Format("20060102150405.0Z")
}

func (at ValueTime) Raw() any {
	return time.Time(at)
}

// AttributeValues is the ordered value list of one attribute.
type AttributeValues []AttributeValue

func (avs AttributeValues) Len() int {
	return len(avs)
}

func (avs AttributeValues) First() AttributeValue {
	if len(avs) == 0 {
		return nil
	}
	return avs[0]
}

func (avs AttributeValues) StringSlice() []string {
	result := make([]string, len(avs))
	for i, v := range avs {
		result[i] = v.String()
	}
	return result
}

func (avs AttributeValues) FirstString() (string, bool) {
	if s, ok := avs.First().(ValueString); ok {
		return string(s), true
	}
	return "", false
}

func (avs AttributeValues) FirstInt() (int64, bool) {
	if i, ok := avs.First().(ValueInt); ok {
		return int64(i), true
	}
	return 0, false
}

func (avs AttributeValues) FirstBool() (bool, bool) {
	if b, ok := avs.First().(ValueBool); ok {
		return bool(b), true
	}
	return false, false
}

func (avs AttributeValues) FirstBlob() ([]byte, bool) {
	if b, ok := avs.First().(ValueBlob); ok {
		return []byte(b), true
	}
	return nil, false
}

func (avs AttributeValues) FirstTime() (time.Time, bool) {
	if t, ok := avs.First().(ValueTime); ok {
		return time.Time(t), true
	}
	return time.Time{}, false
}

// FirstUnixTime reads the first value as Unix seconds, converting FILETIME
// ticks when the attribute is a LargeInteger and using the decoded timestamp
// when it is a UTC time.
func (avs AttributeValues) FirstUnixTime() (int64, bool) {
	switch v := avs.First().(type) {
	case ValueInt:
		return FiletimeToUnixEpoch(int64(v)), true
	case ValueTime:
		return time.Time(v).Unix(), true
	}
	return 0, false
}

func readSystemTime(r Region, off int64) (SystemTime, error) {
	var st SystemTime
	for i, field := range []*uint16{&st.Year, &st.Month, &st.DayOfWeek, &st.Day, &st.Hour, &st.Minute, &st.Second, &st.Milliseconds} {
		v, err := r.Uint16(off + int64(i)*2)
		if err != nil {
			return st, err
		}
		*field = v
	}
	return st, nil
}

// decodeValues decodes one value block. r is the whole file, pos the
// absolute position of the block (object frame position plus the mapping
// entry offset). Every layout starts with a u32 value count, except that
// security descriptors ignore it and always carry a single length prefixed
// blob.
func decodeValues(r Region, syntax AttributeSyntax, pos int64, diag *Diagnostics) (AttributeValues, error) {
	count, err := r.Uint32(pos)
	if err != nil {
		return nil, err
	}

	// A count can't promise more values than there are bytes left in the
	// file, whatever the per value size is.
	var valuesize int64
	switch syntax {
	case ADSTYPE_LARGE_INTEGER:
		valuesize = 8
	case ADSTYPE_UTC_TIME:
		valuesize = 16
	case ADSTYPE_NT_SECURITY_DESCRIPTOR:
		valuesize = 0
	default:
		valuesize = 4
	}
	if int64(count)*valuesize > r.Len()-pos-4 {
		return nil, errors.Wrapf(ErrTruncatedData, "value block at %#x declares %d values of syntax %d", pos, count, syntax)
	}

	values := make(AttributeValues, 0, count)

	switch syntax {
	case ADSTYPE_DN_STRING,
		ADSTYPE_CASE_EXACT_STRING,
		ADSTYPE_CASE_IGNORE_STRING,
		ADSTYPE_PRINTABLE_STRING,
		ADSTYPE_NUMERIC_STRING,
		ADSTYPE_OBJECT_CLASS:
		// A table of offsets relative to the block start, each pointing at
		// a NUL terminated UTF-16 string.
		for i := int64(0); i < int64(count); i++ {
			offset, err := r.Uint32(pos + 4 + i*4)
			if err != nil {
				return nil, err
			}
			s, err := r.WCstring(pos + int64(offset))
			if err != nil {
				return nil, err
			}
			for _, c := range s {
				if c == unicode.ReplacementChar {
					diag.EncodingSubstitution(errors.Wrapf(ErrInvalidEncoding, "string value at %#x", pos+int64(offset)))
					break
				}
			}
			// Class names, DN suffixes and the like repeat endlessly, intern
			// them instead of holding one copy per object.
			values = append(values, ValueString(dedup.D.S(s)))
		}

	case ADSTYPE_OCTET_STRING:
		// A table of lengths, then the raw buffers back to back.
		cursor := pos + 4 + int64(count)*4
		for i := int64(0); i < int64(count); i++ {
			length, err := r.Uint32(pos + 4 + i*4)
			if err != nil {
				return nil, err
			}
			b, err := r.Bytes(cursor, int64(length))
			if err != nil {
				return nil, err
			}
			cursor += int64(length)
			values = append(values, ValueBlob(b))
		}

	case ADSTYPE_BOOLEAN:
		for i := int64(0); i < int64(count); i++ {
			v, err := r.Uint32(pos + 4 + i*4)
			if err != nil {
				return nil, err
			}
			values = append(values, ValueBool(v != 0))
		}

	case ADSTYPE_INTEGER:
		for i := int64(0); i < int64(count); i++ {
			v, err := r.Uint32(pos + 4 + i*4)
			if err != nil {
				return nil, err
			}
			values = append(values, ValueInt(int64(v)))
		}

	case ADSTYPE_LARGE_INTEGER:
		for i := int64(0); i < int64(count); i++ {
			v, err := r.Int64(pos + 4 + i*8)
			if err != nil {
				return nil, err
			}
			values = append(values, ValueInt(v))
		}

	case ADSTYPE_UTC_TIME:
		for i := int64(0); i < int64(count); i++ {
			st, err := readSystemTime(r, pos+4+i*16)
			if err != nil {
				return nil, err
			}
			values = append(values, ValueTime(st.Time()))
		}

	case ADSTYPE_NT_SECURITY_DESCRIPTOR:
		// The count field lies here, there is always exactly one blob.
		length, err := r.Uint32(pos + 4)
		if err != nil {
			return nil, err
		}
		b, err := r.Bytes(pos+8, int64(length))
		if err != nil {
			return nil, err
		}
		values = append(values, ValueBlob(b))

	default:
		return nil, errors.Wrapf(ErrSchemaViolation, "unhandled attribute syntax %d at %#x", syntax, pos)
	}

	return values, nil
}
