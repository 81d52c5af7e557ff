package snapshot

import (
	"encoding/binary"
	"os"
	"time"
	"unicode/utf16"

	"github.com/gofrs/uuid"
	"github.com/lkarlslund/binstruct"
	"github.com/lkarlslund/snaphound/modules/util"
	"github.com/pkg/errors"
)

// ErrUnsupportedVersion indicates the file is not an AD Explorer snapshot we
// know how to decode. Fatal before any object is touched.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

const (
	snapshotSignature = "win-ad-ob"
	snapshotMarker    = 0x00010001

	// The object table always starts right after the fixed size header.
	objectTableOffset = 1086
)

// AttributeSyntax is the ADSTYPE of a property from the snapshot dictionary,
// deciding how its value blocks are laid out.
type AttributeSyntax uint32

const (
	ADSTYPE_INVALID AttributeSyntax = iota
	ADSTYPE_DN_STRING
	ADSTYPE_CASE_EXACT_STRING
	ADSTYPE_CASE_IGNORE_STRING
	ADSTYPE_PRINTABLE_STRING
	ADSTYPE_NUMERIC_STRING
	ADSTYPE_BOOLEAN
	ADSTYPE_INTEGER
	ADSTYPE_OCTET_STRING
	ADSTYPE_UTC_TIME
	ADSTYPE_LARGE_INTEGER
	ADSTYPE_PROV_SPECIFIC
	ADSTYPE_OBJECT_CLASS
	ADSTYPE_CASEIGNORE_LIST
	ADSTYPE_OCTET_LIST
	ADSTYPE_PATH
	ADSTYPE_POSTALADDRESS
	ADSTYPE_TIMESTAMP
	ADSTYPE_BACKLINK
	ADSTYPE_TYPEDNAME
	ADSTYPE_HOLD
	ADSTYPE_NETADDRESS
	ADSTYPE_REPLICAPOINTER
	ADSTYPE_FAXNUMBER
	ADSTYPE_EMAIL
	ADSTYPE_NT_SECURITY_DESCRIPTOR
	ADSTYPE_UNKNOWN
	ADSTYPE_DN_WITH_BINARY
	ADSTYPE_DN_WITH_STRING
)

// Header is the fixed snapshot file header followed by the three schema
// dictionaries (at OffsetProperties) and the object table (at 1086).
// Everything is little endian.
type Header struct {
	Signature Cstring
	Version   uint32

	FileTime    uint64
	Description Wstring `bin:"len:260"`
	Server      Wstring `bin:"len:260"`

	ObjectCount    uint32
	AttributeCount uint32

	OffsetProperties uint64
	OffsetEnd        uint64

	Properties PropertyDictionary `bin:"offsetStart:OffsetProperties"`
	Classes    ClassDictionary
	Rights     RightDictionary

	Frames []ObjectFrame `bin:"len:ObjectCount,offsetStart:1086"`
}

// Captured returns the time the snapshot was taken.
func (h *Header) Captured() time.Time {
	return util.FiletimeToTime(h.FileTime)
}

// ObjectFrame is one record of the object table: total record size, the
// attribute mapping table, and an opaque value area the mapping entries
// point into. Values are decoded later, straight from the file buffer.
type ObjectFrame struct {
	Position CurrentPosition
	Size     uint32
	Count    uint32
	Entries  []MappingEntry `bin:"len:Count"`
	Blob     struct{}       `bin:"SkipData"`
}

func (o *ObjectFrame) SkipData(r binstruct.Reader) error {
	skip := int64(o.Size) - 8 - int64(o.Count)*8
	if skip < 0 {
		return errors.Wrapf(ErrTruncatedData, "object frame at %#x declares size %d with %d mapping entries", int64(o.Position), o.Size, o.Count)
	}
	_, err := r.Seek(skip, os.SEEK_CUR)
	return err
}

// MappingEntry points one attribute of an object at its value block. The
// offset is relative to the start of the object frame and may be negative
// when AD Explorer shares a value block between objects.
type MappingEntry struct {
	Attribute uint32
	Offset    int32
}

type Property struct {
	Name                  WStringLength
	Unknown               uint32
	Syntax                uint32
	DN                    WStringLength
	SchemaIDGUID          uuid.UUID
	AttributeSecurityGUID uuid.UUID
	Blob                  uint32
}

type PropertyDictionary struct {
	Count uint32
	Props []Property `bin:"len:Count"`
}

type ClassBlock struct {
	Unknown1 uint32
	Unknown2 WStringLength
}

type SchemaClass struct {
	ClassName       WStringLength
	DN              WStringLength
	CommonClassName WStringLength
	SubClassOf      WStringLength
	SchemaIDGUID    uuid.UUID

	OffsetToNumBlocks uint32
	OffsetData        []byte `bin:"len:OffsetToNumBlocks"`

	NumBlocks uint32
	Blocks    []ClassBlock `bin:"len:NumBlocks"`

	UnknownCount uint32
	UnknownData  []byte `bin:"len:UnknownCount*16"`

	NumPossSuperiors uint32
	PossSuperiors    []WStringLength `bin:"len:NumPossSuperiors"`

	NumAuxiliaryClasses uint32
	AuxiliaryClasses    []WStringLength `bin:"len:NumAuxiliaryClasses"`
}

type ClassDictionary struct {
	Count   uint32
	Classes []SchemaClass `bin:"len:Count"`
}

type Right struct {
	Name        WStringLength
	Description WStringLength
	Blob        [20]byte
}

type RightDictionary struct {
	Count  uint32
	Rights []Right `bin:"len:Count"`
}

type SystemTime struct {
	Year         uint16
	Month        uint16
	DayOfWeek    uint16
	Day          uint16
	Hour         uint16
	Minute       uint16
	Second       uint16
	Milliseconds uint16
}

func (st *SystemTime) Time() time.Time {
	return time.Date(int(st.Year), time.Month(st.Month), int(st.Day), int(st.Hour), int(st.Minute), int(st.Second), int(st.Milliseconds)*int(time.Millisecond), time.UTC)
}

// CurrentPosition captures the decoder offset without consuming anything.
type CurrentPosition int64

func (cp *CurrentPosition) BinaryDecode(r binstruct.Reader) error {
	pos, err := r.Seek(0, os.SEEK_CUR)
	if err != nil {
		return err
	}
	*cp = CurrentPosition(pos)
	return nil
}

// WStringLength is a u32 byte length followed by UTF-16LE data, with the
// trailing NUL stripped when present.
type WStringLength string

func (wsl *WStringLength) BinaryDecode(r binstruct.Reader) error {
	length, err := r.ReadUint32()
	if err != nil {
		return err
	}

	if length == 0 {
		return nil
	}

	_, raw, err := r.ReadBytes(int(length))
	if err != nil {
		return err
	}

	data := make([]uint16, len(raw)/2)
	for i := range data {
		data[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}

	if len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}

	*wsl = WStringLength(string(utf16.Decode(data)))

	return nil
}

// Wstring is a fixed size UTF-16 field, NUL padded.
type Wstring []uint16

func (w Wstring) String() string {
	decoded := utf16.Decode(w)
	for i, r := range decoded {
		if r == 0 {
			return string(decoded[:i])
		}
	}
	return string(decoded)
}

// Cstring is a NUL terminated byte string.
type Cstring string

func (c *Cstring) BinaryDecode(r binstruct.Reader) error {
	buffer := make([]byte, 0, 64)

	for {
		c, err := r.ReadByte()
		if err != nil {
			return err
		}

		if c == 0 {
			break
		}

		buffer = append(buffer, c)
	}

	*c = Cstring(string(buffer))
	return nil
}
