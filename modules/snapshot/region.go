package snapshot

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// ErrTruncatedData indicates that a declared offset, length or count points
// outside the bytes we actually have. Fatal in the header, dictionaries and
// object table framing, recoverable (attribute dropped) inside a value block.
var ErrTruncatedData = errors.New("truncated data")

// Region is an immutable bounds checked window over the snapshot buffer.
// Sub regions share the backing array, nothing is ever copied. The base
// offset tracks where the window sits in the file so error messages and the
// value dedup cache can use absolute positions.
type Region struct {
	data []byte
	base int64
}

func NewRegion(data []byte) Region {
	return Region{data: data}
}

func (r Region) Len() int64 {
	return int64(len(r.data))
}

// Base returns the absolute file offset of the first byte of the window.
func (r Region) Base() int64 {
	return r.base
}

func (r Region) check(off, n int64) error {
	if off < 0 || n < 0 || off+n > int64(len(r.data)) || off+n < 0 {
		return errors.Wrapf(ErrTruncatedData, "%d bytes at offset %#x, region is %d bytes at %#x", n, r.base+off, len(r.data), r.base)
	}
	return nil
}

// View returns a sub window of n bytes starting at off.
func (r Region) View(off, n int64) (Region, error) {
	if err := r.check(off, n); err != nil {
		return Region{}, err
	}
	return Region{data: r.data[off : off+n], base: r.base + off}, nil
}

// From returns the sub window from off to the end of the region.
func (r Region) From(off int64) (Region, error) {
	if err := r.check(off, 0); err != nil {
		return Region{}, err
	}
	return Region{data: r.data[off:], base: r.base + off}, nil
}

// Bytes returns n raw bytes at off, sharing the backing array.
func (r Region) Bytes(off, n int64) ([]byte, error) {
	if err := r.check(off, n); err != nil {
		return nil, err
	}
	return r.data[off : off+n], nil
}

func (r Region) Uint16(off int64) (uint16, error) {
	if err := r.check(off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.data[off:]), nil
}

func (r Region) Uint32(off int64) (uint32, error) {
	if err := r.check(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.data[off:]), nil
}

func (r Region) Int32(off int64) (int32, error) {
	v, err := r.Uint32(off)
	return int32(v), err
}

func (r Region) Uint64(off int64) (uint64, error) {
	if err := r.check(off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.data[off:]), nil
}

func (r Region) Int64(off int64) (int64, error) {
	v, err := r.Uint64(off)
	return int64(v), err
}

// WCstring decodes the NUL terminated UTF-16LE string starting at off.
// Unpaired surrogates come out as U+FFFD. A string running past the end of
// the region without a terminator is truncated data.
func (r Region) WCstring(off int64) (string, error) {
	if err := r.check(off, 0); err != nil {
		return "", err
	}
	units := make([]uint16, 0, 64)
	for {
		if off+2 > int64(len(r.data)) {
			return "", errors.Wrapf(ErrTruncatedData, "unterminated wide string at offset %#x", r.base+off)
		}
		c := binary.LittleEndian.Uint16(r.data[off:])
		off += 2
		if c == 0 {
			break
		}
		units = append(units, c)
	}
	return string(utf16.Decode(units)), nil
}
