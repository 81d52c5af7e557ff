package util

import (
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
)

func TestSwapUUIDEndianess(t *testing.T) {
	tests := []struct {
		name string
		in   [16]byte
		want string
	}{
		{
			name: "schema guid",
			in:   [16]byte{166, 109, 2, 155, 60, 13, 92, 70, 139, 238, 81, 153, 215, 22, 92, 186},
			want: "9B026DA6-0D3C-465C-8BEE-5199D7165CBA",
		},
		{
			name: "member attribute",
			in:   [16]byte{0xc0, 0x79, 0x96, 0xbf, 0xe6, 0x0d, 0xd0, 0x11, 0xa2, 0x85, 0x00, 0xaa, 0x00, 0x30, 0x49, 0xe2},
			want: "BF9679C0-0DE6-11D0-A285-00AA003049E2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swapped := SwapUUIDEndianess(uuid.UUID(tt.in))
			got := strings.ToUpper(swapped.String())
			if got != tt.want {
				t.Errorf("SwapUUIDEndianess() = %v, want %v", got, tt.want)
			}
			if back := SwapUUIDEndianess(swapped); back != uuid.UUID(tt.in) {
				t.Errorf("swapping twice = %v, want the original bytes back", back)
			}
		})
	}
}

func TestFiletimeToTime(t *testing.T) {
	tests := []struct {
		name     string
		filetime uint64
		want     time.Time
	}{
		{
			name:     "blank",
			filetime: 0,
			want:     time.Time{},
		},
		{
			name:     "never expires",
			filetime: 0xFFFFFFFFFFFFFFFF,
			want:     time.Time{},
		},
		{
			name:     "epoch",
			filetime: 116444736000000000,
			want:     time.Unix(0, 0),
		},
		{
			name:     "2021-01-01",
			filetime: 132539328000000000,
			want:     time.Unix(1609459200, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FiletimeToTime(tt.filetime); !got.Equal(tt.want) {
				t.Errorf("FiletimeToTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParentDistinguishedName(t *testing.T) {
	tests := []struct {
		name string
		dn   string
		want string
	}{
		{
			name: "simple",
			dn:   "CN=Users,DC=contoso,DC=local",
			want: "DC=contoso,DC=local",
		},
		{
			name: "escaped comma",
			dn:   "CN=Smith\\, John,CN=Users,DC=contoso,DC=local",
			want: "CN=Users,DC=contoso,DC=local",
		},
		{
			name: "top",
			dn:   "DC=local",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParentDistinguishedName(tt.dn); got != tt.want {
				t.Errorf("ParentDistinguishedName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain",
			in:   "snapshot-2024.dat",
			want: "snapshot-2024.dat",
		},
		{
			name: "diacritics",
			in:   "dómäin.dat",
			want: "domain.dat",
		},
		{
			name: "illegal characters",
			in:   "a/b\\c*d?.dat",
			want: "abcd.dat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanFilename(tt.in); got != tt.want {
				t.Errorf("CleanFilename() = %v, want %v", got, tt.want)
			}
		})
	}
}
