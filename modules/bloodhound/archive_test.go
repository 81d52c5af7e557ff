package bloodhound

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pierrec/lz4/v4"
)

var archiveOrder = []string{
	"domains.json",
	"users.json",
	"computers.json",
	"groups.json",
	"ous.json",
	"containers.json",
	"gpos.json",
}

// readTar collects entry names and contents in archive order.
func readTar(t *testing.T, r io.Reader) ([]string, map[string][]byte) {
	t.Helper()
	var names []string
	contents := map[string][]byte{}
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading archive: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("reading %v: %v", header.Name, err)
		}
		if int64(len(data)) != header.Size {
			t.Errorf("%v content is %v bytes, header says %v", header.Name, len(data), header.Size)
		}
		names = append(names, header.Name)
		contents[header.Name] = data
	}
	return names, contents
}

func TestWriteTar(t *testing.T) {
	report := labReport(t)

	var buf bytes.Buffer
	if err := report.WriteTar(&buf); err != nil {
		t.Fatalf("writing archive: %v", err)
	}

	names, contents := readTar(t, bytes.NewReader(buf.Bytes()))
	if !reflect.DeepEqual(names, archiveOrder) {
		t.Errorf("entry order = %v, want %v", names, archiveOrder)
	}

	// The domains header carries no version field, every other category
	// does.
	var domainsDoc struct {
		Meta map[string]any `json:"meta"`
	}
	if err := qjson.Unmarshal(contents["domains.json"], &domainsDoc); err != nil {
		t.Fatalf("decoding domains.json: %v", err)
	}
	if _, found := domainsDoc.Meta["version"]; found {
		t.Error("domains.json meta carries a version field")
	}

	var usersDoc struct {
		Meta map[string]any `json:"meta"`
	}
	if err := qjson.Unmarshal(contents["users.json"], &usersDoc); err != nil {
		t.Fatalf("decoding users.json: %v", err)
	}
	if version, found := usersDoc.Meta["version"]; !found || version != float64(5) {
		t.Errorf("users.json meta version = %v, want 5", version)
	}
}

func TestWriteTarDeterminism(t *testing.T) {
	report := labReport(t)

	var first, second bytes.Buffer
	if err := report.WriteTar(&first); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	if err := report.WriteTar(&second); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("two archives of the same report differ")
	}
}

func TestWriteFileGzip(t *testing.T) {
	report := labReport(t)
	path := filepath.Join(t.TempDir(), "corp-bloodhound.tar.gz")

	if err := report.WriteFile(path, DefaultCompression); err != nil {
		t.Fatalf("writing %v: %v", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %v: %v", path, err)
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("opening gzip stream: %v", err)
	}
	defer gr.Close()

	names, _ := readTar(t, gr)
	if !reflect.DeepEqual(names, archiveOrder) {
		t.Errorf("entry order = %v, want %v", names, archiveOrder)
	}
}

func TestWriteFileLZ4(t *testing.T) {
	report := labReport(t)
	path := filepath.Join(t.TempDir(), "corp-bloodhound.tar.lz4")

	if err := report.WriteFile(path, DefaultCompression); err != nil {
		t.Fatalf("writing %v: %v", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %v: %v", path, err)
	}
	defer f.Close()

	names, _ := readTar(t, lz4.NewReader(f))
	if !reflect.DeepEqual(names, archiveOrder) {
		t.Errorf("entry order = %v, want %v", names, archiveOrder)
	}
}

func TestDefaultOutputName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{filepath.Join("data", "corp.dat"), filepath.Join("data", "corp-bloodhound.tar.gz")},
		{"snapshot.dat", "snapshot-bloodhound.tar.gz"},
		{filepath.Join("d", "corp.snapshot.dat"), filepath.Join("d", "corp.snapshot-bloodhound.tar.gz")},
		{"ACME corp!.dat", "ACME corp-bloodhound.tar.gz"},
	}
	for _, tt := range tests {
		if got := DefaultOutputName(tt.input); got != tt.want {
			t.Errorf("DefaultOutputName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
