package bloodhound

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/lkarlslund/snaphound/modules/util"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

var qjson = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultCompression is the gzip level used when the caller does not pick
// one.
const DefaultCompression = 6

const writeBufferSize = 8 * 1024 * 1024

// ArchiveEntry is one JSON document and the name it gets inside the
// archive.
type ArchiveEntry struct {
	Name string
	Data any
}

// Entries returns the archive members in upload order, domains first.
func (r *Report) Entries() []ArchiveEntry {
	return []ArchiveEntry{
		{"domains.json", r.Domains},
		{"users.json", r.Users},
		{"computers.json", r.Computers},
		{"groups.json", r.Groups},
		{"ous.json", r.OUs},
		{"containers.json", r.Containers},
		{"gpos.json", r.GPOs},
	}
}

// WriteTar streams the report's documents into a tar archive. Headers carry
// no timestamps so the same report produces the same bytes.
func (r *Report) WriteTar(w io.Writer) error {
	tw := tar.NewWriter(w)
	for _, entry := range r.Entries() {
		data, err := qjson.Marshal(entry.Data)
		if err != nil {
			return errors.Wrapf(err, "marshaling %v", entry.Name)
		}
		err = tw.WriteHeader(&tar.Header{
			Name: entry.Name,
			Mode: 0644,
			Size: int64(len(data)),
		})
		if err != nil {
			return errors.Wrapf(err, "writing header for %v", entry.Name)
		}
		if _, err := tw.Write(data); err != nil {
			return errors.Wrapf(err, "writing %v", entry.Name)
		}
	}
	return errors.Wrap(tw.Close(), "finishing archive")
}

// WriteFile writes the archive to path. The payload is a gzip compressed
// tar at the given level, or lz4 when the file name ends in .tar.lz4.
func (r *Report) WriteFile(path string, level int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %v", path)
	}
	w := bufio.NewWriterSize(f, writeBufferSize)
	if err := r.writeCompressed(w, path, level); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "flushing %v", path)
	}
	return errors.Wrapf(f.Close(), "closing %v", path)
}

func (r *Report) writeCompressed(w io.Writer, name string, level int) error {
	if strings.HasSuffix(strings.ToLower(name), ".tar.lz4") {
		lw := lz4.NewWriter(w)
		if err := r.WriteTar(lw); err != nil {
			return err
		}
		return errors.Wrap(lw.Close(), "flushing lz4 stream")
	}

	gw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return errors.Wrapf(err, "compression level %v", level)
	}
	if err := r.WriteTar(gw); err != nil {
		return err
	}
	return errors.Wrap(gw.Close(), "flushing gzip stream")
}

// DefaultOutputName derives the archive name from the snapshot path,
// corp.dat becomes corp-bloodhound.tar.gz next to it.
func DefaultOutputName(input string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name := util.CleanFilename(stem) + "-bloodhound.tar.gz"
	return filepath.Join(filepath.Dir(input), name)
}
