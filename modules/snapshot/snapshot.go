package snapshot

import (
	"bytes"
	"encoding/binary"
	"os"
	"runtime"

	gsync "github.com/SaveTheRbtz/generic-sync-map-go"
	"github.com/lkarlslund/binstruct"
	"github.com/lkarlslund/snaphound/modules/ui"
	"github.com/lkarlslund/snaphound/modules/windowssecurity"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Snapshot is a fully decoded AD Explorer snapshot, objects in file order
// with lookup indexes over them.
type Snapshot struct {
	Header      Header
	Objects     []*Object
	Diagnostics *Diagnostics

	region Region

	// Identical attribute values are stored once in the file and referenced
	// from multiple objects, so decoded values are shared by position.
	valueCache gsync.MapOf[valueCacheKey, AttributeValues]

	attributeIndex map[string]Attribute
	classIndex     map[string]int
	sidIndex       map[windowssecurity.SID]int
	dnIndex        map[string]int
	childrenIndex  map[string][]int
	computerIndex  map[string]int

	rootDomain int
	domainSID  windowssecurity.SID
	trusts     []int
}

type valueCacheKey struct {
	position int64
	syntax   AttributeSyntax
}

// LoadFile reads a snapshot file and decodes it. A workers value below one
// uses every CPU.
func LoadFile(path string, workers int) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading snapshot %v", path)
	}
	return Load(data, workers)
}

// Load decodes a snapshot from its raw bytes.
func Load(data []byte, workers int) (*Snapshot, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	region := NewRegion(data)
	if err := validateHeader(region); err != nil {
		return nil, err
	}

	var header Header
	decoder := binstruct.NewDecoder(bytes.NewReader(data), binary.LittleEndian)
	if err := decoder.Decode(&header); err != nil {
		return nil, errors.Wrapf(ErrTruncatedData, "decoding snapshot structure: %v", err)
	}

	ui.Info().Msgf("Snapshot of %v captured %v, %v objects and %v schema attributes",
		header.Server.String(), header.Captured(), header.ObjectCount, header.AttributeCount)
	ui.Debug().Msgf("Snapshot description %q, dictionary holds %v properties, %v classes, %v rights",
		header.Description.String(), header.Properties.Count, header.Classes.Count, header.Rights.Count)

	sn := &Snapshot{
		Header:      header,
		Objects:     make([]*Object, len(header.Frames)),
		Diagnostics: &Diagnostics{},
		region:      region,
	}

	pb := ui.ProgressBar("Decoding objects", len(header.Frames))
	var decoders errgroup.Group
	chunk := (len(header.Frames) + workers - 1) / workers
	for start := 0; start < len(header.Frames); start += chunk {
		end := min(start+chunk, len(header.Frames))
		decoders.Go(func() error {
			for i := start; i < end; i++ {
				sn.decodeObject(i)
				pb.Add(1)
			}
			return nil
		})
	}
	if err := decoders.Wait(); err != nil {
		return nil, err
	}
	pb.Finish()

	sn.buildCaches()

	pb = ui.ProgressBar("Parsing security descriptors", len(sn.Objects))
	var parsers errgroup.Group
	for start := 0; start < len(sn.Objects); start += chunk {
		end := min(start+chunk, len(sn.Objects))
		parsers.Go(func() error {
			for i := start; i < end; i++ {
				sn.parseSecurityDescriptor(sn.Objects[i])
				pb.Add(1)
			}
			return nil
		})
	}
	if err := parsers.Wait(); err != nil {
		return nil, err
	}
	pb.Finish()

	return sn, nil
}

// validateHeader checks the fixed sized part of the header before anything
// gets decoded or allocated from the counts it declares.
func validateHeader(r Region) error {
	if r.Len() < objectTableOffset {
		return errors.Wrapf(ErrTruncatedData, "file is %v bytes, the snapshot header needs %v", r.Len(), objectTableOffset)
	}

	signature, err := r.Bytes(0, int64(len(snapshotSignature))+1)
	if err != nil {
		return err
	}
	if !bytes.Equal(signature, append([]byte(snapshotSignature), 0)) {
		return errors.Wrapf(ErrUnsupportedVersion, "file does not start with the %q signature", snapshotSignature)
	}

	marker, err := r.Uint32(int64(len(snapshotSignature)) + 1)
	if err != nil {
		return err
	}
	if marker != snapshotMarker {
		return errors.Wrapf(ErrUnsupportedVersion, "version marker is %#x, only %#x is supported", marker, snapshotMarker)
	}

	objectCount, err := r.Uint32(objectTableOffset - 24)
	if err != nil {
		return err
	}
	if int64(objectCount)*8 > r.Len()-objectTableOffset {
		return errors.Wrapf(ErrTruncatedData, "%v objects declared but only %v bytes follow the header", objectCount, r.Len()-objectTableOffset)
	}

	offsetProperties, err := r.Uint64(objectTableOffset - 16)
	if err != nil {
		return err
	}
	if offsetProperties > uint64(r.Len()) {
		return errors.Wrapf(ErrTruncatedData, "dictionary offset %#x is beyond the %v byte file", offsetProperties, r.Len())
	}

	return nil
}

// decodeObject fills the attribute bag of object i from its mapping table.
// Damaged attribute values are dropped and counted, the object survives.
func (sn *Snapshot) decodeObject(i int) {
	frame := &sn.Header.Frames[i]
	o := &Object{
		snap:     sn,
		index:    i,
		position: int64(frame.Position),
	}
	o.attributes.init(len(frame.Entries))

	for _, entry := range frame.Entries {
		if int(entry.Attribute) >= len(sn.Header.Properties.Props) {
			sn.Diagnostics.SchemaViolation(errors.Wrapf(ErrSchemaViolation,
				"object %v references attribute %v outside the %v entry dictionary",
				i, entry.Attribute, len(sn.Header.Properties.Props)))
			continue
		}
		prop := &sn.Header.Properties.Props[entry.Attribute]
		syntax := AttributeSyntax(prop.Syntax)

		// Offsets are signed, negative ones point at value blocks shared
		// with earlier objects.
		key := valueCacheKey{
			position: int64(frame.Position) + int64(entry.Offset),
			syntax:   syntax,
		}

		values, found := sn.valueCache.Load(key)
		if !found {
			var err error
			values, err = decodeValues(sn.region, syntax, key.position, sn.Diagnostics)
			if err != nil {
				err = errors.Wrapf(err, "attribute %v of object %v", prop.Name, i)
				if errors.Is(err, ErrSchemaViolation) {
					sn.Diagnostics.SchemaViolation(err)
				} else {
					sn.Diagnostics.TruncatedValue(err)
				}
				continue
			}
			values, _ = sn.valueCache.LoadOrStore(key, values)
		}

		o.attributes.Set(Attribute(entry.Attribute), values)
		sn.Diagnostics.CountAttributeValues(values.Len())
	}

	sn.Objects[i] = o
	sn.Diagnostics.CountObject()
}

func (sn *Snapshot) parseSecurityDescriptor(o *Object) {
	blob, found := o.Attr("nTSecurityDescriptor").FirstBlob()
	if !found {
		return
	}
	sd, err := windowssecurity.CacheOrParseSecurityDescriptor(blob)
	if err != nil {
		sn.Diagnostics.MalformedDescriptor(errors.Wrapf(err, "security descriptor of %v", o.DistinguishedName()))
		return
	}
	o.sd = sd
}
