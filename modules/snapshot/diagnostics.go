package snapshot

import (
	"sync"
	"sync/atomic"

	"github.com/icza/gox/stringsx"
	"github.com/lkarlslund/snaphound/modules/ui"
)

const maxDiagnosticSamples = 25

// Diagnostics counts everything recoverable the decoder and mappers run
// into. Nothing gets dropped silently, every class of damage ends up in the
// summary with a few sample messages for debugging.
type Diagnostics struct {
	objects               int64
	attributeValues       int64
	schemaViolations      int64
	truncatedValues       int64
	encodingSubstitutions int64
	malformedDescriptors  int64
	danglingReferences    int64

	mu      sync.Mutex
	samples []string
}

type DiagnosticTotals struct {
	Objects               int64
	AttributeValues       int64
	SchemaViolations      int64
	TruncatedValues       int64
	EncodingSubstitutions int64
	MalformedDescriptors  int64
	DanglingReferences    int64
}

func (d *Diagnostics) note(err error) {
	// Attribute values come straight from the snapshot, so scrub them
	// before they hit a terminal.
	msg := stringsx.Clean(err.Error())
	d.mu.Lock()
	if len(d.samples) < maxDiagnosticSamples {
		d.samples = append(d.samples, msg)
	}
	d.mu.Unlock()
	ui.Debug().Msg(msg)
}

func (d *Diagnostics) CountObject() {
	atomic.AddInt64(&d.objects, 1)
}

func (d *Diagnostics) CountAttributeValues(n int) {
	atomic.AddInt64(&d.attributeValues, int64(n))
}

func (d *Diagnostics) SchemaViolation(err error) {
	atomic.AddInt64(&d.schemaViolations, 1)
	d.note(err)
}

func (d *Diagnostics) TruncatedValue(err error) {
	atomic.AddInt64(&d.truncatedValues, 1)
	d.note(err)
}

func (d *Diagnostics) EncodingSubstitution(err error) {
	atomic.AddInt64(&d.encodingSubstitutions, 1)
	d.note(err)
}

func (d *Diagnostics) MalformedDescriptor(err error) {
	atomic.AddInt64(&d.malformedDescriptors, 1)
	d.note(err)
}

func (d *Diagnostics) DanglingReference(err error) {
	atomic.AddInt64(&d.danglingReferences, 1)
	d.note(err)
}

func (d *Diagnostics) Totals() DiagnosticTotals {
	return DiagnosticTotals{
		Objects:               atomic.LoadInt64(&d.objects),
		AttributeValues:       atomic.LoadInt64(&d.attributeValues),
		SchemaViolations:      atomic.LoadInt64(&d.schemaViolations),
		TruncatedValues:       atomic.LoadInt64(&d.truncatedValues),
		EncodingSubstitutions: atomic.LoadInt64(&d.encodingSubstitutions),
		MalformedDescriptors:  atomic.LoadInt64(&d.malformedDescriptors),
		DanglingReferences:    atomic.LoadInt64(&d.danglingReferences),
	}
}

// Log writes the decode summary, with problem counts at warning level when
// anything was dropped or patched up along the way.
func (d *Diagnostics) Log() {
	t := d.Totals()
	ui.Info().Msgf("Decoded %v objects carrying %v attribute values", t.Objects, t.AttributeValues)
	problems := t.SchemaViolations + t.TruncatedValues + t.EncodingSubstitutions + t.MalformedDescriptors + t.DanglingReferences
	if problems == 0 {
		return
	}
	ui.Warn().Msgf("Snapshot damage: %v schema violations, %v truncated values, %v encoding substitutions, %v malformed security descriptors, %v dangling references", t.SchemaViolations, t.TruncatedValues, t.EncodingSubstitutions, t.MalformedDescriptors, t.DanglingReferences)
	d.mu.Lock()
	samples := append([]string(nil), d.samples...)
	d.mu.Unlock()
	for _, s := range samples {
		ui.Debug().Msg(s)
	}
}
