package region

import (
	"strconv"
	"strings"
)

// HeaderKind names the SFZ header blocks the parser emits events for.
type HeaderKind int

const (
	HeaderGlobal HeaderKind = iota
	HeaderMaster
	HeaderGroup
	HeaderRegion
	HeaderControl
	HeaderCurve
	HeaderEffect
)

// Document is the result of ingesting a parser's on_header/on_opcode event
// stream: the finished region list plus bookkeeping the host can inspect
// (unknown opcodes, parse warnings) without failing the load.
type Document struct {
	Regions        []*Region
	UnknownOpcodes map[string]struct{}
}

// Loader accumulates on_header/on_opcode events into a Document. It
// implements the inheriting-block semantics SFZ requires: opcodes set at
// global/master/group scope apply to every region nested under them unless
// the region overrides the same opcode itself.
type Loader struct {
	doc Document

	globalOpcodes []Opcode
	masterOpcodes []Opcode
	groupOpcodes  []Opcode

	current    *Region
	lastHeader HeaderKind
}

// NewLoader returns an empty Loader ready to receive parser events.
func NewLoader() *Loader {
	return &Loader{doc: Document{UnknownOpcodes: map[string]struct{}{}}}
}

// OnHeader handles a `<name>` header event, starting a new accumulation
// scope. Entering a region replays the accumulated global/master/group
// opcodes into it first, so region-level opcodes can override them in
// application order.
func (l *Loader) OnHeader(kind HeaderKind) {
	l.closeRegion()
	switch kind {
	case HeaderGlobal:
		l.globalOpcodes = nil
	case HeaderMaster:
		l.masterOpcodes = nil
	case HeaderGroup:
		l.groupOpcodes = nil
	case HeaderRegion:
		l.current = NewRegion()
		for _, o := range l.globalOpcodes {
			l.applyOpcode(o)
		}
		for _, o := range l.masterOpcodes {
			l.applyOpcode(o)
		}
		for _, o := range l.groupOpcodes {
			l.applyOpcode(o)
		}
	}
	l.lastHeader = kind
}

// OnOpcode handles one `name=value` (or `nameN=value`) event. Region-level
// opcodes applied after OnHeader(HeaderRegion) naturally override the
// inherited global/master/group values replayed above, since applyOpcode
// just overwrites the region's field each time it's called.
func (l *Loader) OnOpcode(name string, parameter *int, value string) {
	o := Opcode{Name: name, Parameter: parameter, Value: value}
	switch l.lastHeader {
	case HeaderGlobal:
		l.globalOpcodes = append(l.globalOpcodes, o)
	case HeaderMaster:
		l.masterOpcodes = append(l.masterOpcodes, o)
	case HeaderGroup:
		l.groupOpcodes = append(l.groupOpcodes, o)
	case HeaderRegion:
		l.applyOpcode(o)
	}
}

// Finish closes any in-progress region and returns the finished Document.
func (l *Loader) Finish() Document {
	l.closeRegion()
	return l.doc
}

func (l *Loader) closeRegion() {
	if l.current == nil {
		return
	}
	l.current.Normalize()
	l.doc.Regions = append(l.doc.Regions, l.current)
	l.current = nil
}

func (l *Loader) applyOpcode(o Opcode) {
	if l.current == nil {
		return
	}
	if !applyRegionOpcode(l.current, o) {
		l.doc.UnknownOpcodes[o.Name] = struct{}{}
	}
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}

func parseInt(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	return v, err == nil
}

func parseUint(s string) (uint64, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}
