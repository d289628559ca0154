package bmff

import (
	"fmt"
	"io"
	"strings"
)

// ColorMode selects whether the Emitter colorizes its output. Detecting
// whether standard output is actually a terminal is the out-of-scope
// "terminal color detection" collaborator named in spec.md §1 — it lives
// in cmd/mp4dump, which resolves ColorAuto to a concrete bool via
// ColorMode.Resolve before constructing the Emitter.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorOn
	ColorOff
)

// Resolve turns a ColorMode into a concrete on/off decision given whether
// the destination is a terminal.
func (m ColorMode) Resolve(isTerminal bool) bool {
	switch m {
	case ColorOn:
		return true
	case ColorOff:
		return false
	default:
		return isTerminal
	}
}

// Options controls the Emitter's rendering, matching the enumerated flags
// in spec.md §4.2/§6 one-to-one.
type Options struct {
	Color            ColorMode
	ShowOffsets      bool
	ShowLengths      bool
	ShowDescriptions bool
	ShowDefaults     bool
	Indent           int
	BytesPerLine     int
	MaxRows          int // 0 means unlimited
	SencPerSampleIV  int // 0 means "not supplied"
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Color:            ColorAuto,
		ShowOffsets:      true,
		ShowLengths:      true,
		ShowDescriptions: true,
		ShowDefaults:     false,
		Indent:           4,
		BytesPerLine:     16,
		MaxRows:          0,
	}
}

// ansi escape codes for the Emitter's fixed palette: box headers, field
// names, field values, descriptive annotations, hex-dump addresses, and
// warnings (spec.md §4.2).
const (
	ansiReset  = "\x1b[0m"
	ansiHeader = "\x1b[1;36m" // bold cyan
	ansiName   = "\x1b[32m"   // green
	ansiValue  = "\x1b[37m"   // white
	ansiDesc   = "\x1b[2;37m" // dim white
	ansiAddr   = "\x1b[33m"   // yellow
	ansiWarn   = "\x1b[1;31m" // bold red
)

// Emitter is the stateful rendering sink described in spec.md §4.2. It owns
// indentation and colorization; it never decides what to render, only how.
type Emitter struct {
	w      io.Writer
	opts   Options
	color  bool
	depth  int
	groups []string // label stack for BeginGroup, used only for diagnostics
}

// NewEmitter builds an Emitter writing to w. colorEnabled is the resolved
// output of opts.Color.Resolve, computed by the caller.
func NewEmitter(w io.Writer, opts Options, colorEnabled bool) *Emitter {
	return &Emitter{w: w, opts: opts, color: colorEnabled}
}

// Depth returns the current indentation depth (testable property 3: this
// must be zero once the top-level driver finishes).
func (e *Emitter) Depth() int { return e.depth }

func (e *Emitter) paint(code, s string) string {
	if !e.color {
		return s
	}
	return code + s + ansiReset
}

func (e *Emitter) indent() string {
	return strings.Repeat(" ", e.depth*e.opts.Indent)
}

func (e *Emitter) line(s string) {
	fmt.Fprintln(e.w, e.indent()+s)
}

// Enter prints a box header line and increases the indentation level.
//
//	[type] HumanName @ 0xHHHH, 0xPPPP .. 0xEEEE (LEN)
//
// with the @ clause suppressed by ShowOffsets=false and the (LEN) clause
// suppressed by ShowLengths=false, per spec.md §6.
func (e *Emitter) Enter(h Header) {
	label := e.paint(ansiHeader, "["+h.Type.String()+"] "+HumanName(h.Type))
	var sb strings.Builder
	sb.WriteString(label)
	if e.opts.ShowOffsets {
		sb.WriteString(" @ ")
		sb.WriteString(e.paint(ansiAddr, fmt.Sprintf("%#x, %#x .. %#x", h.Offset, h.PayloadStart(), h.PayloadEnd())))
	}
	if e.opts.ShowLengths {
		sb.WriteString(fmt.Sprintf(" (%d)", h.PayloadLen()))
	}
	e.line(sb.String())
	e.depth++
}

// Leave closes the most recently entered scope.
func (e *Emitter) Leave() {
	e.depth--
}

// Field emits one name/value line, appending a parenthesized description
// when ShowDescriptions is on and desc is non-empty.
//
//	name = value (description)
func (e *Emitter) Field(name, value, desc string) {
	e.emitField(name, value, desc, false)
}

// DefaultField emits a field that carries a spec-defined default; it is
// elided entirely unless isDefault is false or ShowDefaults is set, per
// spec.md §4.2's default-elision rule and §9's "keep defaults in data"
// design note.
func (e *Emitter) DefaultField(name, value, desc string, isDefault bool) {
	if isDefault && !e.opts.ShowDefaults {
		return
	}
	e.emitField(name, value, desc, false)
}

func (e *Emitter) emitField(name, value, desc string, bullet bool) {
	var sb strings.Builder
	if bullet {
		sb.WriteString("- ")
	}
	sb.WriteString(e.paint(ansiName, name))
	sb.WriteString(" = ")
	sb.WriteString(e.paint(ansiValue, value))
	if desc != "" && e.opts.ShowDescriptions {
		sb.WriteString(" ")
		sb.WriteString(e.paint(ansiDesc, "("+desc+")"))
	}
	e.line(sb.String())
}

// ListItem emits a "- label: value" bullet line, used for repeated entries
// that are not single scalar fields (e.g. ftyp's compatible_brands list).
func (e *Emitter) ListItem(label, value string) {
	e.line("- " + e.paint(ansiName, label) + ": " + e.paint(ansiValue, value))
}

// Note emits a bare annotation line with no name=value structure, used for
// flag-bit decodings such as "default-base-is-moof flag set".
func (e *Emitter) Note(text string) {
	e.line(e.paint(ansiDesc, text))
}

// BeginGroup opens a labelled sub-block of fields with no box header of its
// own (e.g. the default_sample_flags breakdown of trex/tfhd).
func (e *Emitter) BeginGroup(label string) {
	e.line(label + ":")
	e.groups = append(e.groups, label)
	e.depth++
}

// EndGroup closes the most recently opened group.
func (e *Emitter) EndGroup() {
	e.depth--
	e.groups = e.groups[:len(e.groups)-1]
}

// Warn reports a non-fatal condition without unwinding the current scope.
func (e *Emitter) Warn(message string) {
	e.line(e.paint(ansiWarn, "WARNING: "+message))
}

// ErrorWithDump reports a recoverable per-box parse failure: an ERROR line
// followed by a hex dump of whatever payload remains, per spec.md §7.
func (e *Emitter) ErrorWithDump(message string, data []byte, baseOffset int64) {
	e.line(e.paint(ansiWarn, "ERROR: "+message))
	e.HexDump(data, baseOffset)
}

// HexDump prints data as a canonical 16-(or BytesPerLine-)byte-per-line
// address+hex+ASCII dump, truncated at MaxRows lines with a trailing "...".
func (e *Emitter) HexDump(data []byte, baseOffset int64) {
	width := e.opts.BytesPerLine
	if width <= 0 {
		width = 16
	}
	total := (len(data) + width - 1) / width
	max := e.opts.MaxRows
	for row := 0; row*width < len(data); row++ {
		if max > 0 && row >= max {
			e.line("...")
			break
		}
		start := row * width
		end := start + width
		if end > len(data) {
			end = len(data)
		}
		e.line(e.formatHexRow(baseOffset+int64(start), data[start:end], width))
	}
	_ = total
}

func (e *Emitter) formatHexRow(addr int64, chunk []byte, width int) string {
	var sb strings.Builder
	sb.WriteString(e.paint(ansiAddr, fmt.Sprintf("%08x", addr)))
	sb.WriteString("  ")
	for i := 0; i < width; i++ {
		if i < len(chunk) {
			fmt.Fprintf(&sb, "%02x ", chunk[i])
		} else {
			sb.WriteString("   ")
		}
		if i == width/2-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString(" |")
	for _, b := range chunk {
		if b >= 0x20 && b < 0x7f {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}
	sb.WriteString("|")
	return sb.String()
}

// Table is a streaming row sink implementing spec.md §9's "no whole-table
// accumulation" constraint: rows are printed (or elided) as they arrive,
// and the caller supplies the aggregate summary separately once it has
// finished folding every row, without the Table itself retaining any of
// them.
type Table struct {
	e       *Emitter
	max     int
	printed int
	elided  bool
}

// BeginTable starts a streaming table whose row cap is the emitter's
// MaxRows option (0 = unlimited).
func (e *Emitter) BeginTable() *Table {
	return &Table{e: e, max: e.opts.MaxRows}
}

// Row prints one row's pre-formatted text, or elides it and records that
// an ellipsis is owed once the cap is reached.
func (t *Table) Row(text string) {
	if t.max > 0 && t.printed >= t.max {
		t.elided = true
		return
	}
	t.e.line(text)
	t.printed++
}

// Finish closes the table, printing "..." if rows were elided, then the
// grammar-supplied aggregate summary line (e.g. "[samples = N, time = T]"),
// which may be empty if the box defines no summary row.
func (t *Table) Finish(summary string) {
	if t.elided {
		t.e.line("...")
	}
	if summary != "" {
		t.e.line(summary)
	}
}
