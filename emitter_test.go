package bmff

import (
	"bytes"
	"strings"
	"testing"
)

func newTestEmitter(buf *bytes.Buffer, opts Options, color bool) *Emitter {
	return NewEmitter(buf, opts, color)
}

func TestEmitterDefaultFieldElision(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	e := newTestEmitter(&buf, opts, false)

	e.DefaultField("version", "0", "", true)
	if buf.Len() != 0 {
		t.Fatalf("expected default field to be elided, got %q", buf.String())
	}

	e.DefaultField("flags", "1", "", false)
	if !strings.Contains(buf.String(), "flags = 1") {
		t.Fatalf("expected non-default field to print, got %q", buf.String())
	}
}

func TestEmitterShowDefaults(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.ShowDefaults = true
	e := newTestEmitter(&buf, opts, false)

	e.DefaultField("version", "0", "", true)
	if !strings.Contains(buf.String(), "version = 0") {
		t.Fatalf("expected default field to print when ShowDefaults is set, got %q", buf.String())
	}
}

func TestEmitterEnterLeaveIndentation(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.ShowOffsets = false
	opts.ShowLengths = false
	e := newTestEmitter(&buf, opts, false)

	h := Header{Offset: 0, HeaderSize: 8, Size: 16, Type: BoxType{'f', 't', 'y', 'p'}}
	e.Enter(h)
	if e.Depth() != 1 {
		t.Fatalf("Depth after Enter: got %d, want 1", e.Depth())
	}
	e.Field("major_brand", "isom", "")
	e.Leave()
	if e.Depth() != 0 {
		t.Fatalf("Depth after Leave: got %d, want 0", e.Depth())
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "[ftyp]") {
		t.Fatalf("expected header line to start with [ftyp], got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], strings.Repeat(" ", opts.Indent)+"major_brand") {
		t.Fatalf("expected field line indented by %d spaces, got %q", opts.Indent, lines[1])
	}
}

func TestTableTruncation(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.MaxRows = 3
	e := newTestEmitter(&buf, opts, false)

	tbl := e.BeginTable()
	for i := 0; i < 5; i++ {
		tbl.Row(strings.Repeat("x", 1) + " row")
	}
	tbl.Finish("[samples = 5, time = 10]")

	out := buf.String()
	if strings.Count(out, "row") != 3 {
		t.Fatalf("expected exactly 3 printed rows, got: %q", out)
	}
	if !strings.Contains(out, "...") {
		t.Fatalf("expected elision marker, got: %q", out)
	}
	if !strings.Contains(out, "[samples = 5, time = 10]") {
		t.Fatalf("expected summary line, got: %q", out)
	}
	idx := strings.Index(out, "...")
	sidx := strings.Index(out, "[samples")
	if idx == -1 || sidx == -1 || idx > sidx {
		t.Fatalf("expected \"...\" before summary, got: %q", out)
	}
}

func TestTableNoElisionUnderCap(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.MaxRows = 10
	e := newTestEmitter(&buf, opts, false)

	tbl := e.BeginTable()
	tbl.Row("row 1")
	tbl.Row("row 2")
	tbl.Finish("")

	out := buf.String()
	if strings.Contains(out, "...") {
		t.Fatalf("expected no elision marker under the cap, got: %q", out)
	}
	if strings.Count(out, "row") != 2 {
		t.Fatalf("expected both rows printed, got: %q", out)
	}
}

func TestHexDumpRowFormat(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.BytesPerLine = 16
	e := newTestEmitter(&buf, opts, false)

	data := []byte("hello, world!!!!")
	e.HexDump(data, 0x100)

	out := strings.TrimRight(buf.String(), "\n")
	if !strings.HasPrefix(out, "00000100") {
		t.Fatalf("expected row to start with the base address, got %q", out)
	}
	if !strings.Contains(out, "68 65 6c 6c 6f") {
		t.Fatalf("expected hex bytes for \"hello\", got %q", out)
	}
	if !strings.Contains(out, "|hello, world!!!!|") {
		t.Fatalf("expected ASCII gutter, got %q", out)
	}
}

func TestHexDumpTruncation(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.BytesPerLine = 4
	opts.MaxRows = 1
	e := newTestEmitter(&buf, opts, false)

	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	e.HexDump(data, 0)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 1 data row + 1 ellipsis, got %d lines: %q", len(lines), lines)
	}
	if lines[1] != "..." {
		t.Fatalf("expected second line to be the ellipsis, got %q", lines[1])
	}
}

func TestEmitterColorWrapsValues(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	e := newTestEmitter(&buf, opts, true)

	e.Field("name", "value", "")
	out := buf.String()
	if !strings.Contains(out, "\x1b[") {
		t.Fatalf("expected ANSI escape codes when color is enabled, got %q", out)
	}
}

func TestEmitterNoColorPlainText(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	e := newTestEmitter(&buf, opts, false)

	e.Field("name", "value", "")
	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no ANSI escape codes when color is disabled, got %q", out)
	}
	if strings.TrimSpace(out) != "name = value" {
		t.Fatalf("got %q, want \"name = value\"", strings.TrimSpace(out))
	}
}
