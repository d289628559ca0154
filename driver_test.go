package bmff

import (
	"bytes"
	"strings"
	"testing"
)

// box builds one complete box: a 4-byte big-endian size, the 4-byte type,
// and payload, matching the on-wire framing spec.md §3 describes.
func box(fourCC string, payload []byte) []byte {
	var buf bytes.Buffer
	size := uint32(8 + len(payload))
	buf.WriteByte(byte(size >> 24))
	buf.WriteByte(byte(size >> 16))
	buf.WriteByte(byte(size >> 8))
	buf.WriteByte(byte(size))
	buf.WriteString(fourCC)
	buf.Write(payload)
	return buf.Bytes()
}

func dissectAll(t *testing.T, data []byte, opts Options) string {
	t.Helper()
	var out bytes.Buffer
	e := NewEmitter(&out, opts, false)
	if err := Dissect(bytes.NewReader(data), int64(len(data)), e, opts); err != nil {
		t.Fatalf("Dissect: %v", err)
	}
	if e.Depth() != 0 {
		t.Fatalf("Depth after Dissect: got %d, want 0", e.Depth())
	}
	return out.String()
}

func TestDissectCMAFInitSegmentFtyp(t *testing.T) {
	payload := append([]byte("iso6"), 0, 0, 0, 0)
	payload = append(payload, []byte("cmfc")...)
	data := box("ftyp", payload)

	out := dissectAll(t, data, DefaultOptions())

	want := []string{
		"[ftyp] FileType @ 0x0, 0x8 .. 0x14 (12)",
		"major_brand = 'iso6'",
		"minor_version = 00000000",
		"- compatible: 'cmfc'",
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Fatalf("output missing %q; got:\n%s", w, out)
		}
	}
}

func TestDissectFragmentedTfhd(t *testing.T) {
	payload := []byte{
		0x00, 0x02, 0x00, 0x20, // version=0, flags=0x020020
		0x00, 0x00, 0x00, 0x01, // track_ID = 1
		0x01, 0x01, 0x00, 0x00, // default_sample_flags
	}
	data := box("tfhd", payload)

	out := dissectAll(t, data, DefaultOptions())

	want := []string{
		"flags = 020020",
		"track_ID = 1",
		"default-base-is-moof flag set",
		"default_sample_flags:",
		"sample_depends_on = 1 (yes)",
		"sample_is_non_sync_sample = True",
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Fatalf("output missing %q; got:\n%s", w, out)
		}
	}
}

func TestDissectPsshWidevineAndPlayReady(t *testing.T) {
	widevine := []byte{0xed, 0xef, 0x8b, 0xa9, 0x79, 0xd6, 0x4a, 0xce, 0xa3, 0xc8, 0x27, 0xdc, 0xd5, 0x1d, 0x21, 0xed}
	playready := []byte{0x9a, 0x04, 0xf0, 0x79, 0x98, 0x40, 0x42, 0x86, 0xab, 0x92, 0xe6, 0x5b, 0xe0, 0x88, 0x5f, 0x95}

	for _, tc := range []struct {
		systemID []byte
		want     string
	}{
		{widevine, "(Widevine Content Protection)"},
		{playready, "(Microsoft PlayReady)"},
	} {
		var payload bytes.Buffer
		payload.Write([]byte{0x00, 0x00, 0x00, 0x00}) // version+flags
		payload.Write(tc.systemID)
		payload.Write([]byte{0x00, 0x00, 0x00, 0x00}) // DataSize = 0
		data := box("pssh", payload.Bytes())

		out := dissectAll(t, data, DefaultOptions())
		if !strings.Contains(out, tc.want) {
			t.Fatalf("output missing %q for SystemID %x; got:\n%s", tc.want, tc.systemID, out)
		}
	}
}

// writeDescriptorSize encodes n as a single size byte, the one-byte form of
// the 7-bit-per-byte varint readDescriptorSize decodes; it is only correct
// for n < 128, which covers every fixture in this file.
func writeDescriptorSize(buf *bytes.Buffer, n int) {
	buf.WriteByte(byte(n))
}

func TestDissectEsdsDescriptorChain(t *testing.T) {
	var dcd bytes.Buffer
	dcd.WriteByte(107)                     // objectTypeIndication: MPEG-1 Audio
	dcd.WriteByte(0x15)                     // streamType=5 (AudioStream), upStream=0, reserved=1
	dcd.Write([]byte{0x00, 0x00, 0x00})     // bufferSizeDB
	dcd.Write([]byte{0x00, 0x01, 0xd4, 0xc0}) // maxBitrate
	dcd.Write([]byte{0x00, 0x01, 0xd4, 0xc0}) // avgBitrate

	var slc bytes.Buffer
	slc.WriteByte(0x02) // predefined != 0

	var es bytes.Buffer
	es.Write([]byte{0x00, 0x01}) // ES_ID
	es.WriteByte(0x00)           // flags byte: no dependsOn/URL/OCR
	es.WriteByte(0x04)           // DecoderConfigDescriptor tag
	writeDescriptorSize(&es, dcd.Len())
	es.Write(dcd.Bytes())
	es.WriteByte(0x06) // SLConfigDescriptor tag
	writeDescriptorSize(&es, slc.Len())
	es.Write(slc.Bytes())

	var esds bytes.Buffer
	esds.Write([]byte{0x00, 0x00, 0x00, 0x00}) // version+flags
	esds.WriteByte(0x03)                       // ES_Descriptor tag
	writeDescriptorSize(&esds, es.Len())
	esds.Write(es.Bytes())

	data := box("esds", esds.Bytes())

	out := dissectAll(t, data, DefaultOptions())
	want := []string{
		"[3] ES_Descriptor",
		"[4] DecoderConfigDescriptor",
		"[6] SLConfigDescriptor",
		"objectTypeIndication = 107 (MPEG-1 Audio (usually MP3))",
		"streamType = 5 (AudioStream)",
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Fatalf("output missing %q; got:\n%s", w, out)
		}
	}
}

func TestDissectTruncatedSttsRows(t *testing.T) {
	const entryCount = 16243
	var payload bytes.Buffer
	payload.Write([]byte{0x00, 0x00, 0x00, 0x00}) // version+flags
	payload.Write([]byte{
		byte(entryCount >> 24), byte(entryCount >> 16),
		byte(entryCount >> 8), byte(entryCount & 0xff),
	})
	for i := 0; i < entryCount; i++ {
		payload.Write([]byte{0x00, 0x00, 0x00, 0x01}) // sample_count = 1
		payload.Write([]byte{0x00, 0x00, 0x00, 0x01}) // sample_delta = 1
	}
	data := box("stts", payload.Bytes())

	opts := DefaultOptions()
	opts.MaxRows = 3
	out := dissectAll(t, data, opts)

	if got := strings.Count(out, "sample_count"); got != 3 {
		t.Fatalf("expected exactly 3 printed rows, got %d; output head:\n%s", got, headLines(out, 10))
	}
	if !strings.Contains(out, "...") {
		t.Fatalf("expected an elision marker; got:\n%s", headLines(out, 10))
	}
	wantSummary := "[samples = 16243, time = 16243]"
	if !strings.Contains(out, wantSummary) {
		t.Fatalf("expected summary %q; got:\n%s", wantSummary, out)
	}
}

func TestDissectUnknownFourCCThenSibling(t *testing.T) {
	unknown := box("zzzz", bytes.Repeat([]byte{0xAB}, 16))
	sibling := box("free", []byte{0x01, 0x02, 0x03, 0x04})

	data := append(append([]byte{}, unknown...), sibling...)
	out := dissectAll(t, data, DefaultOptions())

	if !strings.Contains(out, "[zzzz]") {
		t.Fatalf("expected unknown box header to render; got:\n%s", out)
	}
	if !strings.Contains(out, "ab ab ab ab") {
		t.Fatalf("expected a hex dump of the unknown box's payload; got:\n%s", out)
	}
	if !strings.Contains(out, "[free]") {
		t.Fatalf("expected the sibling free box to still be parsed; got:\n%s", out)
	}
	if !strings.Contains(out, "4 byte(s) of padding") {
		t.Fatalf("expected free's payload to be reported as padding; got:\n%s", out)
	}
}

func headLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
