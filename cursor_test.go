package bmff

import (
	"bytes"
	"errors"
	"testing"
)

func TestCursorByteAlignedReads(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x00, 0x00, 0x00, 0x04, 0x05}
	c := NewCursor(bytes.NewReader(data), int64(len(data)))

	v8, err := c.U8()
	if err != nil || v8 != 0x01 {
		t.Fatalf("U8: got (%d, %v), want (1, nil)", v8, err)
	}
	v16, err := c.U16()
	if err != nil || v16 != 0x0203 {
		t.Fatalf("U16: got (%#x, %v), want (0x0203, nil)", v16, err)
	}
	v24, err := c.U24()
	if err != nil || v24 != 0x000000 {
		t.Fatalf("U24: got (%#x, %v), want (0, nil)", v24, err)
	}
	v16b, err := c.U16()
	if err != nil || v16b != 0x0405 {
		t.Fatalf("U16 trailing: got (%#x, %v), want (0x0405, nil)", v16b, err)
	}
	if !c.AtEnd() {
		t.Fatalf("expected cursor to be at end, Remaining()=%d", c.Remaining())
	}
}

func TestCursorBitReads(t *testing.T) {
	// 0b10110_1_00, 0b11111111 -- mdhd-style 5+1+... bit packing.
	data := []byte{0b10110_1_00, 0xff}
	c := NewCursor(bytes.NewReader(data), int64(len(data)))

	five, err := c.U(5)
	if err != nil || five != 0b10110 {
		t.Fatalf("U(5): got (%#b, %v), want (0b10110, nil)", five, err)
	}
	one, err := c.U(1)
	if err != nil || one != 1 {
		t.Fatalf("U(1): got (%d, %v), want (1, nil)", one, err)
	}
	rest, err := c.U(10)
	if err != nil || rest != 0b00_11111111 {
		t.Fatalf("U(10): got (%#b, %v), want (0b00_11111111, nil)", rest, err)
	}
	if !c.AtEnd() {
		t.Fatalf("expected cursor to be at end after consuming all bits")
	}
}

func TestCursorRegionScoping(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	c := NewCursor(bytes.NewReader(data), int64(len(data)))

	if err := c.EnterRegion(3); err != nil {
		t.Fatalf("EnterRegion: %v", err)
	}
	if c.Remaining() != 3 {
		t.Fatalf("Remaining inside region: got %d, want 3", c.Remaining())
	}
	b, err := c.Bytes(3)
	if err != nil || !bytes.Equal(b, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("Bytes: got (%v, %v)", b, err)
	}
	if !c.AtEnd() {
		t.Fatalf("expected region to be exhausted")
	}
	c.ExitRegion()
	if c.Remaining() != 3 {
		t.Fatalf("Remaining after ExitRegion: got %d, want 3", c.Remaining())
	}

	if err := c.EnterRegion(10); !errors.Is(err, ErrOverflow) {
		t.Fatalf("EnterRegion past end: got %v, want ErrOverflow", err)
	}
}

func TestCursorFixedPoint(t *testing.T) {
	// 16.16 fixed-point 1.5 == 0x00018000.
	data := []byte{0x00, 0x01, 0x80, 0x00}
	c := NewCursor(bytes.NewReader(data), int64(len(data)))
	f, err := c.Fixed(16, 16)
	if err != nil {
		t.Fatalf("Fixed: %v", err)
	}
	if got := f.Float64(); got != 1.5 {
		t.Fatalf("Float64: got %v, want 1.5", got)
	}
}

func TestCursorUTF8UntilNUL(t *testing.T) {
	data := append([]byte("hello"), 0x00, 'x')
	c := NewCursor(bytes.NewReader(data), int64(len(data)))
	s, err := c.UTF8UntilNUL()
	if err != nil || s != "hello" {
		t.Fatalf("UTF8UntilNUL: got (%q, %v), want (\"hello\", nil)", s, err)
	}
	if c.Remaining() != 1 {
		t.Fatalf("Remaining after string: got %d, want 1", c.Remaining())
	}
}

func TestCursorMaxDepth(t *testing.T) {
	data := make([]byte, maxCursorDepth+8)
	c := NewCursor(bytes.NewReader(data), int64(len(data)))
	for i := 0; i < maxCursorDepth; i++ {
		if err := c.EnterRegion(1); err != nil {
			t.Fatalf("EnterRegion depth %d: %v", i, err)
		}
	}
	if err := c.EnterRegion(1); err == nil {
		t.Fatalf("expected an error once nesting exceeds maxCursorDepth")
	}
}
