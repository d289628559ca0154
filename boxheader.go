package bmff

import "fmt"

// readBoxHeader consumes one box header from c: 32-bit size, 4-byte type,
// optional 64-bit largesize (size==1), optional 16-byte extended type
// (type=="uuid"). size==0 resolves to "consume the rest of the current
// region", per spec.md §3/§8's boundary behaviors and SPEC_FULL.md §7's
// Open Question decision (uniformly "to end of parent region").
func readBoxHeader(c *Cursor) (Header, error) {
	offset := c.Pos()
	size32, err := c.U32()
	if err != nil {
		return Header{}, fmt.Errorf("bmff: box header at %#x: %w", offset, err)
	}
	typeBytes, err := c.Bytes(4)
	if err != nil {
		return Header{}, fmt.Errorf("bmff: box header at %#x: %w", offset, err)
	}
	var t BoxType
	copy(t[:], typeBytes)

	headerSize := 8
	var size int64
	switch size32 {
	case 1:
		large, err := c.U64()
		if err != nil {
			return Header{}, fmt.Errorf("bmff: largesize at %#x: %w", offset, err)
		}
		size = int64(large)
		headerSize = 16
	case 0:
		size = (c.End() - offset)
	default:
		size = int64(size32)
	}

	h := Header{Offset: offset, HeaderSize: headerSize, Size: size, Type: t}

	if t == TypeUuid {
		ext, err := c.Bytes(16)
		if err != nil {
			return Header{}, fmt.Errorf("bmff: uuid extended type at %#x: %w", offset, err)
		}
		copy(h.ExtendedType[:], ext)
		h.IsUUID = true
		h.HeaderSize += 16
	}

	if h.Size < int64(h.HeaderSize) {
		return Header{}, fmt.Errorf("bmff: box %q at %#x declares size %d smaller than its %d-byte header", t, offset, h.Size, h.HeaderSize)
	}
	if h.PayloadEnd() > c.End() {
		return Header{}, fmt.Errorf("%w: box %q at %#x declares end %#x past region end %#x", ErrOverflow, t, offset, h.PayloadEnd(), c.End())
	}
	return h, nil
}
