package bmff

import "fmt"

// descriptorParser renders one descriptor's fields into e, given a Cursor
// scoped to exactly the descriptor's payload (spec.md §4.4). It is the
// esds/iods analogue of BoxParser.
type descriptorParser func(c *Cursor, tag uint8, ctx Context) error

var descriptorParsers map[uint8]descriptorParser

func init() {
	descriptorParsers = map[uint8]descriptorParser{
		0x03: parseESDescriptor,
		0x04: parseDecoderConfigDescriptor,
		0x05: parseDecoderSpecificInfo,
		0x06: parseSLConfigDescriptor,
		0x10: parseInitialObjectDescriptor,
	}
}

var descriptorNames = map[uint8]string{
	0x03: "ES_Descriptor",
	0x04: "DecoderConfigDescriptor",
	0x05: "DecoderSpecificInfo",
	0x06: "SLConfigDescriptor",
	0x10: "MP4InitialObjectDescriptor",
}

// DescriptorName returns the human name for a tag, or "UnknownDescriptor".
func DescriptorName(tag uint8) string {
	if n, ok := descriptorNames[tag]; ok {
		return n
	}
	return "UnknownDescriptor"
}

// readDescriptorSize reads the BER-like variable-length size: 7 bits per
// byte, high bit set meaning "more bytes follow", 1-4 bytes total, per
// ISO/IEC 14496-1 and spec.md §3/§4.4.
func readDescriptorSize(c *Cursor) (uint32, error) {
	var size uint32
	for i := 0; i < 4; i++ {
		b, err := c.U8()
		if err != nil {
			return 0, err
		}
		size = size<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			return size, nil
		}
	}
	return 0, fmt.Errorf("bmff: descriptor size varint exceeds 4 bytes")
}

// parseDescriptorSequence parses descriptors back-to-back until the
// current region is consumed, used both at the top of esds/iods and for
// any descriptor's child-descriptor list.
func parseDescriptorSequence(c *Cursor, ctx Context) error {
	for !c.AtEnd() {
		if err := parseOneDescriptor(c, ctx); err != nil {
			return err
		}
	}
	return nil
}

// parseOneDescriptor reads one descriptor's tag+size framing, opens an
// emitter scope labelled with its tag and name, dispatches to its parser
// (or a hex dump for unknown tags), and enforces the child region.
func parseOneDescriptor(c *Cursor, ctx Context) error {
	tag, err := c.U8()
	if err != nil {
		return err
	}
	size, err := readDescriptorSize(c)
	if err != nil {
		return err
	}
	if int64(size) > c.Remaining() {
		return fmt.Errorf("%w: descriptor tag 0x%02x declares size %d, only %d remain", ErrOverflow, tag, size, c.Remaining())
	}

	e := ctx.Emitter
	e.line(fmt.Sprintf("[%d] %s", tag, DescriptorName(tag)))
	e.depth++

	if err := c.EnterRegion(int64(size)); err != nil {
		e.depth--
		return err
	}

	parser, known := descriptorParsers[tag]
	if !known {
		parser = func(c *Cursor, tag uint8, ctx Context) error {
			data, err := c.Bytes(int(c.Remaining()))
			if err != nil {
				return err
			}
			ctx.Emitter.HexDump(data, c.Pos()-int64(len(data)))
			return nil
		}
	}

	perr := parser(c, tag, ctx)
	if perr != nil {
		residue := remainderBestEffort(c)
		e.ErrorWithDump(fmt.Sprintf("descriptor tag 0x%02x: %v", tag, perr), residue, c.Pos())
	} else if !c.AtEnd() {
		residue := remainderBestEffort(c)
		e.Warn(fmt.Sprintf("descriptor tag 0x%02x: %d trailing byte(s) not consumed", tag, len(residue)))
		e.HexDump(residue, c.Pos()-int64(len(residue)))
	}

	c.ExitRegion()
	e.depth--
	return nil
}

func parseESDescriptor(c *Cursor, tag uint8, ctx Context) error {
	esID, err := c.U16()
	if err != nil {
		return err
	}
	flagsByte, err := c.U8()
	if err != nil {
		return err
	}
	streamDependenceFlag := flagsByte&0x80 != 0
	urlFlag := flagsByte&0x40 != 0
	ocrStreamFlag := flagsByte&0x20 != 0
	streamPriority := flagsByte & 0x1f

	e := ctx.Emitter
	e.Field("ES_ID", fmt.Sprintf("%d", esID), "")
	e.Field("streamPriority", fmt.Sprintf("%d", streamPriority), "")

	if streamDependenceFlag {
		dep, err := c.U16()
		if err != nil {
			return err
		}
		e.Field("dependsOn_ES_ID", fmt.Sprintf("%d", dep), "")
	}
	if urlFlag {
		url, err := c.PascalString(0)
		if err != nil {
			return err
		}
		e.Field("URL", url, "")
	}
	if ocrStreamFlag {
		ocr, err := c.U16()
		if err != nil {
			return err
		}
		e.Field("OCR_ES_ID", fmt.Sprintf("%d", ocr), "")
	}
	return parseDescriptorSequence(c, ctx)
}

func parseDecoderConfigDescriptor(c *Cursor, tag uint8, ctx Context) error {
	oti, err := c.U8()
	if err != nil {
		return err
	}
	b, err := c.U(6 + 1 + 1) // streamType(6) + upStream(1) + reserved(1)
	if err != nil {
		return err
	}
	streamType := uint8(b >> 2 & 0x3f)
	upStream := b&0x2 != 0
	bufferSizeDB, err := c.U(24)
	if err != nil {
		return err
	}
	maxBitrate, err := c.U32()
	if err != nil {
		return err
	}
	avgBitrate, err := c.U32()
	if err != nil {
		return err
	}

	e := ctx.Emitter
	e.Field("objectTypeIndication", fmt.Sprintf("%d", oti), ObjectTypeIndicationDescription(oti))
	e.Field("streamType", fmt.Sprintf("%d", streamType), StreamTypeDescription(streamType))
	e.Field("upStream", boolWord(upStream), "")
	e.Field("bufferSizeDB", fmt.Sprintf("%d", bufferSizeDB), "")
	e.Field("maxBitrate", fmt.Sprintf("%d", maxBitrate), "")
	e.Field("avgBitrate", fmt.Sprintf("%d", avgBitrate), "")

	return parseDescriptorSequence(c, ctx)
}

// parseDecoderSpecificInfo is opaque codec-private data (Non-goal per
// spec.md §1): hex-dumped, never decoded.
func parseDecoderSpecificInfo(c *Cursor, tag uint8, ctx Context) error {
	data, err := c.Bytes(int(c.Remaining()))
	if err != nil {
		return err
	}
	ctx.Emitter.HexDump(data, c.Pos()-int64(len(data)))
	return nil
}

func parseSLConfigDescriptor(c *Cursor, tag uint8, ctx Context) error {
	predefined, err := c.U8()
	if err != nil {
		return err
	}
	e := ctx.Emitter
	e.Field("predefined", fmt.Sprintf("%d", predefined), "")
	if predefined != 0 {
		return nil
	}
	data, err := c.Bytes(int(c.Remaining()))
	if err != nil {
		return err
	}
	e.HexDump(data, c.Pos()-int64(len(data)))
	return nil
}

func parseInitialObjectDescriptor(c *Cursor, tag uint8, ctx Context) error {
	odID, err := c.U(10)
	if err != nil {
		return err
	}
	flagsByte, err := c.U(1 + 1 + 4) // URL_Flag, includeInlineProfileLevelFlag, reserved
	if err != nil {
		return err
	}
	urlFlag := flagsByte&(1<<5) != 0

	e := ctx.Emitter
	e.Field("ObjectDescriptorID", fmt.Sprintf("%d", odID), "")
	if urlFlag {
		url, err := c.PascalString(0)
		if err != nil {
			return err
		}
		e.Field("URL", url, "")
		return nil
	}
	profiles := []string{"OD_profileAndLevel", "scene_profileAndLevel", "audio_profileAndLevel", "visual_profileAndLevel", "graphics_profileAndLevel"}
	for _, name := range profiles {
		v, err := c.U8()
		if err != nil {
			return err
		}
		e.Field(name, fmt.Sprintf("%d", v), "")
	}
	return parseDescriptorSequence(c, ctx)
}
