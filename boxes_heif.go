package bmff

import (
	"bytes"
	"fmt"

	"github.com/rwcarlsen/goexif/exif"
)

func init() {
	RegisterParser(TypeIloc, parseIloc)
	RegisterParser(TypeIinf, parseIinf)
	RegisterParser(TypeInfe, parseInfe)
	RegisterParser(TypePitm, parsePitm)
	RegisterParser(TypeIref, parseIref)
	RegisterParser(TypeIpma, parseIpma)
	RegisterParser(TypeIdat, parseIdat)
	RegisterParser(TypeIrot, parseIrot)
	RegisterParser(TypeImir, parseImir)
	RegisterParser(TypeIspe, parseIspe)
	RegisterParser(TypeUuid, parseUUID)
}

// readSizedUint reads a big-endian unsigned value occupying byteSize bytes
// (0, 1, 2, 3, 4, or 8), the representation iloc uses for its
// offset_size/length_size/base_offset_size/index_size nibbles.
func readSizedUint(c *Cursor, byteSize uint8) (uint64, error) {
	switch byteSize {
	case 0:
		return 0, nil
	case 1:
		v, err := c.U8()
		return uint64(v), err
	case 2:
		v, err := c.U16()
		return uint64(v), err
	case 3:
		v, err := c.U24()
		return uint64(v), err
	case 4:
		v, err := c.U32()
		return uint64(v), err
	case 8:
		return c.U64()
	default:
		return 0, fmt.Errorf("bmff: unsupported field size %d bytes", byteSize)
	}
}

// parseIloc decodes the item location table (ISO/IEC 14496-12 §8.11.3). The
// field widths for offset/length/base_offset/index are carried as 4-bit
// nibbles rather than a fixed layout, per the box's own grammar.
func parseIloc(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	nibbles, err := c.U8()
	if err != nil {
		return ctx, err
	}
	offsetSize := nibbles >> 4
	lengthSize := nibbles & 0xf
	nibbles2, err := c.U8()
	if err != nil {
		return ctx, err
	}
	baseOffsetSize := nibbles2 >> 4
	indexSize := nibbles2 & 0xf

	var itemCount uint32
	if version < 2 {
		v, err := c.U16()
		if err != nil {
			return ctx, err
		}
		itemCount = uint32(v)
	} else {
		itemCount, err = c.U32()
		if err != nil {
			return ctx, err
		}
	}
	e.Field("item_count", fmt.Sprintf("%d", itemCount), "")

	for i := uint32(0); i < itemCount; i++ {
		var itemID uint32
		if version < 2 {
			v, err := c.U16()
			if err != nil {
				return ctx, err
			}
			itemID = uint32(v)
		} else {
			itemID, err = c.U32()
			if err != nil {
				return ctx, err
			}
		}
		var constructionMethod uint8
		if version == 1 || version == 2 {
			v, err := c.U16()
			if err != nil {
				return ctx, err
			}
			constructionMethod = uint8(v & 0xf)
		}
		dataRefIndex, err := c.U16()
		if err != nil {
			return ctx, err
		}
		baseOffset, err := readSizedUint(c, baseOffsetSize)
		if err != nil {
			return ctx, err
		}
		extentCount, err := c.U16()
		if err != nil {
			return ctx, err
		}

		e.BeginGroup(fmt.Sprintf("item[%d]", i))
		e.Field("item_ID", fmt.Sprintf("%d", itemID), "")
		if version == 1 || version == 2 {
			e.Field("construction_method", fmt.Sprintf("%d", constructionMethod), constructionMethodName(constructionMethod))
		}
		e.Field("data_reference_index", fmt.Sprintf("%d", dataRefIndex), "")
		e.Field("base_offset", fmt.Sprintf("%d", baseOffset), "")

		t := e.BeginTable()
		for x := uint16(0); x < extentCount; x++ {
			var extentIndex uint64
			if (version == 1 || version == 2) && indexSize > 0 {
				extentIndex, err = readSizedUint(c, indexSize)
				if err != nil {
					return ctx, err
				}
			}
			extentOffset, err := readSizedUint(c, offsetSize)
			if err != nil {
				return ctx, err
			}
			extentLength, err := readSizedUint(c, lengthSize)
			if err != nil {
				return ctx, err
			}
			row := fmt.Sprintf("[%d] extent_offset=%d extent_length=%d", x, extentOffset, extentLength)
			if indexSize > 0 {
				row += fmt.Sprintf(" extent_index=%d", extentIndex)
			}
			t.Row(row)
		}
		t.Finish("")
		e.EndGroup()
	}
	return ctx, nil
}

func constructionMethodName(m uint8) string {
	switch m {
	case 0:
		return "file offset"
	case 1:
		return "idat offset"
	case 2:
		return "item offset"
	default:
		return "reserved"
	}
}

func parseIinf(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	var count uint32
	if version == 0 {
		v, err := c.U16()
		if err != nil {
			return ctx, err
		}
		count = uint32(v)
	} else {
		count, err = c.U32()
		if err != nil {
			return ctx, err
		}
	}
	e.Field("entry_count", fmt.Sprintf("%d", count), "")
	for i := uint32(0); i < count && !c.AtEnd(); i++ {
		var err error
		ctx, err = dissectOneBox(c, ctx, h.Type)
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// parseInfe decodes one item info entry. Versions 0/1 carry a free-form
// item_name/content_type/content_encoding; versions 2/3 (the ones HEIF
// actually writes) carry a 4CC item_type instead, per ISO/IEC 14496-12
// §8.11.6.2.
func parseInfe(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter

	var itemID uint32
	if version < 3 {
		v, err := c.U16()
		if err != nil {
			return ctx, err
		}
		itemID = uint32(v)
	} else {
		itemID, err = c.U32()
		if err != nil {
			return ctx, err
		}
	}
	protectionIndex, err := c.U16()
	if err != nil {
		return ctx, err
	}
	e.Field("item_ID", fmt.Sprintf("%d", itemID), "")
	e.Field("item_protection_index", fmt.Sprintf("%d", protectionIndex), "")

	if version == 0 || version == 1 {
		name, err := c.UTF8UntilNUL()
		if err != nil {
			return ctx, err
		}
		contentType, err := c.UTF8UntilNUL()
		if err != nil {
			return ctx, err
		}
		e.Field("item_name", name, "")
		e.Field("content_type", contentType, "")
		if !c.AtEnd() {
			encoding, err := c.UTF8UntilNUL()
			if err != nil {
				return ctx, err
			}
			e.Field("content_encoding", encoding, "")
		}
		return ctx, nil
	}

	typeBytes, err := c.Bytes(4)
	if err != nil {
		return ctx, err
	}
	var itemType BoxType
	copy(itemType[:], typeBytes)
	e.Field("item_type", quoteFourCC(itemType), "")

	name, err := c.UTF8UntilNUL()
	if err != nil {
		return ctx, err
	}
	e.Field("item_name", name, "")

	switch itemType.String() {
	case "mime":
		contentType, err := c.UTF8UntilNUL()
		if err != nil {
			return ctx, err
		}
		e.Field("content_type", contentType, "")
		if !c.AtEnd() {
			encoding, err := c.UTF8UntilNUL()
			if err != nil {
				return ctx, err
			}
			e.Field("content_encoding", encoding, "")
		}
	case "uri ":
		uriType, err := c.UTF8UntilNUL()
		if err != nil {
			return ctx, err
		}
		e.Field("item_uri_type", uriType, "")
	}
	return ctx, nil
}

func parsePitm(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	var itemID uint32
	if version == 0 {
		v, err := c.U16()
		if err != nil {
			return ctx, err
		}
		itemID = uint32(v)
	} else {
		itemID, err = c.U32()
		if err != nil {
			return ctx, err
		}
	}
	ctx.Emitter.Field("item_ID", fmt.Sprintf("%d", itemID), "")
	return ctx, nil
}

// parseIref walks its SingleItemTypeReferenceBox children by hand: the
// child's own four-CC (thmb, cdsc, dimg, auxl, base, ...) is the reference
// type itself rather than a box grammar to dispatch on, so this reads each
// child's header and record directly instead of going through the box
// registry.
func parseIref(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	for !c.AtEnd() {
		child, err := readBoxHeader(c)
		if err != nil {
			return ctx, err
		}
		if err := c.EnterRegion(child.PayloadLen()); err != nil {
			return ctx, err
		}
		e.Enter(child)

		var fromID uint32
		if version == 0 {
			v, err := c.U16()
			if err != nil {
				return ctx, err
			}
			fromID = uint32(v)
		} else {
			fromID, err = c.U32()
			if err != nil {
				return ctx, err
			}
		}
		refCount, err := c.U16()
		if err != nil {
			return ctx, err
		}
		e.Field("from_item_ID", fmt.Sprintf("%d", fromID), "")
		for i := uint16(0); i < refCount; i++ {
			var toID uint32
			if version == 0 {
				v, err := c.U16()
				if err != nil {
					return ctx, err
				}
				toID = uint32(v)
			} else {
				toID, err = c.U32()
				if err != nil {
					return ctx, err
				}
			}
			e.ListItem(fmt.Sprintf("to_item_ID[%d]", i), fmt.Sprintf("%d", toID))
		}
		e.Leave()
		c.ExitRegion()
	}
	return ctx, nil
}

func parseIpma(c *Cursor, h Header, ctx Context) (Context, error) {
	version, flags, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	entryCount, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("entry_count", fmt.Sprintf("%d", entryCount), "")

	for i := uint32(0); i < entryCount; i++ {
		var itemID uint32
		if version == 0 {
			v, err := c.U16()
			if err != nil {
				return ctx, err
			}
			itemID = uint32(v)
		} else {
			itemID, err = c.U32()
			if err != nil {
				return ctx, err
			}
		}
		assocCount, err := c.U8()
		if err != nil {
			return ctx, err
		}
		e.BeginGroup(fmt.Sprintf("item[%d] item_ID=%d", i, itemID))
		t := e.BeginTable()
		for a := uint8(0); a < assocCount; a++ {
			var essential bool
			var propertyIndex uint16
			if flags&0x1 != 0 {
				v, err := c.U16()
				if err != nil {
					return ctx, err
				}
				essential = v&0x8000 != 0
				propertyIndex = v & 0x7fff
			} else {
				v, err := c.U8()
				if err != nil {
					return ctx, err
				}
				essential = v&0x80 != 0
				propertyIndex = uint16(v & 0x7f)
			}
			t.Row(fmt.Sprintf("[%d] essential=%v property_index=%d", a, essential, propertyIndex))
		}
		t.Finish("")
		e.EndGroup()
	}
	return ctx, nil
}

// parseIdat hex-dumps the item-data pool used by construction_method=1
// iloc entries. HEIF writes a file's sole Exif item here (prefixed by a
// 4-byte exif_tiff_header_offset before the TIFF header), so this also
// tries goexif on that assumption and appends a one-line summary; a
// decode failure (multi-item idat, non-Exif payload, truncated capture)
// is never fatal and falls back to the hex dump alone, per SPEC_FULL.md §3.
func parseIdat(c *Cursor, h Header, ctx Context) (Context, error) {
	data, err := c.Bytes(int(c.Remaining()))
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.HexDump(data, c.Pos()-int64(len(data)))
	if summary, ok := decodeExifSummary(data); ok {
		e.Note("Exif: " + summary)
	}
	return ctx, nil
}

func decodeExifSummary(data []byte) (string, bool) {
	if len(data) < 8 {
		return "", false
	}
	offset := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	if int(offset) >= len(data)-4 {
		return "", false
	}
	x, err := exif.Decode(bytes.NewReader(data[4+offset:]))
	if err != nil {
		return "", false
	}
	var parts []string
	if tag, err := x.Get(exif.Make); err == nil {
		if s, err := tag.StringVal(); err == nil {
			parts = append(parts, "Make="+s)
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			parts = append(parts, "Model="+s)
		}
	}
	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		if s, err := tag.StringVal(); err == nil {
			parts = append(parts, "DateTimeOriginal="+s)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	summary := parts[0]
	for _, p := range parts[1:] {
		summary += " " + p
	}
	return summary, true
}

func parseIrot(c *Cursor, h Header, ctx Context) (Context, error) {
	b, err := c.U8()
	if err != nil {
		return ctx, err
	}
	angle := int(b&0x3) * 90
	ctx.Emitter.Field("angle", fmt.Sprintf("%d", angle), "degrees counter-clockwise")
	return ctx, nil
}

func parseImir(c *Cursor, h Header, ctx Context) (Context, error) {
	b, err := c.U8()
	if err != nil {
		return ctx, err
	}
	axis := b & 0x1
	desc := "vertical axis (left-right flip)"
	if axis == 0 {
		desc = "horizontal axis (top-bottom flip)"
	}
	ctx.Emitter.Field("axis", fmt.Sprintf("%d", axis), desc)
	return ctx, nil
}

func parseIspe(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	width, err := c.U32()
	if err != nil {
		return ctx, err
	}
	height, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("image_width", fmt.Sprintf("%d", width), "")
	e.Field("image_height", fmt.Sprintf("%d", height), "")
	return ctx, nil
}

// parseUUID annotates an extended-type box against the small DRM/vendor
// table shared with pssh, then hex-dumps its payload: no generic ISOBMFF
// grammar exists for uuid boxes since their layout is entirely vendor-
// defined (spec.md §4.3's closing bullet on the DRM family).
func parseUUID(c *Cursor, h Header, ctx Context) (Context, error) {
	e := ctx.Emitter
	if name := VendorName(h.ExtendedType); name != "" {
		e.Note(name)
	}
	data, err := c.Bytes(int(c.Remaining()))
	if err != nil {
		return ctx, err
	}
	e.HexDump(data, c.Pos()-int64(len(data)))
	return ctx, nil
}
