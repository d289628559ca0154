package bmff

import "fmt"

func init() {
	RegisterParser(TypeFrma, parseFrma)
	RegisterParser(TypeSchm, parseSchm)
	RegisterParser(TypeTenc, parseTenc)
	RegisterParser(TypePssh, parsePssh)
}

// parseFrma names the format an enclosing sinf protects; it is a plain box,
// not a FullBox.
func parseFrma(c *Cursor, h Header, ctx Context) (Context, error) {
	v, err := c.U32()
	if err != nil {
		return ctx, err
	}
	t := boxTypeFromU32(v)
	ctx.Emitter.Field("data_format", quoteFourCC(t), "")
	return ctx, nil
}

func parseSchm(c *Cursor, h Header, ctx Context) (Context, error) {
	_, flags, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	schemeType, err := c.U32()
	if err != nil {
		return ctx, err
	}
	schemeVersion, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("scheme_type", quoteFourCC(boxTypeFromU32(schemeType)), "")
	e.Field("scheme_version", fmt.Sprintf("%d", schemeVersion), "")
	if flags&0x000001 != 0 {
		uri, err := c.UTF8UntilNUL()
		if err != nil {
			return ctx, err
		}
		e.Field("scheme_uri", uri, "")
	}
	return ctx, nil
}

// parseTenc reads the default per-sample encryption parameters (CENC
// ProtectionSchemeInfoBox.TrackEncryptionBox) and threads Per_Sample_IV_Size
// into the context so a sibling senc inside the same sinf/schi can fall back
// to it (spec.md §7's Open Question decision: no attempt is made to infer
// this from saiz instead).
func parseTenc(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	if _, err := c.U8(); err != nil { // reserved
		return ctx, err
	}
	var defaultCryptByteBlock, defaultSkipByteBlock uint8
	if version == 0 {
		if _, err := c.U8(); err != nil { // reserved
			return ctx, err
		}
	} else {
		b, err := c.U8()
		if err != nil {
			return ctx, err
		}
		defaultCryptByteBlock = b >> 4
		defaultSkipByteBlock = b & 0xf
		e.Field("default_crypt_byte_block", fmt.Sprintf("%d", defaultCryptByteBlock), "")
		e.Field("default_skip_byte_block", fmt.Sprintf("%d", defaultSkipByteBlock), "")
	}
	isProtected, err := c.U8()
	if err != nil {
		return ctx, err
	}
	ivSize, err := c.U8()
	if err != nil {
		return ctx, err
	}
	kid, err := c.Bytes(16)
	if err != nil {
		return ctx, err
	}
	e.Field("default_isProtected", boolWord(isProtected != 0), "")
	e.Field("default_Per_Sample_IV_Size", fmt.Sprintf("%d", ivSize), "")
	e.Field("default_KID", fmt.Sprintf("%x", kid), "")

	if isProtected != 0 && ivSize == 0 {
		constIVSize, err := c.U8()
		if err != nil {
			return ctx, err
		}
		constIV, err := c.Bytes(int(constIVSize))
		if err != nil {
			return ctx, err
		}
		e.Field("default_constant_IV", fmt.Sprintf("%x", constIV), "")
	}
	return ctx.WithTencDefault(ivSize), nil
}

// parsePssh decodes the protection-system-specific header. Its SystemID is
// looked up against the small vendor table shared with the uuid box
// (spec.md §4.3's DRM family description); the opaque Data payload is
// always a hex dump, since its layout is defined by each DRM vendor, not by
// ISOBMFF.
func parsePssh(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	systemIDBytes, err := c.Bytes(16)
	if err != nil {
		return ctx, err
	}
	var systemID [16]byte
	copy(systemID[:], systemIDBytes)
	e.Field("SystemID", uuidString(systemID), VendorName(systemID))

	if version > 0 {
		count, err := c.U32()
		if err != nil {
			return ctx, err
		}
		e.Field("KID_count", fmt.Sprintf("%d", count), "")
		t := e.BeginTable()
		for i := uint32(0); i < count; i++ {
			kid, err := c.Bytes(16)
			if err != nil {
				return ctx, err
			}
			t.Row(fmt.Sprintf("[%d] %x", i, kid))
		}
		t.Finish("")
	}

	dataSize, err := c.U32()
	if err != nil {
		return ctx, err
	}
	data, err := c.Bytes(int(dataSize))
	if err != nil {
		return ctx, err
	}
	e.Field("DataSize", fmt.Sprintf("%d", dataSize), "")
	if len(data) > 0 {
		e.HexDump(data, c.Pos()-int64(len(data)))
	}
	return ctx, nil
}
