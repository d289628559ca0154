package bmff

import "fmt"

func init() {
	RegisterParser(TypeFtyp, parseFtyp)
	RegisterParser(TypeStyp, parseFtyp)
	RegisterParser(TypeMvhd, parseMvhd)
	RegisterParser(TypeTkhd, parseTkhd)
	RegisterParser(TypeMdhd, parseMdhd)
	RegisterParser(TypeHdlr, parseHdlr)
	RegisterParser(TypeVmhd, parseVmhd)
	RegisterParser(TypeSmhd, parseSmhd)
	RegisterParser(TypeHmhd, parseHmhd)
	RegisterParser(TypeNmhd, parseNmhd)
	RegisterParser(TypeElst, parseElst)
	RegisterParser(TypeMdat, parseMdat)
	RegisterParser(TypeFree, parseFiller)
	RegisterParser(TypeSkip, parseFiller)
}

// parseMdat never touches the sample bytes it frames — they can run into
// gigabytes — so it only reports the byte range, mirroring the teacher's
// cmd/mp4dump special-case for TypeMdat.
func parseMdat(c *Cursor, h Header, ctx Context) (Context, error) {
	n, err := c.SkipToEnd()
	if err != nil {
		return ctx, err
	}
	ctx.Emitter.Field("data", fmt.Sprintf("%d byte(s)", n), "")
	return ctx, nil
}

// parseFiller covers free/skip: padding with no structure worth dumping.
func parseFiller(c *Cursor, h Header, ctx Context) (Context, error) {
	n, err := c.SkipToEnd()
	if err != nil {
		return ctx, err
	}
	ctx.Emitter.Field("data", fmt.Sprintf("%d byte(s) of padding", n), "")
	return ctx, nil
}

// parseFtyp covers both ftyp and styp: major_brand, minor_version, then a
// list of compatible_brands to the end of the box (spec.md §4.3/§8's worked
// example).
func parseFtyp(c *Cursor, h Header, ctx Context) (Context, error) {
	major, err := c.Bytes(4)
	if err != nil {
		return ctx, err
	}
	var majorType BoxType
	copy(majorType[:], major)
	minorVersion, err := c.U32()
	if err != nil {
		return ctx, err
	}

	e := ctx.Emitter
	e.Field("major_brand", quoteFourCC(majorType), BrandDescription(majorType))
	e.Field("minor_version", hexNoPrefix(uint64(minorVersion), 4), "")

	for !c.AtEnd() {
		b, err := c.Bytes(4)
		if err != nil {
			return ctx, err
		}
		var brand BoxType
		copy(brand[:], b)
		e.ListItem("compatible", quoteFourCC(brand))
	}
	return ctx, nil
}

func read3x3Matrix(c *Cursor) ([9]Fixed, error) {
	var m [9]Fixed
	widths := [9][2]int{{16, 16}, {16, 16}, {2, 30}, {16, 16}, {16, 16}, {2, 30}, {2, 30}, {2, 30}, {2, 30}}
	for i, w := range widths {
		f, err := c.Fixed(w[0], w[1])
		if err != nil {
			return m, err
		}
		m[i] = f
	}
	return m, nil
}

func emitMatrix(e *Emitter, m [9]Fixed) {
	e.Field("matrix", fmt.Sprintf("[%s %s %s / %s %s %s / %s %s %s]",
		m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8]), "")
}

// parseMvhd covers mvhd's version-dependent 32-/64-bit time fields, the
// rate/volume fixed-point fields, the 3x3 transformation matrix, and the
// trailing next_track_ID.
func parseMvhd(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter

	var creation, modification uint64
	var timescale uint32
	var duration uint64
	if version == 1 {
		creation, _ = c.U64()
		modification, _ = c.U64()
		timescale, err = c.U32()
		if err != nil {
			return ctx, err
		}
		duration, _ = c.U64()
	} else {
		c32, err := c.U32()
		if err != nil {
			return ctx, err
		}
		m32, err := c.U32()
		if err != nil {
			return ctx, err
		}
		timescale, err = c.U32()
		if err != nil {
			return ctx, err
		}
		d32, err := c.U32()
		if err != nil {
			return ctx, err
		}
		creation, modification, duration = uint64(c32), uint64(m32), uint64(d32)
	}
	e.Field("creation_time", fmt.Sprintf("%d", creation), "")
	e.Field("modification_time", fmt.Sprintf("%d", modification), "")
	e.Field("timescale", fmt.Sprintf("%d", timescale), "")
	e.Field("duration", fmt.Sprintf("%d", duration), formatSeconds(float64(duration)/float64(timescale)))

	rate, err := c.Fixed(16, 16)
	if err != nil {
		return ctx, err
	}
	e.DefaultField("rate", rate.String(), "", rate.Raw == 1<<16)
	volume, err := c.Fixed(8, 8)
	if err != nil {
		return ctx, err
	}
	e.DefaultField("volume", volume.String(), "", volume.Raw == 1<<8)
	if _, err := c.Bytes(8); err != nil { // reserved
		return ctx, err
	}
	matrix, err := read3x3Matrix(c)
	if err != nil {
		return ctx, err
	}
	emitMatrix(e, matrix)
	if _, err := c.Bytes(24); err != nil { // predefined
		return ctx, err
	}
	nextTrackID, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("next_track_ID", fmt.Sprintf("%d", nextTrackID), "")
	return ctx.WithTimeScale(timescale), nil
}

const (
	tkhdFlagEnabled   = 0x000001
	tkhdFlagInMovie   = 0x000002
	tkhdFlagInPreview = 0x000004
)

func parseTkhd(c *Cursor, h Header, ctx Context) (Context, error) {
	version, flags, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("flags", hexNoPrefix(uint64(flags), 3), "")
	if flags&tkhdFlagEnabled != 0 {
		e.Note("Track_enabled flag set")
	}
	if flags&tkhdFlagInMovie != 0 {
		e.Note("Track_in_movie flag set")
	}
	if flags&tkhdFlagInPreview != 0 {
		e.Note("Track_in_preview flag set")
	}

	var creation, modification, duration uint64
	var trackID uint32
	if version == 1 {
		creation, _ = c.U64()
		modification, _ = c.U64()
		trackID, err = c.U32()
		if err != nil {
			return ctx, err
		}
		if _, err := c.Bytes(4); err != nil { // reserved
			return ctx, err
		}
		duration, _ = c.U64()
	} else {
		c32, err := c.U32()
		if err != nil {
			return ctx, err
		}
		m32, err := c.U32()
		if err != nil {
			return ctx, err
		}
		trackID, err = c.U32()
		if err != nil {
			return ctx, err
		}
		if _, err := c.Bytes(4); err != nil {
			return ctx, err
		}
		d32, err := c.U32()
		if err != nil {
			return ctx, err
		}
		creation, modification, duration = uint64(c32), uint64(m32), uint64(d32)
	}
	e.Field("creation_time", fmt.Sprintf("%d", creation), "")
	e.Field("modification_time", fmt.Sprintf("%d", modification), "")
	e.Field("track_ID", fmt.Sprintf("%d", trackID), "")
	e.Field("duration", fmt.Sprintf("%d", duration), ctx.SecondsAt(duration))
	if _, err := c.Bytes(8); err != nil { // reserved
		return ctx, err
	}
	layer, err := c.I16()
	if err != nil {
		return ctx, err
	}
	e.DefaultField("layer", fmt.Sprintf("%d", layer), "", layer == 0)
	altGroup, err := c.I16()
	if err != nil {
		return ctx, err
	}
	e.DefaultField("alternate_group", fmt.Sprintf("%d", altGroup), "", altGroup == 0)
	volume, err := c.Fixed(8, 8)
	if err != nil {
		return ctx, err
	}
	e.Field("volume", volume.String(), "")
	if _, err := c.Bytes(2); err != nil { // reserved
		return ctx, err
	}
	matrix, err := read3x3Matrix(c)
	if err != nil {
		return ctx, err
	}
	emitMatrix(e, matrix)
	width, err := c.Fixed(16, 16)
	if err != nil {
		return ctx, err
	}
	height, err := c.Fixed(16, 16)
	if err != nil {
		return ctx, err
	}
	e.Field("width", width.String(), "")
	e.Field("height", height.String(), "")
	return ctx.WithTrackID(trackID), nil
}

func parseMdhd(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter

	var creation, modification, duration uint64
	var timescale uint32
	if version == 1 {
		creation, _ = c.U64()
		modification, _ = c.U64()
		timescale, err = c.U32()
		if err != nil {
			return ctx, err
		}
		duration, _ = c.U64()
	} else {
		c32, err := c.U32()
		if err != nil {
			return ctx, err
		}
		m32, err := c.U32()
		if err != nil {
			return ctx, err
		}
		timescale, err = c.U32()
		if err != nil {
			return ctx, err
		}
		d32, err := c.U32()
		if err != nil {
			return ctx, err
		}
		creation, modification, duration = uint64(c32), uint64(m32), uint64(d32)
	}
	e.Field("creation_time", fmt.Sprintf("%d", creation), "")
	e.Field("modification_time", fmt.Sprintf("%d", modification), "")
	e.Field("timescale", fmt.Sprintf("%d", timescale), "")
	e.Field("duration", fmt.Sprintf("%d", duration), formatSeconds(float64(duration)/float64(timescale)))

	if _, err := c.U(1); err != nil { // pad
		return ctx, err
	}
	packed, err := c.U(15)
	if err != nil {
		return ctx, err
	}
	code, desc := decodeLanguage(uint16(packed))
	e.Field("language", code, desc)
	if _, err := c.Bytes(2); err != nil { // pre_defined
		return ctx, err
	}
	return ctx.WithTimeScale(timescale), nil
}

func parseHdlr(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	if _, err := c.Bytes(4); err != nil { // pre_defined
		return ctx, err
	}
	handlerBytes, err := c.Bytes(4)
	if err != nil {
		return ctx, err
	}
	var handlerType BoxType
	copy(handlerType[:], handlerBytes)
	if _, err := c.Bytes(12); err != nil { // reserved
		return ctx, err
	}
	name, err := c.UTF8UntilNUL()
	if err != nil && err != ErrEOF {
		return ctx, err
	}

	e := ctx.Emitter
	e.Field("handler_type", quoteFourCC(handlerType), HandlerDescription(handlerType))
	e.Field("name", name, "")

	if !c.AtEnd() { // leftover padding some muxers add after the NUL
		if _, err := dumpRemainder(c, e); err != nil {
			return ctx, err
		}
	}
	return ctx.WithHandlerType(handlerType), nil
}

func dumpRemainder(c *Cursor, e *Emitter) (int, error) {
	n := int(c.Remaining())
	data, err := c.Bytes(n)
	if err != nil {
		return 0, err
	}
	if len(data) > 0 {
		e.HexDump(data, c.Pos()-int64(len(data)))
	}
	return n, nil
}

func parseVmhd(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	mode, err := c.U16()
	if err != nil {
		return ctx, err
	}
	e.DefaultField("graphicsmode", fmt.Sprintf("%d", mode), "", mode == 0)
	for i := 0; i < 3; i++ {
		v, err := c.U16()
		if err != nil {
			return ctx, err
		}
		e.DefaultField(fmt.Sprintf("opcolor[%d]", i), fmt.Sprintf("%d", v), "", v == 0)
	}
	return ctx, nil
}

func parseSmhd(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	balance, err := c.Fixed(8, 8)
	if err != nil {
		return ctx, err
	}
	ctx.Emitter.DefaultField("balance", balance.String(), "", balance.Raw == 0)
	if _, err := c.Bytes(2); err != nil { // reserved
		return ctx, err
	}
	return ctx, nil
}

func parseHmhd(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	maxPDUSize, err := c.U16()
	if err != nil {
		return ctx, err
	}
	avgPDUSize, err := c.U16()
	if err != nil {
		return ctx, err
	}
	maxBitrate, err := c.U32()
	if err != nil {
		return ctx, err
	}
	avgBitrate, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("maxPDUsize", fmt.Sprintf("%d", maxPDUSize), "")
	e.Field("avgPDUsize", fmt.Sprintf("%d", avgPDUSize), "")
	e.Field("maxbitrate", fmt.Sprintf("%d", maxBitrate), "")
	e.Field("avgbitrate", fmt.Sprintf("%d", avgBitrate), "")
	if _, err := c.Bytes(4); err != nil { // reserved
		return ctx, err
	}
	return ctx, nil
}

func parseNmhd(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	return ctx, err
}

func parseElst(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("entry_count", fmt.Sprintf("%d", count), "")

	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		var segDuration uint64
		var mediaTime int64
		if version == 1 {
			segDuration, err = c.U64()
			if err != nil {
				return ctx, err
			}
			raw, err := c.U(64)
			if err != nil {
				return ctx, err
			}
			mediaTime = int64(raw)
		} else {
			d32, err := c.U32()
			if err != nil {
				return ctx, err
			}
			mt32, err := c.I32()
			if err != nil {
				return ctx, err
			}
			segDuration = uint64(d32)
			mediaTime = int64(mt32)
		}
		rate, err := c.Fixed(16, 16)
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] segment_duration=%d media_time=%d media_rate=%s", i, segDuration, mediaTime, rate))
	}
	t.Finish("")
	return ctx, nil
}
