package bmff

import "fmt"

func init() {
	RegisterParser(TypeTrak, parseTrak)
	RegisterParser(TypeMeta, parseMeta)
	RegisterParser(TypeStsd, parseStsd)
	RegisterParser(TypeDref, parseDref)
	RegisterQualifiedParser(TypeDref, TypeUrl, parseDataEntryURL)
	RegisterQualifiedParser(TypeDref, TypeUrn, parseDataEntryURN)
	RegisterParser(TypeData, parseQuickTimeData)
}

// parseTrak recurses into a track's children with its own context frame:
// an hdlr or mdhd found anywhere inside (directly, or via mdia/minf) is
// visible to the boxes after it inside this trak (minf/stbl/stsd under the
// same mdia), but must never leak to the *next* trak, per spec.md §4.5 ("leaving
// pops it"). It therefore parses with a working copy and returns the
// context it was entered with, discarding whatever the working copy
// accumulated.
func parseTrak(c *Cursor, h Header, ctx Context) (Context, error) {
	inner, err := parseContainer(c, h.Type, ctx)
	if err == nil && inner.HandlerType != (BoxType{}) {
		ctx.Emitter.Note(fmt.Sprintf("track summary: id=%d kind=%s timescale=%d",
			inner.TrackID, inner.HandlerType.String(), inner.TimeScale))
	}
	return ctx, err
}

// parseMeta is a full box (version+flags) whose children are the HEIF/MIAF
// item-box family (§4.3). Like trak, it isolates its own context frame.
func parseMeta(c *Cursor, h Header, ctx Context) (Context, error) {
	version, flags, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.DefaultField("version", fmt.Sprintf("%d", version), "", version == 0)
	e.DefaultField("flags", hexNoPrefix(uint64(flags), 3), "", flags == 0)
	_, err = parseContainer(c, h.Type, ctx)
	return ctx, err
}

// parseStsd reads the sample-description preamble (version+flags+
// entry_count) and then iterates entry_count sample entries, each
// dispatched by its own four-CC (avc1, mp4a, ...) through the registry.
// The enclosing track's handler type is not consulted: an entry whose
// four-CC has no registered grammar is hex-dumped like any unknown box.
func parseStsd(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
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

// parseDref reads its entry_count preamble, then iterates entry_count
// DataEntry boxes (url /urn  are the two standard variants, qualified by
// parent dref per spec.md §4.3).
func parseDref(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	ctx.Emitter.Field("entry_count", fmt.Sprintf("%d", count), "")
	for i := uint32(0); i < count && !c.AtEnd(); i++ {
		var err error
		ctx, err = dissectOneBox(c, ctx, h.Type)
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

const drefSelfContainedFlag = 0x000001

func parseDataEntryURL(c *Cursor, h Header, ctx Context) (Context, error) {
	_, flags, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	selfContained := flags&drefSelfContainedFlag != 0
	e.Field("flags", hexNoPrefix(uint64(flags), 3), "")
	if selfContained {
		e.Note("self-contained (media data is in this file)")
		return ctx, nil
	}
	loc, err := c.UTF8UntilNUL()
	if err != nil {
		return ctx, err
	}
	e.Field("location", loc, "")
	return ctx, nil
}

func parseDataEntryURN(c *Cursor, h Header, ctx Context) (Context, error) {
	_, flags, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("flags", hexNoPrefix(uint64(flags), 3), "")
	if flags&drefSelfContainedFlag != 0 {
		e.Note("self-contained (media data is in this file)")
		return ctx, nil
	}
	name, err := c.UTF8UntilNUL()
	if err != nil {
		return ctx, err
	}
	e.Field("name", name, "")
	if c.AtEnd() {
		return ctx, nil
	}
	loc, err := c.UTF8UntilNUL()
	if err != nil {
		return ctx, err
	}
	e.Field("location", loc, "")
	return ctx, nil
}

// quicktimeDataTypes names the 4-byte type indicator of an ilst value
// atom's data child (spec.md §4.3's closing bullet).
var quicktimeDataTypes = map[uint32]string{
	0:  "binary",
	1:  "utf8",
	13: "jpeg",
	14: "png",
	21: "signed int",
}

// parseQuickTimeData renders an ilst value atom's data child: a 4-byte
// type indicator, a 4-byte locale/reserved field, then a value whose
// rendering follows the type.
func parseQuickTimeData(c *Cursor, h Header, ctx Context) (Context, error) {
	typeIndicator, err := c.U32()
	if err != nil {
		return ctx, err
	}
	locale, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	typeName, known := quicktimeDataTypes[typeIndicator]
	if !known {
		typeName = fmt.Sprintf("reserved(%d)", typeIndicator)
	}
	e.Field("type", fmt.Sprintf("%d", typeIndicator), typeName)
	e.DefaultField("locale", hexNoPrefix(uint64(locale), 4), "", locale == 0)

	value, err := c.Bytes(int(c.Remaining()))
	if err != nil {
		return ctx, err
	}
	switch typeIndicator {
	case 1: // utf8
		e.Field("value", escapeNonUTF8(value), "")
	case 21: // signed int, big-endian, width implied by remaining bytes
		var v int64
		for _, b := range value {
			v = v<<8 | int64(b)
		}
		// Sign-extend from the actual field width.
		shift := uint(64 - 8*len(value))
		v = (v << shift) >> shift
		e.Field("value", fmt.Sprintf("%d", v), "")
	default:
		e.HexDump(value, c.Pos()-int64(len(value)))
	}
	return ctx, nil
}
