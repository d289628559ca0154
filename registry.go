package bmff

// BoxParser renders one box's fields into e, given a Cursor scoped to
// exactly the box's payload region (spec.md §4.3: "a function of (reader,
// emitter, context) -> Result"). It must leave the cursor at, or before,
// the region's end; the driver reports any residue as a trailing-bytes
// warning rather than the parser doing so itself, so every grammar is
// written the same way regardless of how its container enforces this.
//
// It returns the Context visible to its own children and, once it
// returns, to its next sibling in the same container (spec.md §4.5's
// frame semantics: hdlr, mvhd, mdhd, tkhd and tenc return an updated copy;
// containers other than trak and meta pass on what their children
// returned; every other parser returns ctx unmodified).
type BoxParser func(c *Cursor, h Header, ctx Context) (Context, error)

// qualifiedKey identifies a (parent_type, type) pair for grammars whose
// meaning depends on their enclosing box, e.g. url /urn  inside dref.
type qualifiedKey struct {
	parent BoxType
	t      BoxType
}

var (
	qualifiedParsers   = map[qualifiedKey]BoxParser{}
	unqualifiedParsers = map[BoxType]BoxParser{}
)

// RegisterParser registers a grammar for a box type regardless of parent.
func RegisterParser(t BoxType, p BoxParser) {
	unqualifiedParsers[t] = p
}

// RegisterQualifiedParser registers a grammar for a box type only when
// nested directly inside parent, tried before the unqualified table.
func RegisterQualifiedParser(parent, t BoxType, p BoxParser) {
	qualifiedParsers[qualifiedKey{parent, t}] = p
}

// lookupParser implements spec.md §4.3's two-level lookup: qualified key,
// then unqualified key, then the generic container/hex-dump fallback.
func lookupParser(parent, t BoxType) BoxParser {
	if p, ok := qualifiedParsers[qualifiedKey{parent, t}]; ok {
		return p
	}
	if p, ok := unqualifiedParsers[t]; ok {
		return p
	}
	return genericParser
}

// genericParser is the fallback for box types with no registered grammar:
// a container probe (if the type is a known plain container, recurse)
// otherwise a hex dump of the whole payload, per spec.md §4.3/§7's "unknown
// box types are not errors" policy.
func genericParser(c *Cursor, h Header, ctx Context) (Context, error) {
	if IsContainerBox(h.Type) {
		return parseContainer(c, h.Type, ctx)
	}
	return ctx, dumpPayload(c, ctx)
}

// dumpPayload hex-dumps whatever remains of the current region.
func dumpPayload(c *Cursor, ctx Context) error {
	data, err := c.Bytes(int(c.Remaining()))
	if err != nil {
		return err
	}
	ctx.Emitter.HexDump(data, c.Pos()-int64(len(data)))
	return nil
}

// parseContainer iterates a plain box sequence with no preamble fields,
// threading the context from one sibling to the next so that an hdlr or
// mdhd seen early in the container is visible to later siblings (e.g.
// mdia's hdlr reaching its sibling minf), and returns the final
// accumulated context to its own caller. Used both as the generic fallback
// and by every registered container grammar; callers that isolate their
// own frame (trak, meta) use the returned context only to inspect it
// before discarding it, never passing it on to their own siblings.
func parseContainer(c *Cursor, selfType BoxType, ctx Context) (Context, error) {
	for !c.AtEnd() {
		var err error
		ctx, err = dissectOneBox(c, ctx, selfType)
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}
