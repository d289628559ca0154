package bmff

import (
	"errors"
	"fmt"
	"io"
)

// Fatal top-level conditions (spec.md §7): these abort the whole dissect
// call rather than being caught and reported per-box.
var (
	ErrFileUnreadable           = errors.New("bmff: input cannot be read")
	ErrTopLevelHeaderUnreadable = errors.New("bmff: first box header cannot be read")
)

// Dissect is the core entry point: it reads r as a sequence of top-level
// boxes and renders them to e, until r is exhausted. size is the total
// number of bytes in r (its declared or actual length); the out-of-scope
// "file opening" collaborator in cmd/mp4dump supplies both.
//
// Dissect returns a non-nil error only for the fatal conditions in
// spec.md §7: the very first top-level box header could not be read at
// all. Every other parse failure is caught internally, reported via
// e.Warn/e.ErrorWithDump, and the walk continues with the next box.
func Dissect(r io.Reader, size int64, e *Emitter, opts Options) error {
	c := NewCursor(r, size)
	ctx := Context{Emitter: e, Options: opts, SencPerSampleIV: uint8(opts.SencPerSampleIV)}

	first := true
	for !c.AtEnd() {
		var err error
		ctx, err = dissectOneBox(c, ctx, BoxType{})
		if err != nil {
			if first {
				return fmt.Errorf("%w: %v", ErrTopLevelHeaderUnreadable, err)
			}
			// A non-first top-level header failure still can't be
			// recovered from (we no longer know where the next box
			// starts), so the remainder of the stream is reported as
			// one final error and the walk ends without returning a
			// fatal error to the caller (spec.md §7: only the very
			// first header read is fatal).
			e.ErrorWithDump(err.Error(), remainderBestEffort(c), c.Pos())
			return nil
		}
		first = false
	}
	return nil
}

// remainderBestEffort drains whatever is left of the current region for a
// final hex dump after an unrecoverable framing error. Region boundaries
// may themselves be suspect at this point, so errors reading it are
// ignored: partial output is better than none.
func remainderBestEffort(c *Cursor) []byte {
	n := int(c.Remaining())
	if n <= 0 {
		return nil
	}
	b, _ := c.Bytes(n)
	return b
}

// dissectOneBox reads one box header, opens an emitter scope, dispatches to
// the registered grammar, and closes the scope. parentType is the
// enclosing box's type (the zero BoxType at the top level), used for
// qualified registry lookups.
//
// It returns the context to use for the *next sibling*: most grammars
// leave it unchanged, but hdlr/mvhd/mdhd/tkhd/tenc return an updated copy so that
// later boxes in the same container (minf/stbl/stsd siblings of hdlr,
// schi's tenc informing a later senc) see it, per spec.md §4.5's frame
// semantics. Per-box parse failures are caught here and turned into a
// recoverable error+hexdump, never propagated to the caller, except for
// header-read failures which the caller (Dissect or parseContainer)
// decides how to handle.
func dissectOneBox(c *Cursor, ctx Context, parentType BoxType) (Context, error) {
	h, err := readBoxHeader(c)
	if err != nil {
		return ctx, err
	}

	if err := c.EnterRegion(h.PayloadLen()); err != nil {
		ctx.Emitter.ErrorWithDump(fmt.Sprintf("box %q at %#x: %v", h.Type, h.Offset, err), nil, h.PayloadStart())
		return ctx, nil
	}

	ctx.Emitter.Enter(h)
	parser := lookupParser(parentType, h.Type)
	nextCtx, perr := runParser(parser, c, h, ctx)
	if perr != nil {
		remaining := remainderBestEffort(c)
		ctx.Emitter.ErrorWithDump(fmt.Sprintf("%q at %#x: %v", h.Type, h.Offset, perr), remaining, c.Pos())
		nextCtx = ctx
	} else if !c.AtEnd() {
		residue := remainderBestEffort(c)
		ctx.Emitter.Warn(fmt.Sprintf("%q at %#x: %d trailing byte(s) not consumed by its grammar", h.Type, h.Offset, len(residue)))
		ctx.Emitter.HexDump(residue, c.Pos()-int64(len(residue)))
	}
	ctx.Emitter.Leave()
	c.ExitRegion()
	return nextCtx, nil
}

// runParser recovers from a parser panic (an out-of-range slice index in a
// hand-rolled grammar, say) and turns it into the same recoverable-error
// path as a returned error, so one malformed box can never abort the
// entire tree (spec.md §7/§8, testable property 7).
func runParser(p BoxParser, c *Cursor, h Header, ctx Context) (next Context, err error) {
	next = ctx
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while parsing: %v", r)
			next = ctx
		}
	}()
	return p(c, h, ctx)
}

// readFullBoxHeader consumes the 1-byte version + 3-byte flags preamble
// every "full box" carries (spec.md §3), returning them for grammars that
// branch on version or flags.
func readFullBoxHeader(c *Cursor) (version uint8, flags uint32, err error) {
	version, err = c.U8()
	if err != nil {
		return 0, 0, err
	}
	flags, err = c.U24()
	if err != nil {
		return 0, 0, err
	}
	return version, flags, nil
}
